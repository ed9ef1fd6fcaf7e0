package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"ironbank/internal/domain"
)

// RPC method names.
const (
	MethodList          = "ledger.list"
	MethodRead          = "ledger.read"
	MethodSave          = "ledger.save"
	MethodDelete        = "ledger.delete"
	MethodTutorialReset = "ledger.tutorial.reset"
	MethodTutorialGet   = "ledger.tutorial.get"
	MethodDirectory     = "ledger.directory"
	MethodDirectoryOpen = "ledger.directory.open"
)

// LedgerAPI is the ledger surface exposed over the gateway.
type LedgerAPI interface {
	ResolveDirectory(ctx context.Context) (string, error)
	List(ctx context.Context) ([]domain.LedgerSummary, error)
	Read(ctx context.Context, path string) (string, error)
	Save(ctx context.Context, filename, content string) (string, error)
	Delete(ctx context.Context, path string) error
	ResetTutorial(ctx context.Context) (string, error)
	TutorialTemplate(ctx context.Context) (string, error)
	OpenDirectory(ctx context.Context) error
}

// HandlerDeps holds dependencies needed by RPC handlers.
type HandlerDeps struct {
	Ledgers     LedgerAPI
	Bus         domain.EventBus // can be nil
	Logger      *slog.Logger
	Authorizer  domain.Authorizer  // can be nil (RBAC disabled)
	AuditLogger domain.AuditLogger // can be nil
	ServiceName string
	Version     string
}

// requirePerm wraps an RPCHandler with RBAC enforcement.
// If deps.Authorizer is nil, the handler runs without permission checks.
// Tokens without roles are treated as editors.
func requirePerm(deps HandlerDeps, perm domain.Permission, handler RPCHandler) RPCHandler {
	return func(ctx context.Context, client *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		if deps.Authorizer != nil {
			roles := domain.StringsToAuthRoles(client.Roles)
			if len(roles) == 0 {
				roles = []domain.AuthRole{domain.AuthRoleEditor}
			}
			if err := deps.Authorizer.Authorize(ctx, roles, perm); err != nil {
				if deps.AuditLogger != nil {
					_ = deps.AuditLogger.Log(ctx, domain.AuditEvent{
						Timestamp: time.Now(),
						Type:      domain.AuditAccessDenied,
						Actor:     client.Name,
						Resource:  string(perm),
						Action:    "rpc_call",
						Outcome:   "denied",
						Detail: map[string]string{
							"roles":      strings.Join(client.Roles, ","),
							"permission": string(perm),
						},
					})
				}
				return nil, domain.NewDomainError("Gateway.authorize", domain.ErrForbidden, string(perm))
			}
		}
		return handler(ctx, client, payload)
	}
}

// RegisterRESTHandlers registers the HTTP status and metrics endpoints and
// feeds ledger events into the server's counters.
func RegisterRESTHandlers(s *Server, deps HandlerDeps) *Metrics {
	startTime := time.Now()
	metrics := s.Metrics()

	if deps.Bus != nil {
		deps.Bus.Subscribe(domain.EventLedgerSaved, func(_ context.Context, _ domain.Event) {
			metrics.LedgersSaved.Add(1)
		})
		deps.Bus.Subscribe(domain.EventLedgerDeleted, func(_ context.Context, _ domain.Event) {
			metrics.LedgersDeleted.Add(1)
		})
		deps.Bus.Subscribe(domain.EventTutorialReset, func(_ context.Context, _ domain.Event) {
			metrics.TutorialResets.Add(1)
		})
	}

	authMiddleware := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			token := r.URL.Query().Get("token")
			if token == "" {
				token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			}
			client, err := s.Authenticate(token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if deps.Authorizer != nil {
				roles := domain.StringsToAuthRoles(client.Roles)
				if len(roles) == 0 {
					roles = []domain.AuthRole{domain.AuthRoleEditor}
				}
				if err := deps.Authorizer.Authorize(r.Context(), roles, domain.PermStatusView); err != nil {
					http.Error(w, "forbidden", http.StatusForbidden)
					return
				}
			}
			next(w, r)
		}
	}

	s.RegisterHTTPRoute("/api/v1/status", authMiddleware(statusHandler(deps, startTime, metrics)))
	s.RegisterHTTPRoute("/metrics", authMiddleware(metricsHandler(startTime, metrics)))

	return metrics
}

// RegisterDefaultHandlers registers all ledger RPC handlers on the server.
func RegisterDefaultHandlers(s *Server, deps HandlerDeps) {
	rpc := func(method string, perm domain.Permission, h RPCHandler) {
		s.RegisterHandler(method, requirePerm(deps, perm, h))
	}

	rpc(MethodList, domain.PermLedgerRead, listHandler(deps))
	rpc(MethodRead, domain.PermLedgerRead, readHandler(deps))
	rpc(MethodSave, domain.PermLedgerWrite, saveHandler(deps))
	rpc(MethodDelete, domain.PermLedgerDelete, deleteHandler(deps))
	rpc(MethodTutorialReset, domain.PermLedgerWrite, tutorialResetHandler(deps))
	rpc(MethodTutorialGet, domain.PermLedgerRead, tutorialGetHandler(deps))
	rpc(MethodDirectory, domain.PermLedgerRead, directoryHandler(deps))
	rpc(MethodDirectoryOpen, domain.PermDesktop, directoryOpenHandler(deps))
}

type pathRequest struct {
	Path string `json:"path"`
}

type saveRequest struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

type pathResponse struct {
	Path string `json:"path"`
}

type contentResponse struct {
	Content string `json:"content"`
}

func decode(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return domain.NewDomainError("Gateway.decode", domain.ErrRPCInvalidPayload, err.Error())
	}
	return nil
}

func listHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, _ *ClientInfo, _ json.RawMessage) (json.RawMessage, error) {
		items, err := deps.Ledgers.List(ctx)
		if err != nil {
			return nil, err
		}
		if items == nil {
			items = []domain.LedgerSummary{}
		}
		return json.Marshal(items)
	}
}

func readHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, _ *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var req pathRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		content, err := deps.Ledgers.Read(ctx, req.Path)
		if err != nil {
			return nil, err
		}
		return json.Marshal(contentResponse{Content: content})
	}
}

func saveHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, client *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var req saveRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		path, err := deps.Ledgers.Save(ctx, req.Filename, req.Content)
		if err != nil {
			return nil, err
		}
		deps.Logger.Debug("ledger saved via gateway", "client", client.Name, "path", path)
		return json.Marshal(pathResponse{Path: path})
	}
}

func deleteHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, client *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var req pathRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		if err := deps.Ledgers.Delete(ctx, req.Path); err != nil {
			return nil, err
		}
		deps.Logger.Debug("ledger deleted via gateway", "client", client.Name, "path", req.Path)
		return json.Marshal(map[string]bool{"deleted": true})
	}
}

func tutorialResetHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, _ *ClientInfo, _ json.RawMessage) (json.RawMessage, error) {
		path, err := deps.Ledgers.ResetTutorial(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(pathResponse{Path: path})
	}
}

func tutorialGetHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, _ *ClientInfo, _ json.RawMessage) (json.RawMessage, error) {
		content, err := deps.Ledgers.TutorialTemplate(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(contentResponse{Content: content})
	}
}

func directoryHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, _ *ClientInfo, _ json.RawMessage) (json.RawMessage, error) {
		dir, err := deps.Ledgers.ResolveDirectory(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(pathResponse{Path: dir})
	}
}

func directoryOpenHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, _ *ClientInfo, _ json.RawMessage) (json.RawMessage, error) {
		if err := deps.Ledgers.OpenDirectory(ctx); err != nil {
			return nil, err
		}
		return json.Marshal(map[string]bool{"opened": true})
	}
}
