package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"ironbank/internal/domain"
	"ironbank/internal/infra/middleware"
)

// RPCHandler handles a single RPC method call.
type RPCHandler func(ctx context.Context, client *ClientInfo, payload json.RawMessage) (json.RawMessage, error)

// DeniedFunc is notified when a connection is refused.
type DeniedFunc func(ctx context.Context, remote, reason string)

// Options configures a gateway server.
type Options struct {
	Addr           string
	AllowedOrigins []string // merged with the loopback origins
	// RequestsPerSecond limits RPC requests per connection. Zero disables limiting.
	RequestsPerSecond float64
	Burst             int
	OnDenied          DeniedFunc // can be nil
}

// loopbackOrigins are always accepted so the bundled front-end can connect.
var loopbackOrigins = []string{
	"localhost",
	"localhost:*",
	"127.0.0.1",
	"127.0.0.1:*",
	"[::1]",
	"[::1]:*",
}

// clientConn tracks a single WebSocket connection.
type clientConn struct {
	info      *ClientInfo
	ws        *websocket.Conn
	limiter   *rate.Limiter // nil when unlimited
	sendCh    chan Frame    // buffered outbound queue
	done      chan struct{}
	closeOnce sync.Once
}

// Server is the WebSocket gateway that exposes RPC methods and forwards
// ledger events to connected clients.
type Server struct {
	bus        domain.EventBus
	clients    sync.Map // connID (uint64) -> *clientConn
	auth       Authenticator
	handlersMu sync.RWMutex
	handlers   map[string]RPCHandler
	schemas    *schemaSet
	metrics    *Metrics
	logger     *slog.Logger
	opts       Options
	origins    []string
	httpSrv    *http.Server
	boundAddr  atomic.Value // string
	nextID     atomic.Uint64
	unsubAll   func()
	httpRoutes []httpRoute
}

type httpRoute struct {
	pattern string
	handler http.HandlerFunc
}

// NewServer creates a gateway server.
func NewServer(bus domain.EventBus, auth Authenticator, opts Options, logger *slog.Logger) *Server {
	origins := append(append([]string{}, loopbackOrigins...), opts.AllowedOrigins...)
	if opts.RequestsPerSecond > 0 && opts.Burst <= 0 {
		opts.Burst = 1
	}
	return &Server{
		bus:      bus,
		auth:     auth,
		handlers: make(map[string]RPCHandler),
		schemas:  mustCompileSchemas(payloadSchemas),
		metrics:  &Metrics{},
		logger:   logger,
		opts:     opts,
		origins:  origins,
	}
}

// RegisterHandler adds an RPC handler for the given method name.
// Safe to call concurrently with active connections.
func (s *Server) RegisterHandler(method string, handler RPCHandler) {
	s.handlersMu.Lock()
	s.handlers[method] = handler
	s.handlersMu.Unlock()
}

// RegisterHTTPRoute adds an HTTP handler to the gateway's mux.
// Must be called before Start().
func (s *Server) RegisterHTTPRoute(pattern string, handler http.HandlerFunc) {
	s.httpRoutes = append(s.httpRoutes, httpRoute{pattern: pattern, handler: handler})
}

// Metrics returns the server's live counters.
func (s *Server) Metrics() *Metrics { return s.metrics }

// Start begins accepting WebSocket connections. Blocks until context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleUpgrade)
	limit := func(h http.Handler) http.Handler { return h }
	if s.opts.RequestsPerSecond > 0 {
		limit = middleware.PerAddrLimit(ctx, s.opts.RequestsPerSecond, s.opts.Burst)
	}
	for _, route := range s.httpRoutes {
		mux.Handle(route.pattern, limit(route.handler))
	}

	listener, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("gateway listen: %w", err)
	}
	s.httpSrv = &http.Server{Handler: middleware.SecurityHeaders(mux), ReadHeaderTimeout: 10 * time.Second}
	s.boundAddr.Store(listener.Addr().String())

	// Forward every bus event to connected clients.
	s.unsubAll = s.bus.SubscribeAll(func(_ context.Context, event domain.Event) {
		payload, err := json.Marshal(event)
		if err != nil {
			return
		}
		frame := Frame{Type: FrameTypeEvent, Payload: payload}
		s.clients.Range(func(_, value any) bool {
			cc := value.(*clientConn)
			select {
			case cc.sendCh <- frame:
			default:
				s.logger.Warn("gateway: dropped event for slow client", "event", string(event.Type))
			}
			return true
		})
	})

	s.logger.Info("gateway started", "addr", s.BoundAddr())

	go func() {
		<-ctx.Done()
		s.Stop(context.Background())
	}()

	if err := s.httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("gateway serve: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the gateway server.
func (s *Server) Stop(ctx context.Context) error {
	if s.unsubAll != nil {
		s.unsubAll()
	}

	s.clients.Range(func(key, value any) bool {
		cc := value.(*clientConn)
		cc.closeOnce.Do(func() { close(cc.done) })
		cc.ws.Close(websocket.StatusGoingAway, "server shutting down")
		s.clients.Delete(key)
		return true
	})

	if s.httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	}
	return nil
}

// BoundAddr returns the actual address the server bound to. Empty before Start.
func (s *Server) BoundAddr() string {
	addr, _ := s.boundAddr.Load().(string)
	return addr
}

// Authenticate checks a token against the server's authenticator.
func (s *Server) Authenticate(token string) (*ClientInfo, error) {
	return s.auth.Authenticate(token)
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	clientInfo, err := s.auth.Authenticate(r.URL.Query().Get("token"))
	if err != nil {
		s.logger.Warn("gateway: connection rejected", "remote", r.RemoteAddr)
		if s.opts.OnDenied != nil {
			s.opts.OnDenied(r.Context(), r.RemoteAddr, "invalid token")
		}
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	clientInfo.Remote = r.RemoteAddr

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.origins})
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}

	connID := s.nextID.Add(1)
	cc := &clientConn{
		info:   clientInfo,
		ws:     ws,
		sendCh: make(chan Frame, 64),
		done:   make(chan struct{}),
	}
	if s.opts.RequestsPerSecond > 0 {
		cc.limiter = rate.NewLimiter(rate.Limit(s.opts.RequestsPerSecond), s.opts.Burst)
	}
	s.clients.Store(connID, cc)
	s.metrics.Connections.Add(1)

	s.logger.Info("gateway client connected", "conn_id", connID, "client", clientInfo.Name)

	go s.writeLoop(cc)
	s.readLoop(r.Context(), cc)

	cc.closeOnce.Do(func() { close(cc.done) })
	s.clients.Delete(connID)
	s.metrics.Connections.Add(-1)
	ws.Close(websocket.StatusNormalClosure, "")
	s.logger.Info("gateway client disconnected", "conn_id", connID)
}

func (s *Server) readLoop(ctx context.Context, cc *clientConn) {
	for {
		select {
		case <-cc.done:
			return
		default:
		}

		var frame Frame
		if err := wsjson.Read(ctx, cc.ws, &frame); err != nil {
			return
		}
		if frame.Type != FrameTypeRequest {
			continue
		}
		if cc.limiter != nil && !cc.limiter.Allow() {
			s.sendResponse(cc, frame.ID, nil, domain.NewDomainError("Gateway.dispatch", domain.ErrRateLimit, frame.Method))
			continue
		}

		go s.dispatchRPC(ctx, cc, frame)
	}
}

func (s *Server) writeLoop(cc *clientConn) {
	for {
		select {
		case <-cc.done:
			return
		case frame := <-cc.sendCh:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := wsjson.Write(ctx, cc.ws, frame)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (s *Server) dispatchRPC(ctx context.Context, cc *clientConn, req Frame) {
	s.handlersMu.RLock()
	handler, ok := s.handlers[req.Method]
	s.handlersMu.RUnlock()
	if !ok {
		s.sendResponse(cc, req.ID, nil, domain.NewDomainError("Gateway.dispatch", domain.ErrRPCMethodNotFound, req.Method))
		return
	}
	if err := s.schemas.validate(req.Method, req.Payload); err != nil {
		s.sendResponse(cc, req.ID, nil, err)
		return
	}

	if len(cc.info.Roles) > 0 {
		ctx = domain.ContextWithRoles(ctx, domain.StringsToAuthRoles(cc.info.Roles))
	}

	s.metrics.recordCall(req.Method)
	result, err := handler(ctx, cc.info, req.Payload)
	s.sendResponse(cc, req.ID, result, err)
}

func (s *Server) sendResponse(cc *clientConn, id uint64, result json.RawMessage, err error) {
	resp := Frame{
		Type:    FrameTypeResponse,
		ID:      id,
		Payload: result,
	}
	if err != nil {
		s.metrics.RPCErrors.Add(1)
		resp.Payload = nil
		resp.Error = err.Error()
		resp.Code = string(domain.ErrorCodeOf(err))
	}
	select {
	case cc.sendCh <- resp:
	default:
		s.logger.Warn("gateway: dropped RPC response for slow client", "frame_id", id)
	}
}
