package usecase

import (
	"context"
	"encoding/json"
	"log/slog"

	"ironbank/internal/domain"
)

var auditTypes = map[domain.EventType]struct {
	typ    domain.AuditEventType
	action string
}{
	domain.EventLedgerSaved:    {domain.AuditLedgerSaved, "save"},
	domain.EventLedgerDeleted:  {domain.AuditLedgerDeleted, "delete"},
	domain.EventTutorialReset:  {domain.AuditTutorialReset, "reset"},
	domain.EventTutorialSeeded: {domain.AuditTutorialSeeded, "seed"},
}

// AuditTrail journals ledger mutations published on the event bus.
type AuditTrail struct {
	audit  domain.AuditLogger
	logger *slog.Logger
}

// NewAuditTrail creates a trail writing to audit.
func NewAuditTrail(audit domain.AuditLogger, logger *slog.Logger) *AuditTrail {
	return &AuditTrail{audit: audit, logger: logger}
}

// Attach subscribes the trail to bus and returns the unsubscribe function.
func (a *AuditTrail) Attach(bus domain.EventBus) func() {
	return bus.SubscribeAll(a.Handle)
}

// Handle records one event. Events that are not ledger mutations are ignored.
func (a *AuditTrail) Handle(ctx context.Context, e domain.Event) {
	kind, ok := auditTypes[e.Type]
	if !ok {
		return
	}

	var payload domain.LedgerEventPayload
	if len(e.Payload) > 0 {
		if err := json.Unmarshal(e.Payload, &payload); err != nil {
			a.logger.Warn("audit: bad event payload", "event", string(e.Type), "error", err)
		}
	}

	entry := domain.AuditEvent{
		Timestamp: e.Timestamp,
		Type:      kind.typ,
		Resource:  payload.Path,
		Action:    kind.action,
		Outcome:   "success",
		Detail:    map[string]string{"event_id": e.ID},
	}
	if payload.Filename != "" {
		entry.Detail["filename"] = payload.Filename
	}
	if err := a.audit.Log(ctx, entry); err != nil {
		a.logger.Warn("audit: write failed", "event", string(e.Type), "error", err)
	}
}

// Denied records a rejected gateway connection.
func (a *AuditTrail) Denied(ctx context.Context, remote, reason string) {
	err := a.audit.Log(ctx, domain.AuditEvent{
		Type:    domain.AuditAccessDenied,
		Actor:   remote,
		Action:  "connect",
		Outcome: "denied",
		Detail:  map[string]string{"reason": reason},
	})
	if err != nil {
		a.logger.Warn("audit: write failed", "event", string(domain.AuditAccessDenied), "error", err)
	}
}
