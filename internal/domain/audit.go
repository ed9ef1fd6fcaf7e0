package domain

import (
	"context"
	"time"
)

// AuditEventType classifies audit log entries.
type AuditEventType string

const (
	AuditLedgerSaved    AuditEventType = "ledger_saved"
	AuditLedgerDeleted  AuditEventType = "ledger_deleted"
	AuditTutorialReset  AuditEventType = "tutorial_reset"
	AuditTutorialSeeded AuditEventType = "tutorial_seeded"
	AuditAccessDenied   AuditEventType = "access_denied"
)

// AuditEvent represents a single auditable action.
type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	Type      AuditEventType    `json:"type"`
	Detail    map[string]string `json:"detail,omitempty"`

	Actor    string `json:"actor,omitempty"`
	Resource string `json:"resource,omitempty"`
	Action   string `json:"action,omitempty"`
	Outcome  string `json:"outcome,omitempty"`
}

// AuditLogger writes audit events to a persistent log.
type AuditLogger interface {
	Log(ctx context.Context, event AuditEvent) error
	Close() error
}

// AuditQuery filters journal reads. Zero values mean no filter.
type AuditQuery struct {
	Type  AuditEventType
	Since time.Time
	Limit int
}

// AuditReader reads back journal entries, newest first.
type AuditReader interface {
	Recent(ctx context.Context, q AuditQuery) ([]AuditEvent, error)
}
