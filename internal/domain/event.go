package domain

import (
	"context"
	"encoding/json"
	"time"
)

// EventType identifies the kind of event being published.
type EventType string

const (
	EventLedgerSaved    EventType = "ledger.saved"
	EventLedgerDeleted  EventType = "ledger.deleted"
	EventTutorialReset  EventType = "ledger.tutorial.reset"
	EventTutorialSeeded EventType = "ledger.tutorial.seeded"
)

// Event is the envelope published on the event bus.
type Event struct {
	ID        string          `json:"id,omitempty"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// LedgerEventPayload is the payload carried by ledger.* events.
type LedgerEventPayload struct {
	Path     string `json:"path"`
	Filename string `json:"filename,omitempty"`
}

// EventHandler is a callback invoked when an event is received.
type EventHandler func(ctx context.Context, event Event)

// EventBus provides a publish/subscribe mechanism for domain events.
type EventBus interface {
	// Publish sends an event to all matching subscribers.
	Publish(ctx context.Context, event Event)
	// Subscribe registers a handler for a specific event type.
	// Returns an unsubscribe function.
	Subscribe(eventType EventType, handler EventHandler) func()
	// SubscribeAll registers a handler that receives every event.
	// Returns an unsubscribe function.
	SubscribeAll(handler EventHandler) func()
	// Close drains in-flight handlers and prevents new publishes.
	Close()
}
