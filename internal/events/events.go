// Package events carries queue domain events from the engine to everything
// that mirrors queue state outside the process: the display hub, metrics,
// the audit journal and external brokers.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	TypeTokenCreated   = "token.created"
	TypeTokenCalled    = "token.called"
	TypeTokenCompleted = "token.completed"
	TypeTokenSkipped   = "token.skipped"
	TypeTokenRecalled  = "token.recalled"
	TypeCounterUpdated = "counter.updated"
	TypeAnnouncer      = "announcer.state"
)

type Event struct {
	EventID    string          `json:"event_id"`
	Type       string          `json:"type"`
	TokenID    string          `json:"token_id,omitempty"`
	CounterID  string          `json:"counter_id,omitempty"`
	Department string          `json:"department,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

func New(eventType string, payload json.RawMessage, at time.Time) Event {
	return Event{
		EventID:   uuid.NewString(),
		Type:      eventType,
		Payload:   payload,
		CreatedAt: at.UTC(),
	}
}

// TokenEvent reports whether the event describes a token lifecycle step.
func (e Event) TokenEvent() bool {
	return e.TokenID != ""
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type PublisherFunc func(ctx context.Context, event Event) error

func (f PublisherFunc) Publish(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Emitter is what the engine sees. Emit must not block.
type Emitter interface {
	Emit(event Event)
}

type Discard struct{}

func (Discard) Emit(Event) {}

// AnnouncerState reports the hall speaker starting or stopping.
func AnnouncerState(speaking bool, at time.Time) Event {
	payload, _ := json.Marshal(struct {
		Speaking bool `json:"speaking"`
	}{speaking})
	return New(TypeAnnouncer, payload, at)
}
