package store

import (
	"context"
	"encoding/json"
	"time"
)

// Journal is an append-only audit trail of token events. It is written to as
// tokens move and read only for history queries; queue state is never rebuilt
// from it.
type Journal interface {
	AppendTokenEvent(ctx context.Context, tokenID, eventType string, payload json.RawMessage, createdAt time.Time) (TokenEvent, error)
	ListTokenEvents(ctx context.Context, tokenID string) ([]TokenEvent, error)
	ListOutboxEvents(ctx context.Context, offset OutboxOffset, limit int) ([]OutboxEvent, error)
}

// OutboxOffset is a paging position in the outbox. Events are ordered by
// (created_at, event_id); a listing returns only events strictly after the
// offset. The zero offset starts from the beginning.
type OutboxOffset struct {
	LastEventTime time.Time
	LastEventID   string
}

func (o OutboxOffset) IsZero() bool {
	return o.LastEventTime.IsZero() && o.LastEventID == ""
}

// Precedes reports whether event sorts after the offset.
func (o OutboxOffset) Precedes(event OutboxEvent) bool {
	if !event.CreatedAt.Equal(o.LastEventTime) {
		return event.CreatedAt.After(o.LastEventTime)
	}
	return event.EventID > o.LastEventID
}

type OutboxEvent struct {
	EventID   string          `json:"event_id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Offset returns the position just past event.
func (e OutboxEvent) Offset() OutboxOffset {
	return OutboxOffset{LastEventTime: e.CreatedAt, LastEventID: e.EventID}
}
