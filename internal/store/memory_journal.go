package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryJournal keeps the token event chain in process memory. It is the
// journal used when no database is configured.
type MemoryJournal struct {
	mu     sync.Mutex
	chains map[string][]TokenEvent
	outbox []OutboxEvent
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{chains: make(map[string][]TokenEvent)}
}

func (j *MemoryJournal) AppendTokenEvent(ctx context.Context, tokenID, eventType string, payload json.RawMessage, createdAt time.Time) (TokenEvent, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	chain := j.chains[tokenID]
	var prev *TokenEvent
	if len(chain) > 0 {
		prev = &chain[len(chain)-1]
	}
	event := ChainTokenEvent(prev, tokenID, eventType, payload, createdAt)
	j.chains[tokenID] = append(chain, event)
	j.outbox = append(j.outbox, OutboxEvent{
		EventID:   uuid.NewString(),
		Type:      eventType,
		Payload:   payload,
		CreatedAt: createdAt.UTC(),
	})
	return event, nil
}

func (j *MemoryJournal) ListTokenEvents(ctx context.Context, tokenID string) ([]TokenEvent, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]TokenEvent(nil), j.chains[tokenID]...), nil
}

func (j *MemoryJournal) ListOutboxEvents(ctx context.Context, offset OutboxOffset, limit int) ([]OutboxEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	j.mu.Lock()
	ordered := append([]OutboxEvent(nil), j.outbox...)
	j.mu.Unlock()
	sort.SliceStable(ordered, func(a, b int) bool {
		if !ordered[a].CreatedAt.Equal(ordered[b].CreatedAt) {
			return ordered[a].CreatedAt.Before(ordered[b].CreatedAt)
		}
		return ordered[a].EventID < ordered[b].EventID
	})

	var events []OutboxEvent
	for _, event := range ordered {
		if !offset.IsZero() && !offset.Precedes(event) {
			continue
		}
		events = append(events, event)
		if len(events) == limit {
			break
		}
	}
	return events, nil
}
