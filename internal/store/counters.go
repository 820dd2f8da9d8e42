package store

import (
	"fmt"
	"sync"

	"qms/token-queue/internal/models"
)

// CounterRegistry holds the fixed set of service counters. A counter refers
// to the token it serves by id only; the TokenStore owns the token itself.
type CounterRegistry struct {
	mu       sync.RWMutex
	counters []models.Counter
	index    map[string]int
}

func NewCounterRegistry(counters []models.Counter) (*CounterRegistry, error) {
	r := &CounterRegistry{index: make(map[string]int, len(counters))}
	for _, counter := range counters {
		if counter.CounterID == "" {
			return nil, fmt.Errorf("%w: counter id is required", ErrInvalidInput)
		}
		if _, exists := r.index[counter.CounterID]; exists {
			return nil, fmt.Errorf("%w: duplicate counter id %s", ErrInvalidInput, counter.CounterID)
		}
		counter.CurrentTokenID = ""
		r.index[counter.CounterID] = len(r.counters)
		r.counters = append(r.counters, counter)
	}
	return r, nil
}

func (r *CounterRegistry) ByID(counterID string) (models.Counter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pos, ok := r.index[counterID]
	if !ok {
		return models.Counter{}, false
	}
	return r.counters[pos], true
}

func (r *CounterRegistry) All() []models.Counter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Counter, len(r.counters))
	copy(out, r.counters)
	return out
}

// Bind points the counter at tokenID; an empty tokenID clears it.
func (r *CounterRegistry) Bind(counterID, tokenID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	pos, ok := r.index[counterID]
	if !ok {
		return ErrUnknownCounter
	}
	r.counters[pos].CurrentTokenID = tokenID
	return nil
}

// Release clears every counter currently pointing at tokenID and returns the
// ids of the counters it cleared.
func (r *CounterRegistry) Release(tokenID string) []string {
	if tokenID == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var released []string
	for i := range r.counters {
		if r.counters[i].CurrentTokenID == tokenID {
			r.counters[i].CurrentTokenID = ""
			released = append(released, r.counters[i].CounterID)
		}
	}
	return released
}

func (r *CounterRegistry) SetActive(counterID string, active bool) (models.Counter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pos, ok := r.index[counterID]
	if !ok {
		return models.Counter{}, ErrUnknownCounter
	}
	r.counters[pos].Active = active
	return r.counters[pos], nil
}
