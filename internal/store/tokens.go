package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"qms/token-queue/internal/models"
)

// TokenStore is the append-only record of every token issued in this process.
// Tokens are never removed; status changes go through Transition so the
// transition table is the single gate on lifecycle moves.
type TokenStore struct {
	mu     sync.RWMutex
	tokens []models.Token
	index  map[string]int
}

func NewTokenStore() *TokenStore {
	return &TokenStore{index: make(map[string]int)}
}

func (s *TokenStore) Append(token models.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token.TokenID == "" {
		return fmt.Errorf("%w: token id is required", ErrInvalidInput)
	}
	if _, exists := s.index[token.TokenID]; exists {
		return fmt.Errorf("%w: duplicate token id %s", ErrInvalidInput, token.TokenID)
	}
	if token.Status == "" {
		token.Status = models.StatusWaiting
	}
	s.index[token.TokenID] = len(s.tokens)
	s.tokens = append(s.tokens, token)
	return nil
}

func (s *TokenStore) Get(tokenID string) (models.Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.index[tokenID]
	if !ok {
		return models.Token{}, false
	}
	return s.tokens[pos], true
}

// Transition applies action to the token at the given instant. counterID is
// only used by call_next, which binds the token to the serving counter.
func (s *TokenStore) Transition(tokenID, action, counterID string, at time.Time) (models.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.index[tokenID]
	if !ok {
		return models.Token{}, ErrUnknownToken
	}
	token := s.tokens[pos]
	if !ValidTransition(action, token.Status) {
		return token, fmt.Errorf("%w: cannot %s a %s token", ErrInvalidTransition, action, token.Status)
	}
	target, _ := TargetStatus(action)
	stamp := at
	token.Status = target
	switch action {
	case "call_next":
		counter := counterID
		token.CounterID = &counter
		token.CalledAt = &stamp
	case "complete":
		token.CompletedAt = &stamp
		token.CounterID = nil
	case "skip":
		token.CounterID = nil
	}
	s.tokens[pos] = token
	return token, nil
}

// Waiting returns waiting tokens in FIFO order, optionally for one department.
func (s *TokenStore) Waiting(department string) []models.Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var waiting []models.Token
	for _, token := range s.tokens {
		if token.Status != models.StatusWaiting {
			continue
		}
		if department != "" && token.Department != department {
			continue
		}
		waiting = append(waiting, token)
	}
	sort.SliceStable(waiting, func(i, j int) bool {
		return waiting[i].Before(waiting[j])
	})
	return waiting
}

// Position is the token's 1-based rank in its department's waiting line.
// It returns -1 for unknown ids and 0 for tokens that are no longer waiting.
func (s *TokenStore) Position(tokenID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.index[tokenID]
	if !ok {
		return -1
	}
	target := s.tokens[pos]
	if target.Status != models.StatusWaiting {
		return 0
	}
	rank := 0
	for _, token := range s.tokens {
		if token.Department != target.Department || token.Status != models.StatusWaiting {
			continue
		}
		if token.TokenID == target.TokenID || token.Before(target) {
			rank++
		}
	}
	return rank
}

func (s *TokenStore) All() []models.Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Token, len(s.tokens))
	copy(out, s.tokens)
	return out
}

func (s *TokenStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}

func (s *TokenStore) Stats() models.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := models.Stats{ByDepartment: make(map[string]models.StatusCounts)}
	for _, token := range s.tokens {
		stats.Total.Add(token.Status)
		counts := stats.ByDepartment[token.Department]
		counts.Add(token.Status)
		stats.ByDepartment[token.Department] = counts
	}
	return stats
}
