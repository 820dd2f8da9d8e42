package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qms/token-queue/internal/models"
)

func seedToken(t *testing.T, s *TokenStore, id, dept string, seq int64, createdAt time.Time) {
	t.Helper()
	require.NoError(t, s.Append(models.Token{
		TokenID:        id,
		SequenceNumber: seq,
		Department:     dept,
		CustomerName:   "customer " + id,
		Status:         models.StatusWaiting,
		CreatedAt:      createdAt,
	}))
}

func TestTokenStoreWaitingFIFO(t *testing.T) {
	s := NewTokenStore()
	base := time.Date(2026, 1, 12, 8, 0, 0, 0, time.UTC)
	seedToken(t, s, "a1", "A", 1, base)
	seedToken(t, s, "b1", "B", 1, base.Add(time.Second))
	seedToken(t, s, "a2", "A", 2, base.Add(2*time.Second))
	// Same timestamp as a2: sequence breaks the tie.
	seedToken(t, s, "a3", "A", 3, base.Add(2*time.Second))

	var ids []string
	for _, token := range s.Waiting("A") {
		ids = append(ids, token.TokenID)
	}
	assert.Equal(t, []string{"a1", "a2", "a3"}, ids)
	assert.Len(t, s.Waiting(""), 4)

	assert.Equal(t, 1, s.Position("a1"))
	assert.Equal(t, 2, s.Position("a2"))
	assert.Equal(t, 3, s.Position("a3"))
	assert.Equal(t, 1, s.Position("b1"))
	assert.Equal(t, -1, s.Position("missing"))
}

func TestTokenStoreAppendRejectsDuplicates(t *testing.T) {
	s := NewTokenStore()
	now := time.Now()
	seedToken(t, s, "x", "A", 1, now)
	err := s.Append(models.Token{TokenID: "x", Department: "A"})
	require.ErrorIs(t, err, ErrInvalidInput)
	require.ErrorIs(t, s.Append(models.Token{}), ErrInvalidInput)
	assert.Equal(t, 1, s.Len())
}

func TestTokenStoreTransitions(t *testing.T) {
	s := NewTokenStore()
	base := time.Date(2026, 1, 12, 8, 0, 0, 0, time.UTC)
	seedToken(t, s, "a1", "A", 1, base)
	seedToken(t, s, "a2", "A", 2, base.Add(time.Second))

	called := base.Add(time.Minute)
	token, err := s.Transition("a1", "call_next", "1", called)
	require.NoError(t, err)
	assert.Equal(t, models.StatusServing, token.Status)
	require.NotNil(t, token.CounterID)
	assert.Equal(t, "1", *token.CounterID)
	assert.Equal(t, called, *token.CalledAt)

	// Serving tokens no longer hold a place in line.
	assert.Equal(t, 0, s.Position("a1"))
	assert.Equal(t, 1, s.Position("a2"))

	done := called.Add(time.Minute)
	token, err = s.Transition("a1", "complete", "", done)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, token.Status)
	assert.Nil(t, token.CounterID)
	assert.Equal(t, done, *token.CompletedAt)

	_, err = s.Transition("a1", "complete", "", done.Add(time.Hour))
	require.ErrorIs(t, err, ErrInvalidTransition)
	stored, _ := s.Get("a1")
	assert.Equal(t, models.StatusCompleted, stored.Status)
	assert.Equal(t, done, *stored.CompletedAt, "re-completing must not move the timestamp")

	_, err = s.Transition("a1", "skip", "", done)
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = s.Transition("a2", "complete", "", done)
	require.ErrorIs(t, err, ErrInvalidTransition, "waiting tokens cannot be completed")

	token, err = s.Transition("a2", "skip", "", done)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSkipped, token.Status)
	_, err = s.Transition("a2", "call_next", "1", done)
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = s.Transition("nope", "skip", "", done)
	require.ErrorIs(t, err, ErrUnknownToken)
}

func TestTokenStoreStats(t *testing.T) {
	s := NewTokenStore()
	base := time.Now()
	seedToken(t, s, "a1", "A", 1, base)
	seedToken(t, s, "a2", "A", 2, base)
	seedToken(t, s, "b1", "B", 1, base)
	_, err := s.Transition("a1", "call_next", "1", base)
	require.NoError(t, err)
	_, err = s.Transition("b1", "skip", "", base)
	require.NoError(t, err)

	stats := s.Stats()
	assert.Equal(t, models.StatusCounts{Waiting: 1, Serving: 1, Skipped: 1}, stats.Total)
	assert.Equal(t, models.StatusCounts{Waiting: 1, Serving: 1}, stats.ByDepartment["A"])
	assert.Equal(t, models.StatusCounts{Skipped: 1}, stats.ByDepartment["B"])
}
