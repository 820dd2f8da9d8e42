package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qms/token-queue/internal/models"
)

func buildChain(t *testing.T) []TokenEvent {
	t.Helper()
	created := time.Date(2026, 1, 12, 8, 0, 0, 0, time.UTC)
	token := models.Token{
		TokenID:        "tok-1",
		SequenceNumber: 4,
		Department:     "A",
		DisplayLabel:   "A-004",
		CustomerName:   "Alice",
		Status:         models.StatusWaiting,
		CreatedAt:      created,
	}
	first, err := TokenPayload(token)
	require.NoError(t, err)

	called := created.Add(3 * time.Minute)
	counter := "2"
	token.Status = models.StatusServing
	token.CounterID = &counter
	token.CalledAt = &called
	second, err := TokenPayload(token)
	require.NoError(t, err)

	done := called.Add(5 * time.Minute)
	token.Status = models.StatusCompleted
	token.CounterID = nil
	token.CompletedAt = &done
	third, err := TokenPayload(token)
	require.NoError(t, err)

	e1 := ChainTokenEvent(nil, "tok-1", "token.created", first, created)
	e2 := ChainTokenEvent(&e1, "tok-1", "token.called", second, called)
	e3 := ChainTokenEvent(&e2, "tok-1", "token.completed", third, done)
	return []TokenEvent{e1, e2, e3}
}

func TestChainAndVerify(t *testing.T) {
	events := buildChain(t)
	assert.Equal(t, 1, events[0].TokenSeq)
	assert.Empty(t, events[0].PrevHash)
	assert.Equal(t, events[0].Hash, events[1].PrevHash)
	assert.Equal(t, 3, events[2].TokenSeq)
	require.NoError(t, VerifyTokenEvents(events))

	tampered := append([]TokenEvent(nil), events...)
	tampered[1].Type = "token.skipped"
	require.ErrorIs(t, VerifyTokenEvents(tampered), ErrBrokenChain)

	require.ErrorIs(t, VerifyTokenEvents(events[1:]), ErrBrokenChain)
}

func TestComputeTokenEventHashDeterministic(t *testing.T) {
	at := time.Date(2026, 1, 12, 8, 0, 0, 0, time.FixedZone("WIB", 7*3600))
	a := ComputeTokenEventHash("", "tok", "token.created", []byte(`{}`), at, 1)
	b := ComputeTokenEventHash("", "tok", "token.created", []byte(`{}`), at.UTC(), 1)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, ComputeTokenEventHash("", "tok", "token.created", []byte(`{}`), at, 2))
}

func TestRehydrateToken(t *testing.T) {
	token, err := RehydrateToken(buildChain(t))
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token.TokenID)
	assert.Equal(t, "A-004", token.DisplayLabel)
	assert.Equal(t, int64(4), token.SequenceNumber)
	assert.Equal(t, models.StatusCompleted, token.Status)
	assert.Nil(t, token.CounterID)
	require.NotNil(t, token.CalledAt)
	require.NotNil(t, token.CompletedAt)
	assert.True(t, token.CompletedAt.After(*token.CalledAt))
}
