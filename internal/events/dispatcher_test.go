package events

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qms/token-queue/internal/store"
)

type collector struct {
	mu     sync.Mutex
	events []Event
	got    chan struct{}
}

func newCollector() *collector {
	return &collector{got: make(chan struct{}, 64)}
}

func (c *collector) Publish(ctx context.Context, event Event) error {
	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()
	c.got <- struct{}{}
	return nil
}

func (c *collector) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, e := range c.events {
		out = append(out, e.Type)
	}
	return out
}

func waitFor(t *testing.T, c *collector, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-c.got:
		case <-time.After(time.Second):
			t.Fatalf("received %d of %d events", i, n)
		}
	}
}

func TestDispatcherDeliversInOrderToAllPublishers(t *testing.T) {
	d := NewDispatcher(8)
	first := newCollector()
	second := newCollector()
	d.Register("first", first)
	d.Register("failing", PublisherFunc(func(ctx context.Context, event Event) error {
		return errors.New("broker down")
	}))
	d.Register("second", second)
	d.Register("nil", nil)
	assert.Equal(t, []string{"first", "failing", "second"}, d.Publishers())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	now := time.Now()
	d.Emit(New(TypeTokenCreated, nil, now))
	d.Emit(New(TypeTokenCalled, nil, now))
	d.Emit(New(TypeTokenCompleted, nil, now))

	waitFor(t, first, 3)
	waitFor(t, second, 3)
	want := []string{TypeTokenCreated, TypeTokenCalled, TypeTokenCompleted}
	assert.Equal(t, want, first.types())
	assert.Equal(t, want, second.types())
}

func TestDispatcherEmitDropsWhenFull(t *testing.T) {
	d := NewDispatcher(1)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			d.Emit(New(TypeCounterUpdated, nil, time.Now()))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked")
	}
	assert.Len(t, d.queue, 1)
}

func TestDispatcherFlushesOnShutdown(t *testing.T) {
	d := NewDispatcher(4)
	c := newCollector()
	d.Register("c", c)
	d.Emit(New(TypeTokenCreated, nil, time.Now()))
	d.Emit(New(TypeTokenSkipped, nil, time.Now()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Run(ctx)
	assert.Len(t, c.types(), 2)
}

func TestJournalPublisherRecordsTokenEventsOnly(t *testing.T) {
	journal := store.NewMemoryJournal()
	p := JournalPublisher{Journal: journal}
	ctx := context.Background()

	tokenEvent := New(TypeTokenCreated, []byte(`{"token_id":"t1","status":"waiting"}`), time.Now())
	tokenEvent.TokenID = "t1"
	require.NoError(t, p.Publish(ctx, tokenEvent))

	counterEvent := New(TypeCounterUpdated, []byte(`{"counter_id":"1"}`), time.Now())
	counterEvent.CounterID = "1"
	require.NoError(t, p.Publish(ctx, counterEvent))

	events, err := journal.ListTokenEvents(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, events, 1)
	outbox, err := journal.ListOutboxEvents(ctx, store.OutboxOffset{}, 10)
	require.NoError(t, err)
	assert.Len(t, outbox, 1)
}

func TestBrokerMessageShape(t *testing.T) {
	event := New(TypeTokenCalled, []byte(`{}`), time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	event.TokenID = "t1"
	event.CounterID = "2"

	assert.Equal(t, "queue.token.called", subjectFor("queue.", event))

	msg, err := kafkaMessage(event)
	require.NoError(t, err)
	assert.Equal(t, "t1", string(msg.Key))
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, TypeTokenCalled, string(msg.Headers[0].Value))

	event.TokenID = ""
	msg, err = kafkaMessage(event)
	require.NoError(t, err)
	assert.Equal(t, "2", string(msg.Key))
}

func TestParseBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, ParseBrokers(" a:9092, ,b:9092 "))
	assert.Nil(t, ParseBrokers(""))
}

func TestDispatcherReportsJournalGaps(t *testing.T) {
	var logs bytes.Buffer
	log.SetOutput(&logs)
	defer log.SetOutput(os.Stderr)

	d := NewDispatcher(1)
	d.Emit(New(TypeCounterUpdated, nil, time.Now()))
	counter := New(TypeCounterUpdated, nil, time.Now())
	d.Emit(counter)
	token := New(TypeTokenCalled, nil, time.Now())
	token.TokenID = "t7"
	d.Emit(token)

	assert.Equal(t, int64(2), d.Dropped())
	assert.Contains(t, logs.String(), "journal gap token_id=t7 type=token.called")
	assert.Contains(t, logs.String(), "event dropped type=counter.updated")
}
