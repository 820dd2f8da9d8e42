package postgres

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"qms/token-queue/internal/models"
	"qms/token-queue/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

func TestAppendTokenEventChain(t *testing.T) {
	ctx := context.Background()
	st, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	tokenID := uuid.NewString()
	token := models.Token{
		TokenID:        tokenID,
		SequenceNumber: 1,
		Department:     "A",
		DisplayLabel:   "A-001",
		CustomerName:   "Alice",
		Status:         models.StatusWaiting,
		CreatedAt:      time.Now().UTC(),
	}
	appendSnapshot(t, ctx, st, token, "token.created")

	counter := "1"
	calledAt := time.Now().UTC()
	token.Status = models.StatusServing
	token.CounterID = &counter
	token.CalledAt = &calledAt
	appendSnapshot(t, ctx, st, token, "token.called")

	events, err := st.ListTokenEvents(ctx, tokenID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if err := store.VerifyTokenEvents(events); err != nil {
		t.Fatalf("verify chain: %v", err)
	}
	rebuilt, err := store.RehydrateToken(events)
	if err != nil {
		t.Fatalf("rehydrate: %v", err)
	}
	if rebuilt.Status != models.StatusServing || rebuilt.CounterID == nil || *rebuilt.CounterID != "1" {
		t.Fatalf("unexpected rehydrated token %+v", rebuilt)
	}

	outbox, err := st.ListOutboxEvents(ctx, store.OutboxOffset{}, 10)
	if err != nil {
		t.Fatalf("list outbox: %v", err)
	}
	if len(outbox) != 2 {
		t.Fatalf("expected 2 outbox events, got %d", len(outbox))
	}
}

func TestAppendTokenEventConcurrent(t *testing.T) {
	ctx := context.Background()
	st, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	tokenID := uuid.NewString()
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := st.AppendTokenEvent(ctx, tokenID, "token.recalled", []byte(`{"token_id":"`+tokenID+`"}`), time.Now())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	events, err := st.ListTokenEvents(ctx, tokenID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 8 {
		t.Fatalf("expected 8 events, got %d", len(events))
	}
	if err := store.VerifyTokenEvents(events); err != nil {
		t.Fatalf("verify chain: %v", err)
	}
}

func appendSnapshot(t *testing.T, ctx context.Context, st *Store, token models.Token, eventType string) {
	t.Helper()
	payload, err := store.TokenPayload(token)
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	if _, err := st.AppendTokenEvent(ctx, token.TokenID, eventType, payload, time.Now()); err != nil {
		t.Fatalf("append %s: %v", eventType, err)
	}
}

func setupTestStore(t *testing.T, ctx context.Context) (*Store, func()) {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		dsn = os.Getenv("DB_DSN")
	}
	if dsn == "" {
		t.Skip("TEST_DB_DSN or DB_DSN is required for integration tests")
	}

	schema := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := createSchema(ctx, dsn, schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	pool, err := newPoolWithSchema(ctx, dsn, schema)
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}

	st := NewStore(pool)
	if err := st.Migrate(ctx); err != nil {
		pool.Close()
		t.Fatalf("migrate: %v", err)
	}

	cleanup := func() {
		pool.Close()
		_ = dropSchema(context.Background(), dsn, schema)
	}
	return st, cleanup
}

func createSchema(ctx context.Context, dsn, schema string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	_, err = conn.Exec(ctx, "CREATE SCHEMA "+schema)
	return err
}

func dropSchema(ctx context.Context, dsn, schema string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	_, err = conn.Exec(ctx, "DROP SCHEMA "+schema+" CASCADE")
	return err
}

func newPoolWithSchema(ctx context.Context, dsn, schema string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	return pgxpool.NewWithConfig(ctx, cfg)
}

func TestListOutboxEventsPagesThroughSharedTimestamp(t *testing.T) {
	ctx := context.Background()
	st, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	at := time.Now().UTC()
	for i := 0; i < 5; i++ {
		tokenID := uuid.NewString()
		if _, err := st.AppendTokenEvent(ctx, tokenID, "token.created", []byte(`{"token_id":"`+tokenID+`"}`), at); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	seen := map[string]bool{}
	offset := store.OutboxOffset{LastEventTime: at.Add(-time.Second)}
	for pages := 0; pages < 10; pages++ {
		batch, err := st.ListOutboxEvents(ctx, offset, 2)
		if err != nil {
			t.Fatalf("list outbox: %v", err)
		}
		if len(batch) == 0 {
			break
		}
		for _, event := range batch {
			if seen[event.EventID] {
				t.Fatalf("event %s listed twice", event.EventID)
			}
			seen[event.EventID] = true
			offset = event.Offset()
		}
	}
	if len(seen) != 5 {
		t.Fatalf("expected 5 outbox events, got %d", len(seen))
	}
}
