// Package postgres keeps the token audit journal in PostgreSQL. Each token
// has its own hash chain in token_events; every appended event is also copied
// to outbox_events for downstream readers.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"time"

	"qms/token-queue/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

const zeroUUID = "00000000-0000-0000-0000-000000000000"

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func Connect(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return NewStore(pool), nil
}

func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaSQL)
	return err
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) AppendTokenEvent(ctx context.Context, tokenID, eventType string, payload json.RawMessage, createdAt time.Time) (store.TokenEvent, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return store.TokenEvent{}, err
	}
	defer tx.Rollback(ctx)

	event, err := insertTokenEvent(ctx, tx, tokenID, eventType, payload, createdAt)
	if err != nil {
		return store.TokenEvent{}, err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO outbox_events (event_id, type, payload_json, created_at)
		VALUES ($1, $2, $3, $4)
	`, uuid.NewString(), eventType, []byte(payload), event.CreatedAt); err != nil {
		return store.TokenEvent{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return store.TokenEvent{}, err
	}
	return event, nil
}

func insertTokenEvent(ctx context.Context, tx pgx.Tx, tokenID, eventType string, payload json.RawMessage, createdAt time.Time) (store.TokenEvent, error) {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, tokenID); err != nil {
		return store.TokenEvent{}, err
	}

	var lastSeq int
	var prevHash sql.NullString
	row := tx.QueryRow(ctx, `
		SELECT token_seq, hash
		FROM token_events
		WHERE token_id = $1
		ORDER BY token_seq DESC
		LIMIT 1
	`, tokenID)
	if err := row.Scan(&lastSeq, &prevHash); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return store.TokenEvent{}, err
	}
	var prev *store.TokenEvent
	if lastSeq > 0 {
		prev = &store.TokenEvent{TokenSeq: lastSeq, Hash: prevHash.String}
	}

	// timestamptz keeps microseconds; hash what will be read back.
	event := store.ChainTokenEvent(prev, tokenID, eventType, payload, createdAt.UTC().Truncate(time.Microsecond))
	_, err := tx.Exec(ctx, `
		INSERT INTO token_events (token_id, token_seq, type, payload, created_at, prev_hash, hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, event.TokenID, event.TokenSeq, event.Type, []byte(event.Payload), event.CreatedAt, event.PrevHash, event.Hash)
	if err != nil {
		return store.TokenEvent{}, err
	}
	return event, nil
}

func (s *Store) ListTokenEvents(ctx context.Context, tokenID string) ([]store.TokenEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT token_id, token_seq, type, payload, created_at, prev_hash, hash
		FROM token_events
		WHERE token_id = $1
		ORDER BY token_seq ASC
	`, tokenID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []store.TokenEvent
	for rows.Next() {
		var event store.TokenEvent
		var payload []byte
		if err := rows.Scan(&event.TokenID, &event.TokenSeq, &event.Type, &payload, &event.CreatedAt, &event.PrevHash, &event.Hash); err != nil {
			return nil, err
		}
		event.Payload = payload
		event.CreatedAt = event.CreatedAt.UTC()
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *Store) ListOutboxEvents(ctx context.Context, offset store.OutboxOffset, limit int) ([]store.OutboxEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT event_id::text, type, payload_json, created_at
		FROM outbox_events
	`
	args := []interface{}{}
	if !offset.IsZero() {
		lastID := offset.LastEventID
		if lastID == "" {
			lastID = zeroUUID
		}
		query += " WHERE (created_at, event_id) > ($1, $2::uuid) ORDER BY created_at ASC, event_id ASC LIMIT $3"
		args = append(args, offset.LastEventTime, lastID, limit)
	} else {
		query += " ORDER BY created_at ASC, event_id ASC LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []store.OutboxEvent
	for rows.Next() {
		var event store.OutboxEvent
		var payload []byte
		if err := rows.Scan(&event.EventID, &event.Type, &payload, &event.CreatedAt); err != nil {
			return nil, err
		}
		event.Payload = payload
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
