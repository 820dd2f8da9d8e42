package store

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"qms/token-queue/internal/models"
)

var ErrBrokenChain = errors.New("token event chain broken")

type TokenEvent struct {
	TokenID   string          `json:"token_id"`
	TokenSeq  int             `json:"token_seq"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	PrevHash  string          `json:"prev_hash"`
	Hash      string          `json:"hash"`
}

type eventPayload struct {
	TokenID        string     `json:"token_id"`
	SequenceNumber int64      `json:"sequence_number"`
	DisplayLabel   string     `json:"display_label"`
	Department     string     `json:"department"`
	CustomerName   string     `json:"customer_name"`
	Phone          string     `json:"phone,omitempty"`
	Status         string     `json:"status"`
	CounterID      *string    `json:"counter_id"`
	CreatedAt      *time.Time `json:"created_at"`
	CalledAt       *time.Time `json:"called_at"`
	CompletedAt    *time.Time `json:"completed_at"`
}

// TokenPayload snapshots the token as an event payload.
func TokenPayload(token models.Token) (json.RawMessage, error) {
	createdAt := token.CreatedAt
	return json.Marshal(eventPayload{
		TokenID:        token.TokenID,
		SequenceNumber: token.SequenceNumber,
		DisplayLabel:   token.DisplayLabel,
		Department:     token.Department,
		CustomerName:   token.CustomerName,
		Phone:          token.Phone,
		Status:         token.Status,
		CounterID:      token.CounterID,
		CreatedAt:      &createdAt,
		CalledAt:       token.CalledAt,
		CompletedAt:    token.CompletedAt,
	})
}

func ComputeTokenEventHash(prevHash, tokenID, eventType string, payload json.RawMessage, createdAt time.Time, seq int) string {
	raw := fmt.Sprintf("%s|%s|%s|%s|%d|%s", prevHash, tokenID, eventType, createdAt.UTC().Format(time.RFC3339Nano), seq, payload)
	sum := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%x", sum)
}

// ChainTokenEvent links a new event after prev, which is nil for the first
// event of a token.
func ChainTokenEvent(prev *TokenEvent, tokenID, eventType string, payload json.RawMessage, createdAt time.Time) TokenEvent {
	event := TokenEvent{
		TokenID:   tokenID,
		TokenSeq:  1,
		Type:      eventType,
		Payload:   payload,
		CreatedAt: createdAt,
	}
	if prev != nil {
		event.TokenSeq = prev.TokenSeq + 1
		event.PrevHash = prev.Hash
	}
	event.Hash = ComputeTokenEventHash(event.PrevHash, tokenID, eventType, payload, createdAt, event.TokenSeq)
	return event
}

func VerifyTokenEvents(events []TokenEvent) error {
	prevHash := ""
	for i, event := range events {
		if event.TokenSeq != i+1 {
			return fmt.Errorf("%w: event %d has seq %d", ErrBrokenChain, i+1, event.TokenSeq)
		}
		if event.PrevHash != prevHash {
			return fmt.Errorf("%w: event %d prev hash mismatch", ErrBrokenChain, event.TokenSeq)
		}
		want := ComputeTokenEventHash(event.PrevHash, event.TokenID, event.Type, event.Payload, event.CreatedAt, event.TokenSeq)
		if event.Hash != want {
			return fmt.Errorf("%w: event %d hash mismatch", ErrBrokenChain, event.TokenSeq)
		}
		prevHash = event.Hash
	}
	return nil
}

func RehydrateToken(events []TokenEvent) (models.Token, error) {
	var token models.Token
	for _, event := range events {
		if len(event.Payload) == 0 {
			continue
		}
		var payload eventPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return models.Token{}, err
		}
		if payload.TokenID != "" {
			token.TokenID = payload.TokenID
		}
		if payload.SequenceNumber != 0 {
			token.SequenceNumber = payload.SequenceNumber
		}
		if payload.DisplayLabel != "" {
			token.DisplayLabel = payload.DisplayLabel
		}
		if payload.Department != "" {
			token.Department = payload.Department
		}
		if payload.CustomerName != "" {
			token.CustomerName = payload.CustomerName
		}
		if payload.Phone != "" {
			token.Phone = payload.Phone
		}
		if payload.Status != "" {
			token.Status = payload.Status
		}
		if payload.CreatedAt != nil {
			token.CreatedAt = *payload.CreatedAt
		}
		if payload.CalledAt != nil {
			token.CalledAt = payload.CalledAt
		}
		if payload.CompletedAt != nil {
			token.CompletedAt = payload.CompletedAt
		}
		token.CounterID = payload.CounterID
	}
	return token, nil
}

// RedactTokenPayload drops the phone number from a token event payload
// before it leaves for display boards.
func RedactTokenPayload(payload json.RawMessage) (json.RawMessage, error) {
	var decoded eventPayload
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, err
	}
	decoded.Phone = ""
	return json.Marshal(decoded)
}
