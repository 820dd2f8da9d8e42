package models

import "time"

type Token struct {
	TokenID        string     `json:"token_id"`
	SequenceNumber int64      `json:"sequence_number"`
	Department     string     `json:"department"`
	DisplayLabel   string     `json:"display_label"`
	CustomerName   string     `json:"customer_name"`
	Phone          string     `json:"phone,omitempty"`
	Status         string     `json:"status"`
	CounterID      *string    `json:"counter_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	CalledAt       *time.Time `json:"called_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

const (
	StatusWaiting   = "waiting"
	StatusServing   = "serving"
	StatusCompleted = "completed"
	StatusSkipped   = "skipped"
)

// Terminal reports whether no operation may move the token out of its status.
func (t Token) Terminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusSkipped
}

// Before orders tokens by creation: createdAt first, sequence number on ties.
func (t Token) Before(other Token) bool {
	if t.CreatedAt.Equal(other.CreatedAt) {
		return t.SequenceNumber < other.SequenceNumber
	}
	return t.CreatedAt.Before(other.CreatedAt)
}

// Public is the token as unauthenticated screens may show it: the phone
// number stays with the kiosk that entered it.
func (t Token) Public() Token {
	t.Phone = ""
	return t
}

func PublicTokens(tokens []Token) []Token {
	out := make([]Token, 0, len(tokens))
	for _, token := range tokens {
		out = append(out, token.Public())
	}
	return out
}
