package models

type Counter struct {
	CounterID      string `json:"counter_id"`
	DisplayName    string `json:"display_name"`
	Department     string `json:"department"`
	Active         bool   `json:"active"`
	CurrentTokenID string `json:"current_token_id,omitempty"`
}

// CounterView is a counter joined with the token it currently serves.
type CounterView struct {
	Counter
	CurrentToken *Token `json:"current_token"`
}

func (v CounterView) Public() CounterView {
	if v.CurrentToken != nil {
		token := v.CurrentToken.Public()
		v.CurrentToken = &token
	}
	return v
}

func PublicCounters(views []CounterView) []CounterView {
	out := make([]CounterView, 0, len(views))
	for _, view := range views {
		out = append(out, view.Public())
	}
	return out
}
