package engine

import (
	"time"

	"qms/token-queue/internal/models"
)

// TokenStatus is what a customer's ticket page shows.
type TokenStatus struct {
	Token       models.Token `json:"token"`
	Position    int          `json:"position"`
	EstimatedAt *time.Time   `json:"estimated_at"`
}

// WaitingTokens lists waiting tokens oldest first. An empty department means
// every department.
func (e *Engine) WaitingTokens(department string) []models.Token {
	return e.tokens.Waiting(department)
}

// Position is the 1-based rank of a waiting token in its department's line,
// 0 for a token that is no longer waiting and -1 for an unknown id.
func (e *Engine) Position(tokenID string) int {
	return e.tokens.Position(tokenID)
}

// EstimatedServiceTime assumes every token ahead takes the fixed average
// service time. It reports false when the token is not waiting.
func (e *Engine) EstimatedServiceTime(tokenID string) (time.Time, bool) {
	return e.estimate(e.tokens.Position(tokenID))
}

func (e *Engine) estimate(position int) (time.Time, bool) {
	if position <= 0 {
		return time.Time{}, false
	}
	wait := time.Duration(position-1) * e.avgService
	if wait < 0 {
		wait = 0
	}
	return e.now().Add(wait), true
}

func (e *Engine) Token(tokenID string) (models.Token, bool) {
	return e.tokens.Get(tokenID)
}

func (e *Engine) TokenStatus(tokenID string) (TokenStatus, bool) {
	token, ok := e.tokens.Get(tokenID)
	if !ok {
		return TokenStatus{}, false
	}
	status := TokenStatus{Token: token, Position: e.tokens.Position(tokenID)}
	if eta, ok := e.estimate(status.Position); ok {
		status.EstimatedAt = &eta
	}
	return status, true
}

func (e *Engine) Departments() []models.Department {
	return append([]models.Department(nil), e.departments...)
}

func (e *Engine) Department(code string) (models.Department, bool) {
	i, ok := e.deptIndex[code]
	if !ok {
		return models.Department{}, false
	}
	return e.departments[i], true
}

func (e *Engine) Counter(counterID string) (models.CounterView, bool) {
	counter, ok := e.counters.ByID(counterID)
	if !ok {
		return models.CounterView{}, false
	}
	return e.view(counter), true
}

func (e *Engine) Counters() []models.CounterView {
	counters := e.counters.All()
	views := make([]models.CounterView, 0, len(counters))
	for _, counter := range counters {
		views = append(views, e.view(counter))
	}
	return views
}

// view resolves the counter's token reference against the store so the
// status shown is always the store's.
func (e *Engine) view(counter models.Counter) models.CounterView {
	view := models.CounterView{Counter: counter}
	if token, ok := e.tokens.Get(counter.CurrentTokenID); ok {
		view.CurrentToken = &token
	}
	return view
}

func (e *Engine) Stats() models.Stats {
	stats := e.tokens.Stats()
	for _, dept := range e.departments {
		if _, ok := stats.ByDepartment[dept.Code]; !ok {
			stats.ByDepartment[dept.Code] = models.StatusCounts{}
		}
	}
	return stats
}

// Snapshot builds the display board: counters with their current token and,
// per department, the waiting count and up to limit upcoming labels. It is
// taken under the mutation lock so a token being called shows either in the
// line or at its counter. Tokens carry no phone number.
func (e *Engine) Snapshot(limit int) models.Display {
	if limit < 0 {
		limit = 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	display := models.Display{
		Counters:   models.PublicCounters(e.Counters()),
		IsSpeaking: e.announcer.IsSpeaking(),
	}
	for _, dept := range e.departments {
		waiting := e.tokens.Waiting(dept.Code)
		queue := models.DepartmentQueue{Department: dept, Waiting: len(waiting), Next: []string{}}
		for i := 0; i < len(waiting) && i < limit; i++ {
			queue.Next = append(queue.Next, waiting[i].DisplayLabel)
		}
		display.Departments = append(display.Departments, queue)
		display.TotalWaiting += len(waiting)
	}
	return display
}
