// Package engine owns the live queue: it issues tokens, moves them through
// waiting, serving, completed and skipped, binds them to counters and answers
// position and ETA queries.
//
// Every mutating operation runs under one mutex, so call-next's scan, status
// change and counter bind happen as a unit and two counters can never claim
// the same waiting token. Read queries take only the store's read locks and
// may interleave freely.
package engine

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"qms/token-queue/internal/announce"
	"qms/token-queue/internal/events"
	"qms/token-queue/internal/models"
	"qms/token-queue/internal/store"
)

const DefaultAverageServiceMinutes = 5

type Options struct {
	Departments           []models.Department
	Counters              []models.Counter
	AverageServiceMinutes int
	LabelFormat           string
	Announcer             announce.Sink
	Events                events.Emitter
	Now                   func() time.Time
	NewID                 func() string
}

type Engine struct {
	mu sync.Mutex

	sequencer *store.Sequencer
	tokens    *store.TokenStore
	counters  *store.CounterRegistry

	departments []models.Department
	deptIndex   map[string]int
	avgService  time.Duration

	announcer announce.Sink
	emitter   events.Emitter
	now       func() time.Time
	newID     func() string
}

type CreateTokenInput struct {
	Department   string `json:"department"`
	CustomerName string `json:"customer_name"`
	Phone        string `json:"phone"`
}

func New(opts Options) (*Engine, error) {
	if len(opts.Departments) == 0 {
		return nil, fmt.Errorf("%w: at least one department is required", store.ErrInvalidInput)
	}
	deptIndex := make(map[string]int, len(opts.Departments))
	codes := make([]string, 0, len(opts.Departments))
	for i, dept := range opts.Departments {
		if dept.Code == "" {
			return nil, fmt.Errorf("%w: department code is required", store.ErrInvalidInput)
		}
		if _, exists := deptIndex[dept.Code]; exists {
			return nil, fmt.Errorf("%w: duplicate department %s", store.ErrInvalidInput, dept.Code)
		}
		deptIndex[dept.Code] = i
		codes = append(codes, dept.Code)
	}
	for _, counter := range opts.Counters {
		if _, ok := deptIndex[counter.Department]; !ok {
			return nil, fmt.Errorf("%w: counter %s bound to unknown department %s", store.ErrInvalidInput, counter.CounterID, counter.Department)
		}
	}
	counters, err := store.NewCounterRegistry(opts.Counters)
	if err != nil {
		return nil, err
	}

	format := opts.LabelFormat
	if format == "" {
		format = store.DefaultLabelFormat
	}
	labels, err := store.ParseLabelFormat(format)
	if err != nil {
		return nil, err
	}

	avg := opts.AverageServiceMinutes
	if avg == 0 {
		avg = DefaultAverageServiceMinutes
	}
	if avg < 0 {
		return nil, fmt.Errorf("%w: average service minutes must be positive", store.ErrInvalidInput)
	}

	e := &Engine{
		sequencer:   store.NewSequencer(codes, labels),
		tokens:      store.NewTokenStore(),
		counters:    counters,
		departments: append([]models.Department(nil), opts.Departments...),
		deptIndex:   deptIndex,
		avgService:  time.Duration(avg) * time.Minute,
		announcer:   opts.Announcer,
		emitter:     opts.Events,
		now:         opts.Now,
		newID:       opts.NewID,
	}
	if e.announcer == nil {
		e.announcer = announce.Discard{}
	}
	if e.emitter == nil {
		e.emitter = events.Discard{}
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	return e, nil
}

func (e *Engine) CreateToken(input CreateTokenInput) (models.Token, error) {
	name := strings.TrimSpace(input.CustomerName)
	if name == "" {
		return models.Token{}, fmt.Errorf("%w: customer name is required", store.ErrInvalidInput)
	}
	department := strings.TrimSpace(input.Department)
	if !e.sequencer.Known(department) {
		return models.Token{}, fmt.Errorf("%w: unknown department %q", store.ErrInvalidInput, input.Department)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	number, err := e.sequencer.Next(department)
	if err != nil {
		return models.Token{}, err
	}
	token := models.Token{
		TokenID:        e.newID(),
		SequenceNumber: number,
		Department:     department,
		DisplayLabel:   e.sequencer.Label(department, number),
		CustomerName:   name,
		Phone:          strings.TrimSpace(input.Phone),
		Status:         models.StatusWaiting,
		CreatedAt:      e.now(),
	}
	if err := e.tokens.Append(token); err != nil {
		return models.Token{}, err
	}
	e.emitToken(events.TypeTokenCreated, token, "")
	return token, nil
}

// CallNext finishes whatever the counter is serving and promotes the oldest
// waiting token of the counter's department. The boolean is false when the
// department's line is empty; the counter is then left idle.
func (e *Engine) CallNext(counterID string) (models.Token, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	counter, ok := e.counters.ByID(counterID)
	if !ok {
		return models.Token{}, false, store.ErrUnknownCounter
	}
	if !counter.Active {
		return models.Token{}, false, store.ErrCounterInactive
	}
	now := e.now()

	if current, ok := e.tokens.Get(counter.CurrentTokenID); ok && current.Status == models.StatusServing {
		completed, err := e.tokens.Transition(current.TokenID, "complete", "", now)
		if err != nil {
			return models.Token{}, false, err
		}
		e.counters.Release(current.TokenID)
		e.emitToken(events.TypeTokenCompleted, completed, counterID)
	}

	for _, candidate := range e.tokens.Waiting(counter.Department) {
		if candidate.Status != models.StatusWaiting {
			continue
		}
		served, err := e.tokens.Transition(candidate.TokenID, "call_next", counterID, now)
		if err != nil {
			continue
		}
		if err := e.counters.Bind(counterID, served.TokenID); err != nil {
			return models.Token{}, false, err
		}
		e.announcer.Speak(announce.Announcement{Text: e.callText(served, counter)})
		e.emitToken(events.TypeTokenCalled, served, counterID)
		return served, true, nil
	}

	if err := e.counters.Bind(counterID, ""); err != nil {
		return models.Token{}, false, err
	}
	e.emitCounter(counterID)
	return models.Token{}, false, nil
}

func (e *Engine) CompleteToken(tokenID string) (models.Token, error) {
	return e.finish(tokenID, "complete", events.TypeTokenCompleted)
}

func (e *Engine) SkipToken(tokenID string) (models.Token, error) {
	return e.finish(tokenID, "skip", events.TypeTokenSkipped)
}

func (e *Engine) finish(tokenID, action, eventType string) (models.Token, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	token, err := e.tokens.Transition(tokenID, action, "", e.now())
	if err != nil {
		return models.Token{}, err
	}
	counterID := ""
	if released := e.counters.Release(tokenID); len(released) > 0 {
		counterID = released[0]
	}
	e.emitToken(eventType, token, counterID)
	return token, nil
}

// Recall repeats the call for the counter's current token as an urgent
// announcement. No queue state changes. It fails with ErrAnnouncerBusy while
// the speaker is playing or has announcements waiting.
func (e *Engine) Recall(counterID string) (models.Token, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	counter, ok := e.counters.ByID(counterID)
	if !ok {
		return models.Token{}, store.ErrUnknownCounter
	}
	token, ok := e.tokens.Get(counter.CurrentTokenID)
	if !ok || token.Status != models.StatusServing {
		return models.Token{}, store.ErrNoActiveToken
	}
	if e.announcer.Busy() {
		return models.Token{}, store.ErrAnnouncerBusy
	}
	e.announcer.Speak(announce.Announcement{Text: recallText(token, counter), Urgent: true})
	e.emitToken(events.TypeTokenRecalled, token, counterID)
	return token, nil
}

// SetCounterActive opens or closes a counter. A closed counter keeps the
// token it is serving but cannot call the next one.
func (e *Engine) SetCounterActive(counterID string, active bool) (models.CounterView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	counter, err := e.counters.SetActive(counterID, active)
	if err != nil {
		return models.CounterView{}, err
	}
	e.emitCounter(counterID)
	return e.view(counter), nil
}

func (e *Engine) IsSpeaking() bool {
	return e.announcer.IsSpeaking()
}

func (e *Engine) callText(token models.Token, counter models.Counter) string {
	return fmt.Sprintf("Token %s, please proceed to %s. %s", token.DisplayLabel, counter.DisplayName, e.departmentName(token.Department))
}

func recallText(token models.Token, counter models.Counter) string {
	return fmt.Sprintf("Token %s, please proceed to %s immediately.", token.DisplayLabel, counter.DisplayName)
}

func (e *Engine) departmentName(code string) string {
	if i, ok := e.deptIndex[code]; ok && e.departments[i].Name != "" {
		return e.departments[i].Name
	}
	return code
}

func (e *Engine) emitToken(eventType string, token models.Token, counterID string) {
	payload, err := store.TokenPayload(token)
	if err != nil {
		return
	}
	event := events.New(eventType, payload, e.now())
	event.TokenID = token.TokenID
	event.CounterID = counterID
	event.Department = token.Department
	e.emitter.Emit(event)
}

func (e *Engine) emitCounter(counterID string) {
	counter, ok := e.counters.ByID(counterID)
	if !ok {
		return
	}
	payload, err := json.Marshal(counter)
	if err != nil {
		return
	}
	event := events.New(events.TypeCounterUpdated, payload, e.now())
	event.CounterID = counterID
	event.Department = counter.Department
	e.emitter.Emit(event)
}
