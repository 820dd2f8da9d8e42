package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"qms/token-queue/internal/auth"
	"qms/token-queue/internal/engine"
	"qms/token-queue/internal/models"
	"qms/token-queue/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Queue is the engine surface the HTTP layer drives.
type Queue interface {
	CreateToken(input engine.CreateTokenInput) (models.Token, error)
	CallNext(counterID string) (models.Token, bool, error)
	CompleteToken(tokenID string) (models.Token, error)
	SkipToken(tokenID string) (models.Token, error)
	Recall(counterID string) (models.Token, error)
	SetCounterActive(counterID string, active bool) (models.CounterView, error)
	WaitingTokens(department string) []models.Token
	TokenStatus(tokenID string) (engine.TokenStatus, bool)
	Departments() []models.Department
	Department(code string) (models.Department, bool)
	Counters() []models.CounterView
	Counter(counterID string) (models.CounterView, bool)
	Stats() models.Stats
	Snapshot(limit int) models.Display
}

type Handler struct {
	queue        Queue
	journal      store.Journal
	auth         *auth.Authenticator
	authDisabled bool
	displayLimit int
	limiter      *RateLimiter
	metrics      http.Handler
	realtime     http.Handler
}

type Options struct {
	Journal      store.Journal
	Auth         *auth.Authenticator
	AuthDisabled bool
	DisplayLimit int
	Limiter      *RateLimiter
	Metrics      http.Handler
	Realtime     http.Handler
}

type createTokenRequest struct {
	Department   string `json:"department"`
	CustomerName string `json:"customer_name"`
	Phone        string `json:"phone"`
	KioskID      string `json:"kiosk_id"`
}

type counterStatusRequest struct {
	Active *bool `json:"active"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresAt   time.Time    `json:"expires_at"`
	Session     auth.Session `json:"session"`
}

type callNextResponse struct {
	Token   *models.Token      `json:"token"`
	Counter models.CounterView `json:"counter"`
}

type queueResponse struct {
	Department string         `json:"department,omitempty"`
	Tokens     []models.Token `json:"tokens"`
}

type tokenEventsResponse struct {
	TokenID  string             `json:"token_id"`
	Verified bool               `json:"verified"`
	Token    models.Token       `json:"token"`
	Events   []store.TokenEvent `json:"events"`
}

type errorResponse struct {
	RequestID string        `json:"request_id"`
	Error     responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewHandler(queue Queue, options Options) *Handler {
	limit := options.DisplayLimit
	if limit <= 0 {
		limit = 5
	}
	return &Handler{
		queue:        queue,
		journal:      options.Journal,
		auth:         options.Auth,
		authDisabled: options.AuthDisabled,
		displayLimit: limit,
		limiter:      options.Limiter,
		metrics:      options.Metrics,
		realtime:     options.Realtime,
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(middleware.Recoverer)
	if h.limiter != nil {
		r.Use(h.limiter.Middleware)
	}

	r.Get("/healthz", h.handleHealth)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}
	if h.realtime != nil {
		r.Handle("/realtime", h.realtime)
		r.Handle("/realtime/*", h.realtime)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", h.handleLogin)
		r.Get("/departments", h.handleDepartments)
		r.Get("/queue", h.handleQueue)
		r.Get("/display", h.handleDisplay)
		r.Get("/counters", h.handleCounters)
		r.Get("/counters/{counterID}", h.handleCounter)
		r.Get("/tokens/{tokenID}", h.handleGetToken)
		if h.limiter != nil {
			r.With(h.limiter.KioskMiddleware).Post("/tokens", h.handleCreateToken)
		} else {
			r.Post("/tokens", h.handleCreateToken)
		}

		r.Group(func(r chi.Router) {
			r.Use(h.requireAdmin)
			r.Post("/counters/{counterID}/call-next", h.handleCallNext)
			r.Post("/counters/{counterID}/recall", h.handleRecall)
			r.Post("/counters/{counterID}/status", h.handleCounterStatus)
			r.Post("/tokens/{tokenID}/complete", h.handleComplete)
			r.Post("/tokens/{tokenID}/skip", h.handleSkip)
			r.Get("/tokens/{tokenID}/events", h.handleTokenEvents)
			r.Get("/stats", h.handleStats)
			r.Get("/auth/session", h.handleSession)
		})
	})
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFromRequest(r)
	if h.auth == nil {
		writeError(w, requestID, http.StatusServiceUnavailable, "auth_unavailable", "login is not configured")
		return
	}
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	token, session, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		status, code, message := mapError(err)
		writeError(w, requestID, status, code, message)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   session.ExpiresAt,
		Session:     session,
	})
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFromContext(r.Context())
	if !ok {
		writeError(w, requestIDFromRequest(r), http.StatusUnauthorized, "unauthorized", "missing session")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) handleDepartments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.queue.Departments())
}

func (h *Handler) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	var req createTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Phone != "" && !isValidPhone(req.Phone) {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "phone must be 8-16 digits")
		return
	}
	token, err := h.queue.CreateToken(engine.CreateTokenInput{
		Department:   req.Department,
		CustomerName: req.CustomerName,
		Phone:        req.Phone,
	})
	if err != nil {
		h.writeMappedError(w, r, err)
		return
	}
	status, ok := h.queue.TokenStatus(token.TokenID)
	if !ok {
		status = engine.TokenStatus{Token: token}
	}
	writeJSON(w, http.StatusCreated, status)
}

func (h *Handler) handleGetToken(w http.ResponseWriter, r *http.Request) {
	status, ok := h.queue.TokenStatus(chi.URLParam(r, "tokenID"))
	if !ok {
		h.writeMappedError(w, r, store.ErrUnknownToken)
		return
	}
	status.Token = status.Token.Public()
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) handleQueue(w http.ResponseWriter, r *http.Request) {
	department := strings.TrimSpace(r.URL.Query().Get("department"))
	if department != "" {
		if _, ok := h.queue.Department(department); !ok {
			writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "unknown department")
			return
		}
	}
	tokens := models.PublicTokens(h.queue.WaitingTokens(department))
	writeJSON(w, http.StatusOK, queueResponse{Department: department, Tokens: tokens})
}

func (h *Handler) handleDisplay(w http.ResponseWriter, r *http.Request) {
	limit := h.displayLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "limit must be a non-negative integer")
			return
		}
		limit = value
	}
	writeJSON(w, http.StatusOK, h.queue.Snapshot(limit))
}

func (h *Handler) handleCounters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.PublicCounters(h.queue.Counters()))
}

func (h *Handler) handleCounter(w http.ResponseWriter, r *http.Request) {
	counter, ok := h.queue.Counter(chi.URLParam(r, "counterID"))
	if !ok {
		h.writeMappedError(w, r, store.ErrUnknownCounter)
		return
	}
	writeJSON(w, http.StatusOK, counter.Public())
}

func (h *Handler) handleCallNext(w http.ResponseWriter, r *http.Request) {
	counterID := chi.URLParam(r, "counterID")
	token, ok, err := h.queue.CallNext(counterID)
	if err != nil {
		h.writeMappedError(w, r, err)
		return
	}
	resp := callNextResponse{}
	if ok {
		resp.Token = &token
	}
	if counter, found := h.queue.Counter(counterID); found {
		resp.Counter = counter
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleRecall(w http.ResponseWriter, r *http.Request) {
	token, err := h.queue.Recall(chi.URLParam(r, "counterID"))
	if err != nil {
		h.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, token)
}

func (h *Handler) handleCounterStatus(w http.ResponseWriter, r *http.Request) {
	var req counterStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Active == nil {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "active is required")
		return
	}
	counter, err := h.queue.SetCounterActive(chi.URLParam(r, "counterID"), *req.Active)
	if err != nil {
		h.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, counter)
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	token, err := h.queue.CompleteToken(chi.URLParam(r, "tokenID"))
	if err != nil {
		h.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, token)
}

func (h *Handler) handleSkip(w http.ResponseWriter, r *http.Request) {
	token, err := h.queue.SkipToken(chi.URLParam(r, "tokenID"))
	if err != nil {
		h.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, token)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.queue.Stats())
}

func (h *Handler) handleTokenEvents(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		h.writeMappedError(w, r, store.ErrJournalDisabled)
		return
	}
	tokenID := chi.URLParam(r, "tokenID")
	events, err := h.journal.ListTokenEvents(r.Context(), tokenID)
	if err != nil {
		h.writeMappedError(w, r, err)
		return
	}
	if len(events) == 0 {
		h.writeMappedError(w, r, store.ErrUnknownToken)
		return
	}
	token, err := store.RehydrateToken(events)
	if err != nil {
		h.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenEventsResponse{
		TokenID:  tokenID,
		Verified: store.VerifyTokenEvents(events) == nil,
		Token:    token,
		Events:   events,
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return false
	}
	return true
}

func isValidPhone(value string) bool {
	digits := 0
	for _, r := range value {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' || r == '-' || r == ' ':
		default:
			return false
		}
	}
	return digits >= 8 && digits <= 16
}

func (h *Handler) writeMappedError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := mapError(err)
	writeError(w, requestIDFromRequest(r), status, code, message)
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, store.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_request", err.Error()
	case errors.Is(err, store.ErrUnknownCounter):
		return http.StatusNotFound, "counter_not_found", "counter not found"
	case errors.Is(err, store.ErrUnknownToken):
		return http.StatusNotFound, "token_not_found", "token not found"
	case errors.Is(err, store.ErrInvalidTransition):
		return http.StatusConflict, "invalid_state", "token state does not allow this action"
	case errors.Is(err, store.ErrNoActiveToken):
		return http.StatusConflict, "no_active_token", "counter has no token to recall"
	case errors.Is(err, store.ErrCounterInactive):
		return http.StatusConflict, "counter_inactive", "counter is closed"
	case errors.Is(err, store.ErrAnnouncerBusy):
		return http.StatusConflict, "announcer_busy", "an announcement is still playing"
	case errors.Is(err, store.ErrJournalDisabled):
		return http.StatusNotFound, "history_unavailable", "token history is not recorded"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials", "invalid username or password"
	case errors.Is(err, auth.ErrInvalidSession):
		return http.StatusUnauthorized, "unauthorized", "invalid session"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func writeError(w http.ResponseWriter, requestID string, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		RequestID: requestID,
		Error: responseError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
