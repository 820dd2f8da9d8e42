// Package metrics exposes queue activity to Prometheus.
package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"qms/token-queue/internal/events"
	"qms/token-queue/internal/models"
)

type Metrics struct {
	registry *prometheus.Registry

	events      *prometheus.CounterVec
	transitions *prometheus.CounterVec
	waitTime    *prometheus.HistogramVec
	tokens      *prometheus.GaugeVec
	speaking    prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "token_queue",
			Name:      "events_total",
			Help:      "Domain events emitted by the queue engine.",
		}, []string{"type"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "token_queue",
			Name:      "token_transitions_total",
			Help:      "Tokens entering a status, by department.",
		}, []string{"department", "status"}),
		waitTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "token_queue",
			Name:      "wait_seconds",
			Help:      "Time from token creation until it was called.",
			Buckets:   []float64{30, 60, 120, 300, 600, 900, 1800, 3600},
		}, []string{"department"}),
		tokens: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "token_queue",
			Name:      "tokens",
			Help:      "Tokens currently in each status, by department.",
		}, []string{"department", "status"}),
		speaking: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "token_queue",
			Name:      "announcer_speaking",
			Help:      "1 while an announcement is playing.",
		}),
	}
	m.registry.MustRegister(
		m.events,
		m.transitions,
		m.waitTime,
		m.tokens,
		m.speaking,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// WatchDropped exports the dispatcher's drop count. Each drop of a token
// event is a missing step in that token's journal.
func (m *Metrics) WatchDropped(dropped func() int64) {
	m.registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: "token_queue",
		Name:      "events_dropped_total",
		Help:      "Events discarded because the dispatch buffer was full.",
	}, func() float64 {
		return float64(dropped())
	}))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

type tokenTimes struct {
	Status    string     `json:"status"`
	CreatedAt *time.Time `json:"created_at"`
	CalledAt  *time.Time `json:"called_at"`
}

type announcerState struct {
	Speaking bool `json:"speaking"`
}

func (m *Metrics) Publish(ctx context.Context, event events.Event) error {
	m.events.WithLabelValues(event.Type).Inc()
	switch event.Type {
	case events.TypeTokenCreated, events.TypeTokenCalled, events.TypeTokenCompleted, events.TypeTokenSkipped:
		var token tokenTimes
		if err := json.Unmarshal(event.Payload, &token); err != nil {
			return err
		}
		m.transitions.WithLabelValues(event.Department, token.Status).Inc()
		if event.Type == events.TypeTokenCalled && token.CreatedAt != nil && token.CalledAt != nil {
			m.waitTime.WithLabelValues(event.Department).Observe(token.CalledAt.Sub(*token.CreatedAt).Seconds())
		}
	case events.TypeAnnouncer:
		var state announcerState
		if err := json.Unmarshal(event.Payload, &state); err != nil {
			return err
		}
		if state.Speaking {
			m.speaking.Set(1)
		} else {
			m.speaking.Set(0)
		}
	}
	return nil
}

// Observe sets the per-status gauges from a full stats snapshot.
func (m *Metrics) Observe(stats models.Stats) {
	for department, counts := range stats.ByDepartment {
		m.tokens.WithLabelValues(department, models.StatusWaiting).Set(float64(counts.Waiting))
		m.tokens.WithLabelValues(department, models.StatusServing).Set(float64(counts.Serving))
		m.tokens.WithLabelValues(department, models.StatusCompleted).Set(float64(counts.Completed))
		m.tokens.WithLabelValues(department, models.StatusSkipped).Set(float64(counts.Skipped))
	}
}
