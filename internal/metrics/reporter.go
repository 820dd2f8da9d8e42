package metrics

import (
	"context"
	"log"

	"github.com/robfig/cron/v3"

	"qms/token-queue/internal/models"
)

type StatsSource interface {
	Stats() models.Stats
}

// Reporter refreshes the queue gauges and logs a one-line summary on a cron
// schedule such as "@every 1m" or "*/5 * * * *".
type Reporter struct {
	cron    *cron.Cron
	source  StatsSource
	metrics *Metrics
}

func NewReporter(source StatsSource, m *Metrics, schedule string) (*Reporter, error) {
	r := &Reporter{
		cron:    cron.New(),
		source:  source,
		metrics: m,
	}
	if _, err := r.cron.AddFunc(schedule, r.Report); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Reporter) Report() {
	stats := r.source.Stats()
	if r.metrics != nil {
		r.metrics.Observe(stats)
	}
	log.Printf("queue stats waiting=%d serving=%d completed=%d skipped=%d",
		stats.Total.Waiting, stats.Total.Serving, stats.Total.Completed, stats.Total.Skipped)
}

func (r *Reporter) Start() {
	r.cron.Start()
}

// Stop halts the schedule; the returned context is done once a running
// report has finished.
func (r *Reporter) Stop() context.Context {
	return r.cron.Stop()
}
