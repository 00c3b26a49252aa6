// Package janitor runs the periodic sweep that garbage-collects expired
// sessions from the registry. Correctness never depends on it: validation
// discovers expiry lazily, the sweep only reclaims storage.
package janitor

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/authward/authward/pkg/auth"
	"github.com/authward/authward/pkg/observability"
)

// Janitor schedules Registry sweeps on a cron expression.
type Janitor struct {
	registry auth.Registry
	logger   *observability.Logger
	metrics  *observability.Metrics
	now      func() time.Time
	cron     *cron.Cron
}

// New builds a janitor. metrics may be nil; now may be nil, defaulting to
// time.Now.
func New(registry auth.Registry, logger *observability.Logger, metrics *observability.Metrics, now func() time.Time) *Janitor {
	if now == nil {
		now = time.Now
	}
	return &Janitor{
		registry: registry,
		logger:   logger,
		metrics:  metrics,
		now:      now,
		cron:     cron.New(),
	}
}

// Start registers the sweep on the given cron schedule (standard five-field
// syntax or descriptors like "@every 1m") and starts the scheduler.
func (j *Janitor) Start(schedule string) error {
	_, err := j.cron.AddFunc(schedule, j.sweep)
	if err != nil {
		return err
	}
	j.cron.Start()
	j.logger.WithField("schedule", schedule).Info("session sweeper started")
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
}

func (j *Janitor) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	removed, err := j.registry.Sweep(ctx, j.now())
	if err != nil {
		j.logger.WithError(err).Error("session sweep failed")
		return
	}
	if j.metrics != nil {
		j.metrics.SessionsSweptTotal.Add(float64(removed))
		j.metrics.SessionSweepDuration.Observe(time.Since(start).Seconds())
		// Resample the gauge from the registry so lazily-expired sessions the
		// handlers never saw leave do not accumulate in it.
		if n, err := j.registry.Len(ctx); err == nil {
			j.metrics.ActiveSessions.Set(float64(n))
		}
	}
	if removed > 0 {
		j.logger.WithField("removed", removed).Debug("session sweep completed")
	}
}
