package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// SweepFunc performs one bulk delete of rows expired at the cutoff and
// reports how many were removed.
type SweepFunc func(ctx context.Context, before time.Time) (int, error)

// Reaper periodically deletes expired records. A failed sweep is logged and
// retried on the next tick, never fatal to the process.
type Reaper struct {
	name     string
	interval time.Duration
	sweep    SweepFunc
	logger   *zap.Logger
	counter  prometheus.Counter
	now      func() time.Time
}

// NewReaper constructs a reaper for the named record type.
func NewReaper(name string, interval time.Duration, sweep SweepFunc, logger *zap.Logger) (*Reaper, error) {
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be positive")
	}
	if sweep == nil {
		return nil, fmt.Errorf("sweep function is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Reaper{
		name:     name,
		interval: interval,
		sweep:    sweep,
		logger:   logger.With(zap.String("reaper", name)),
		now:      time.Now,
	}, nil
}

// WithClock overrides the internal clock, used in tests.
func (r *Reaper) WithClock(clock func() time.Time) {
	if clock != nil {
		r.now = clock
	}
}

// WithCounter attaches a metric incremented by the number of deleted rows.
func (r *Reaper) WithCounter(counter prometheus.Counter) {
	r.counter = counter
}

// Run loops until the context is cancelled, sweeping once per interval.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reaper started", zap.Duration("interval", r.interval))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reaper stopped")
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil {
				r.logger.Error("sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep performs a single bulk delete of everything expired right now.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	cutoff := r.now().UTC()

	deleted, err := r.sweep(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep expired records: %w", err)
	}

	if r.counter != nil && deleted > 0 {
		r.counter.Add(float64(deleted))
	}

	if deleted > 0 {
		r.logger.Info("swept expired records", zap.Int("deleted", deleted))
	} else {
		r.logger.Debug("nothing to sweep")
	}

	return deleted, nil
}
