// Package worker runs the background jobs: the invitation expiry sweep on a cron schedule and the
// Kafka mail consumer.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron"

	"tenantdesk/backend/internal/platform/logger"
)

// DefaultSchedule sweeps every five minutes. Specs carry a seconds field.
const DefaultSchedule = "0 */5 * * * *"

// sweepTimeout bounds one sweep run.
const sweepTimeout = time.Minute

// Sweeper expires overdue invitations and reports how many it touched.
type Sweeper interface {
	ExpireOverdue(ctx context.Context) (int64, error)
}

// Sweep runs one expiry pass and logs its outcome.
func Sweep(ctx context.Context, s Sweeper) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()
	n, err := s.ExpireOverdue(ctx)
	if err != nil {
		logger.Ctx(ctx).Errorw("invitation sweep failed", "error", err)
		return n, err
	}
	logger.Ctx(ctx).Infow("invitation sweep done", "expired", n)
	return n, nil
}

// Scheduler runs Sweep on a cron schedule until Stop.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler registers the sweep under spec (DefaultSchedule when empty). Runs started by the
// scheduler use ctx, so cancelling it aborts an in-flight sweep.
func NewScheduler(ctx context.Context, spec string, s Sweeper) (*Scheduler, error) {
	if s == nil {
		return nil, errors.New("worker: nil sweeper")
	}
	if spec == "" {
		spec = DefaultSchedule
	}
	c := cron.New()
	if err := c.AddFunc(spec, func() { _, _ = Sweep(ctx, s) }); err != nil {
		return nil, err
	}
	return &Scheduler{cron: c}, nil
}

// Start begins scheduling in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts scheduling. A running sweep is not waited for.
func (s *Scheduler) Stop() { s.cron.Stop() }
