package services

import (
	"context"
	"errors"

	"github.com/robfig/cron/v3"

	"github.com/gymdesk/gymsync/internal/common"
	"github.com/gymdesk/gymsync/internal/logging"
)

// Scheduler runs full sync cycles on a cron schedule, as a safety net behind
// the event-driven triggers (mutations, online transitions, notifications).
// Ticks while offline or while a sync is already running are skipped.
type Scheduler struct {
	cron   *cron.Cron
	logger logging.Logger
}

// NewScheduler wires a periodic sync. schedule is a cron expression,
// "@every 5m" style shortcuts included.
func NewScheduler(schedule string, syncer *Syncer, online OnlineChecker, logger logging.Logger) (*Scheduler, error) {
	logger = logger.With("module", "scheduler")
	c := cron.New()

	_, err := c.AddFunc(schedule, func() {
		ctx := context.Background()
		if online != nil && !online.Online() {
			logger.Debug(ctx, "scheduled sync skipped, offline")
			return
		}
		if _, err := syncer.Sync(ctx); err != nil {
			if errors.Is(err, common.ErrSyncInProgress) {
				return
			}
			logger.Error(ctx, "scheduled sync failed", "error", err)
		}
	})
	if err != nil {
		return nil, err
	}

	return &Scheduler{cron: c, logger: logger}, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
