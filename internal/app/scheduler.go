/**
 * @description
 * Cron scheduler for background maintenance: outbox redelivery and dedup
 * eviction.
 */
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/ats/transfer-service/internal/dedup"
	"github.com/robfig/cron/v3"
)

const jobTimeout = 30 * time.Second

// ScheduleConfig holds cron expressions. An empty expression disables the job.
type ScheduleConfig struct {
	OutboxFlush string
	DedupPurge  string
}

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron       *cron.Cron
	dispatcher *OutboxDispatcher
	purger     dedup.Purger
	logger     *slog.Logger
	config     ScheduleConfig
}

// NewScheduler creates a new scheduler instance. dispatcher and purger may be nil.
func NewScheduler(dispatcher *OutboxDispatcher, purger dedup.Purger, logger *slog.Logger, cfg ScheduleConfig) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))

	return &Scheduler{
		cron:       c,
		dispatcher: dispatcher,
		purger:     purger,
		logger:     logger,
		config:     cfg,
	}
}

// Start registers the jobs and starts the cron scheduler.
func (s *Scheduler) Start() {
	if s.dispatcher != nil && s.config.OutboxFlush != "" {
		if _, err := s.cron.AddFunc(s.config.OutboxFlush, s.FlushOutbox); err != nil {
			s.logger.Error("failed to schedule outbox flush job", "error", err)
		} else {
			s.logger.Info("scheduled outbox flush job", "schedule", s.config.OutboxFlush)
		}
	}

	if s.purger != nil && s.config.DedupPurge != "" {
		if _, err := s.cron.AddFunc(s.config.DedupPurge, s.PurgeDedup); err != nil {
			s.logger.Error("failed to schedule dedup purge job", "error", err)
		} else {
			s.logger.Info("scheduled dedup purge job", "schedule", s.config.DedupPurge)
		}
	}

	s.cron.Start()
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// FlushOutbox redelivers one batch of queued side effects.
func (s *Scheduler) FlushOutbox() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	delivered, err := s.dispatcher.Flush(ctx)
	if err != nil {
		s.logger.Error("outbox flush failed", "error", err)
		return
	}
	if delivered > 0 {
		s.logger.Info("outbox flush finished", "delivered", delivered)
	}
}

// PurgeDedup evicts expired event ids.
func (s *Scheduler) PurgeDedup() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	removed, err := s.purger.PurgeExpired(ctx)
	if err != nil {
		s.logger.Error("dedup purge failed", "error", err)
		return
	}
	s.logger.Info("dedup purge finished", "removed", removed)
}
