package wallet_sync

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/whalewatch/whalewatch/internal/domain/entities"
	"github.com/whalewatch/whalewatch/internal/infrastructure/repositories"
	"github.com/whalewatch/whalewatch/pkg/logger"
)

// Scheduler enqueues a sync job for every tracked wallet on a cron schedule.
// Enqueueing is idempotent per wallet while a job is pending, so overlapping
// runs cannot pile up duplicate work.
type Scheduler struct {
	cron     *cron.Cron
	schedule string
	wallets  *repositories.WalletRepository
	jobs     *repositories.SyncJobRepository
	logger   *logger.Logger
}

func NewScheduler(schedule string, wallets *repositories.WalletRepository, jobs *repositories.SyncJobRepository, logger *logger.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		schedule: schedule,
		wallets:  wallets,
		jobs:     jobs,
		logger:   logger,
	}
}

// Start registers the schedule and begins the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.schedule, func() { s.enqueueAll(ctx) }); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("wallet sync scheduler started", "schedule", s.schedule)
	return nil
}

// Stop halts the cron loop; running enqueue passes finish first.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info("wallet sync scheduler stopped")
}

func (s *Scheduler) enqueueAll(ctx context.Context) {
	wallets, err := s.wallets.ListTracked(ctx)
	if err != nil {
		s.logger.Error("failed to list tracked wallets for scheduling", "error", err)
		return
	}

	queued := 0
	for _, wallet := range wallets {
		added, err := s.jobs.Enqueue(ctx, &entities.SyncJob{WalletID: wallet.ID})
		if err != nil {
			s.logger.Error("failed to enqueue scheduled sync",
				"wallet_id", wallet.ID.String(),
				"error", err)
			continue
		}
		if added {
			queued++
		}
	}

	s.logger.Info("scheduled wallet syncs enqueued",
		"tracked", len(wallets),
		"queued", queued)
}
