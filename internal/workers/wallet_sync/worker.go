// Package wallet_sync runs the periodic wallet refresh: a cron schedule
// enqueues sync jobs for every tracked wallet and a pool of workers drains
// the job queue through the provider orchestrator.
package wallet_sync

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/whalewatch/whalewatch/internal/domain/entities"
	"github.com/whalewatch/whalewatch/internal/domain/services/sync"
	"github.com/whalewatch/whalewatch/internal/infrastructure/repositories"
	"github.com/whalewatch/whalewatch/pkg/logger"
)

// WorkerConfig holds the polling knobs.
type WorkerConfig struct {
	WorkerCount  int
	PollInterval time.Duration
	BatchSize    int
	JobTimeout   time.Duration
}

// DefaultWorkerConfig returns the default polling configuration.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		WorkerCount:  2,
		PollInterval: 10 * time.Second,
		BatchSize:    5,
		JobTimeout:   2 * time.Minute,
	}
}

// Worker drains the sync job queue. Jobs are claimed with SKIP LOCKED, so
// multiple instances can run side by side.
type Worker struct {
	config       WorkerConfig
	jobs         *repositories.SyncJobRepository
	orchestrator *sync.Orchestrator
	logger       *logger.Logger

	jobCounter metric.Int64Counter

	wg             gosync.WaitGroup
	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
}

func NewWorker(config WorkerConfig, jobs *repositories.SyncJobRepository, orchestrator *sync.Orchestrator, logger *logger.Logger) (*Worker, error) {
	ctx, cancel := context.WithCancel(context.Background())

	meter := otel.Meter("wallet-sync-worker")
	jobCounter, err := meter.Int64Counter(
		"walletsync.jobs.total",
		metric.WithDescription("Total number of wallet sync jobs processed"),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create job counter: %w", err)
	}

	return &Worker{
		config:         config,
		jobs:           jobs,
		orchestrator:   orchestrator,
		logger:         logger,
		jobCounter:     jobCounter,
		shutdownCtx:    ctx,
		shutdownCancel: cancel,
	}, nil
}

// Start launches the worker goroutines.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("starting wallet sync worker", "worker_count", w.config.WorkerCount)

	for i := 0; i < w.config.WorkerCount; i++ {
		w.wg.Add(1)
		go w.run(ctx, i)
	}

	return nil
}

// Shutdown stops the workers and waits up to timeout for in-flight jobs.
func (w *Worker) Shutdown(timeout time.Duration) error {
	w.logger.Info("shutting down wallet sync worker", "timeout", timeout)
	w.shutdownCancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("wallet sync worker shutdown timeout exceeded")
	}
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdownCtx.Done():
			return
		case <-ticker.C:
			w.processBatch(ctx, workerID)
		}
	}
}

func (w *Worker) processBatch(ctx context.Context, workerID int) {
	batch, err := w.jobs.ClaimPending(ctx, w.config.BatchSize)
	if err != nil {
		w.logger.Error("failed to claim sync jobs", "error", err, "worker_id", workerID)
		return
	}

	for _, job := range batch {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdownCtx.Done():
			return
		default:
		}

		jobCtx, cancel := context.WithTimeout(ctx, w.config.JobTimeout)
		err := w.runJob(jobCtx, job)
		cancel()

		status := "completed"
		if err != nil {
			status = "failed"
			w.logger.Warn("sync job failed",
				"job_id", job.ID.String(),
				"wallet_id", job.WalletID.String(),
				"attempt", job.AttemptCount,
				"error", err)
			if ferr := w.jobs.MarkFailed(ctx, job, err); ferr != nil {
				w.logger.Error("failed to mark sync job failed", "job_id", job.ID.String(), "error", ferr)
			}
		} else if cerr := w.jobs.MarkCompleted(ctx, job.ID); cerr != nil {
			w.logger.Error("failed to mark sync job completed", "job_id", job.ID.String(), "error", cerr)
		}

		w.jobCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("status", status),
			attribute.Bool("ranged", job.RangeFrom != nil),
		))
	}
}

func (w *Worker) runJob(ctx context.Context, job *entities.SyncJob) error {
	if job.RangeFrom != nil && job.RangeTo != nil {
		return w.orchestrator.FetchRange(ctx, job.WalletID, job.UserID, *job.RangeFrom, *job.RangeTo)
	}
	return w.orchestrator.SyncWallet(ctx, job.WalletID, job.UserID)
}
