// Package webhook_processor drains the webhook log asynchronously: claimed
// rows are parsed with the vendor parser matching their source, matched to
// tracked wallets, and upserted as transactions.
package webhook_processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/whalewatch/whalewatch/internal/domain/entities"
	apperrors "github.com/whalewatch/whalewatch/internal/domain/errors"
	"github.com/whalewatch/whalewatch/internal/domain/services/alerts"
	"github.com/whalewatch/whalewatch/internal/domain/services/ingest"
	"github.com/whalewatch/whalewatch/internal/infrastructure/repositories"
	"github.com/whalewatch/whalewatch/pkg/logger"
)

// Parser turns one raw vendor payload into canonical transactions.
type Parser interface {
	ParseTransactions(body []byte) ([]*entities.CanonicalTransaction, error)
}

// ProcessorConfig holds the polling knobs.
type ProcessorConfig struct {
	WorkerCount  int
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
}

// DefaultProcessorConfig returns the default polling configuration.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		WorkerCount:  3,
		PollInterval: 5 * time.Second,
		BatchSize:    10,
		MaxAttempts:  5,
	}
}

// Processor is the asynchronous half of webhook intake. The HTTP handler only
// persists raw payloads; everything interpretive happens here, where failures
// can be retried without the vendor re-delivering.
type Processor struct {
	config   ProcessorConfig
	logs     *repositories.WebhookLogRepository
	wallets  *repositories.WalletRepository
	networks *repositories.NetworkRepository
	writer   *ingest.Writer
	notifier *alerts.Notifier
	parsers  map[entities.WebhookSource]Parser
	logger   *logger.Logger

	processedCounter metric.Int64Counter
	txCounter        metric.Int64Counter

	wg             sync.WaitGroup
	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
}

func NewProcessor(
	config ProcessorConfig,
	logs *repositories.WebhookLogRepository,
	wallets *repositories.WalletRepository,
	networks *repositories.NetworkRepository,
	writer *ingest.Writer,
	notifier *alerts.Notifier,
	parsers map[entities.WebhookSource]Parser,
	logger *logger.Logger,
) (*Processor, error) {
	ctx, cancel := context.WithCancel(context.Background())

	meter := otel.Meter("webhook-processor")

	processedCounter, err := meter.Int64Counter(
		"webhook.processed.total",
		metric.WithDescription("Total number of webhook log rows processed"),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create processed counter: %w", err)
	}

	txCounter, err := meter.Int64Counter(
		"webhook.transactions.total",
		metric.WithDescription("Total number of transactions ingested from webhooks"),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create transaction counter: %w", err)
	}

	return &Processor{
		config:           config,
		logs:             logs,
		wallets:          wallets,
		networks:         networks,
		writer:           writer,
		notifier:         notifier,
		parsers:          parsers,
		logger:           logger,
		processedCounter: processedCounter,
		txCounter:        txCounter,
		shutdownCtx:      ctx,
		shutdownCancel:   cancel,
	}, nil
}

// Start launches the worker goroutines.
func (p *Processor) Start(ctx context.Context) error {
	p.logger.Info("starting webhook processor", "worker_count", p.config.WorkerCount)

	for i := 0; i < p.config.WorkerCount; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}

	return nil
}

// Shutdown stops the workers and waits up to timeout for in-flight batches.
func (p *Processor) Shutdown(timeout time.Duration) error {
	p.logger.Info("shutting down webhook processor", "timeout", timeout)
	p.shutdownCancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("webhook processor shutdown timeout exceeded")
	}
}

func (p *Processor) worker(ctx context.Context, workerID int) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdownCtx.Done():
			return
		case <-ticker.C:
			p.processBatch(ctx, workerID)
		}
	}
}

func (p *Processor) processBatch(ctx context.Context, workerID int) {
	batch, err := p.logs.ClaimUnprocessed(ctx, p.config.BatchSize, p.config.MaxAttempts)
	if err != nil {
		p.logger.Error("failed to claim webhook logs", "error", err, "worker_id", workerID)
		return
	}
	if len(batch) == 0 {
		return
	}

	for _, log := range batch {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdownCtx.Done():
			return
		default:
		}

		if err := p.processLog(ctx, log); err != nil {
			p.logger.Warn("webhook log processing failed",
				"log_id", log.ID.String(),
				"source", log.Source,
				"attempt", log.AttemptCount,
				"error", err)
			if rerr := p.logs.RecordError(ctx, log.ID, err); rerr != nil {
				p.logger.Error("failed to record webhook error", "log_id", log.ID.String(), "error", rerr)
			}
			p.processedCounter.Add(ctx, 1, metric.WithAttributes(
				attribute.String("source", string(log.Source)),
				attribute.String("status", "failed"),
			))
			continue
		}

		if err := p.logs.MarkProcessed(ctx, log.ID); err != nil {
			p.logger.Error("failed to mark webhook processed", "log_id", log.ID.String(), "error", err)
			continue
		}
		p.processedCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("source", string(log.Source)),
			attribute.String("status", "completed"),
		))
	}
}

// processLog parses one raw payload and ingests its transactions for every
// tracked wallet it touches. Addresses that no one tracks are skipped
// silently; push vendors deliver activity for whole streams, not individual
// subscriptions.
func (p *Processor) processLog(ctx context.Context, log *entities.WebhookLog) error {
	parser, ok := p.parsers[log.Source]
	if !ok {
		return fmt.Errorf("no parser registered for source %q", log.Source)
	}

	txs, err := parser.ParseTransactions(log.Payload)
	if err != nil {
		return fmt.Errorf("parsing %s payload: %w", log.Source, err)
	}

	for _, ct := range txs {
		if err := p.ingestForTrackedWallets(ctx, log.Source, ct); err != nil {
			return err
		}
	}

	return nil
}

func (p *Processor) ingestForTrackedWallets(ctx context.Context, source entities.WebhookSource, ct *entities.CanonicalTransaction) error {
	seen := map[string]bool{}

	for _, addr := range []string{ct.FromAddress, ct.ToAddress} {
		if addr == "" || addr == entities.ExternalCounterparty {
			continue
		}
		normalized := entities.NormalizeAddress(addr)
		if seen[normalized] {
			continue
		}
		seen[normalized] = true

		wallet, err := p.wallets.GetBySlugAndAddress(ctx, ct.NetworkSlug, normalized)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				continue
			}
			return err
		}

		inserted, err := p.writer.Write(ctx, wallet.ID, ct)
		if err != nil {
			return err
		}

		p.txCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("source", string(source)),
			attribute.String("network", string(ct.NetworkSlug)),
			attribute.Bool("inserted", inserted),
		))

		if !inserted {
			continue
		}

		network, err := p.networks.GetByID(ctx, wallet.NetworkID)
		if err != nil {
			return err
		}

		tx := &entities.Transaction{
			WalletID:    wallet.ID,
			Hash:        ct.Hash,
			FromAddress: entities.NormalizeAddress(ct.FromAddress),
			ToAddress:   entities.NormalizeAddress(ct.ToAddress),
			Amount:      ct.Amount,
			Fee:         ct.Fee,
			BlockNumber: ct.BlockNumber,
			MinedAt:     ct.MinedAt,
		}
		if err := p.notifier.Notify(ctx, wallet, network, tx); err != nil {
			// Alert failures never block ingestion.
			p.logger.Error("alert evaluation failed",
				"wallet", wallet.Address,
				"hash", ct.Hash,
				"error", err)
		}
	}

	return nil
}
