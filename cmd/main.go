package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/whalewatch/whalewatch/internal/api/handlers"
	"github.com/whalewatch/whalewatch/internal/api/routes"
	"github.com/whalewatch/whalewatch/internal/domain/entities"
	"github.com/whalewatch/whalewatch/internal/domain/services/alerts"
	"github.com/whalewatch/whalewatch/internal/domain/services/ingest"
	syncsvc "github.com/whalewatch/whalewatch/internal/domain/services/sync"
	"github.com/whalewatch/whalewatch/internal/infrastructure/adapters"
	"github.com/whalewatch/whalewatch/internal/infrastructure/cache"
	"github.com/whalewatch/whalewatch/internal/infrastructure/config"
	"github.com/whalewatch/whalewatch/internal/infrastructure/database"
	"github.com/whalewatch/whalewatch/internal/infrastructure/repositories"
	"github.com/whalewatch/whalewatch/internal/pricing"
	"github.com/whalewatch/whalewatch/internal/providers"
	"github.com/whalewatch/whalewatch/internal/providers/blockcypher"
	"github.com/whalewatch/whalewatch/internal/providers/etherscan"
	"github.com/whalewatch/whalewatch/internal/providers/moralis"
	"github.com/whalewatch/whalewatch/internal/providers/solscan"
	"github.com/whalewatch/whalewatch/internal/providers/trongrid"
	"github.com/whalewatch/whalewatch/internal/webhooks/alchemy"
	"github.com/whalewatch/whalewatch/internal/webhooks/moralisstream"
	"github.com/whalewatch/whalewatch/internal/workers/wallet_sync"
	"github.com/whalewatch/whalewatch/internal/workers/webhook_processor"
	"github.com/whalewatch/whalewatch/pkg/graceful"
	"github.com/whalewatch/whalewatch/pkg/httpclient"
	"github.com/whalewatch/whalewatch/pkg/logger"
	"github.com/whalewatch/whalewatch/pkg/tracing"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	log := logger.New(cfg.LogLevel, cfg.Environment)
	defer log.Sync()

	log.Info("starting whalewatch", "version", version, "environment", cfg.Environment)

	ctx := context.Background()

	shutdownTracer, err := tracing.InitTracer(ctx, tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		CollectorURL: cfg.Tracing.CollectorURL,
		Environment:  cfg.Environment,
		SampleRate:   cfg.Tracing.SampleRate,
		Insecure:     cfg.Tracing.Insecure,
	}, log.Zap())
	if err != nil {
		log.Fatal("failed to initialize tracing", "error", err)
	}
	defer shutdownTracer(ctx)

	if err := database.RunMigrations(cfg.Database.URL); err != nil {
		log.Fatal("failed to run migrations", "error", err)
	}

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.Fatal("failed to connect to database", "error", err)
	}

	redis, err := cache.NewRedisClient(&cfg.Redis, log.Zap())
	if err != nil {
		log.Fatal("failed to connect to redis", "error", err)
	}

	// Repositories
	networkRepo := repositories.NewNetworkRepository(db)
	walletRepo := repositories.NewWalletRepository(db)
	txRepo := repositories.NewTransactionRepository(db)
	userWalletRepo := repositories.NewUserWalletRepository(db)
	webhookLogRepo := repositories.NewWebhookLogRepository(db)
	integrationRepo := repositories.NewIntegrationRepository(db)
	syncJobRepo := repositories.NewSyncJobRepository(db)

	// Vendor HTTP client and price oracle
	vendorClient := httpclient.New(httpclient.Config{
		Timeout:  time.Duration(cfg.Providers.Timeout) * time.Second,
		RetryMax: cfg.Providers.MaxRetries,
	}, log.Zap())

	oracle := pricing.NewOracle(vendorClient, redis, cfg.PriceOracle.BaseURL, cfg.PriceOracle.APIKey,
		time.Duration(cfg.PriceOracle.CacheTTLSeconds)*time.Second, log.Zap())

	// Ingestion pipeline and provider catalog
	writer := ingest.NewWriter(txRepo, log)
	deps := providers.Deps{Sink: writer, Store: walletRepo, Prices: oracle}

	catalog := []providers.CatalogEntry{
		{Provider: moralis.New(vendorClient, cfg.Providers.Moralis.BaseURL, deps, log), KeyRequired: true},
		{Provider: etherscan.New(vendorClient, cfg.Providers.Etherscan.BaseURL, deps, log), KeyRequired: false},
		{Provider: blockcypher.New(vendorClient, cfg.Providers.BlockCypher.BaseURL, deps, log), KeyRequired: false},
		{Provider: solscan.New(vendorClient, cfg.Providers.Solscan.BaseURL, deps, log), KeyRequired: true},
		{Provider: trongrid.New(vendorClient, cfg.Providers.TronGrid.BaseURL, deps, log), KeyRequired: false},
	}

	creds := providers.NewCredentialResolver(integrationRepo, map[string]string{
		moralis.ProviderKey:     cfg.Providers.Moralis.APIKey,
		etherscan.ProviderKey:   cfg.Providers.Etherscan.APIKey,
		blockcypher.ProviderKey: cfg.Providers.BlockCypher.APIKey,
		solscan.ProviderKey:     cfg.Providers.Solscan.APIKey,
		trongrid.ProviderKey:    cfg.Providers.TronGrid.APIKey,
	}, log)

	registry := providers.NewRegistry(catalog, creds, log)
	orchestrator := syncsvc.NewOrchestrator(registry, walletRepo, networkRepo, log)

	// Alert delivery channels. Either channel may be disabled by leaving its
	// credential unset; the notifier treats a nil sender as "not configured".
	var emailSender alerts.EmailSender
	if cfg.Email.APIKey != "" {
		emailService, err := adapters.NewEmailService(log, adapters.EmailServiceConfig{
			APIKey:    cfg.Email.APIKey,
			FromEmail: cfg.Email.FromEmail,
			FromName:  cfg.Email.FromName,
		})
		if err != nil {
			log.Fatal("failed to initialize email service", "error", err)
		}
		emailSender = emailService
	} else {
		log.Warn("email alerts disabled, no sendgrid api key configured")
	}

	var messengerSender alerts.MessengerSender
	if cfg.Telegram.BotToken != "" {
		telegramService, err := adapters.NewTelegramService(cfg.Telegram.BotToken, log)
		if err != nil {
			log.Fatal("failed to initialize telegram service", "error", err)
		}
		messengerSender = telegramService
	} else {
		log.Warn("messenger alerts disabled, no telegram bot token configured")
	}

	notifier := alerts.NewNotifier(userWalletRepo, oracle, emailSender, messengerSender, log)

	// Webhook vendors
	alchemyParser := alchemy.NewParser(cfg.Webhooks.AlchemySigningKey, log)
	moralisParser := moralisstream.NewParser(cfg.Webhooks.MoralisStreamsSecret, log)

	// Background workers
	processorCfg := webhook_processor.DefaultProcessorConfig()
	processorCfg.WorkerCount = cfg.Workers.Count
	processorCfg.PollInterval = time.Duration(cfg.Workers.PollInterval) * time.Second
	webhookProcessor, err := webhook_processor.NewProcessor(
		processorCfg,
		webhookLogRepo,
		walletRepo,
		networkRepo,
		writer,
		notifier,
		map[entities.WebhookSource]webhook_processor.Parser{
			entities.SourceAlchemy:        alchemyParser,
			entities.SourceMoralisStreams: moralisParser,
		},
		log,
	)
	if err != nil {
		log.Fatal("failed to create webhook processor", "error", err)
	}

	syncWorkerCfg := wallet_sync.DefaultWorkerConfig()
	syncWorkerCfg.JobTimeout = time.Duration(cfg.Workers.JobTimeout) * time.Second
	syncWorker, err := wallet_sync.NewWorker(syncWorkerCfg, syncJobRepo, orchestrator, log)
	if err != nil {
		log.Fatal("failed to create wallet sync worker", "error", err)
	}

	scheduler := wallet_sync.NewScheduler(cfg.Sync.Schedule, walletRepo, syncJobRepo, log)

	if err := webhookProcessor.Start(ctx); err != nil {
		log.Fatal("failed to start webhook processor", "error", err)
	}
	if err := syncWorker.Start(ctx); err != nil {
		log.Fatal("failed to start wallet sync worker", "error", err)
	}
	if err := scheduler.Start(ctx); err != nil {
		log.Fatal("failed to start sync scheduler", "error", err)
	}

	// HTTP surface
	router := routes.SetupRoutes(routes.Handlers{
		Health:  handlers.NewHealthHandler(db, redis, log, version),
		Wallets: handlers.NewWalletHandlers(networkRepo, walletRepo, userWalletRepo, txRepo, syncJobRepo, log),
		Webhooks: handlers.NewWebhookHandlers(
			webhookLogRepo, alchemyParser, moralisParser, log),
		Integrations: handlers.NewIntegrationHandlers(integrationRepo, []string{
			moralis.ProviderKey,
			etherscan.ProviderKey,
			blockcypher.ProviderKey,
			solscan.ProviderKey,
			trongrid.ProviderKey,
		}, log),
	}, log, cfg.Environment)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Info("http server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", "error", err)
		}
	}()

	shutdown := graceful.NewShutdownManager(server, db.DB, log)
	shutdown.Register(webhookProcessor)
	shutdown.Register(syncWorker)
	shutdown.Register(shutdownFunc(func(timeout time.Duration) error {
		scheduler.Stop()
		return nil
	}))
	shutdown.WaitForShutdown()
}

type shutdownFunc func(timeout time.Duration) error

func (f shutdownFunc) Shutdown(timeout time.Duration) error { return f(timeout) }
