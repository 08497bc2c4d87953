package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"refledger/internal/chain"
	"refledger/internal/config"
	"refledger/internal/database"
	"refledger/internal/handlers"
	"refledger/internal/repositories"
	"refledger/internal/schedulers"
	"refledger/internal/services"
)

func main() {
	logger := config.InitLogger()

	cfg, err := config.InitConfig()
	if err != nil {
		logger.Fatalf("Failed to init config: %v", err)
	}
	logger.Infoln("Config initialized")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore := openStore(cfg)
	defer closeStore()
	logger.Infoln("Storage initialized:", cfg.Storage)

	var guard services.ReplayGuard = services.NewMemoryReplayGuard(cfg.Ledger.SignatureReplayTTL)
	if cfg.RedisUrl != "" {
		redisCli, err := database.NewRedisClient(cfg.RedisUrl)
		if err != nil {
			logger.Fatalf("Failed to connect to redis: %v", err)
		}
		defer redisCli.Close()
		guard = services.NewRedisReplayGuard(redisCli, cfg.Ledger.SignatureReplayTTL)
	}

	submitter, err := chain.NewEthSubmitter(ctx, cfg.Chain)
	if err != nil {
		logger.Fatalf("Failed to init chain submitter: %v", err)
	}
	logger.Infoln("Payout wallet:", submitter.Payer())

	var notifier services.Notifier = services.NopNotifier{}
	if cfg.Telegram.Token != "" && cfg.Telegram.AdminChatId != 0 {
		tg, err := services.NewTelegramService(cfg.Telegram.Token, cfg.Telegram.AdminChatId)
		if err != nil {
			logger.Fatalf("Failed to init telegram: %v", err)
		}
		notifier = tg
	}

	referralService := services.NewReferralService(store, cfg.Ledger.LinkBaseUrl)
	ledgerService := services.NewLedgerService(store, cfg.Ledger.DedupeEvents)
	drawingService := services.NewDrawingService(store, submitter, notifier, services.DrawingConfig{
		MarginBps:         cfg.Chain.GasMarginBps,
		TransferTimeout:   cfg.Chain.TransferTimeout,
		StalePendingAfter: cfg.Ledger.StalePendingAfter,
		AutoCompensate:    cfg.Ledger.AutoCompensate,
	})
	intakeService := services.NewIntakeService(referralService, drawingService, guard)
	eventService := services.NewEventService(ledgerService, cfg.Chain.ActionSources)

	feed := chain.NewFeed(
		submitter.Client(),
		eventService,
		cfg.Chain.TokenAddress,
		cfg.Chain.MasterChefAddress,
		cfg.Chain.FeedStartBlock,
		cfg.Chain.FeedConfirmations,
	)
	go feed.Run(ctx, cfg.Chain.FeedInterval)

	scheduler, err := schedulers.Start(
		cfg.Ledger.ReconcileSpec,
		schedulers.ReconcilePendingWithdrawals(drawingService, time.Minute),
	)
	if err != nil {
		logger.Fatalf("Failed to start scheduler: %v", err)
	}

	limiter := handlers.NewRateLimiter(cfg.Http.RateLimit, cfg.Http.RateLimitBurst)
	limiter.StartCleanup(10*time.Minute, ctx.Done())

	handler := handlers.NewLedgerHandler(intakeService, referralService, ledgerService, drawingService, cfg.Http.AdminToken)
	server := &http.Server{
		Addr:              cfg.Http.Addr,
		Handler:           handlers.NewRouter(handler, limiter),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infoln("HTTP server listening on", cfg.Http.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infoln("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown http server: ", err)
	}
	<-scheduler.Stop().Done()
}

func openStore(cfg *config.AppConfig) (repositories.Store, func()) {
	logger := config.InitLogger()

	if cfg.Storage == "memory" {
		logger.Warn("Using in-memory storage, data is lost on restart")
		return repositories.NewMemoryStore(), func() {}
	}

	psql, err := database.Connect(context.Background(), config.LoadPostgresConfig())
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := psql.Migrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	return repositories.NewPostgresStore(psql.Db), func() {
		_ = psql.Close()
	}
}
