// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"telegram-digital-store/internal/config"
	"telegram-digital-store/internal/domain/ports/adapter"
	payAdapters "telegram-digital-store/internal/infra/adapters/payment"
	tele "telegram-digital-store/internal/infra/adapters/telegram"
	"telegram-digital-store/internal/infra/api"
	"telegram-digital-store/internal/infra/api/apiv1"
	pg "telegram-digital-store/internal/infra/db/postgres"
	"telegram-digital-store/internal/infra/i18n"
	"telegram-digital-store/internal/infra/logging"
	"telegram-digital-store/internal/infra/metrics"
	red "telegram-digital-store/internal/infra/redis"
	"telegram-digital-store/internal/infra/sched"
	"telegram-digital-store/internal/infra/worker"
	"telegram-digital-store/internal/usecase"
)

// set with -ldflags "-X main.version=... -X main.commit=..."
var (
	version = "dev"
	commit  = "none"
)

func main() {
	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, unsigned WebApp data allowed)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("application stopped")
	}
}

func run(cfg *config.Config, logger *zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	if cfg.Database.Migrate {
		if err := pg.MigrateUp(cfg.Database.URL); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info().Msg("database migrations applied")
	}
	pool, err := pg.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	go reportPoolStats(ctx, pool)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)
	locker := red.NewLocker(redisClient)

	// ---- Repositories ----
	txManager := pg.NewTxManager(pool)
	productRepo := pg.NewProductRepoCacheDecorator(pg.NewProductRepo(pool), redisClient, cfg.Redis.TTL, logger)
	userRepo := pg.NewUserRepo(pool)
	orderRepo := pg.NewOrderRepo(pool)
	paymentRepo := pg.NewPaymentRepo(pool)
	noteRepo := pg.NewNotificationRepo(pool)
	clickRepo := pg.NewClickRepo(pool)
	statsRepo := pg.NewStatsRepo(pool)

	// ---- Payment gateway ----
	gateway, err := payAdapters.NewGateway(cfg.Payment, logger)
	if err != nil {
		return fmt.Errorf("payment gateway: %w", err)
	}
	logger.Info().Str("provider", gateway.Name()).Msg("payment gateway ready")

	// ---- Admin alerts ----
	alertPool := worker.NewPool(cfg.Telegram.AlertWorkers, logger)
	alertPool.Start(ctx)
	defer alertPool.Stop()

	var notifier adapter.AdminNotifier
	if bot, err := tele.NewBotNotifier(cfg.Telegram, logger); err != nil {
		if !cfg.Runtime.Dev {
			return fmt.Errorf("telegram: %w", err)
		}
		logger.Warn().Err(err).Msg("telegram notifier disabled; alerts are only logged")
		notifier = tele.NewNoopNotifier(logger)
	} else {
		notifier = bot
	}
	notifier = tele.NewAsyncNotifier(notifier, alertPool, logger)

	// ---- Use cases ----
	userUC := usecase.NewUserUseCase(userRepo, logger)
	productUC := usecase.NewProductUseCase(productRepo, logger)
	orderUC := usecase.NewOrderUseCase(orderRepo, productRepo, userRepo, noteRepo, notifier, txManager,
		usecase.OrderConfig{Currency: cfg.Payment.Currency, DueOffset: cfg.Installments.DueOffset}, logger)
	paymentUC := usecase.NewPaymentUseCase(paymentRepo, orderRepo, productRepo, userRepo, noteRepo, gateway, notifier, txManager,
		usecase.PaymentConfig{
			Currency:         cfg.Payment.Currency,
			DefaultReturnURL: cfg.HTTP.PublicBaseURL + "/payments/return",
			PollTimeout:      cfg.Payment.Timeout,
		}, logger)
	overdueUC := usecase.NewOverdueUseCase(orderRepo, paymentRepo, productRepo, userRepo, noteRepo, notifier,
		usecase.OverdueConfig{Currency: cfg.Payment.Currency, PerOrderTimeout: cfg.Scheduler.PerOrderTimeout}, logger)
	notificationUC := usecase.NewNotificationUseCase(noteRepo, logger)
	analyticsUC := usecase.NewAnalyticsUseCase(clickRepo, statsRepo, orderRepo, productRepo, logger)

	// ---- HTTP ----
	auth := api.NewAuthManager(cfg.Admin, !cfg.Runtime.Dev)
	webApp := api.NewWebAppVerifier(cfg.Telegram.BotToken, cfg.Telegram.InitDataTTL, cfg.Telegram.SkipWebAppAuth, logger)
	srv := apiv1.NewServer(apiv1.Deps{
		Products:      productUC,
		Orders:        orderUC,
		Payments:      paymentUC,
		Users:         userUC,
		Notifications: notificationUC,
		Analytics:     analyticsUC,
		Auth:          auth,
		WebApp:        webApp,
		Limiter:       rateLimiter,
	}, logger)

	r := chi.NewRouter()
	r.Use(
		api.TraceID(logger),
		api.RequestLog(logger),
		api.Recover(logger),
		api.MaxBody(cfg.HTTP.MaxBodyBytes),
		api.Timeout(cfg.HTTP.RequestTimeout),
	)
	r.Handle("/metrics", promhttp.Handler())
	texts, err := i18n.NewBundle(i18n.LocalesFS)
	if err != nil {
		return fmt.Errorf("locales: %w", err)
	}
	api.NewReturnPage(paymentUC, cfg.Telegram.BotUsername, texts, logger).Register(r)
	apiv1.RegisterAPIV1(r, srv)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	// ---- Background workers ----
	sweeper := sched.NewOverdueSweepWorker(cfg.Scheduler.OverdueInterval, cfg.Scheduler.LockTTL, overdueUC, locker, logger)
	go func() { _ = sweeper.Run(ctx) }()
	reconciler := sched.NewPaymentReconciler(paymentUC, cfg.Scheduler.ReconcileInterval, cfg.Scheduler.ReconcileStaleAfter, logger)
	go func() { _ = reconciler.Run(ctx) }()

	// ---- Graceful shutdown ----
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown requested")
	case err := <-errc:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	return nil
}

func reportPoolStats(ctx context.Context, pool *pgxpool.Pool) {
	t := time.NewTicker(15 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s := pool.Stat()
			metrics.SetDBPoolStats(s.TotalConns(), s.IdleConns(), s.AcquiredConns())
		}
	}
}
