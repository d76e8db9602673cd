package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"telegram-subscription-payments/internal/config"
	"telegram-subscription-payments/internal/domain/model"
	"telegram-subscription-payments/internal/domain/ports/adapter"
	"telegram-subscription-payments/internal/domain/ports/repository"
	"telegram-subscription-payments/internal/infra/activation"
	pg "telegram-subscription-payments/internal/infra/db/postgres"
	"telegram-subscription-payments/internal/infra/logging"
	"telegram-subscription-payments/internal/infra/metrics"
	"telegram-subscription-payments/internal/infra/payment"
	red "telegram-subscription-payments/internal/infra/redis"
	"telegram-subscription-payments/internal/infra/sched"
	"telegram-subscription-payments/internal/infra/store/memory"
	tele "telegram-subscription-payments/internal/infra/telegram"
	"telegram-subscription-payments/internal/infra/web"
	"telegram-subscription-payments/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop gateway, console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	metrics.MustRegister()

	// ---- Plan catalog (single source of truth) ----
	catalog, err := model.NewPlanCatalog(cfg.CatalogPlans())
	if err != nil {
		logger.Fatal().Err(err).Msg("plan catalog")
	}

	// ---- Order store ----
	var orders repository.OrderStore
	switch cfg.Store.Driver {
	case "redis":
		client, err := red.NewClient(ctx, &cfg.Store.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer client.Close()
		orders = red.NewOrderStore(client, cfg.Store.Redis.TTL)
	case "postgres":
		pool, err := pg.NewPgxPool(ctx, cfg.Store.Postgres.URL, 10)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres")
		}
		defer pool.Close()
		if err := pg.EnsureSchema(ctx, pool); err != nil {
			logger.Fatal().Err(err).Msg("postgres schema")
		}
		orders = pg.NewOrderRepo(pool)
	default:
		orders = memory.NewOrderStore()
	}
	logger.Info().Str("driver", cfg.Store.Driver).Msg("order store ready")

	// ---- Payment gateway ----
	var gateway adapter.PaymentGateway
	if cfg.Runtime.Dev && cfg.YooKassa.ShopID == "" {
		gateway = payment.NewNoopGateway()
	} else {
		gateway, err = payment.NewYooKassaGateway(cfg.YooKassa, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("yookassa gateway")
		}
	}
	logger.Info().Str("gateway", gateway.Name()).Bool("test_mode", cfg.YooKassa.TestMode).Msg("payment gateway ready")

	// ---- Subscription activator ----
	if cfg.Activation.URL == "" {
		logger.Fatal().Msg("activation.url is required")
	}
	var activator adapter.SubscriptionActivator = activation.NewHTTPActivator(cfg.Activation.URL, cfg.Activation.Timeout, logger)

	// ---- User notifier ----
	var notifier adapter.UserNotifier
	if cfg.Bot.Token != "" {
		notifier, err = tele.NewBotNotifier(cfg.Bot.Token, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("telegram")
		}
	} else {
		logger.Warn().Msg("bot.token not set; user notifications disabled")
		notifier = tele.NewNoopNotifier(logger)
	}

	// ---- Orchestrator + poller ----
	uc := usecase.NewPaymentUseCase(orders, catalog, gateway, activator, notifier, logger)
	poller := usecase.NewStatusPoller(gateway, uc, notifier, usecase.PollConfig{
		Interval:    cfg.Poll.Interval,
		Budget:      cfg.Poll.Budget,
		Checkpoints: cfg.Poll.Checkpoints,
	}, logger)
	uc.AttachPoller(poller)

	// ---- HTTP surface ----
	auth := web.NewAuthManager(cfg.Admin.SessionSecret, !cfg.Runtime.Dev, cfg.Admin.SessionTTL)
	srv := web.NewServer(uc, orders, catalog, cfg.YooKassa.WebhookSecret, cfg.Admin.APIKey, auth, logger)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.Routes(),
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	// ---- Stale order sweeper ----
	sweeper := sched.NewOrderSweeper(uc, orders, cfg.Sweep.Interval, cfg.Sweep.StaleAfter, logger)
	go sweeper.Start(ctx)

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}
