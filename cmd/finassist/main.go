package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"finassist/internal/amqp"
	"finassist/internal/cache"
	"finassist/internal/cli"
	"finassist/internal/core"
	apphttp "finassist/internal/http"
	applog "finassist/internal/log"
	"finassist/internal/services"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadConfig()
	if err != nil {
		cli.SetupLogger(applog.ComponentApp, "info").Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(applog.ComponentApp, cfg.LogLevel)

	tokens, err := cfg.Tokens()
	if err != nil {
		logger.Error("Invalid AUTH_TOKENS", "error", err)
		os.Exit(1)
	}
	if len(tokens) == 0 {
		logger.Warn("No AUTH_TOKENS configured, every /api request will be rejected")
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startCancel()

	store := cli.InitStore(startCtx, logger, cfg)

	cacheManager := cache.NewManager()
	var expenseOpts []services.ExpenseOption
	if cfg.SummaryCacheSize > 0 {
		summaries := cache.NewLRUCache[core.MonthlySummary](cfg.SummaryCacheSize, cfg.SummaryCacheTTL)
		cacheManager.Register("monthly_summary", summaries)
		expenseOpts = append(expenseOpts, services.WithSummaryCache(summaries))
	}
	cacheManager.StartCleanup(time.Minute)

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(startCtx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to connect to AMQP, expense events disabled", "error", err)
		} else {
			expenseOpts = append(expenseOpts, services.WithPublisher(amqpClient))
			logger.Info("Publishing expense events", "exchange", cfg.AMQPExchange)
		}
	}

	rec := services.NewReconciler(store.Store, store.Store)
	svc := apphttp.Services{
		Expenses:  services.NewExpenseService(store.Store, rec, core.NewCategorizer(core.DefaultCategoryRules()), expenseOpts...),
		Budgets:   services.NewBudgetService(store.Store, rec),
		Goals:     services.NewGoalService(store.Store),
		Analytics: services.NewAnalyticsService(store.Store, store.Store),
	}

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		Tokens:             tokens,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Ready:              store.Store.Ping,
		Logger:             logger.WithComponent(applog.ComponentHTTP),
	})

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cacheManager.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Error("Failed to close AMQP client", "error", err)
			}
		}
		cli.CloseStore(logger, store)
	})

	logger.Info("Starting finassist server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
