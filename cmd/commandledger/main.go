package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/efreitasn/commandledger/internal/authz"
	"github.com/efreitasn/commandledger/internal/config"
	"github.com/efreitasn/commandledger/internal/domain"
	"github.com/efreitasn/commandledger/internal/escrow"
	"github.com/efreitasn/commandledger/internal/handler"
	"github.com/efreitasn/commandledger/internal/ledger"
	"github.com/efreitasn/commandledger/internal/service"
	"github.com/efreitasn/commandledger/internal/store"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	flag.Parse()

	if *healthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	var repo ledger.Repository
	switch cfg.Storage {
	case config.StorageSQLite:
		db, err := store.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return err
		}
		defer db.Close()
		repo = db
	default:
		repo = store.NewCommandStore()
	}

	receiptStore := store.NewReceiptStore()
	vault := escrow.NewVault(receiptStore, logger)
	validator := escrow.NewValidator(cfg.MarginPolicy)
	guard, err := authz.NewGuard(nil)
	if err != nil {
		return err
	}

	webhookSvc := service.NewWebhookService(store.NewWebhookStore(), cfg.WebhookTimeout, logger)
	l := ledger.New(repo, validator, vault, receiptStore, guard, webhookSvc, logger)

	if cfg.LedgerOwner != "" {
		err := l.Init(ctx, domain.AccountID(cfg.LedgerOwner))
		if err != nil && !errors.Is(err, domain.ErrAlreadyInitialized) {
			return fmt.Errorf("initialize ledger: %w", err)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler.NewRouter(l, webhookSvc, logger),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			slog.String("addr", addr),
			slog.String("storage", cfg.Storage),
			slog.String("margin_policy", cfg.MarginPolicy.Name()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err, ok := <-serveErr:
		if ok {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	// Deliveries still in flight get the rest of the shutdown window.
	if err := webhookSvc.Wait(shutdownCtx); err != nil {
		logger.Warn("webhook deliveries abandoned", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
	return nil
}
