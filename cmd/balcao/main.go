package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/balcao-erp/balcao-erp/internal/app"
	"github.com/balcao-erp/balcao-erp/internal/backend"
	"github.com/balcao-erp/balcao-erp/internal/lookup"
	"github.com/balcao-erp/balcao-erp/internal/observability"
	"github.com/balcao-erp/balcao-erp/internal/platform/cache"
	salehttp "github.com/balcao-erp/balcao-erp/internal/sale/http"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	// Local development convenience; missing .env is fine.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient, err = cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warn("lookup cache disabled", slog.Any("error", err))
			redisClient = nil
		} else {
			defer func() {
				if err := redisClient.Close(); err != nil {
					logger.Warn("redis close", slog.Any("error", err))
				}
			}()
		}
	}

	gateway := backend.New(cfg.BackendBaseURL, cfg.BackendTimeout)
	searcher := lookup.NewSearcher(gateway, redisClient, cfg.LookupCacheTTL, logger)
	metrics := observability.NewMetrics()

	store := salehttp.NewStore(cfg.DraftTTL)
	go store.Janitor(ctx, cfg.DraftSweepInterval, logger)

	saleHandler := salehttp.NewHandler(logger, store, gateway, searcher, metrics, cfg.LookupMinChars, cfg.LookupDebounce)

	router := app.NewRouter(app.RouterParams{
		Logger:      logger,
		Config:      cfg,
		SaleHandler: saleHandler,
		Metrics:     metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server",
			slog.String("addr", cfg.AppAddr),
			slog.String("backend", cfg.BackendBaseURL))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
