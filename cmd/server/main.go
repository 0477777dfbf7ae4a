package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alextreichler/coursehub/internal/config"
	"github.com/alextreichler/coursehub/internal/handlers"
	"github.com/alextreichler/coursehub/internal/service"
	"github.com/alextreichler/coursehub/internal/store"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	handlerOpts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var logHandler slog.Handler = slog.NewTextHandler(os.Stdout, handlerOpts)
	if strings.EqualFold(cfg.LogFormat, "json") {
		logHandler = slog.NewJSONHandler(os.Stdout, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("Server exited gracefully.")
}

func run(ctx context.Context, cfg *config.Config) error {
	// 2. Init DB
	db, err := store.NewStore(cfg.DBPath, cfg.StoreTimeout)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return err
	}

	// 3. Rate limiter for purchases
	var limiter handlers.RateLimiter
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Warn("Redis unreachable, order rate limiting will fail open", "addr", cfg.RedisAddr, "error", err)
		}
		limiter = handlers.NewRedisRateLimiter(rdb, cfg.OrderRateLimit, cfg.OrderRateWindow)
	} else {
		limiter = handlers.NewMemoryRateLimiter(ctx, cfg.OrderRateLimit, cfg.OrderRateWindow)
	}

	// 4. Setup Handlers
	router := handlers.NewRouter(handlers.Services{
		Catalog: service.NewCatalogService(db),
		Orders:  service.NewOrderService(db),
		Summary: service.NewSummaryService(db),
		Store:   db,
	}, handlers.RouterOptions{
		AllowedOrigins: cfg.Origins(),
		OrderLimiter:   limiter,
	})

	// 5. Start Server with Graceful Shutdown
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Server starting", "port", cfg.Port, "db", cfg.DBPath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down server gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
