// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/Shivanand-hulikatti/event-reg-waitlist/internal/config"
	"github.com/Shivanand-hulikatti/event-reg-waitlist/internal/database"
	"github.com/Shivanand-hulikatti/event-reg-waitlist/internal/handler"
	"github.com/Shivanand-hulikatti/event-reg-waitlist/internal/logging"
	"github.com/Shivanand-hulikatti/event-reg-waitlist/internal/memstore"
	"github.com/Shivanand-hulikatti/event-reg-waitlist/internal/metrics"
	"github.com/Shivanand-hulikatti/event-reg-waitlist/internal/notify"
	"github.com/Shivanand-hulikatti/event-reg-waitlist/internal/repository"
	"github.com/Shivanand-hulikatti/event-reg-waitlist/internal/service"
	"github.com/Shivanand-hulikatti/event-reg-waitlist/internal/store"
)

func main() {
	// A local .env is optional; real environment variables win.
	dotenvErr := godotenv.Load()
	cfg := config.Load()
	logger := logging.New(os.Stdout, cfg.LogLevel)
	if dotenvErr != nil {
		logger.Debug("no .env file loaded, using process environment")
	}
	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()
	opts := []service.Option{service.WithLogger(logger)}

	// ── 1. Storage ───────────────────────────────────────────────────────
	var st store.Store
	switch cfg.Store {
	case config.StoreMemory:
		mem := memstore.New(cfg.LockTimeout)
		st = mem
		if cfg.VerifyUsers {
			opts = append(opts, service.WithUserDirectory(mem))
		}
		logger.Info("using in-memory store")
	case config.StorePostgres:
		pool, err := database.NewPool(ctx, cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		pg := repository.NewStore(pool, cfg.LockTimeout)
		st = pg
		if cfg.VerifyUsers {
			opts = append(opts, service.WithUserDirectory(pg))
		}
		logger.Info("connected to PostgreSQL", "host", cfg.Database.Host, "db", cfg.Database.DBName)
	default:
		return fmt.Errorf("unknown STORE %q", cfg.Store)
	}

	// ── 2. Notifications ─────────────────────────────────────────────────
	if cfg.RedisURL != "" {
		rdb := redis.NewClient(redisOptions(cfg.RedisURL, logger))
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		opts = append(opts, service.WithNotifier(notify.NewRedisPublisher(rdb, cfg.NotifyChannel)))
		logger.Info("publishing notifications to redis", "channel", cfg.NotifyChannel)
	} else {
		opts = append(opts, service.WithNotifier(notify.NewLogNotifier(logger)))
	}

	// ── 3. Metrics ───────────────────────────────────────────────────────
	registry := prometheus.NewRegistry()
	if cfg.EnableMetrics {
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		opts = append(opts, service.WithMetrics(metrics.New(registry)))
	}

	// ── 4. Wire up layers ────────────────────────────────────────────────
	eventSvc := service.NewEventService(st, opts...)
	eventHandler := handler.NewEventHandler(eventSvc)

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(handler.Logger(logger))  // structured access log
	r.Use(handler.CORS)

	r.Get("/health", handler.HealthCheck)
	if cfg.EnableMetrics {
		r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}
	eventHandler.Routes(r)

	// ── 5. Start server with graceful shutdown ───────────────────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// redisOptions accepts a redis:// URL or a bare host:port.
func redisOptions(rawURL string, logger *slog.Logger) *redis.Options {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		logger.Warn("REDIS_URL is not a redis:// URL, using it as host:port",
			"redis_url", rawURL, "error", err)
		return &redis.Options{Addr: rawURL}
	}
	return opts
}
