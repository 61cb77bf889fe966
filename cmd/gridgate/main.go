// Package main is the entry point for the grid adapter server.
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
	"time"

	"github.com/lmittmann/tint"

	"gridgate/config"
	"gridgate/internal/adapter"
	"gridgate/internal/grid"
	"gridgate/internal/models"
	"gridgate/internal/ratelimit"
	"gridgate/internal/server"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	versionFlag := flag.Bool("version", false, "Print version information")
	flag.Parse()

	if *versionFlag {
		fmt.Println("gridgate " + version)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	setupLogging(cfg.Logging)

	slog.Info("starting gridgate",
		"version", version,
		"grid_url", cfg.Grid.BaseURL,
		"default_model", cfg.Adapter.DefaultModel,
	)

	// Shared outbound client; read-only configuration, reused by every request.
	gridClient := grid.NewClient(grid.Config{
		BaseURL:       cfg.Grid.BaseURL,
		TLSServerName: cfg.Grid.TLSServerName,
	})

	poller := grid.NewPoller(gridClient, grid.PollerConfig{
		Interval:            cfg.Grid.PollInterval,
		Timeout:             cfg.Grid.PollTimeout,
		MaxTransientRetries: cfg.Grid.PollMaxTransientRetries,
	})

	opts := adapter.Options{
		DefaultModel:               cfg.Adapter.DefaultModel,
		DefaultMaxTokensChat:       cfg.Adapter.DefaultMaxTokensChat,
		DefaultMaxTokensCompletion: cfg.Adapter.DefaultMaxTokensCompletion,
		SystemDirective:            cfg.Adapter.SystemDirective,
		AnswerMarker:               cfg.Adapter.AnswerMarker,
		AnswerExtractionEnabled:    cfg.Adapter.AnswerExtractionEnabled,
		StreamTokenDelay:           cfg.Adapter.StreamTokenDelay,
	}

	modelCache, err := buildModelCache(cfg)
	if err != nil {
		slog.Error("failed to initialize model cache", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = modelCache.Close()
	}()
	registry := models.NewRegistry(gridClient, modelCache, cfg.Models.CacheTTL)

	limiter, err := buildLimiter(cfg)
	if err != nil {
		slog.Error("failed to initialize rate limiter", "error", err)
		os.Exit(1)
	}
	if limiter != nil {
		defer func() {
			_ = limiter.Close()
		}()
		slog.Info("rate limiting enabled",
			"requests", cfg.RateLimit.Requests,
			"window", cfg.RateLimit.Window,
			"backend", limiterBackend(cfg),
		)
	} else {
		slog.Info("rate limiting disabled")
	}

	if cfg.Metrics.Enabled {
		slog.Info("prometheus metrics enabled", "endpoint", cfg.Metrics.Endpoint)
	} else {
		slog.Info("prometheus metrics disabled")
	}
	if cfg.Models.ValidateBeforeSubmit {
		slog.Info("pre-submit model validation enabled")
	}

	handler := server.NewHandler(server.HandlerConfig{
		Translator:     adapter.NewTranslator(opts),
		Emitter:        adapter.NewEmitter(opts),
		Generator:      poller,
		Models:         registry,
		Limiter:        limiter,
		ValidateModels: cfg.Models.ValidateBeforeSubmit,
	})

	srv := server.New(handler, &server.Config{
		MetricsEnabled:  cfg.Metrics.Enabled,
		MetricsEndpoint: cfg.Metrics.Endpoint,
		BodySizeLimit:   cfg.Server.BodySizeLimit,
	})

	// Handle graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		slog.Info("shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	addr := ":" + cfg.Server.Port
	slog.Info("starting server", "address", addr)

	if err := srv.Start(addr); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			slog.Info("server stopped gracefully")
		} else {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}
}

// setupLogging installs the default slog handler: tint for local
// development, JSON for everything else.
func setupLogging(cfg config.LoggingConfig) {
	level := parseLevel(cfg.Level)
	var handler slog.Handler
	if cfg.Format == "pretty" {
		handler = tint.NewHandler(os.Stdout, &tint.Options{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// buildModelCache selects the model cache backend: redis when configured,
// a local file when a path is set, in-memory otherwise.
func buildModelCache(cfg *config.Config) (models.Cache, error) {
	if cfg.RateLimit.RedisURL != "" {
		return models.NewRedisCache(cfg.RateLimit.RedisURL)
	}
	if cfg.Models.CacheFile != "" {
		return models.NewFileCache(cfg.Models.CacheFile), nil
	}
	return models.NewMemoryCache(), nil
}

// buildLimiter selects the rate limiter backend, or nil when disabled.
func buildLimiter(cfg *config.Config) (ratelimit.Limiter, error) {
	if !cfg.RateLimit.Enabled {
		return nil, nil
	}
	rlCfg := ratelimit.Config{
		Requests: cfg.RateLimit.Requests,
		Window:   cfg.RateLimit.Window,
	}
	if cfg.RateLimit.RedisURL != "" {
		return ratelimit.NewRedis(cfg.RateLimit.RedisURL, rlCfg)
	}
	return ratelimit.NewLocal(rlCfg), nil
}

func limiterBackend(cfg *config.Config) string {
	if cfg.RateLimit.RedisURL != "" {
		return "redis"
	}
	return "local"
}
