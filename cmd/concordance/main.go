// Package main is the entry point for the Concordance event-sourcing
// runtime — a NATS JetStream-backed bridge routing commands and events
// between domain participants (aggregates, process managers, projectors,
// notifiers) over a durable bus.
//
// Dependencies:
//   - NATS JetStream: CC_EVENTS/CC_COMMANDS streams, CC_STATE KV bucket
//   - (optional) Vault KV v2: bus connection credentials
//   - (optional) OTLP/gRPC collector: traces and metrics
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"

	"github.com/cosmonic-labs/concordance/internal/busclient"
	"github.com/cosmonic-labs/concordance/internal/config"
	"github.com/cosmonic-labs/concordance/internal/consumer"
	"github.com/cosmonic-labs/concordance/internal/runtime"
	"github.com/cosmonic-labs/concordance/internal/secretcfg"
	"github.com/cosmonic-labs/concordance/internal/state"
	"github.com/cosmonic-labs/concordance/internal/telemetry"
)

func main() {
	// ── Structured Logger ──────────────────────────────────────────────────
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// ── OpenTelemetry ──────────────────────────────────────────────────────
	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint != "" {
		providers, err := telemetry.InitProviders(context.Background(), "concordance", otelEndpoint)
		if err != nil {
			logger.Error("OTel init failed", zap.Error(err))
		} else {
			defer providers.Shutdown(context.Background())
			logger.Info("OTel initialized", zap.String("endpoint", otelEndpoint))
		}
	}

	// ── Bus Configuration ──────────────────────────────────────────────────
	busCfg, err := loadBaseConfiguration(logger)
	if err != nil {
		logger.Fatal("bus configuration invalid", zap.Error(err))
	}

	// ── NATS JetStream ─────────────────────────────────────────────────────
	client, err := busclient.NewClient(busclient.Options{
		URL:      busCfg.BusURL,
		UserJWT:  busCfg.UserJWT,
		UserSeed: busCfg.UserSeed,
		Domain:   busCfg.BusDomain,
	}, logger)
	if err != nil {
		logger.Fatal("bus connection failed", zap.Error(err))
	}
	defer client.Close()

	_, _, bucket, err := busclient.NewProvisioner(client).Ensure()
	if err != nil {
		logger.Fatal("bus provisioning failed", zap.Error(err))
	}
	logger.Info("bus streams and state bucket ready")

	store := state.New(bucket)
	publisher := busclient.NewPublisher(client)

	// ── Dispatcher ─────────────────────────────────────────────────────────
	registry := newStaticRegistry()
	manager := consumer.NewManager(logger)
	dispatcher := runtime.NewDispatcher(client.JS, store, publisher, registry, manager, logger)

	// A concrete host integration registers its compiled-in participants
	// here and feeds their bindings to dispatcher.AddBinding. This binary
	// ships the runtime with no participants registered; wiring a specific
	// domain's aggregates/process-managers/projectors/notifiers in is the
	// host-integration glue spec.md §1 excludes from the core.
	_ = dispatcher

	// ── HTTP Server ────────────────────────────────────────────────────────
	e := echo.New()
	e.HideBanner = true
	e.Use(otelecho.Middleware("concordance"))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("HTTP request", zap.String("URI", v.URI), zap.Int("status", v.Status))
			return nil
		},
	}))
	e.Use(middleware.Recover())

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]bool{"healthy": true})
	})

	go func() {
		logger.Info("concordance listening on :8080")
		if err := e.Start(":8080"); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failure", zap.Error(err))
		}
	}()

	// ── Graceful Shutdown ──────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info("initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("echo shutdown error", zap.Error(err))
	}
	logger.Info("concordance shut down cleanly")
}

// loadBaseConfiguration reads bus connection settings from the
// environment, optionally overridden by a Vault KV v2 secret when
// VAULT_ADDR is set.
func loadBaseConfiguration(logger *zap.Logger) (config.BaseConfiguration, error) {
	cfg := config.BaseConfiguration{
		BusURL:    getenvDefault("NATS_URL", defaultNatsURL),
		UserJWT:   os.Getenv("NATS_USER_JWT"),
		UserSeed:  os.Getenv("NATS_USER_SEED"),
		BusDomain: os.Getenv("NATS_JS_DOMAIN"),
	}

	if vaultAddr := os.Getenv("VAULT_ADDR"); vaultAddr != "" {
		vaultToken := getenvDefault("VAULT_TOKEN", "root")
		secretPath := getenvDefault("VAULT_SECRET_PATH", "secret/data/concordance")

		manager, err := secretcfg.NewSecretManager(vaultAddr, vaultToken)
		if err != nil {
			return config.BaseConfiguration{}, err
		}
		cfg, err = manager.LoadBusConfiguration(secretPath, cfg)
		if err != nil {
			return config.BaseConfiguration{}, err
		}
		logger.Info("bus configuration loaded from Vault", zap.String("path", secretPath))
	}

	if err := cfg.Validate(); err != nil {
		return config.BaseConfiguration{}, err
	}
	return cfg, nil
}

const defaultNatsURL = "nats://127.0.0.1:4222"

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
