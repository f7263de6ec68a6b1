// Command notifyserver exposes a LocalNotificationLog backed by Postgres
// over HTTP, the standalone "application that only has a notification log"
// deployment shape every downstream follower's RemoteNotificationLog pulls
// from, wired the way audit-service/cmd/api/main.go wires its own HTTP
// surface: zap logger, optional OTel tracer, echo with otelecho + request
// logging + recover middleware, and signal-driven graceful shutdown.
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

	"github.com/arc-self/eventcore/notification"
	"github.com/arc-self/eventcore/recorder/postgres"
	"github.com/arc-self/eventcore/settings"
	"github.com/arc-self/eventcore/telemetry"
)

func main() {
	logger, _ := telemetry.NewLogger(false)
	defer logger.Sync()

	env := settings.New(nil)

	if endpoint := env.GetString("OTEL_EXPORTER_OTLP_ENDPOINT", ""); endpoint != "" {
		tp, err := telemetry.InitTracer(context.Background(), "notifyserver", endpoint)
		if err != nil {
			logger.Error("failed to init OTel tracer", zap.Error(err))
		} else {
			defer tp.Shutdown(context.Background())
			logger.Info("OTel tracer initialized", zap.String("endpoint", endpoint))
		}
	}

	dsn := env.GetString("PG_URL", "postgres://localhost:5432/eventcore?sslmode=disable")
	secrets, err := settings.ResolveSecrets(env)
	if err != nil {
		logger.Fatal("failed to load secrets from Vault", zap.Error(err))
	}
	if v := settings.SecretString(secrets, "PG_URL"); v != "" {
		dsn = v
		logger.Info("resolved PG_URL from Vault")
	}

	pool, err := postgres.Connect(context.Background(), dsn)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer pool.Close()
	logger.Info("connected to database (OTel-instrumented)")

	rec := postgres.New(pool)
	if env.GetBool("MIGRATE_ON_START") {
		if err := rec.Migrate(context.Background()); err != nil {
			logger.Fatal("migration failed", zap.Error(err))
		}
		logger.Info("schema migrated")
	}

	sectionSize := env.GetInt("NOTIFICATION_SECTION_SIZE", notification.DefaultSectionSize)
	log := notification.New(rec, sectionSize)

	e := echo.New()
	e.HideBanner = true
	e.Use(otelecho.Middleware("notifyserver"))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("HTTP request", zap.String("URI", v.URI), zap.Int("status", v.Status))
			return nil
		},
	}))
	e.Use(middleware.Recover())

	notification.RegisterRoutes(e, log, logger)

	addr := env.GetString("LISTEN_ADDR", ":8080")
	go func() {
		logger.Info("notifyserver listening", zap.String("addr", addr))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failure", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info("initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("echo shutdown error", zap.Error(err))
	}
	logger.Info("notifyserver shut down cleanly")
}
