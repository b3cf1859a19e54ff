package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/CHRISCARLON/infra-hex/internal/adapters/http"
	"github.com/CHRISCARLON/infra-hex/internal/app"
	"github.com/CHRISCARLON/infra-hex/internal/pkg/config"
	"github.com/CHRISCARLON/infra-hex/internal/pkg/logging"
	"github.com/CHRISCARLON/infra-hex/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("infrahex-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPEndpoint)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer func() { _ = shutdown(context.Background()) }()
		}
	}

	pipeline, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("build pipeline: %v", err)
	}
	defer pipeline.Close()

	deps := &http.Dependencies{
		Summaries:      pipeline.Summaries,
		RequestTimeout: time.Duration(cfg.Server.RequestTimeout) * time.Second,
	}
	if pipeline.Runs != nil {
		deps.Runs = pipeline.Runs
	}
	if pipeline.DB != nil {
		deps.DB = pipeline.DB
	}
	if pipeline.Cache != nil {
		deps.Cache = pipeline.Cache
	}
	if pipeline.Publisher != nil {
		deps.NATS = pipeline.Publisher.Conn()
	}

	srv := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024,
		AppName:      "infra-hex API",
	})
	srv.Use(recover.New())
	srv.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, If-None-Match",
		MaxAge:       3600,
	}))

	http.SetupRoutes(srv, deps, http.RouterConfig{RateLimit: cfg.Server.RateLimit})

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := srv.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
