package main

import (
	"context"
	"log"
	"log/slog"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/CHRISCARLON/infra-hex/internal/app"
	"github.com/CHRISCARLON/infra-hex/internal/pkg/config"
	"github.com/CHRISCARLON/infra-hex/internal/pkg/logging"
	"github.com/CHRISCARLON/infra-hex/internal/pkg/telemetry"
	"github.com/CHRISCARLON/infra-hex/internal/workflows"
)

func main() {
	cfg, err := config.Load("infrahex-worker")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()
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

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    slog.Default(),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.AreaBatchWorkflow)
	w.RegisterActivity(&workflows.AreaActivities{Summaries: pipeline.Summaries})

	slog.Info("area batch worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
