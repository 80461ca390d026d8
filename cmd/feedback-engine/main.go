// Command feedback-engine runs the hybrid feedback classification
// service: it wires configuration, storage, the LLM client, the race
// orchestrator, the ingestion pipeline, the background reconciliation
// scheduler, and the HTTP surface, then serves until an OS signal
// requests a graceful shutdown.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/Mahirobot/aegis-feedback-engine/internal/config"
	"github.com/Mahirobot/aegis-feedback-engine/internal/httpapi"
	"github.com/Mahirobot/aegis-feedback-engine/internal/ingestion"
	"github.com/Mahirobot/aegis-feedback-engine/internal/logging"
	"github.com/Mahirobot/aegis-feedback-engine/internal/metrics"
	"github.com/Mahirobot/aegis-feedback-engine/internal/notification"
	"github.com/Mahirobot/aegis-feedback-engine/internal/reconciliation"
	"github.com/Mahirobot/aegis-feedback-engine/internal/store"
	"github.com/Mahirobot/aegis-feedback-engine/pkg/llm"
	"github.com/Mahirobot/aegis-feedback-engine/pkg/orchestrator"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (defaults + env overrides apply regardless)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		os.Stderr.WriteString("feedback-engine: failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logging.New(cfg.Logging.Level, nil)

	st, err := store.Open(cfg.Store.URL, log)
	if err != nil {
		log.WithError(err).Fatal("failed to open store")
	}
	defer st.Close()

	llmClient, err := llm.NewClient(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to build llm client")
	}

	orch := orchestrator.New(llmClient, cfg.AIDeadline, cfg.LLM.ConcurrencyLimit, log)
	alerter := notification.NewWebhookAlerter(cfg.Alert.WebhookURL, log)
	pipeline := ingestion.New(st, orch, alerter, log)

	worker := reconciliation.NewWorker(st, llmClient, log)
	scheduler := reconciliation.NewScheduler(st, worker, cfg.Scheduler.Idle, cfg.Scheduler.Gap, cfg.Scheduler.Batch, log)

	reg := metrics.Init()
	server := httpapi.New(cfg.Server.Port, pipeline, st, worker, reg, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go scheduler.Run(ctx)

	if err := server.Start(ctx, log); err != nil {
		log.WithError(err).Fatal("http server exited with error")
	}
	log.Info("feedback-engine stopped")
}
