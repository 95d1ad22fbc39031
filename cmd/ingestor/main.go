// The ingestor consumes rating events from Kafka and appends them to the
// interaction log, where the next recommendation pass will pick them up.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/readscape/readscape/internal/interactions/ingest"
	"github.com/readscape/readscape/pkg/config"
	"github.com/readscape/readscape/pkg/health"
	"github.com/readscape/readscape/pkg/kafka"
	"github.com/readscape/readscape/pkg/logger"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting interaction ingestor",
		"topic", cfg.Kafka.Topics.RatingEvents,
		"log_path", cfg.Interactions.LogPath,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appender := ingest.NewAppender(cfg.Interactions.LogPath)
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.RatingEvents, ingest.HandleRating(appender))

	checker := health.NewChecker()
	checker.Register("interaction_log", func(ctx context.Context) health.ComponentHealth {
		dir := cfg.Interactions.LogPath
		if _, err := os.Stat(dir); err != nil && !os.IsNotExist(err) {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("ingestor health endpoint listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("health server error", "error", err)
		}
	}()

	if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
		slog.Error("consumer error", "error", err)
		os.Exit(1)
	}
	slog.Info("interaction ingestor stopped")
}
