package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/amanullahtanweer/cloudwhisper-flow/internal/app"
	"github.com/amanullahtanweer/cloudwhisper-flow/internal/apperr"
	"github.com/amanullahtanweer/cloudwhisper-flow/internal/config"
	"github.com/amanullahtanweer/cloudwhisper-flow/internal/events"
	"github.com/amanullahtanweer/cloudwhisper-flow/internal/pipeline"
	"github.com/amanullahtanweer/cloudwhisper-flow/internal/server"
	"github.com/amanullahtanweer/cloudwhisper-flow/internal/transcriber"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config", "config.yaml", "Configuration file path")
	flag.Parse()

	cfg, err := config.Load(configFile)
	if err != nil {
		slog.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := cfg.Logging.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to load model",
			slog.String("error", err.Error()),
			slog.String("hint", transcriber.ModelGuidance),
		)
		os.Exit(apperr.ExitCode(err))
	}
	defer components.Close()

	rdb := app.NewRedis(cfg.Redis)
	var sessions *server.SessionStore
	var publisher *events.Publisher
	if rdb != nil {
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis not reachable", slog.String("addr", cfg.Redis.Addr), slog.String("error", err.Error()))
		}
		sessions = server.NewSessionStore(rdb, cfg.Redis.SessionPrefix, logger)
		publisher = events.NewPublisher(rdb, cfg.Redis.EventsChannel, logger)
	}

	newPipeline := func() *pipeline.Orchestrator {
		return components.Pipeline(nil)
	}

	srv, err := server.New(server.Config{
		Addr:       cfg.Server.AudioSocketAddr,
		SampleRate: cfg.Server.SampleRate,
	}, newPipeline, sessions, logger)
	if err != nil {
		logger.Error("Failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if publisher != nil {
		srv.OnCall(publisher.Listener)
	}

	httpSrv := server.NewHTTPServer(server.HTTPConfig{Addr: cfg.Server.HTTPAddr}, newPipeline, components.Metrics.Registry(), logger)

	errCh := make(chan error, 2)
	go func() {
		errCh <- srv.Start()
	}()
	if cfg.Server.HTTPAddr != "" {
		go func() {
			if err := httpSrv.Start(); err != nil {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error("Server error", slog.String("error", err.Error()))
		}
	}

	logger.Info("Shutting down server...")
	if err := httpSrv.Stop(); err != nil {
		logger.Warn("HTTP shutdown failed", slog.String("error", err.Error()))
	}
	srv.Stop()
}
