package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/paperless-ai-titles/internal/async"
	"github.com/joseph-ayodele/paperless-ai-titles/internal/common"
	"github.com/joseph-ayodele/paperless-ai-titles/internal/export"
	"github.com/joseph-ayodele/paperless-ai-titles/internal/llm/openai"
	"github.com/joseph-ayodele/paperless-ai-titles/internal/paperless"
	"github.com/joseph-ayodele/paperless-ai-titles/internal/pipeline"
	repo "github.com/joseph-ayodele/paperless-ai-titles/internal/repository"
	svc "github.com/joseph-ayodele/paperless-ai-titles/internal/server"
	"github.com/joseph-ayodele/paperless-ai-titles/internal/settings"
)

func main() {
	common.LoadDotEnv()
	cfg := common.LoadConfig()

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Run ledger (optional)
	var (
		db       *repo.DB
		runs     repo.RunRepository
		recorder pipeline.RunRecorder
		runStore svc.RunStore
		exporter svc.Exporter
	)
	if cfg.Runs.DSN != "" {
		var err error
		db, err = repo.Open(ctx, repo.Config{
			DSN:             cfg.Runs.DSN,
			MaxConns:        cfg.Runs.MaxConns,
			MinConns:        cfg.Runs.MinConns,
			MaxConnLifetime: cfg.Runs.MaxConnLifetime,
			MaxConnIdleTime: cfg.Runs.MaxConnIdleTime,
			DialTimeout:     cfg.Runs.DialTimeout,
		}, logger)
		if err != nil {
			logger.Error("failed to open run ledger", "error", err)
			os.Exit(1)
		}

		if err := repo.HealthCheck(ctx, db, 5*time.Second, logger); err != nil {
			exit(logger, db, "failed to ping run ledger", err)
		}
		runs = repo.NewRunRepository(db, logger)
		if err := runs.Migrate(ctx); err != nil {
			exit(logger, db, "failed to migrate run ledger", err)
		}
		recorder, runStore, exporter = runs, runs, export.NewService(runs, logger)
	} else {
		logger.Info("run ledger disabled")
	}

	provider := settings.NewProvider(cfg.Settings.Path, logger)

	docs := paperless.NewClient(paperless.Config{
		BaseURL: cfg.Paperless.BaseURL,
		APIKey:  cfg.Paperless.APIKey,
		Timeout: cfg.Paperless.Timeout,
	}, logger)

	titles := openai.NewClient(openai.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Timeout: cfg.LLM.Timeout,
	}, provider, logger)

	processor := pipeline.NewProcessor(logger, pipeline.Config{
		ProcessedTagID: cfg.Paperless.ProcessedTagID,
	}, docs, titles, recorder)

	queue := async.NewProcessorQueue(processor, logger,
		async.WithProcessTimeout(cfg.Queue.JobTimeout),
		async.WithPanicHandler(processor.RecordPanic),
	)

	api, err := svc.NewAPI(queue, runStore, exporter, logger)
	if err != nil {
		exit(logger, db, "failed to build api", err)
	}
	server := svc.NewServer(svc.Options{
		Addr:         cfg.Server.HTTPAddr,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	}, api, logger)

	var grpcHealth *svc.GRPCHealth
	if cfg.Server.GRPCAddr != "" {
		grpcHealth = svc.NewGRPCHealth(cfg.Server.GRPCAddr, logger)
		if err := grpcHealth.Start(); err != nil {
			exit(logger, db, "failed to start grpc health", err)
		}
	}

	logger.Info("paperless-titles starting",
		"http_addr", cfg.Server.HTTPAddr,
		"grpc_addr", cfg.Server.GRPCAddr,
		"settings", provider.Path(),
		"processed_tag", cfg.Paperless.ProcessedTagID,
		"ledger", cfg.Runs.DSN != "",
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(gctx) })
	if cfg.Settings.Watch {
		g.Go(func() error {
			if err := provider.Watch(gctx, 250*time.Millisecond); err != nil {
				// the service keeps running on the last good settings
				logger.Warn("settings watch stopped", "error", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("service stopped with error", "error", err)
	}

	if grpcHealth != nil {
		grpcHealth.SetServing(false)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Queue.JobTimeout+10*time.Second)
	queue.Shutdown(shutdownCtx)
	cancel()
	if grpcHealth != nil {
		grpcHealth.Stop()
	}
	repo.Close(db, logger)
	logger.Info("paperless-titles stopped")
}

// exit closes the ledger before terminating the process.
func exit(logger *slog.Logger, db *repo.DB, msg string, err error) {
	logger.Error(msg, "error", err)
	repo.Close(db, logger)
	os.Exit(1)
}

func newLogger(cfg common.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
