package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"ledgerly/internal/advisor"
	"ledgerly/internal/backend"
	"ledgerly/internal/cli"
	"ledgerly/internal/core"
	"ledgerly/internal/gateway"
	"ledgerly/internal/log"
	"ledgerly/internal/storage"
	"ledgerly/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	bootLogger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(bootLogger)
	logger := cli.SetupLogger(cfg.LogLevel).WithComponent(log.ComponentWorker)

	logger.Info("Starting ledgerly-worker")

	if cfg.DataBackend == string(backend.MemoryBackend) {
		logger.Warn("Memory backend is private to this process; advice will not reach the server")
	}

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	backendCfg.RequireFeed = true

	res, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend)).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err)
		os.Exit(1)
	}
	defer func() {
		if err := res.Close(); err != nil {
			logger.Error("Failed to close backend", log.FieldError, err)
		}
	}()

	store := storage.NewLedgerStore(res.Slots, core.SchemaV1, logger.WithComponent(log.ComponentStorage))

	gw := gateway.New(cli.NewGenerator(ctx, cfg, logger.WithComponent(log.ComponentGateway)),
		gateway.WithTimeout(cfg.AITimeout),
		gateway.WithLogger(logger.WithComponent(log.ComponentGateway)))
	adv := advisor.New(gw, store, advisor.Config{
		CacheSize: cfg.AdviceCacheSize,
		CacheTTL:  cfg.AdviceCacheTTL,
	}, logger.WithComponent(log.ComponentAdvisor))
	defer adv.Close()

	w := worker.NewAdviceWorker(store, adv, logger)

	// Changes made while the worker was down have no event to replay.
	if err := w.Reconcile(ctx); err != nil {
		logger.Error("Startup reconcile failed", log.FieldError, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return res.Feed.ConsumeLedgerChanges(gctx, w.HandleLedgerChange)
	})
	g.Go(func() error {
		w.RunReconciler(gctx, cfg.ReconcileInterval)
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
