package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"ledgerly/internal/advisor"
	"ledgerly/internal/backend"
	"ledgerly/internal/cache"
	"ledgerly/internal/cli"
	"ledgerly/internal/core"
	"ledgerly/internal/gateway"
	apphttp "ledgerly/internal/http"
	"ledgerly/internal/ledger"
	"ledgerly/internal/log"
	"ledgerly/internal/services"
	"ledgerly/internal/storage"
)

func main() {
	cli.LoadEnvFile()

	bootLogger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(bootLogger)
	logger := cli.SetupLogger(cfg.LogLevel)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend)).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	store := storage.NewLedgerStore(res.Slots, core.SchemaV1, logger.WithComponent(log.ComponentStorage))
	repo := ledger.Open(ctx, store, ledger.WithLogger(logger.WithComponent(log.ComponentLedger)))

	gw := gateway.New(cli.NewGenerator(ctx, cfg, logger.WithComponent(log.ComponentGateway)),
		gateway.WithTimeout(cfg.AITimeout),
		gateway.WithLogger(logger.WithComponent(log.ComponentGateway)))

	adv := advisor.New(gw, store, advisor.Config{
		CacheSize: cfg.AdviceCacheSize,
		CacheTTL:  cfg.AdviceCacheTTL,
	}, logger.WithComponent(log.ComponentAdvisor))

	janitor := cache.NewJanitor(logger.WithComponent(log.ComponentCache))
	janitor.Register(adv.Cache())
	janitor.Start(time.Minute)
	defer janitor.Stop()

	// A nil *amqp.Client must not become a non-nil Publisher.
	var pub services.Publisher
	if res.Feed != nil {
		pub = res.Feed
	}
	svc := services.NewLedgerService(repo, pub, adv, gw, logger.WithComponent(log.ComponentLedger), adv, res)
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Error("Failed to release resources", log.FieldError, err)
		}
	}()

	srv := apphttp.NewServer(":"+cfg.Port, svc,
		apphttp.WithLogger(logger.WithComponent(log.ComponentHTTP)),
		apphttp.WithRateLimit(cfg.RateLimitPerMinute),
		apphttp.WithBlockSuspicious(cfg.BlockSuspicious),
		apphttp.WithReadiness(res.Ready))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting ledgerly server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"ai_enabled", cfg.AIEnabled(),
			"feed", res.Feed != nil,
			log.FieldCount, repo.Len())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
