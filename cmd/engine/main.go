package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"internwatch-engine/internal/adapter"
	"internwatch-engine/internal/adapter/bytedance"
	"internwatch-engine/internal/adapter/meituan"
	"internwatch-engine/internal/adapter/tencent"
	"internwatch-engine/internal/config"
	"internwatch-engine/internal/httpapi"
	"internwatch-engine/internal/logging"
	"internwatch-engine/internal/orchestrator"
	"internwatch-engine/internal/reconcile"
	"internwatch-engine/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	dataDir := os.Getenv("INTERNWATCH_DATA_DIR")
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}

	// One engine per data dir; a second instance would race the db.
	lock := flock.New(filepath.Join(dataDir, "engine.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire data dir lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another engine instance is already running in %s", dataDir)
	}
	defer func() { _ = lock.Unlock() }()

	defaultCfgPath := filepath.Join("config", "config.yml")
	userCfgPath, err := config.EnsureUserConfig(dataDir, defaultCfgPath)
	if err != nil {
		return fmt.Errorf("config bootstrap: %w", err)
	}
	cfg, err := config.Load(userCfgPath)
	if err != nil {
		return fmt.Errorf("config load (%s): %w", userCfgPath, err)
	}

	logger, err := logging.New(cfg.App.LogLevel, cfg.App.DevMode)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	dbPath := filepath.Join(dataDir, "internwatch.db")
	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	if err := st.Migrate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := st.SeedCompanies(ctx, cfg.Sources); err != nil {
		return fmt.Errorf("seed companies: %w", err)
	}

	registry := adapter.NewRegistry()
	registry.Register("bytedance", func() adapter.Adapter { return bytedance.New(logger) })
	registry.Register("tencent", func() adapter.Adapter { return tencent.New(logger) })
	registry.Register("meituan", func() adapter.Adapter { return meituan.New(logger) })

	engine := reconcile.New(st, cfg.ExpiryGrace(), logger)

	crawlCfg := adapter.Config{
		PageSize:   cfg.Crawl.PageSize,
		MaxPages:   cfg.Crawl.MaxPages,
		PageDelay:  time.Duration(cfg.Crawl.PageDelayMs) * time.Millisecond,
		InternOnly: cfg.Crawl.InternOnly,
	}.WithDefaults()

	orch := orchestrator.New(registry, engine, st, orchestrator.Options{
		Schedule:    cfg.Crawl.Schedule,
		SourceDelay: cfg.SourceDelay(),
		Crawl:       crawlCfg,
	}, logger)
	if err := orch.Start(); err != nil {
		return err
	}
	defer orch.Stop()

	mux := httpapi.NewMux(httpapi.Deps{
		Store:     st,
		Registry:  registry,
		Logger:    logger,
		RunSource: orch.RunSource,
	})
	handler := httpapi.Chain(mux,
		httpapi.RequestID,
		httpapi.Recover(logger),
		httpapi.AccessLog(logger),
		httpapi.Cors,
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", cfg.App.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("engine listening",
			zap.String("addr", srv.Addr),
			zap.String("db", dbPath),
			zap.String("config", userCfgPath))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
