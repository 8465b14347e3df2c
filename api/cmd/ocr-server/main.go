package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"paste-ocr/api/internal/app"
	"paste-ocr/api/internal/config"
	"paste-ocr/api/internal/handle"
	"paste-ocr/api/internal/httpserver"
	"paste-ocr/api/internal/logging"
	"paste-ocr/api/internal/metrics"
	"paste-ocr/api/internal/ocr"
	"paste-ocr/api/internal/payload"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "ocr-server:", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real env wins.
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}
	log, err := logging.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	langs, err := ocr.NewLanguages(cfg.Languages, cfg.DefaultLanguage)
	if err != nil {
		return fmt.Errorf("languages: %w", err)
	}

	engs := app.Engines(cfg)
	rec, err := engs.GetEngine(cfg.OCREngine)
	if err != nil {
		return err
	}
	exec := ocr.NewExecutor(rec, ocr.ExecutorOptions{
		Timeout:       cfg.OCRTimeout,
		MaxConcurrent: cfg.OCRMaxParallel,
		Logger:        log.With("engine", rec.Name()),
		Metrics:       m,
	})

	lim, store, err := app.Limiter(ctx, cfg, log, m)
	if err != nil {
		return err
	}
	defer store.Close()

	h := handle.New(payload.NewValidator(cfg.MaxImageBytes, langs), exec, langs, handle.Options{
		MaxBodyBytes: cfg.MaxBodyBytes(),
		StoreName:    store.Name(),
		Logger:       log,
	})
	router := httpserver.NewRouter(httpserver.Deps{
		Handle:   h,
		Limiter:  lim,
		Gatherer: reg,
		Metrics:  m,
		Logger:   log,
	})

	log.Infow("ocr-server starting",
		"engine", rec.Name(),
		"timeout", cfg.OCRTimeout,
		"languages", cfg.Languages,
		"rate_limit_store", store.Name(),
	)
	return httpserver.Run(ctx, ":"+cfg.Port, router, log)
}
