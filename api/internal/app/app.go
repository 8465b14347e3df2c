// Package app builds the components shared by the HTTP server and the Telegram bot.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"paste-ocr/api/internal/config"
	"paste-ocr/api/internal/metrics"
	"paste-ocr/api/internal/ocr"
	"paste-ocr/api/internal/ocr/gemini"
	"paste-ocr/api/internal/ocr/tesseract"
	"paste-ocr/api/internal/ocr/yandex"
	"paste-ocr/api/internal/ratelimit"
)

const sweepInterval = 10 * time.Minute

// Engines returns every recognizer the configuration has credentials for.
func Engines(cfg *config.Config) *ocr.Engines {
	engs := &ocr.Engines{Tesseract: tesseract.New()}
	if cfg.GeminiAPIKey != "" {
		engs.Gemini = gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel)
	}
	if cfg.YCOAuthToken != "" && cfg.YCFolderID != "" {
		engs.Yandex = yandex.New(cfg.YCOAuthToken, cfg.YCFolderID)
	}
	return engs
}

// Executors wraps each configured recognizer in its own bounded executor.
func Executors(engs *ocr.Engines, cfg *config.Config, log *zap.SugaredLogger, m *metrics.Metrics) map[string]*ocr.Executor {
	out := make(map[string]*ocr.Executor)
	for _, rec := range []ocr.Recognizer{engs.Tesseract, engs.Gemini, engs.Yandex} {
		if rec == nil {
			continue
		}
		out[rec.Name()] = ocr.NewExecutor(rec, ocr.ExecutorOptions{
			Timeout:       cfg.OCRTimeout,
			MaxConcurrent: cfg.OCRMaxParallel,
			Logger:        log.With("engine", rec.Name()),
			Metrics:       m,
		})
	}
	return out
}

// Limiter opens the quota store and builds the limiter from the configured rules.
// The caller owns the returned store.
func Limiter(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger, m *metrics.Metrics) (*ratelimit.Limiter, ratelimit.Store, error) {
	lc := ratelimit.Config{Logger: log, Metrics: m, Prefix: "paste-ocr"}
	if cfg.RateLimitEnabled {
		def, err := ratelimit.ParseRules(cfg.RateLimitDefault)
		if err != nil {
			return nil, nil, fmt.Errorf("RATE_LIMIT_DEFAULT: %w", err)
		}
		results, err := ratelimit.ParseRules(cfg.RateLimitResults)
		if err != nil {
			return nil, nil, fmt.Errorf("RATE_LIMIT_RESULTS: %w", err)
		}
		lc.Default = def
		lc.Routes = map[string][]ratelimit.Rule{"results": results}
	} else {
		log.Warnw("rate limiting is disabled")
	}

	store := ratelimit.Open(ctx, ratelimit.Options{
		RedisURL:    cfg.RedisURL,
		DatabaseURL: cfg.DatabaseURL,
		Timeout:     cfg.StoreTimeout,
	}, log)
	if pg, ok := store.(*ratelimit.PostgresStore); ok {
		go pg.RunSweeper(ctx, sweepInterval, log)
	}
	return ratelimit.New(store, lc), store, nil
}
