package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"paste-ocr/api/internal/app"
	"paste-ocr/api/internal/config"
	"paste-ocr/api/internal/handle"
	"paste-ocr/api/internal/httpserver"
	"paste-ocr/api/internal/logging"
	"paste-ocr/api/internal/metrics"
	"paste-ocr/api/internal/ocr"
	"paste-ocr/api/internal/payload"
	"paste-ocr/api/internal/telegram"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "ocr-bot:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.TelegramBotToken == "" {
		return errors.New("missing required env TELEGRAM_BOT_TOKEN")
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
	runners := make(map[string]handle.Runner)
	for name, ex := range app.Executors(app.Engines(cfg), cfg, log, m) {
		runners[name] = ex
	}

	lim, store, err := app.Limiter(ctx, cfg, log, m)
	if err != nil {
		return err
	}
	defer store.Close()

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	bot.Debug = false

	r := &telegram.Router{
		Bot:           bot,
		Validator:     payload.NewValidator(cfg.MaxImageBytes, langs),
		Engines:       runners,
		DefaultEngine: cfg.OCREngine,
		Limiter:       lim,
		Languages:     langs,
		MaxBytes:      cfg.MaxImageBytes,
		StoreName:     store.Name(),
		Log:           log,
	}

	mux := chi.NewRouter()
	mux.Use(httpserver.RequestLogger(log, m))
	mux.Use(middleware.Recoverer)
	mux.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\nrate limit store: " + store.Name()))
	})
	mux.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	addr := "0.0.0.0:" + cfg.Port
	log.Infow("ocr-bot starting",
		"bot", bot.Self.UserName,
		"engines", len(runners),
		"default_engine", cfg.OCREngine,
		"rate_limit_store", store.Name(),
	)

	if webhookURL := strings.TrimSpace(cfg.WebhookURL); webhookURL != "" {
		return startWebhookMode(ctx, addr, bot, mux, r, webhookURL, log)
	}
	return startPollingMode(ctx, addr, bot, mux, r, log)
}

// ---------------- Modes -----------------

func startWebhookMode(ctx context.Context, addr string, bot *tgbotapi.BotAPI, mux chi.Router, r *telegram.Router, baseURL string, log *zap.SugaredLogger) error {
	path := "/webhook/" + shortHash(bot.Token)
	public := strings.TrimRight(baseURL, "/") + path

	wh, err := tgbotapi.NewWebhook(public)
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	wh.DropPendingUpdates = true
	if _, err := bot.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}

	updates := make(chan tgbotapi.Update, 64)
	mux.Post(path, webhookHandler(bot, updates, log))

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case upd := <-updates:
				r.HandleUpdate(ctx, upd)
			}
		}
	}()

	log.Infow("webhook mode", "addr", addr, "path", path)
	return httpserver.Run(ctx, addr, mux, log)
}

func startPollingMode(ctx context.Context, addr string, bot *tgbotapi.BotAPI, mux chi.Router, r *telegram.Router, log *zap.SugaredLogger) error {
	if _, err := bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		log.Warnw("delete webhook failed", "err", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	errc := make(chan error, 1)
	go func() {
		errc <- httpserver.Run(ctx, addr, mux, log)
		cancel()
	}()

	log.Infow("polling mode", "addr", addr)
	runPolling(ctx, bot, func(upd tgbotapi.Update) { r.HandleUpdate(ctx, upd) }, log)
	return <-errc
}
