package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

const (
	defaultMaxImageBytes = 5 << 20
	defaultLanguages     = "eng,rus,rus+eng,eng+rus,deu,fra,spa,ita,ukr,ukr+eng"
)

type Config struct {
	Port   string
	AppEnv string
	// LogLevel is one of debug|info|warn|error.
	LogLevel string

	// Recognition
	OCREngine       string
	OCRTimeout      time.Duration
	OCRMaxParallel  int
	MaxImageBytes   int
	Languages       []string
	DefaultLanguage string

	GeminiAPIKey string
	GeminiModel  string
	YCOAuthToken string
	YCFolderID   string

	// Admission control
	RateLimitEnabled bool
	RateLimitDefault string
	RateLimitResults string
	RedisURL         string
	DatabaseURL      string
	StoreTimeout     time.Duration

	// Telegram front end
	TelegramBotToken string
	WebhookURL       string

	loadErrs []error
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

// envReader parses typed settings and keeps every malformed value for Validate.
type envReader struct {
	errs []error
}

func (e *envReader) invalid(k, v, want string) {
	e.errs = append(e.errs, fmt.Errorf("%s=%q is not %s", k, v, want))
}

func (e *envReader) Int(k string, def int) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.invalid(k, v, "an integer")
		return def
	}
	return n
}

func (e *envReader) Bool(k string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.invalid(k, v, "a boolean")
		return def
	}
	return b
}

// Duration accepts Go durations ("30s", "1m") and bare integers as seconds.
func (e *envReader) Duration(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.invalid(k, v, "a duration")
		return def
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func Load() *Config {
	var env envReader
	cfg := &Config{
		Port:     getEnv("PORT", "8000"),
		AppEnv:   getEnv("APP_ENV", "production"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		OCREngine:       strings.ToLower(getEnv("OCR_ENGINE", "tesseract")),
		OCRTimeout:      env.Duration("OCR_TIMEOUT", 30*time.Second),
		OCRMaxParallel:  env.Int("OCR_MAX_CONCURRENT", 2*runtime.NumCPU()),
		MaxImageBytes:   env.Int("MAX_IMAGE_BYTES", defaultMaxImageBytes),
		Languages:       splitList(getEnv("OCR_LANGUAGES", defaultLanguages)),
		DefaultLanguage: getEnv("OCR_DEFAULT_LANGUAGE", "rus+eng"),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		YCOAuthToken: getEnv("YC_OAUTH_TOKEN", ""),
		YCFolderID:   getEnv("YC_FOLDER_ID", ""),

		RateLimitEnabled: env.Bool("RATE_LIMIT_ENABLED", true),
		RateLimitDefault: getEnv("RATE_LIMIT_DEFAULT", "200/day,50/hour"),
		RateLimitResults: getEnv("RATE_LIMIT_RESULTS", "10/minute"),
		RedisURL:         getEnv("REDIS_URL", ""),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		StoreTimeout:     env.Duration("RATE_LIMIT_STORE_TIMEOUT", 500*time.Millisecond),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),
	}
	cfg.loadErrs = env.errs
	return cfg
}

// Validate reports malformed values seen by Load, then the first setting that
// cannot start the service.
func (c *Config) Validate() error {
	if err := errors.Join(c.loadErrs...); err != nil {
		return err
	}
	if c.OCRTimeout <= 0 {
		return errors.New("OCR_TIMEOUT must be positive")
	}
	if c.MaxImageBytes <= 0 {
		return errors.New("MAX_IMAGE_BYTES must be positive")
	}
	if c.OCRMaxParallel <= 0 {
		return errors.New("OCR_MAX_CONCURRENT must be positive")
	}
	if len(c.Languages) == 0 {
		return errors.New("OCR_LANGUAGES is empty")
	}
	switch c.OCREngine {
	case "tesseract":
	case "gemini":
		if c.GeminiAPIKey == "" {
			return errors.New("missing required env GEMINI_API_KEY for OCR_ENGINE=gemini")
		}
	case "yandex":
		if c.YCOAuthToken == "" || c.YCFolderID == "" {
			return errors.New("missing required env YC_OAUTH_TOKEN/YC_FOLDER_ID for OCR_ENGINE=yandex")
		}
	default:
		return fmt.Errorf("unknown OCR_ENGINE %q; use tesseract|gemini|yandex", c.OCREngine)
	}
	return nil
}

// MaxBodyBytes is the request body cap: the base64 size of the largest image, a
// quarter more for percent-encoded '+', '/' and '=', plus form overhead.
func (c *Config) MaxBodyBytes() int64 {
	b64 := int64((c.MaxImageBytes + 2) / 3 * 4)
	return b64 + b64/4 + 64<<10
}
