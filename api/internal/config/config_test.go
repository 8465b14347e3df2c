package config

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "OCR_ENGINE", "OCR_TIMEOUT", "MAX_IMAGE_BYTES", "OCR_LANGUAGES", "OCR_DEFAULT_LANGUAGE", "RATE_LIMIT_RESULTS"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	if cfg.Port != "8000" {
		t.Fatalf("Port = %q", cfg.Port)
	}
	if cfg.OCRTimeout != 30*time.Second {
		t.Fatalf("OCRTimeout = %v", cfg.OCRTimeout)
	}
	if cfg.MaxImageBytes != 5<<20 {
		t.Fatalf("MaxImageBytes = %d", cfg.MaxImageBytes)
	}
	if cfg.DefaultLanguage != "rus+eng" {
		t.Fatalf("DefaultLanguage = %q", cfg.DefaultLanguage)
	}
	if cfg.RateLimitResults != "10/minute" {
		t.Fatalf("RateLimitResults = %q", cfg.RateLimitResults)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("OCR_TIMEOUT", "5")
	t.Setenv("RATE_LIMIT_STORE_TIMEOUT", "250ms")
	t.Setenv("OCR_LANGUAGES", " eng , rus+eng ,,")
	t.Setenv("RATE_LIMIT_ENABLED", "false")

	cfg := Load()
	if cfg.OCRTimeout != 5*time.Second {
		t.Fatalf("OCRTimeout = %v", cfg.OCRTimeout)
	}
	if cfg.StoreTimeout != 250*time.Millisecond {
		t.Fatalf("StoreTimeout = %v", cfg.StoreTimeout)
	}
	if !reflect.DeepEqual(cfg.Languages, []string{"eng", "rus+eng"}) {
		t.Fatalf("Languages = %#v", cfg.Languages)
	}
	if cfg.RateLimitEnabled {
		t.Fatalf("expected rate limiting disabled")
	}
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("MAX_IMAGE_BYTES", "5MB")
	t.Setenv("RATE_LIMIT_ENABLED", "sometimes")
	t.Setenv("OCR_TIMEOUT", "soon")

	cfg := Load()
	if cfg.MaxImageBytes != 5<<20 {
		t.Fatalf("MaxImageBytes = %d, want the default kept", cfg.MaxImageBytes)
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("Validate() accepted malformed settings")
	}
	for _, k := range []string{"MAX_IMAGE_BYTES", "RATE_LIMIT_ENABLED", "OCR_TIMEOUT"} {
		if !strings.Contains(err.Error(), k) {
			t.Fatalf("Validate() error = %v, want it to name %s", err, k)
		}
	}
}

func TestValidateEngineCredentials(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"tesseract", func(c *Config) { c.OCREngine = "tesseract" }, false},
		{"gemini without key", func(c *Config) { c.OCREngine = "gemini"; c.GeminiAPIKey = "" }, true},
		{"gemini with key", func(c *Config) { c.OCREngine = "gemini"; c.GeminiAPIKey = "k" }, false},
		{"yandex without folder", func(c *Config) { c.OCREngine = "yandex"; c.YCOAuthToken = "t"; c.YCFolderID = "" }, true},
		{"unknown", func(c *Config) { c.OCREngine = "abbyy" }, true},
		{"zero timeout", func(c *Config) { c.OCRTimeout = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMaxBodyBytesCoversEncodedImage(t *testing.T) {
	cfg := &Config{MaxImageBytes: 5 << 20}
	encoded := int64((5<<20 + 2) / 3 * 4)
	got := cfg.MaxBodyBytes()
	if got <= encoded {
		t.Fatalf("MaxBodyBytes() = %d, want > %d", got, encoded)
	}
	// url-encoded forms are refused above 10 MiB by net/http.
	if got >= 10<<20 {
		t.Fatalf("MaxBodyBytes() = %d, want < 10 MiB", got)
	}
}
