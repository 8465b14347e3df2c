package handle

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"paste-ocr/api/internal/ocr"
)

// Validator turns raw form values into a decoded image and an allow-listed language.
type Validator interface {
	Validate(data, language string) (ocr.Image, ocr.Language, error)
}

// Runner executes one bounded recognition.
type Runner interface {
	Execute(ctx context.Context, img ocr.Image, lang ocr.Language) ocr.Outcome
}

type Options struct {
	// MaxBodyBytes caps the request body read by Results.
	MaxBodyBytes int64
	// StoreName is reported by Healthz.
	StoreName string
	Logger    *zap.SugaredLogger
}

type Handle struct {
	validator Validator
	runner    Runner
	langs     *ocr.Languages
	maxBody   int64
	storeName string
	log       *zap.SugaredLogger
}

func New(v Validator, r Runner, langs *ocr.Languages, opts Options) *Handle {
	h := &Handle{
		validator: v,
		runner:    r,
		langs:     langs,
		maxBody:   opts.MaxBodyBytes,
		storeName: opts.StoreName,
		log:       opts.Logger,
	}
	if h.log == nil {
		h.log = zap.NewNop().Sugar()
	}
	if h.maxBody <= 0 {
		h.maxBody = 8 << 20
	}
	return h
}

func (h *Handle) Healthz(w http.ResponseWriter, r *http.Request) {
	body := "ok"
	if h.storeName != "" {
		body += "\nrate limit store: " + h.storeName
	}
	writeText(w, http.StatusOK, body)
}

func writeText(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(body))
}
