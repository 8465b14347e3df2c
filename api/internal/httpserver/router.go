package httpserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"paste-ocr/api/internal/handle"
	"paste-ocr/api/internal/logging"
	"paste-ocr/api/internal/metrics"
	"paste-ocr/api/internal/ratelimit"
)

const requestIDHeader = "X-Request-Id"

type Deps struct {
	Handle   *handle.Handle
	Limiter  *ratelimit.Limiter
	Gatherer prometheus.Gatherer
	Metrics  *metrics.Metrics
	Logger   *zap.SugaredLogger
}

// NewRouter wires the public routes. "/" and "/results" pass admission control
// before their handlers run.
func NewRouter(d Deps) http.Handler {
	log := d.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	r := chi.NewRouter()
	r.Use(RequestLogger(log, d.Metrics))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", d.Handle.Healthz)
	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	limited := func(route string, h http.HandlerFunc) http.Handler {
		if d.Limiter == nil {
			return h
		}
		return d.Limiter.Middleware(route, d.Handle.Fail)(h)
	}
	r.Method(http.MethodGet, "/", limited("index", d.Handle.Index))
	r.Method(http.MethodPost, "/results", limited("results", d.Handle.Results))
	return r
}

// RequestLogger tags each request with an id, stores a scoped logger in the request
// context and records the access log line and request counter.
func RequestLogger(log *zap.SugaredLogger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(requestIDHeader)
			if id == "" || len(id) > 64 {
				id = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, id)

			reqLog := log.With("request_id", id)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r.WithContext(logging.WithContext(r.Context(), reqLog)))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}
			if m != nil {
				m.Requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
			}
			reqLog.Infow("http request",
				"method", r.Method,
				"route", route,
				"status", status,
				"bytes", ww.BytesWritten(),
				"remote", r.RemoteAddr,
				"duration", time.Since(start),
			)
		})
	}
}
