package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"paste-ocr/api/internal/metrics"
)

type failingStore struct{}

func (failingStore) Name() string { return "failing" }
func (failingStore) Incr(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("connection refused")
}
func (failingStore) Ping(context.Context) error { return nil }
func (failingStore) Close() error               { return nil }

func newTestLimiter(store Store, m *metrics.Metrics) (*Limiter, *time.Time) {
	now := time.Date(2026, 1, 1, 12, 0, 30, 0, time.UTC)
	l := New(store, Config{
		Default: MustParseRules("200/day,50/hour"),
		Routes:  map[string][]Rule{"results": MustParseRules("10/minute")},
		Metrics: m,
	})
	l.now = func() time.Time { return now }
	return l, &now
}

func TestCheckDeniesOverMinuteLimit(t *testing.T) {
	l, now := newTestLimiter(NewMemoryStore(), nil)
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		d, err := l.Check(ctx, "1.2.3.4", "results")
		if err != nil || !d.Allowed {
			t.Fatalf("hit %d: %+v, %v", i, d, err)
		}
		if d.Remaining != int64(10-i) {
			t.Fatalf("hit %d: Remaining = %d", i, d.Remaining)
		}
	}
	d, err := l.Check(ctx, "1.2.3.4", "results")
	if err != nil || d.Allowed {
		t.Fatalf("hit 11: %+v, %v", d, err)
	}
	if d.Rule.String() != "10 per 1 minute" {
		t.Fatalf("denying rule = %s", d.Rule)
	}
	if want := time.Date(2026, 1, 1, 12, 1, 0, 0, time.UTC); !d.ResetAt.Equal(want) {
		t.Fatalf("ResetAt = %v, want %v", d.ResetAt, want)
	}
	if !errors.Is(d.Err(), ErrLimitExceeded) {
		t.Fatalf("Err() = %v", d.Err())
	}

	// Other clients and other routes are unaffected.
	if d, _ := l.Check(ctx, "5.6.7.8", "results"); !d.Allowed {
		t.Fatalf("other identity denied")
	}
	if d, _ := l.Check(ctx, "1.2.3.4", "index"); !d.Allowed {
		t.Fatalf("other route denied")
	}

	// Next window.
	*now = now.Add(time.Minute)
	if d, _ := l.Check(ctx, "1.2.3.4", "results"); !d.Allowed {
		t.Fatalf("denied in the next window")
	}
}

func TestCheckStopsAtFirstDenyingRule(t *testing.T) {
	store := NewMemoryStore()
	l, now := newTestLimiter(store, nil)
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		_, _ = l.Check(ctx, "ip", "results")
	}
	// Denied hits are counted against the minute rule only.
	count := func(rule string, window time.Duration) int64 {
		start := now.Truncate(window).Unix()
		return store.entries[fmt.Sprintf("ratelimit:results:%s:ip:%d", rule, start)].count
	}
	if got := count("10-60s", time.Minute); got != 12 {
		t.Fatalf("minute count = %d, want 12", got)
	}
	if got := count("50-3600s", time.Hour); got != 10 {
		t.Fatalf("hour count = %d, want 10", got)
	}
	if got := count("200-86400s", 24*time.Hour); got != 10 {
		t.Fatalf("day count = %d, want 10", got)
	}
}

func TestCheckStoreError(t *testing.T) {
	l, _ := newTestLimiter(failingStore{}, nil)
	if _, err := l.Check(context.Background(), "ip", "results"); err == nil || !strings.Contains(err.Error(), "failing store") {
		t.Fatalf("Check() error = %v", err)
	}
}

func TestCheckWithoutRules(t *testing.T) {
	l := New(NewMemoryStore(), Config{})
	d, err := l.Check(context.Background(), "ip", "results")
	if err != nil || !d.Allowed {
		t.Fatalf("Check() = %+v, %v", d, err)
	}
}

func TestTwoLimitersOnMemoryAreIndependent(t *testing.T) {
	a, _ := newTestLimiter(NewMemoryStore(), nil)
	b, _ := newTestLimiter(NewMemoryStore(), nil)
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		_, _ = a.Check(ctx, "ip", "results")
	}
	if d, _ := a.Check(ctx, "ip", "results"); d.Allowed {
		t.Fatalf("a should deny")
	}
	if d, _ := b.Check(ctx, "ip", "results"); !d.Allowed || d.Count != 1 {
		t.Fatalf("b = %+v, want a fresh counter", d)
	}
}

func TestRejectedMetric(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	l, _ := newTestLimiter(NewMemoryStore(), m)
	for i := 0; i < 11; i++ {
		_, _ = l.Check(context.Background(), "ip", "results")
	}
	if got := testutil.ToFloat64(m.RateLimitRejected.WithLabelValues("results", "10 per 1 minute")); got != 1 {
		t.Fatalf("rejected = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.StoreBackend.WithLabelValues("memory")); got != 1 {
		t.Fatalf("store gauge = %v", got)
	}
}

func TestMiddleware(t *testing.T) {
	l, _ := newTestLimiter(NewMemoryStore(), nil)
	var served int
	h := l.Middleware("results", nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		served++
	}))

	var rec *httptest.ResponseRecorder
	for i := 0; i < 11; i++ {
		req := httptest.NewRequest(http.MethodPost, "/results", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, req)
	}
	if served != 10 {
		t.Fatalf("served = %d, want 10", served)
	}
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Rate limit exceeded (10 per 1 minute)") {
		t.Fatalf("body = %q", rec.Body.String())
	}
	if rec.Header().Get("Retry-After") != "30" || rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("headers = %v", rec.Header())
	}
}

func TestMiddlewareStoreError(t *testing.T) {
	l, _ := newTestLimiter(failingStore{}, nil)
	var gotErr error
	h := l.Middleware("results", func(w http.ResponseWriter, r *http.Request, err error) {
		gotErr = err
		w.WriteHeader(http.StatusInternalServerError)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not run")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError || gotErr == nil || errors.Is(gotErr, ErrLimitExceeded) {
		t.Fatalf("code = %d, err = %v", rec.Code, gotErr)
	}
}

func TestClientIdentity(t *testing.T) {
	tests := []struct {
		remote, xff, want string
	}{
		{"10.0.0.1:1234", "", "10.0.0.1"},
		{"10.0.0.1:1234", "203.0.113.7, 10.0.0.2", "203.0.113.7"},
		{"[2001:db8::1]:80", "", "2001:db8::1"},
		{"pipe", "", "pipe"},
		{"", " , ", "unknown"},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = tt.remote
		if tt.xff != "" {
			r.Header.Set("X-Forwarded-For", tt.xff)
		}
		if got := ClientIdentity(r); got != tt.want {
			t.Fatalf("ClientIdentity(%q, %q) = %q, want %q", tt.remote, tt.xff, got, tt.want)
		}
	}
}
