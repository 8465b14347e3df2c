package ratelimit

import (
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrorWriter answers a request the limiter did not let through. err is either a
// *LimitError or a store failure.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Middleware counts every request to route before the wrapped handler runs.
func (l *Limiter) Middleware(route string, onError ErrorWriter) func(http.Handler) http.Handler {
	if onError == nil {
		onError = defaultErrorWriter
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := l.Check(r.Context(), ClientIdentity(r), route)
			if err != nil {
				onError(w, r, err)
				return
			}
			if d.Rule.Limit > 0 {
				SetHeaders(w.Header(), d, l.now())
			}
			if !d.Allowed {
				onError(w, r, d.Err())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SetHeaders writes X-RateLimit-* and, for a denial, Retry-After.
func SetHeaders(h http.Header, d Decision, now time.Time) {
	h.Set("X-RateLimit-Limit", strconv.FormatInt(d.Rule.Limit, 10))
	h.Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
	if !d.Allowed {
		secs := int64(math.Ceil(d.ResetAt.Sub(now).Seconds()))
		h.Set("Retry-After", strconv.FormatInt(max(secs, 1), 10))
	}
}

func defaultErrorWriter(w http.ResponseWriter, _ *http.Request, err error) {
	var le *LimitError
	if errors.As(err, &le) {
		http.Error(w, "Too Many Requests: Rate limit exceeded ("+le.Decision.Rule.String()+")", http.StatusTooManyRequests)
		return
	}
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

// ClientIdentity is the first X-Forwarded-For entry, else the peer host.
// Forwarded headers are trusted as sent.
func ClientIdentity(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr == "" {
		return "unknown"
	}
	return r.RemoteAddr
}
