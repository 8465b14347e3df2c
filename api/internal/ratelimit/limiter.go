// Package ratelimit implements fixed-window per-client quotas over a pluggable
// counter store.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"paste-ocr/api/internal/metrics"
)

// ErrLimitExceeded matches every *LimitError.
var ErrLimitExceeded = errors.New("rate limit exceeded")

// LimitError carries the denying decision.
type LimitError struct {
	Decision Decision
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded (%s)", e.Decision.Rule)
}

func (e *LimitError) Is(target error) bool { return target == ErrLimitExceeded }

type Decision struct {
	Allowed bool
	// Rule is the denying rule, or the rule closest to its limit when allowed.
	Rule      Rule
	Count     int64
	Remaining int64
	ResetAt   time.Time
}

// Err is nil for an allowed decision.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &LimitError{Decision: d}
}

type Config struct {
	// Default rules apply to every route.
	Default []Rule
	// Routes adds rules for individual routes; they are checked before the defaults.
	Routes map[string][]Rule
	// Prefix namespaces counter keys in shared stores.
	Prefix  string
	Logger  *zap.SugaredLogger
	Metrics *metrics.Metrics
}

type Limiter struct {
	store   Store
	cfg     Config
	log     *zap.SugaredLogger
	metrics *metrics.Metrics
	now     func() time.Time
}

func New(store Store, cfg Config) *Limiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "ratelimit"
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	l := &Limiter{store: store, cfg: cfg, log: log, metrics: cfg.Metrics, now: time.Now}
	if l.metrics != nil {
		l.metrics.StoreBackend.WithLabelValues(store.Name()).Set(1)
	}
	return l
}

// StoreName reports the backend chosen at startup.
func (l *Limiter) StoreName() string { return l.store.Name() }

// Rules returns the rules checked for route, route-specific first.
func (l *Limiter) Rules(route string) []Rule {
	rules := make([]Rule, 0, len(l.cfg.Routes[route])+len(l.cfg.Default))
	rules = append(rules, l.cfg.Routes[route]...)
	return append(rules, l.cfg.Default...)
}

// Check records one hit for identity on route against every rule in order. The first
// rule over its limit denies the request and later rules are not counted. A store
// error is returned as is; the caller decides how to answer.
func (l *Limiter) Check(ctx context.Context, identity, route string) (Decision, error) {
	rules := l.Rules(route)
	best := Decision{Allowed: true, Remaining: -1}
	now := l.now()
	for _, rule := range rules {
		start := now.Truncate(rule.Window)
		reset := start.Add(rule.Window)
		key := fmt.Sprintf("%s:%s:%s:%s:%d", l.cfg.Prefix, route, rule.key(), identity, start.Unix())

		n, err := l.store.Incr(ctx, key, reset.Sub(now))
		if err != nil {
			return Decision{}, fmt.Errorf("%s store: %w", l.store.Name(), err)
		}
		d := Decision{Allowed: n <= rule.Limit, Rule: rule, Count: n, Remaining: max(rule.Limit-n, 0), ResetAt: reset}
		if !d.Allowed {
			l.log.Infow("rate limit exceeded", "route", route, "identity", identity, "rule", rule.String(), "count", n)
			if l.metrics != nil {
				l.metrics.RateLimitRejected.WithLabelValues(route, rule.String()).Inc()
			}
			return d, nil
		}
		if best.Remaining < 0 || d.Remaining < best.Remaining {
			best = d
		}
	}
	if best.Remaining < 0 {
		best.Remaining = 0
	}
	return best, nil
}
