package ratelimit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type Options struct {
	RedisURL    string
	DatabaseURL string
	// Timeout bounds connecting to and every call against the remote store.
	Timeout time.Duration
}

// Open picks the quota store once: Redis if reachable, then Postgres, then process
// memory. It never fails; an unreachable store is logged and skipped.
func Open(ctx context.Context, opts Options, log *zap.SugaredLogger) Store {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 500 * time.Millisecond
	}

	if opts.RedisURL != "" {
		if s, err := openRedis(ctx, opts); err != nil {
			log.Warnw("redis unavailable for rate limits", "err", err)
		} else {
			log.Infow("rate limit store selected", "backend", s.Name())
			return s
		}
	}
	if opts.DatabaseURL != "" {
		if s, err := OpenPostgres(ctx, opts.DatabaseURL, opts.Timeout); err != nil {
			log.Warnw("postgres unavailable for rate limits", "err", err)
		} else {
			log.Infow("rate limit store selected", "backend", s.Name())
			return s
		}
	}
	log.Warnw("rate limits are kept in process memory and are not shared between instances")
	return NewMemoryStore()
}

func openRedis(ctx context.Context, opts Options) (*RedisStore, error) {
	s, err := NewRedisStore(opts.RedisURL, opts.Timeout)
	if err != nil {
		return nil, err
	}
	pctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	if err := s.Ping(pctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}
