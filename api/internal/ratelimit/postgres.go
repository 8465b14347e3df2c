package ratelimit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"go.uber.org/zap"
)

const counterSchema = `
create table if not exists rate_limit_counters (
	key        text primary key,
	count      bigint not null,
	expires_at timestamptz not null
)`

// A row whose window is over restarts at 1, so a late sweep never over-counts.
const incrQuery = `
insert into rate_limit_counters(key, count, expires_at)
values ($1, 1, now() + $2 * interval '1 millisecond')
on conflict (key) do update set
	count = case when rate_limit_counters.expires_at <= now() then 1 else rate_limit_counters.count + 1 end,
	expires_at = case when rate_limit_counters.expires_at <= now() then excluded.expires_at else rate_limit_counters.expires_at end
returning count`

type PostgresStore struct {
	DB      *sql.DB
	timeout time.Duration
}

// OpenPostgres connects, checks the server and creates the counter table.
func OpenPostgres(ctx context.Context, dsn string, timeout time.Duration) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	s := &PostgresStore{DB: db, timeout: timeout}
	if err := s.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	cctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if _, err := db.ExecContext(cctx, counterSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create rate_limit_counters: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) Name() string { return "postgres" }

func (s *PostgresStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *PostgresStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var n int64
	if err := s.DB.QueryRowContext(ctx, incrQuery, key, ttl.Milliseconds()).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres incr %s: %w", key, err)
	}
	return n, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.DB.PingContext(ctx)
}

// Sweep deletes counters whose window is over.
func (s *PostgresStore) Sweep(ctx context.Context) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	res, err := s.DB.ExecContext(ctx, `delete from rate_limit_counters where expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *PostgresStore) RunSweeper(ctx context.Context, interval time.Duration, log *zap.SugaredLogger) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				log.Warnw("sweep rate limit counters", "err", err)
				continue
			}
			if n > 0 {
				log.Debugw("swept rate limit counters", "rows", n)
			}
		}
	}
}

func (s *PostgresStore) Close() error { return s.DB.Close() }
