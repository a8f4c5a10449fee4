package database

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// QueryObserver receives the duration of every statement run through an
// ObservedPool. *metrics.AppMetrics satisfies it.
type QueryObserver interface {
	ObserveQuery(ctx context.Context, name string, start time.Time)
}

var _ Pool = (*ObservedPool)(nil)

// ObservedPool times the statements sent straight to the pool. Statements run
// inside a transaction go through pgx.Tx and are not observed.
type ObservedPool struct {
	pool     Pool
	observer QueryObserver
}

// NewObservedPool wraps pool. A nil observer returns pool unchanged.
func NewObservedPool(pool Pool, observer QueryObserver) Pool {
	if observer == nil {
		return pool
	}
	return &ObservedPool{pool: pool, observer: observer}
}

func (p *ObservedPool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	defer p.observer.ObserveQuery(ctx, QueryName(sql), time.Now())
	return p.pool.Exec(ctx, sql, args...)
}

func (p *ObservedPool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	defer p.observer.ObserveQuery(ctx, QueryName(sql), time.Now())
	return p.pool.Query(ctx, sql, args...)
}

// QueryRow defers execution until Scan, so only the round trip started here
// is timed.
func (p *ObservedPool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	defer p.observer.ObserveQuery(ctx, QueryName(sql), time.Now())
	return p.pool.QueryRow(ctx, sql, args...)
}

func (p *ObservedPool) BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error) {
	return p.pool.BeginTx(ctx, txOptions)
}

// QueryName labels a statement by verb and first table, e.g. "select.cities".
// The label set stays bounded by the schema.
func QueryName(sql string) string {
	fields := strings.Fields(strings.ToLower(sql))
	if len(fields) == 0 {
		return "unknown"
	}
	verb := fields[0]
	for i, f := range fields[:len(fields)-1] {
		switch f {
		case "from", "into", "update":
			return verb + "." + strings.Trim(fields[i+1], `"(),;`)
		}
	}
	return verb
}
