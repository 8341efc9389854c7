package scheduler

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Lease guards loop startup so that at most one scheduler instance runs the
// recurring jobs. The notification log only dedupes individual alerts; the
// digest and calendar sync have no such guard, so double-starting a scheduler
// would double-send them.
type Lease interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// SingleProcessLease is the default no-op lease for single-instance
// deployments.
type SingleProcessLease struct{}

func (SingleProcessLease) Acquire(context.Context) (bool, error) { return true, nil }
func (SingleProcessLease) Release(context.Context) error         { return nil }

const _leaseKey = 0x62616e646f // "bando"

// AdvisoryLockLease holds a postgres session advisory lock for the lifetime
// of the scheduler. The lock is session-scoped, so the lease pins one pool
// connection while held.
type AdvisoryLockLease struct {
	pool *pgxpool.Pool
	conn *pgxpool.Conn
}

func NewAdvisoryLockLease(pool *pgxpool.Pool) *AdvisoryLockLease {
	return &AdvisoryLockLease{pool: pool}
}

func (l *AdvisoryLockLease) Acquire(ctx context.Context) (bool, error) {
	const op = "scheduler.AdvisoryLockLease.Acquire"

	if l.conn != nil {
		return true, nil
	}

	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("%s: acquire conn: %w", op, err)
	}

	var got bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", int64(_leaseKey)).Scan(&got); err != nil {
		conn.Release()
		return false, fmt.Errorf("%s: try lock: %w", op, err)
	}
	if !got {
		conn.Release()
		return false, nil
	}

	l.conn = conn
	return true, nil
}

func (l *AdvisoryLockLease) Release(ctx context.Context) error {
	const op = "scheduler.AdvisoryLockLease.Release"

	if l.conn == nil {
		return nil
	}

	_, err := l.conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", int64(_leaseKey))
	l.conn.Release()
	l.conn = nil
	if err != nil {
		return fmt.Errorf("%s: unlock: %w", op, err)
	}
	return nil
}
