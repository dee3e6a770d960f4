package postgres

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mkarlsen/polyarb/internal/domain"
)

// CycleLock fences concurrent cycles with a single-row table. The row holds
// the current holder's token and acquisition time; a row older than the
// staleness bound is presumed abandoned by a crashed cycle and may be taken
// over.
type CycleLock struct {
	pool *pgxpool.Pool
}

var _ domain.CycleLocker = (*CycleLock)(nil)

// NewCycleLock creates a CycleLock.
func NewCycleLock(pool *pgxpool.Pool) *CycleLock {
	return &CycleLock{pool: pool}
}

// Acquire claims the lock with the given token. It returns ErrLockHeld when
// another cycle holds a fresh lock. The returned release function deletes the
// row only while it still carries this token, so a later takeover is never
// clobbered; it is safe to call more than once.
func (l *CycleLock) Acquire(ctx context.Context, token string, staleAfter time.Duration) (func(), error) {
	tag, err := l.pool.Exec(ctx, `
		INSERT INTO cycle_lock (id, token, acquired_at)
		VALUES (1, $1, NOW())
		ON CONFLICT (id) DO UPDATE SET token = $1, acquired_at = NOW()
		WHERE cycle_lock.acquired_at < NOW() - $2 * interval '1 second'`,
		token, staleAfter.Seconds(),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: acquire cycle lock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrLockHeld
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, _ = l.pool.Exec(ctx,
				"DELETE FROM cycle_lock WHERE id = 1 AND token = $1", token)
		})
	}
	return release, nil
}
