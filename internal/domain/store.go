package domain

import (
	"context"
	"time"
)

// CycleCommit is the single logical update a cycle applies to the store. The
// store must apply it all-or-nothing: an interrupted commit leaves the store
// at the pre-cycle snapshot, never an intermediate state.
type CycleCommit struct {
	CycleID string
	Trades  []Trade
	Opened  []Position
	Closed  []PositionClose
	Capital CapitalState
}

// LedgerStore is the durable record of capital, positions, and trade history.
type LedgerStore interface {
	// Snapshot returns the capital state and open positions at cycle start.
	// A store that exists but cannot be read coherently returns
	// ErrStoreCorrupt; a brand-new empty store bootstraps a fresh state.
	Snapshot(ctx context.Context) (CapitalState, []Position, error)

	// CommitCycle atomically applies one cycle's mutations.
	CommitCycle(ctx context.Context, commit CycleCommit) error

	// RecentTrades returns the newest trades, most recent first.
	RecentTrades(ctx context.Context, limit int) ([]Trade, error)

	// CapitalHistory returns up to days of daily capital rows, oldest first.
	CapitalHistory(ctx context.Context, days int) ([]CapitalDay, error)
}

// CycleLocker fences concurrent cycles against the same logical state. A
// holder token is written at cycle start and cleared on commit; a lock left
// behind by a crashed cycle may be taken over once it is older than
// staleAfter. Acquire returns ErrLockHeld when another live cycle owns the
// lock, and the unlock function it returns is safe to call more than once.
type CycleLocker interface {
	Acquire(ctx context.Context, token string, staleAfter time.Duration) (func(), error)
}
