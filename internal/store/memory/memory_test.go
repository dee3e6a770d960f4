package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkarlsen/polyarb/internal/domain"
)

func TestSnapshotBootstrapsFreshState(t *testing.T) {
	s := NewLedgerStore(100)
	state, open, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100.0, state.Capital)
	assert.Equal(t, 100.0, state.Available)
	assert.Empty(t, open)
}

func TestCommitRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewLedgerStore(100)
	now := time.Now()

	commit := domain.CycleCommit{
		CycleID: "c1",
		Trades: []domain.Trade{{
			ID: "t1", CycleID: "c1", Direction: domain.DirectionBuyYes,
			Size: 8, Status: domain.TradeFilled, CreatedAt: now,
		}},
		Opened: []domain.Position{{
			ID: "p1", MarketID: "m1", Status: domain.PositionOpen,
			Size: 8, OpenedAt: now,
		}},
		Capital: domain.CapitalState{
			Capital: 100, Available: 92, DayStartCapital: 100,
			TradingDay: "2026-03-10",
		},
	}
	require.NoError(t, s.CommitCycle(ctx, commit))

	state, open, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 92.0, state.Available)
	require.Len(t, open, 1)
	assert.Equal(t, "p1", open[0].ID)

	trades, err := s.RecentTrades(ctx, 10)
	require.NoError(t, err)
	require.Len(t, trades, 1)

	history, err := s.CapitalHistory(ctx, 30)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "2026-03-10", history[0].Day)
	assert.Equal(t, 1, history[0].TradeCount)
}

func TestCommitAppliesCloses(t *testing.T) {
	ctx := context.Background()
	s := NewLedgerStore(100)
	now := time.Now()

	require.NoError(t, s.CommitCycle(ctx, domain.CycleCommit{
		CycleID: "c1",
		Opened: []domain.Position{{
			ID: "p1", Status: domain.PositionOpen, Size: 10, OpenedAt: now,
		}},
		Capital: domain.CapitalState{Capital: 100, Available: 90, TradingDay: "2026-03-10"},
	}))
	require.NoError(t, s.CommitCycle(ctx, domain.CycleCommit{
		CycleID: "c2",
		Closed: []domain.PositionClose{{
			PositionID: "p1", Status: domain.PositionClosed, PnL: 10, ClosedAt: now,
		}},
		Capital: domain.CapitalState{Capital: 110, Available: 110, TradingDay: "2026-03-10"},
	}))

	state, open, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)
	assert.Equal(t, 110.0, state.Capital)
}

func TestInjectedErrors(t *testing.T) {
	ctx := context.Background()
	s := NewLedgerStore(100)
	s.SnapshotErr = domain.ErrStoreCorrupt
	_, _, err := s.Snapshot(ctx)
	assert.ErrorIs(t, err, domain.ErrStoreCorrupt)

	s.SnapshotErr = nil
	s.CommitErr = domain.ErrStoreCorrupt
	err = s.CommitCycle(ctx, domain.CycleCommit{CycleID: "c1"})
	assert.ErrorIs(t, err, domain.ErrStoreCorrupt)

	// A failed commit leaves the bootstrap snapshot untouched.
	state, _, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 100.0, state.Capital)
}

func TestCycleLockContention(t *testing.T) {
	ctx := context.Background()
	l := NewCycleLock()

	release, err := l.Acquire(ctx, "a", time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "b", time.Minute)
	assert.ErrorIs(t, err, domain.ErrLockHeld)

	release()
	release() // safe to call twice

	release2, err := l.Acquire(ctx, "b", time.Minute)
	require.NoError(t, err)
	release2()
}

func TestCycleLockStaleTakeover(t *testing.T) {
	ctx := context.Background()
	l := NewCycleLock()
	l.Hold("crashed", time.Hour)

	release, err := l.Acquire(ctx, "fresh", 30*time.Minute)
	require.NoError(t, err)
	release()
}
