package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkarlsen/polyarb/internal/domain"
	"github.com/mkarlsen/polyarb/internal/store/memory"
)

func TestBuilderBuildEmptyStore(t *testing.T) {
	store := memory.NewLedgerStore(100)
	b := NewBuilder(store, "dry_run")

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	snap, err := b.Build(context.Background(), "c1", now)
	require.NoError(t, err)

	assert.Equal(t, "c1", snap.CycleID)
	assert.Equal(t, "dry_run", snap.Mode)
	assert.Equal(t, 100.0, snap.Capital.Total)
	assert.Equal(t, 100.0, snap.Capital.Available)
	assert.Zero(t, snap.Capital.Exposure)
	assert.Empty(t, snap.OpenPositions)
	assert.Empty(t, snap.RecentTrades)
}

func TestBuilderBuildReflectsCommittedCycle(t *testing.T) {
	ctx := context.Background()
	store := memory.NewLedgerStore(100)
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	state, _, err := store.Snapshot(ctx)
	require.NoError(t, err)
	state.Available = 92
	state.DailyRealizedPnL = -1.5

	trade := domain.Trade{
		ID: "t1", CycleID: "c1",
		Strategy: domain.StrategyWeather, Venue: domain.VenuePolymarket,
		MarketID: "m1", Outcome: domain.OutcomeYes,
		Direction: domain.DirectionBuyYes,
		Price:     0.40, Size: 8, Edge: 0.18,
		Status: domain.TradeSimulated, CreatedAt: now,
	}
	pos := domain.Position{
		ID: "p1", Venue: domain.VenuePolymarket, MarketID: "m1",
		Outcome: domain.OutcomeYes, Strategy: domain.StrategyWeather,
		EntryPrice: 0.40, Size: 8,
		Status: domain.PositionOpen, OpenedAt: now,
	}
	require.NoError(t, store.CommitCycle(ctx, domain.CycleCommit{
		CycleID: "c1",
		Trades:  []domain.Trade{trade},
		Opened:  []domain.Position{pos},
		Capital: state,
	}))

	snap, err := NewBuilder(store, "dry_run").Build(ctx, "c1", now)
	require.NoError(t, err)

	assert.Equal(t, 92.0, snap.Capital.Available)
	assert.Equal(t, 8.0, snap.Capital.Exposure)
	assert.Equal(t, -1.5, snap.Capital.DailyRealizedPnL)

	require.Len(t, snap.OpenPositions, 1)
	assert.Equal(t, "m1", snap.OpenPositions[0].MarketID)
	assert.Equal(t, 0.40, snap.OpenPositions[0].EntryPrice)

	require.Len(t, snap.RecentTrades, 1)
	assert.Equal(t, "BUY_YES", snap.RecentTrades[0].Direction)
	assert.Equal(t, "SIMULATED", snap.RecentTrades[0].Status)

	require.Len(t, snap.History, 1)
	assert.Equal(t, state.TradingDay, snap.History[0].Day)
	assert.Equal(t, 1, snap.History[0].TradeCount)
}

func TestBuilderBuildPropagatesStoreError(t *testing.T) {
	store := memory.NewLedgerStore(100)
	store.SnapshotErr = domain.ErrStoreCorrupt

	_, err := NewBuilder(store, "live").Build(context.Background(), "c1", time.Now())
	assert.ErrorIs(t, err, domain.ErrStoreCorrupt)
}
