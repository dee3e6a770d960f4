package ledger

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkarlsen/polyarb/internal/domain"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func openPosition(id string, outcome domain.Outcome, price, size float64) domain.Position {
	return domain.Position{
		ID:         id,
		Venue:      domain.VenuePolymarket,
		MarketID:   "m1",
		Outcome:    outcome,
		Direction:  domain.DirectionBuyYes,
		EntryPrice: price,
		Size:       size,
		Status:     domain.PositionOpen,
		OpenedAt:   now.Add(-48 * time.Hour),
	}
}

func TestResolveWinningSide(t *testing.T) {
	l := New(slog.Default())
	open := []domain.Position{openPosition("p1", domain.OutcomeYes, 0.50, 10)}
	resolutions := []domain.Resolution{
		{Venue: domain.VenuePolymarket, MarketID: "m1", Winner: domain.OutcomeYes},
	}

	closes := l.Resolve(open, resolutions, nil, now)
	require.Len(t, closes, 1)
	assert.Equal(t, "p1", closes[0].PositionID)
	assert.Equal(t, domain.PositionClosed, closes[0].Status)
	// $10 at 0.50 buys 20 contracts paying $1 each.
	assert.InDelta(t, 10.0, closes[0].PnL, 1e-9)
}

func TestResolveLosingSide(t *testing.T) {
	l := New(slog.Default())
	open := []domain.Position{openPosition("p1", domain.OutcomeNo, 0.45, 9)}
	resolutions := []domain.Resolution{
		{Venue: domain.VenuePolymarket, MarketID: "m1", Winner: domain.OutcomeYes},
	}

	closes := l.Resolve(open, resolutions, nil, now)
	require.Len(t, closes, 1)
	assert.InDelta(t, -9.0, closes[0].PnL, 1e-9)
}

// A BUY_BOTH pair bought below parity nets a profit whichever way the
// market resolves.
func TestResolvePairedLegsNetProfit(t *testing.T) {
	l := New(slog.Default())
	open := []domain.Position{
		openPosition("yes", domain.OutcomeYes, 0.40, 4.0),
		openPosition("no", domain.OutcomeNo, 0.55, 5.5),
	}
	resolutions := []domain.Resolution{
		{Venue: domain.VenuePolymarket, MarketID: "m1", Winner: domain.OutcomeYes},
	}

	closes := l.Resolve(open, resolutions, nil, now)
	require.Len(t, closes, 2)
	total := closes[0].PnL + closes[1].PnL
	// 10 contracts each side for $9.50 total, winner pays $10.
	assert.InDelta(t, 0.50, total, 1e-9)
}

func TestResolveUnresolvedMarketUntouched(t *testing.T) {
	l := New(slog.Default())
	open := []domain.Position{openPosition("p1", domain.OutcomeYes, 0.50, 10)}
	markets := []domain.Market{{
		Venue: domain.VenuePolymarket, ID: "m1",
		ResolvesAt: now.Add(24 * time.Hour),
	}}

	assert.Empty(t, l.Resolve(open, nil, markets, now))
}

func TestResolveExpiresLongPastMarkets(t *testing.T) {
	l := New(slog.Default())
	open := []domain.Position{openPosition("p1", domain.OutcomeYes, 0.50, 10)}
	markets := []domain.Market{{
		Venue: domain.VenuePolymarket, ID: "m1",
		ResolvesAt: now.Add(-48 * time.Hour),
	}}

	closes := l.Resolve(open, nil, markets, now)
	require.Len(t, closes, 1)
	assert.Equal(t, domain.PositionExpired, closes[0].Status)
	assert.InDelta(t, -10.0, closes[0].PnL, 1e-9)
}

func TestApplyClosesReturnsCapital(t *testing.T) {
	l := New(slog.Default())
	state := domain.CapitalState{
		Capital:         100,
		Available:       90, // $10 committed to p1
		DayStartCapital: 100,
	}
	open := []domain.Position{openPosition("p1", domain.OutcomeYes, 0.50, 10)}
	closes := []domain.PositionClose{{
		PositionID: "p1",
		Status:     domain.PositionClosed,
		PnL:        10,
		ClosedAt:   now,
	}}

	next := l.ApplyCloses(state, open, closes)
	assert.InDelta(t, 110.0, next.Capital, 1e-9)
	assert.InDelta(t, 110.0, next.Available, 1e-9)
	assert.InDelta(t, 10.0, next.DailyRealizedPnL, 1e-9)
}

func TestApplyClosesLossFeedsHaltCheck(t *testing.T) {
	l := New(slog.Default())
	state := domain.CapitalState{
		Capital:         100,
		Available:       90,
		DayStartCapital: 100,
	}
	open := []domain.Position{openPosition("p1", domain.OutcomeYes, 0.50, 10)}
	closes := []domain.PositionClose{{
		PositionID: "p1",
		Status:     domain.PositionClosed,
		PnL:        -10,
		ClosedAt:   now,
	}}

	next := l.ApplyCloses(state, open, closes)
	assert.InDelta(t, 90.0, next.Capital, 1e-9)
	assert.InDelta(t, 90.0, next.Available, 1e-9)
	assert.True(t, next.DailyLossBreached(0.10))
}

func TestApplyTradesCommitsOnlyFills(t *testing.T) {
	l := New(slog.Default())
	state := domain.CapitalState{Capital: 100, Available: 100}

	trades := []domain.Trade{
		{Direction: domain.DirectionBuyYes, Size: 8, Status: domain.TradeFilled},
		{Direction: domain.DirectionBuyYes, Size: 5, Status: domain.TradeSimulated},
		{Direction: domain.DirectionBuyYes, Size: 7, Status: domain.TradeFailed},
		{Direction: domain.DirectionBuyYes, Size: 3, Status: domain.TradeRejected},
		{Direction: domain.DirectionSell, Size: 8, Status: domain.TradeFilled},
	}
	next := l.ApplyTrades(state, trades)
	assert.InDelta(t, 87.0, next.Available, 1e-9)
	assert.InDelta(t, 100.0, next.Capital, 1e-9)
}
