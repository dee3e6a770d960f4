package executor

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkarlsen/polyarb/internal/domain"
	"github.com/mkarlsen/polyarb/internal/risk"
)

// fakePlacer scripts per-call outcomes and records every intent it receives.
type fakePlacer struct {
	results []domain.OrderResult
	errs    []error
	calls   []domain.OrderIntent
}

func (f *fakePlacer) PlaceOrder(ctx context.Context, intent domain.OrderIntent) (domain.OrderResult, error) {
	i := len(f.calls)
	f.calls = append(f.calls, intent)
	var res domain.OrderResult
	if i < len(f.results) {
		res = f.results[i]
	}
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return res, err
}

func filled(orderID string) domain.OrderResult {
	return domain.OrderResult{OrderID: orderID, Filled: true}
}

func decision(direction domain.Direction, size float64) risk.Decision {
	return risk.Decision{
		Signal: domain.Signal{
			Strategy:  domain.StrategyWeather,
			Venue:     domain.VenuePolymarket,
			MarketID:  "m1",
			Direction: direction,
			Edge:      0.10,
			Price:     0.55,
			YesPrice:  0.55,
			NoPrice:   0.45,
		},
		Size: size,
	}
}

func pairDecision(size float64) risk.Decision {
	d := decision(domain.DirectionBuyBoth, size)
	d.Signal.Strategy = domain.StrategyCrossPlatform
	d.Signal.YesPrice = 0.40
	d.Signal.NoPrice = 0.55
	return d
}

func TestDryRunSimulatesFills(t *testing.T) {
	e := New(true, nil, slog.Default())
	res := e.Execute(context.Background(), "cycle-1", []risk.Decision{
		decision(domain.DirectionBuyYes, 8),
	}, time.Now())

	require.Len(t, res.Trades, 1)
	assert.Equal(t, domain.TradeSimulated, res.Trades[0].Status)
	assert.Equal(t, 0.55, res.Trades[0].Price)
	assert.True(t, res.Trades[0].Committed())
	require.Len(t, res.Opened, 1)
	assert.Equal(t, 8.0, res.Opened[0].Size)
}

func TestSkippedDecisionRecordedAsRejected(t *testing.T) {
	e := New(true, nil, slog.Default())
	d := decision(domain.DirectionBuyYes, 0)
	d.Skipped = true
	d.Reason = "below minimum trade size"

	res := e.Execute(context.Background(), "cycle-1", []risk.Decision{d}, time.Now())
	require.Len(t, res.Trades, 1)
	assert.Equal(t, domain.TradeRejected, res.Trades[0].Status)
	assert.Equal(t, "below minimum trade size", res.Trades[0].Reason)
	assert.False(t, res.Trades[0].Committed())
	assert.Empty(t, res.Opened)
}

func TestLiveFillOpensPosition(t *testing.T) {
	placer := &fakePlacer{results: []domain.OrderResult{filled("o-1")}}
	e := New(false, map[domain.Venue]domain.OrderPlacer{domain.VenuePolymarket: placer}, slog.Default())

	res := e.Execute(context.Background(), "cycle-1", []risk.Decision{
		decision(domain.DirectionBuyYes, 8),
	}, time.Now())

	require.Len(t, res.Trades, 1)
	assert.Equal(t, domain.TradeFilled, res.Trades[0].Status)
	assert.Equal(t, "o-1", res.Trades[0].OrderID)
	require.Len(t, res.Opened, 1)
	assert.Equal(t, domain.OutcomeYes, res.Opened[0].Outcome)
}

func TestFailureIsolatedToOneSignal(t *testing.T) {
	placer := &fakePlacer{
		results: []domain.OrderResult{{}, filled("o-2")},
		errs:    []error{errors.New("venue unavailable"), nil},
	}
	e := New(false, map[domain.Venue]domain.OrderPlacer{domain.VenuePolymarket: placer}, slog.Default())

	second := decision(domain.DirectionBuyNo, 5)
	second.Signal.MarketID = "m2"
	res := e.Execute(context.Background(), "cycle-1", []risk.Decision{
		decision(domain.DirectionBuyYes, 8),
		second,
	}, time.Now())

	require.Len(t, res.Trades, 2)
	assert.Equal(t, domain.TradeFailed, res.Trades[0].Status)
	assert.Equal(t, "venue unavailable", res.Trades[0].Reason)
	assert.Equal(t, domain.TradeFilled, res.Trades[1].Status)
	require.Len(t, res.Opened, 1)
	assert.Equal(t, "m2", res.Opened[0].MarketID)
}

func TestPairBothLegsFilled(t *testing.T) {
	placer := &fakePlacer{results: []domain.OrderResult{filled("o-1"), filled("o-2")}}
	e := New(false, map[domain.Venue]domain.OrderPlacer{domain.VenuePolymarket: placer}, slog.Default())

	res := e.Execute(context.Background(), "cycle-1", []risk.Decision{pairDecision(9.5)}, time.Now())

	require.Len(t, res.Trades, 2)
	assert.Equal(t, res.Trades[0].LegGroupID, res.Trades[1].LegGroupID)
	assert.NotEmpty(t, res.Trades[0].LegGroupID)
	require.Len(t, res.Opened, 2)

	// Dollars split so both legs hold the same contract count.
	yesContracts := res.Trades[0].Size / res.Trades[0].Price
	noContracts := res.Trades[1].Size / res.Trades[1].Price
	assert.InDelta(t, yesContracts, noContracts, 1e-9)
	assert.InDelta(t, 9.5, res.Trades[0].Size+res.Trades[1].Size, 1e-9)
}

// Second leg fails, unwind sell succeeds: the group backs out cleanly with
// no position and no committed capital.
func TestPairSecondLegFailsUnwindSucceeds(t *testing.T) {
	placer := &fakePlacer{
		results: []domain.OrderResult{
			filled("o-1"),
			{Message: "insufficient liquidity"},
			filled("o-unwind"),
		},
	}
	e := New(false, map[domain.Venue]domain.OrderPlacer{domain.VenuePolymarket: placer}, slog.Default())

	res := e.Execute(context.Background(), "cycle-1", []risk.Decision{pairDecision(9.5)}, time.Now())

	require.Len(t, res.Trades, 3)
	assert.Equal(t, domain.TradeFailedPartial, res.Trades[0].Status)
	assert.Equal(t, domain.TradeFailed, res.Trades[1].Status)
	assert.Equal(t, domain.DirectionSell, res.Trades[2].Direction)
	assert.Equal(t, domain.TradeFilled, res.Trades[2].Status)
	assert.Empty(t, res.Opened)
	for _, tr := range res.Trades[:2] {
		assert.False(t, tr.Committed())
	}

	require.Len(t, placer.calls, 3)
	assert.Equal(t, domain.OrderSideSell, placer.calls[2].Side)
}

// Unwind fails too: the filled leg stays on the books as a naked position.
func TestPairUnwindFailureKeepsLegOpen(t *testing.T) {
	placer := &fakePlacer{
		results: []domain.OrderResult{
			filled("o-1"),
			{Message: "insufficient liquidity"},
			{Message: "sell rejected"},
		},
	}
	e := New(false, map[domain.Venue]domain.OrderPlacer{domain.VenuePolymarket: placer}, slog.Default())

	res := e.Execute(context.Background(), "cycle-1", []risk.Decision{pairDecision(9.5)}, time.Now())

	require.Len(t, res.Trades, 3)
	assert.Equal(t, domain.TradeFilled, res.Trades[0].Status)
	assert.True(t, res.Trades[0].Committed())
	assert.Equal(t, domain.TradeFailedPartial, res.Trades[2].Status)
	require.Len(t, res.Opened, 1)
	assert.Equal(t, domain.OutcomeYes, res.Opened[0].Outcome)
	assert.Equal(t, res.Trades[0].LegGroupID, res.Opened[0].LegGroupID)
}

func TestMissingPlacerFailsTrade(t *testing.T) {
	e := New(false, map[domain.Venue]domain.OrderPlacer{}, slog.Default())
	res := e.Execute(context.Background(), "cycle-1", []risk.Decision{
		decision(domain.DirectionBuyYes, 8),
	}, time.Now())

	require.Len(t, res.Trades, 1)
	assert.Equal(t, domain.TradeFailed, res.Trades[0].Status)
	assert.Empty(t, res.Opened)
}
