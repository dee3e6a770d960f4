package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDailyLossBreached(t *testing.T) {
	state := CapitalState{
		Capital:          90,
		Available:        90,
		DayStartCapital:  100,
		DailyRealizedPnL: -10,
	}

	assert.True(t, state.DailyLossBreached(0.10))
	assert.False(t, state.DailyLossBreached(0.15))

	// Gains never trip the threshold.
	state.DailyRealizedPnL = 10
	assert.False(t, state.DailyLossBreached(0.10))
}

func TestRolloverResetsHaltAndCounter(t *testing.T) {
	state := CapitalState{
		Capital:          85,
		Available:        85,
		DayStartCapital:  100,
		DailyRealizedPnL: -15,
		TradingDay:       "2026-03-10",
		Halted:           true,
		HaltReason:       HaltDailyLoss,
	}

	next := state.RolloverTo(time.Date(2026, 3, 11, 0, 5, 0, 0, time.UTC))
	assert.Equal(t, "2026-03-11", next.TradingDay)
	assert.Equal(t, 85.0, next.DayStartCapital)
	assert.Zero(t, next.DailyRealizedPnL)
	assert.False(t, next.Halted)
	assert.Equal(t, HaltNone, next.HaltReason)
}

func TestRolloverSameDayIsNoop(t *testing.T) {
	state := CapitalState{
		TradingDay:       "2026-03-10",
		DailyRealizedPnL: -5,
		Halted:           true,
		HaltReason:       HaltDailyLoss,
	}
	same := state.RolloverTo(time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC))
	assert.Equal(t, state, same)
}

func TestQuotePairImpliedProbRenormalizes(t *testing.T) {
	pair := QuotePair{
		Yes: Quote{Price: 0.40},
		No:  Quote{Price: 0.40},
	}
	assert.InDelta(t, 0.5, pair.ImpliedProb(), 1e-9)

	pair.No.Price = 0.60
	assert.InDelta(t, 0.4, pair.ImpliedProb(), 1e-9)
}

func TestSignalScore(t *testing.T) {
	s := Signal{Edge: -0.15, Confidence: 0.8}
	assert.InDelta(t, 0.12, s.Score(), 1e-9)
}
