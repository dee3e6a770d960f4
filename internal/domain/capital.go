package domain

import "time"

// HaltReason explains why new position-opening is suspended.
type HaltReason string

const (
	HaltNone      HaltReason = ""
	HaltDailyLoss HaltReason = "daily_loss_limit"
	HaltFailSafe  HaltReason = "store_failsafe"
)

// CapitalState is the engine's view of capital for the current trading day.
// It is owned by the ledger: the governor reads it, the executor's confirmed
// settlements and the day-rollover operation are the only mutations, and all
// mutations reach the store through a single cycle commit.
type CapitalState struct {
	Capital          float64 // total capital (cash + committed)
	Available        float64 // uncommitted capital
	DayStartCapital  float64 // capital at the start of TradingDay
	DailyRealizedPnL float64 // realized P&L accumulated during TradingDay
	TradingDay       string  // UTC calendar day, ISO date
	Halted           bool
	HaltReason       HaltReason
}

// Exposure returns the capital currently committed to open positions.
func (c CapitalState) Exposure() float64 {
	return c.Capital - c.Available
}

// DailyLossBreached reports whether the cumulative realized loss for the day
// has reached the given fraction of capital-at-day-start.
func (c CapitalState) DailyLossBreached(dailyLossFrac float64) bool {
	if dailyLossFrac <= 0 || c.DayStartCapital <= 0 {
		return false
	}
	return -c.DailyRealizedPnL >= dailyLossFrac*c.DayStartCapital
}

// RolloverTo advances the state to the given trading day when the day has
// changed: day-start capital snapshots to current capital, the daily
// realized-loss counter resets, and a daily-loss halt is lifted. A fail-safe
// halt is scoped to a single cycle and never persists, so it clears too.
func (c CapitalState) RolloverTo(now time.Time) CapitalState {
	day := now.UTC().Format(time.DateOnly)
	if c.TradingDay == day {
		return c
	}
	c.TradingDay = day
	c.DayStartCapital = c.Capital
	c.DailyRealizedPnL = 0
	c.Halted = false
	c.HaltReason = HaltNone
	return c
}

// RiskLimits is the process-wide, immutable risk configuration.
type RiskLimits struct {
	PerTradeFrac  float64 // max fraction of capital per trade
	MaxExposure   float64 // max fraction of capital committed at once
	DailyLossFrac float64 // daily realized-loss halt threshold
	KellyFraction float64 // multiplier on the unconstrained Kelly fraction
	MinEdge       float64 // signals below this edge are dropped
	MinTradeUSD   float64 // sizes below this are skipped, not errors
}

// CapitalDay is one row of the daily capital history.
type CapitalDay struct {
	Day          string
	StartCapital float64
	RealizedPnL  float64
	TradeCount   int
	Halted       bool
	HaltReason   HaltReason
}
