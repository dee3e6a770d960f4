// Package risk gates every candidate trade behind the capital limits. The
// governor is the only component allowed to turn a signal into a sized order
// intent, and it sizes nothing while the day is halted.
package risk

import (
	"log/slog"

	"github.com/mkarlsen/polyarb/internal/domain"
)

// Decision is the governor's verdict on one ranked signal.
type Decision struct {
	Signal  domain.Signal
	Size    float64 // dollars to commit; 0 means skipped
	Skipped bool
	Reason  string // set when Skipped
}

// Governor applies the risk limits to a cycle's ranked signals. A governor is
// built fresh each cycle from the ledger's capital state; approvals reduce its
// remaining headroom so later signals in the same cycle see the capital the
// earlier ones already claimed.
type Governor struct {
	limits    domain.RiskLimits
	state     domain.CapitalState
	committed float64 // approved but not yet settled this cycle
	logger    *slog.Logger
}

// NewGovernor creates a governor over the given capital state.
func NewGovernor(limits domain.RiskLimits, state domain.CapitalState, logger *slog.Logger) *Governor {
	return &Governor{
		limits: limits,
		state:  state,
		logger: logger.With(slog.String("component", "risk")),
	}
}

// Halted reports whether position-opening is suspended, checking the daily
// loss threshold against the current state. The check runs before any sizing:
// once the day's realized loss reaches the limit no signal in this or any
// later cycle of the day is sized.
func (g *Governor) Halted() (bool, domain.HaltReason) {
	if g.state.Halted {
		return true, g.state.HaltReason
	}
	if g.state.DailyLossBreached(g.limits.DailyLossFrac) {
		return true, domain.HaltDailyLoss
	}
	return false, domain.HaltNone
}

// State returns the capital state with any halt detected by Halted applied.
func (g *Governor) State() domain.CapitalState {
	if halted, reason := g.Halted(); halted {
		g.state.Halted = true
		g.state.HaltReason = reason
	}
	return g.state
}

// Approve sizes one signal. The returned decision is never negative-sized;
// signals that cannot be sized within the limits come back skipped with a
// reason, which is an expected outcome and not an error.
func (g *Governor) Approve(sig domain.Signal) Decision {
	if halted, reason := g.Halted(); halted {
		return g.skip(sig, "halted: "+string(reason))
	}

	size := g.rawSize(sig)
	if size <= 0 {
		return g.skip(sig, "kelly size not positive")
	}

	if cap := g.limits.PerTradeFrac * g.state.Capital; size > cap {
		size = cap
	}
	if headroom := g.headroom(); size > headroom {
		size = headroom
	}
	if size > g.state.Available-g.committed {
		size = g.state.Available - g.committed
	}
	if size < g.limits.MinTradeUSD {
		return g.skip(sig, "below minimum trade size")
	}

	g.committed += size
	g.logger.Debug("signal approved",
		slog.String("market_id", sig.MarketID),
		slog.String("direction", string(sig.Direction)),
		slog.Float64("size", size),
	)
	return Decision{Signal: sig, Size: size}
}

// rawSize computes the unclamped dollar size for a signal. Directional
// signals use fractional Kelly; BUY_BOTH pairs have a fixed payoff, so Kelly
// is undefined for them and they size straight to the per-trade cap.
func (g *Governor) rawSize(sig domain.Signal) float64 {
	if sig.Direction == domain.DirectionBuyBoth {
		return g.limits.PerTradeFrac * g.state.Capital
	}

	p := sig.TrueProb()
	price := sig.Price
	if price <= 0 || price >= 1 {
		return 0
	}
	// Kelly on a binary contract at price q paying 1: b = (1-q)/q,
	// f* = (p*b - (1-p)) / b, scaled by the configured fraction.
	b := (1 - price) / price
	f := (p*b - (1 - p)) / b
	if f <= 0 {
		return 0
	}
	return f * g.limits.KellyFraction * g.state.Capital
}

// headroom returns the dollars still available under the exposure cap after
// existing positions and this cycle's earlier approvals.
func (g *Governor) headroom() float64 {
	max := g.limits.MaxExposure * g.state.Capital
	used := g.state.Exposure() + g.committed
	if used >= max {
		return 0
	}
	return max - used
}

func (g *Governor) skip(sig domain.Signal, reason string) Decision {
	g.logger.Debug("signal skipped",
		slog.String("market_id", sig.MarketID),
		slog.String("reason", reason),
	)
	return Decision{Signal: sig, Skipped: true, Reason: reason}
}
