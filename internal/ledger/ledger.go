// Package ledger owns the capital state between cycles: it resolves open
// positions against market outcomes, applies settlements and fills to the
// capital state, and shapes the single all-or-nothing commit a cycle hands
// to the store.
package ledger

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/mkarlsen/polyarb/internal/domain"
)

// Ledger derives capital mutations from cycle events. It holds no state of
// its own; everything flows through the CapitalState it is given.
type Ledger struct {
	logger *slog.Logger
}

// New creates a ledger.
func New(logger *slog.Logger) *Ledger {
	return &Ledger{logger: logger.With(slog.String("component", "ledger"))}
}

// Resolve settles open positions whose markets have resolved. A position on
// the winning side pays out one dollar per contract; the losing side pays
// nothing. Positions whose market resolution is unknown but whose resolve
// time passed more than a day ago expire worthless.
func (l *Ledger) Resolve(
	open []domain.Position,
	resolutions []domain.Resolution,
	markets []domain.Market,
	now time.Time,
) []domain.PositionClose {
	winners := make(map[string]domain.Outcome, len(resolutions))
	for _, r := range resolutions {
		winners[marketKey(r.Venue, r.MarketID)] = r.Winner
	}
	resolveTimes := make(map[string]time.Time, len(markets))
	for _, m := range markets {
		resolveTimes[marketKey(m.Venue, m.ID)] = m.ResolvesAt
	}

	var closes []domain.PositionClose
	for _, pos := range open {
		if !pos.Open() {
			continue
		}
		key := marketKey(pos.Venue, pos.MarketID)

		if winner, ok := winners[key]; ok {
			pnl := settlementPnL(pos, winner)
			closes = append(closes, domain.PositionClose{
				PositionID: pos.ID,
				Status:     domain.PositionClosed,
				PnL:        pnl,
				Reason:     fmt.Sprintf("resolved %s", winner),
				ClosedAt:   now,
			})
			l.logger.Info("position resolved",
				slog.String("market_id", pos.MarketID),
				slog.String("outcome", string(pos.Outcome)),
				slog.Float64("pnl", pnl),
			)
			continue
		}

		if at, ok := resolveTimes[key]; ok && !at.IsZero() && now.Sub(at) > 24*time.Hour {
			closes = append(closes, domain.PositionClose{
				PositionID: pos.ID,
				Status:     domain.PositionExpired,
				PnL:        -pos.Size,
				Reason:     "market resolve time long past, no resolution observed",
				ClosedAt:   now,
			})
		}
	}
	return closes
}

// settlementPnL computes the realized profit of one position at resolution.
// A winning side bought at price q turns size dollars into size/q contracts
// paying one dollar each.
func settlementPnL(pos domain.Position, winner domain.Outcome) float64 {
	if pos.Outcome != winner {
		return -pos.Size
	}
	if pos.EntryPrice <= 0 {
		return 0
	}
	return pos.Size/pos.EntryPrice - pos.Size
}

// ApplyCloses folds settlements into the capital state: each close returns
// the position's committed capital plus its realized P&L, and the P&L counts
// toward the daily realized total the halt threshold watches.
func (l *Ledger) ApplyCloses(
	state domain.CapitalState,
	open []domain.Position,
	closes []domain.PositionClose,
) domain.CapitalState {
	sizes := make(map[string]float64, len(open))
	for _, p := range open {
		sizes[p.ID] = p.Size
	}
	for _, c := range closes {
		state.Capital += c.PnL
		state.Available += sizes[c.PositionID] + c.PnL
		state.DailyRealizedPnL += c.PnL
	}
	return state
}

// ApplyTrades commits the capital behind the cycle's fills. Only trades that
// actually moved capital reduce the available balance.
func (l *Ledger) ApplyTrades(state domain.CapitalState, trades []domain.Trade) domain.CapitalState {
	for _, t := range trades {
		if !t.Committed() || t.Direction == domain.DirectionSell {
			continue
		}
		state.Available -= t.Size
	}
	return state
}

func marketKey(venue domain.Venue, marketID string) string {
	return fmt.Sprintf("%s/%s", venue, marketID)
}
