// Package executor turns approved decisions into orders and an append-only
// trade record. Failures are scoped to the signal being processed: one failed
// submission never stops the rest of the cycle's decisions.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mkarlsen/polyarb/internal/domain"
	"github.com/mkarlsen/polyarb/internal/risk"
)

// Result is everything one cycle's executions produced.
type Result struct {
	Trades []domain.Trade
	Opened []domain.Position
}

// Executor places the orders behind a cycle's approved decisions.
type Executor struct {
	dryRun  bool
	placers map[domain.Venue]domain.OrderPlacer
	logger  *slog.Logger
}

// New creates an executor. In dry-run mode orders are never submitted;
// every approved decision fills at its signal price and is recorded as
// SIMULATED.
func New(dryRun bool, placers map[domain.Venue]domain.OrderPlacer, logger *slog.Logger) *Executor {
	return &Executor{
		dryRun:  dryRun,
		placers: placers,
		logger:  logger.With(slog.String("component", "executor")),
	}
}

// Execute processes the cycle's decisions in ranked order. Skipped decisions
// become REJECTED trade records so the cycle's full decision trail is
// persisted alongside the fills.
func (e *Executor) Execute(ctx context.Context, cycleID string, decisions []risk.Decision, now time.Time) Result {
	var res Result
	for _, d := range decisions {
		if d.Skipped {
			res.Trades = append(res.Trades, e.rejected(cycleID, d, now))
			continue
		}
		if d.Signal.Direction == domain.DirectionBuyBoth {
			trades, opened := e.executePair(ctx, cycleID, d, now)
			res.Trades = append(res.Trades, trades...)
			res.Opened = append(res.Opened, opened...)
			continue
		}
		trade, pos, ok := e.executeSingle(ctx, cycleID, d, now)
		res.Trades = append(res.Trades, trade)
		if ok {
			res.Opened = append(res.Opened, pos)
		}
	}
	return res
}

// executeSingle places one directional order.
func (e *Executor) executeSingle(ctx context.Context, cycleID string, d risk.Decision, now time.Time) (domain.Trade, domain.Position, bool) {
	sig := d.Signal
	outcome := domain.OutcomeYes
	if sig.Direction == domain.DirectionBuyNo {
		outcome = domain.OutcomeNo
	}

	trade := e.newTrade(cycleID, d, outcome, sig.Price, d.Size, "", now)
	result, err := e.place(ctx, domain.OrderIntent{
		Venue:    sig.Venue,
		MarketID: sig.MarketID,
		Outcome:  outcome,
		Side:     domain.OrderSideBuy,
		Price:    sig.Price,
		Size:     d.Size,
	})
	if err != nil || !result.Filled {
		trade.Status = domain.TradeFailed
		trade.Reason = failReason(result, err)
		e.logger.Warn("order failed",
			slog.String("market_id", sig.MarketID),
			slog.String("reason", trade.Reason),
		)
		return trade, domain.Position{}, false
	}

	trade.Status = e.fillStatus()
	trade.OrderID = result.OrderID
	if result.FilledPrice > 0 {
		trade.Price = result.FilledPrice
	}
	return trade, e.openPosition(trade, now), true
}

// executePair places the two legs of an intra-venue arb. The legs share a
// group ID. When the second leg fails after the first filled, the filled leg
// is unwound with an offsetting sell; if even the unwind fails the leg stays
// open as a naked position and the whole group is marked FAILED_PARTIAL.
func (e *Executor) executePair(ctx context.Context, cycleID string, d risk.Decision, now time.Time) ([]domain.Trade, []domain.Position) {
	sig := d.Signal
	group := uuid.NewString()

	// Split the group's dollars so both legs buy the same contract count.
	sum := sig.YesPrice + sig.NoPrice
	yesSize := d.Size * sig.YesPrice / sum
	noSize := d.Size - yesSize

	yesTrade := e.newTrade(cycleID, d, domain.OutcomeYes, sig.YesPrice, yesSize, group, now)
	yesResult, yesErr := e.place(ctx, domain.OrderIntent{
		Venue:    sig.Venue,
		MarketID: sig.MarketID,
		Outcome:  domain.OutcomeYes,
		Side:     domain.OrderSideBuy,
		Price:    sig.YesPrice,
		Size:     yesSize,
	})
	if yesErr != nil || !yesResult.Filled {
		yesTrade.Status = domain.TradeFailed
		yesTrade.Reason = failReason(yesResult, yesErr)
		return []domain.Trade{yesTrade}, nil
	}
	yesTrade.Status = e.fillStatus()
	yesTrade.OrderID = yesResult.OrderID

	noTrade := e.newTrade(cycleID, d, domain.OutcomeNo, sig.NoPrice, noSize, group, now)
	noResult, noErr := e.place(ctx, domain.OrderIntent{
		Venue:    sig.Venue,
		MarketID: sig.MarketID,
		Outcome:  domain.OutcomeNo,
		Side:     domain.OrderSideBuy,
		Price:    sig.NoPrice,
		Size:     noSize,
	})
	if noErr == nil && noResult.Filled {
		noTrade.Status = e.fillStatus()
		noTrade.OrderID = noResult.OrderID
		return []domain.Trade{yesTrade, noTrade},
			[]domain.Position{e.openPosition(yesTrade, now), e.openPosition(noTrade, now)}
	}

	noTrade.Status = domain.TradeFailed
	noTrade.Reason = failReason(noResult, noErr)
	e.logger.Warn("second leg failed, unwinding first",
		slog.String("market_id", sig.MarketID),
		slog.String("leg_group_id", group),
	)
	return e.unwind(ctx, yesTrade, noTrade, now)
}

// unwind sells back the filled first leg of a broken pair.
func (e *Executor) unwind(ctx context.Context, filled, failed domain.Trade, now time.Time) ([]domain.Trade, []domain.Position) {
	sell := filled
	sell.ID = uuid.NewString()
	sell.Direction = domain.DirectionSell
	sell.CreatedAt = now

	result, err := e.place(ctx, domain.OrderIntent{
		Venue:    filled.Venue,
		MarketID: filled.MarketID,
		Outcome:  filled.Outcome,
		Side:     domain.OrderSideSell,
		Price:    filled.Price,
		Size:     filled.Size,
	})
	if err == nil && result.Filled {
		// Pair fully backed out: the filled leg no longer commits capital.
		filled.Status = domain.TradeFailedPartial
		filled.Reason = "second leg failed, leg unwound"
		sell.Status = e.fillStatus()
		sell.OrderID = result.OrderID
		return []domain.Trade{filled, failed, sell}, nil
	}

	sell.Status = domain.TradeFailedPartial
	sell.Reason = fmt.Errorf("%w: %s", domain.ErrUnwindFailed, failReason(result, err)).Error()
	e.logger.Error("unwind failed, leg left open",
		slog.String("market_id", filled.MarketID),
		slog.String("leg_group_id", filled.LegGroupID),
		slog.String("reason", sell.Reason),
	)
	// The filled leg's capital is genuinely committed; keep it on the books.
	return []domain.Trade{filled, failed, sell},
		[]domain.Position{e.openPosition(filled, now)}
}

func (e *Executor) place(ctx context.Context, intent domain.OrderIntent) (domain.OrderResult, error) {
	if e.dryRun {
		return domain.OrderResult{
			OrderID:     "sim-" + uuid.NewString(),
			Filled:      true,
			FilledPrice: intent.Price,
		}, nil
	}
	placer, ok := e.placers[intent.Venue]
	if !ok {
		return domain.OrderResult{}, domain.ErrExecutionFailed
	}
	return placer.PlaceOrder(ctx, intent)
}

func (e *Executor) fillStatus() domain.TradeStatus {
	if e.dryRun {
		return domain.TradeSimulated
	}
	return domain.TradeFilled
}

func (e *Executor) newTrade(cycleID string, d risk.Decision, outcome domain.Outcome, price, size float64, group string, now time.Time) domain.Trade {
	return domain.Trade{
		ID:         uuid.NewString(),
		CycleID:    cycleID,
		Strategy:   d.Signal.Strategy,
		Venue:      d.Signal.Venue,
		MarketID:   d.Signal.MarketID,
		Outcome:    outcome,
		Direction:  d.Signal.Direction,
		Price:      price,
		Size:       size,
		Edge:       d.Signal.Edge,
		LegGroupID: group,
		CreatedAt:  now,
	}
}

func (e *Executor) rejected(cycleID string, d risk.Decision, now time.Time) domain.Trade {
	t := e.newTrade(cycleID, d, domain.OutcomeYes, d.Signal.Price, 0, "", now)
	if d.Signal.Direction == domain.DirectionBuyNo {
		t.Outcome = domain.OutcomeNo
	}
	t.Status = domain.TradeRejected
	t.Reason = d.Reason
	return t
}

func (e *Executor) openPosition(t domain.Trade, now time.Time) domain.Position {
	return domain.Position{
		ID:         uuid.NewString(),
		Venue:      t.Venue,
		MarketID:   t.MarketID,
		Outcome:    t.Outcome,
		Direction:  t.Direction,
		Strategy:   t.Strategy,
		EntryPrice: t.Price,
		Size:       t.Size,
		LegGroupID: t.LegGroupID,
		Status:     domain.PositionOpen,
		OpenedAt:   now,
	}
}

func failReason(r domain.OrderResult, err error) string {
	if err != nil {
		return err.Error()
	}
	if r.Message != "" {
		return r.Message
	}
	return "order not filled"
}
