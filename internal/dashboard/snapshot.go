// Package dashboard exports a JSON snapshot of the engine state after each
// committed cycle. Publishing is best-effort; nothing in the trading path
// depends on it.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/mkarlsen/polyarb/internal/domain"
)

// Snapshot is the exported view of the engine state.
type Snapshot struct {
	GeneratedAt time.Time `json:"generated_at"`
	CycleID     string    `json:"cycle_id"`
	Mode        string    `json:"mode"`

	Capital struct {
		Total            float64 `json:"total"`
		Available        float64 `json:"available"`
		Exposure         float64 `json:"exposure"`
		DayStartCapital  float64 `json:"day_start_capital"`
		DailyRealizedPnL float64 `json:"daily_realized_pnl"`
		TradingDay       string  `json:"trading_day"`
		Halted           bool    `json:"halted"`
		HaltReason       string  `json:"halt_reason,omitempty"`
	} `json:"capital"`

	OpenPositions []PositionView `json:"open_positions"`
	RecentTrades  []TradeView    `json:"recent_trades"`
	History       []DayView      `json:"capital_history"`
}

// PositionView is one open position in the snapshot.
type PositionView struct {
	Venue      string    `json:"venue"`
	MarketID   string    `json:"market_id"`
	Outcome    string    `json:"outcome"`
	Strategy   string    `json:"strategy"`
	EntryPrice float64   `json:"entry_price"`
	Size       float64   `json:"size"`
	OpenedAt   time.Time `json:"opened_at"`
}

// TradeView is one trade in the snapshot.
type TradeView struct {
	Venue     string    `json:"venue"`
	MarketID  string    `json:"market_id"`
	Direction string    `json:"direction"`
	Price     float64   `json:"price"`
	Size      float64   `json:"size"`
	Edge      float64   `json:"edge"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// DayView is one day of capital history in the snapshot.
type DayView struct {
	Day          string  `json:"day"`
	StartCapital float64 `json:"start_capital"`
	RealizedPnL  float64 `json:"realized_pnl"`
	TradeCount   int     `json:"trade_count"`
	Halted       bool    `json:"halted"`
}

// Builder assembles snapshots from the ledger store.
type Builder struct {
	store       domain.LedgerStore
	tradeLimit  int
	historyDays int
	mode        string
}

// NewBuilder creates a snapshot builder.
func NewBuilder(store domain.LedgerStore, mode string) *Builder {
	return &Builder{
		store:       store,
		tradeLimit:  20,
		historyDays: 30,
		mode:        mode,
	}
}

// Build reads the committed state and shapes it for export.
func (b *Builder) Build(ctx context.Context, cycleID string, now time.Time) (Snapshot, error) {
	state, open, err := b.store.Snapshot(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("dashboard: read state: %w", err)
	}
	trades, err := b.store.RecentTrades(ctx, b.tradeLimit)
	if err != nil {
		return Snapshot{}, fmt.Errorf("dashboard: read trades: %w", err)
	}
	history, err := b.store.CapitalHistory(ctx, b.historyDays)
	if err != nil {
		return Snapshot{}, fmt.Errorf("dashboard: read history: %w", err)
	}

	snap := Snapshot{
		GeneratedAt: now,
		CycleID:     cycleID,
		Mode:        b.mode,
	}
	snap.Capital.Total = state.Capital
	snap.Capital.Available = state.Available
	snap.Capital.Exposure = state.Exposure()
	snap.Capital.DayStartCapital = state.DayStartCapital
	snap.Capital.DailyRealizedPnL = state.DailyRealizedPnL
	snap.Capital.TradingDay = state.TradingDay
	snap.Capital.Halted = state.Halted
	snap.Capital.HaltReason = string(state.HaltReason)

	snap.OpenPositions = make([]PositionView, 0, len(open))
	for _, p := range open {
		snap.OpenPositions = append(snap.OpenPositions, PositionView{
			Venue:      string(p.Venue),
			MarketID:   p.MarketID,
			Outcome:    string(p.Outcome),
			Strategy:   string(p.Strategy),
			EntryPrice: p.EntryPrice,
			Size:       p.Size,
			OpenedAt:   p.OpenedAt,
		})
	}
	snap.RecentTrades = make([]TradeView, 0, len(trades))
	for _, t := range trades {
		snap.RecentTrades = append(snap.RecentTrades, TradeView{
			Venue:     string(t.Venue),
			MarketID:  t.MarketID,
			Direction: string(t.Direction),
			Price:     t.Price,
			Size:      t.Size,
			Edge:      t.Edge,
			Status:    string(t.Status),
			Reason:    t.Reason,
			CreatedAt: t.CreatedAt,
		})
	}
	snap.History = make([]DayView, 0, len(history))
	for _, d := range history {
		snap.History = append(snap.History, DayView{
			Day:          d.Day,
			StartCapital: d.StartCapital,
			RealizedPnL:  d.RealizedPnL,
			TradeCount:   d.TradeCount,
			Halted:       d.Halted,
		})
	}
	return snap, nil
}
