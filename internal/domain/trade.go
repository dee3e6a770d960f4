package domain

import "time"

// TradeStatus is the terminal outcome of an attempted action.
type TradeStatus string

const (
	TradeFilled        TradeStatus = "FILLED"
	TradeRejected      TradeStatus = "REJECTED"
	TradeFailed        TradeStatus = "FAILED"
	TradeSimulated     TradeStatus = "SIMULATED"
	TradeFailedPartial TradeStatus = "FAILED_PARTIAL" // one leg of a linked pair filled, the other did not
)

// Trade is an immutable, append-only record of an attempted action. Records
// are never mutated after creation; corrections are new records.
type Trade struct {
	ID         string
	CycleID    string
	Strategy   StrategyKind
	Venue      Venue
	MarketID   string
	Outcome    Outcome
	Direction  Direction
	Price      float64
	Size       float64 // USD
	Edge       float64
	Status     TradeStatus
	LegGroupID string
	OrderID    string
	Reason     string
	CreatedAt  time.Time
}

// Committed reports whether the trade actually moved capital.
func (t Trade) Committed() bool {
	return t.Status == TradeFilled || t.Status == TradeSimulated
}

// OrderIntent is what the executor hands to the order-placement collaborator.
type OrderIntent struct {
	Venue    Venue
	MarketID string
	Outcome  Outcome
	Side     OrderSide
	Price    float64
	Size     float64 // USD
}

// OrderSide is the submission direction of a single order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderResult is the order-placement collaborator's answer.
type OrderResult struct {
	OrderID     string
	Filled      bool
	FilledPrice float64
	Message     string
}
