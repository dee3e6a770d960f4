package domain

import "time"

// PositionStatus tracks a position's lifecycle. A position is created OPEN on
// a filled BUY and becomes CLOSED on resolution or an offsetting SELL;
// EXPIRED marks markets that resolved worthless without an explicit close.
// Once CLOSED it is immutable apart from the realized P&L annotation.
type PositionStatus string

const (
	PositionOpen    PositionStatus = "OPEN"
	PositionClosed  PositionStatus = "CLOSED"
	PositionExpired PositionStatus = "EXPIRED"
)

// Position is capital committed to one side of one market.
type Position struct {
	ID          string
	Venue       Venue
	MarketID    string
	Outcome     Outcome
	Direction   Direction
	Strategy    StrategyKind
	EntryPrice  float64
	Size        float64 // capital committed, USD
	LegGroupID  string  // links the two legs of a BUY_BOTH pair
	Status      PositionStatus
	RealizedPnL *float64
	OpenedAt    time.Time
	ClosedAt    *time.Time
}

// Open reports whether the position still holds committed capital.
func (p Position) Open() bool {
	return p.Status == PositionOpen
}

// PositionClose records the settlement of one open position. It is applied to
// CapitalState as part of the cycle commit.
type PositionClose struct {
	PositionID string
	Status     PositionStatus // CLOSED or EXPIRED
	PnL        float64
	Reason     string
	ClosedAt   time.Time
}
