package domain

import (
	"math"
	"time"
)

// StrategyKind tags which detector produced a signal. The set is closed; the
// ranker and governor only ever see these two values.
type StrategyKind string

const (
	StrategyWeather       StrategyKind = "weather"
	StrategyCrossPlatform StrategyKind = "cross_platform"
)

// Direction is the action a signal recommends.
type Direction string

const (
	DirectionBuyYes  Direction = "BUY_YES"
	DirectionBuyNo   Direction = "BUY_NO"
	DirectionBuyBoth Direction = "BUY_BOTH" // linked two-leg intra-venue arb
	DirectionSell    Direction = "SELL"
)

// Signal is a candidate trade produced by an edge calculator during one
// cycle. Signals are never persisted; only the Trades they turn into are.
type Signal struct {
	Strategy   StrategyKind
	Venue      Venue
	MarketID   string
	Direction  Direction
	Edge       float64 // signed fraction vs market-implied probability
	Confidence float64 // in (0,1]
	Price      float64 // execution price for the chosen side
	YesPrice   float64
	NoPrice    float64

	// Cross-venue counterpart, set only for StrategyCrossPlatform signals
	// detected across two venues.
	CounterVenue    Venue
	CounterMarketID string
	CounterPrice    float64

	// Inputs retains the raw numbers the edge was derived from, for audit.
	Inputs    map[string]string
	CreatedAt time.Time
}

// Score is the ranking key: |edge| weighted by confidence.
func (s Signal) Score() float64 {
	return math.Abs(s.Edge) * s.Confidence
}

// TrueProb returns the estimated true probability of the chosen side, i.e.
// the market-implied price shifted by the signed edge.
func (s Signal) TrueProb() float64 {
	p := s.Price + math.Abs(s.Edge)
	if p > 1 {
		p = 1
	}
	if p < 0 {
		p = 0
	}
	return p
}
