package domain

import "time"

// Venue identifies a prediction-market exchange.
type Venue string

const (
	VenuePolymarket Venue = "polymarket"
	VenueKalshi     Venue = "kalshi"
)

// Outcome is one side of a binary market.
type Outcome string

const (
	OutcomeYes Outcome = "YES"
	OutcomeNo  Outcome = "NO"
)

// RawQuote is a price observation as delivered by a venue adapter, before
// validation. Price units and field presence vary by venue; the normalizer is
// responsible for rejecting anything that does not survive validation.
type RawQuote struct {
	Venue     Venue
	MarketID  string
	Outcome   string
	Price     float64
	Liquidity float64
	Timestamp time.Time
}

// Quote is a validated price for one outcome of one market.
// Invariant: Price is strictly within (0, 1).
type Quote struct {
	Venue     Venue
	MarketID  string
	Outcome   Outcome
	Price     float64
	Liquidity float64
	Timestamp time.Time
}

// Valid reports whether the quote satisfies the price and identity invariants.
func (q Quote) Valid() bool {
	return q.MarketID != "" && q.Price > 0 && q.Price < 1
}

// Age returns how old the quote is relative to now.
func (q Quote) Age(now time.Time) time.Duration {
	return now.Sub(q.Timestamp)
}

// QuotePair links the YES and NO quotes of a single market.
type QuotePair struct {
	Venue    Venue
	MarketID string
	Yes      Quote
	No       Quote
}

// Valid reports whether both legs are valid and refer to the same market.
func (p QuotePair) Valid() bool {
	return p.Yes.Valid() && p.No.Valid() &&
		p.Yes.MarketID == p.No.MarketID &&
		p.Yes.Outcome == OutcomeYes && p.No.Outcome == OutcomeNo
}

// ImpliedProb returns the market-implied probability of YES. When YES+NO
// deviates from 1 the YES price is renormalized by the pair sum.
func (p QuotePair) ImpliedProb() float64 {
	sum := p.Yes.Price + p.No.Price
	if sum <= 0 {
		return 0
	}
	return p.Yes.Price / sum
}

// PairSum returns YES price + NO price. A sum below 1 is an intra-venue
// inefficiency; the gap 1-sum is a riskless gross edge.
func (p QuotePair) PairSum() float64 {
	return p.Yes.Price + p.No.Price
}

// Market is venue-supplied market metadata needed to interpret its quotes.
type Market struct {
	Venue      Venue
	ID         string
	Question   string
	ResolvesAt time.Time
	Active     bool
}
