package strategy

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/mkarlsen/polyarb/internal/domain"
)

// CrossArbParams tunes the cross-platform detector.
type CrossArbParams struct {
	MinEdge     float64
	FeeBps      map[domain.Venue]float64
	SlippageBps float64
	// MarketMap pins Polymarket market IDs to the Kalshi ticker resolving on
	// the same event. Unmapped markets are never compared across venues.
	MarketMap map[string]string
}

// CrossArbDetector finds two kinds of structural mispricing: a single market
// whose YES and NO legs sum below 1, and the same real-world event priced
// differently on two venues.
type CrossArbDetector struct {
	params CrossArbParams
	logger *slog.Logger
}

// NewCrossArbDetector creates a cross-platform detector.
func NewCrossArbDetector(params CrossArbParams, logger *slog.Logger) *CrossArbDetector {
	return &CrossArbDetector{
		params: params,
		logger: logger.With(slog.String("strategy", string(domain.StrategyCrossPlatform))),
	}
}

// Evaluate scans the cycle's quote pairs for intra-venue and cross-venue
// discrepancies.
func (d *CrossArbDetector) Evaluate(pairs []domain.QuotePair, now time.Time) []domain.Signal {
	var signals []domain.Signal
	byMarket := indexPairs(pairs)

	for _, pair := range pairs {
		if sig, ok := d.intraVenue(pair, now); ok {
			signals = append(signals, sig)
		}
	}
	for polyID, kalshiID := range d.params.MarketMap {
		if sig, ok := d.crossVenue(byMarket, polyID, kalshiID, now); ok {
			signals = append(signals, sig)
		}
	}
	return signals
}

// intraVenue emits a BUY_BOTH signal when a market's YES and NO prices sum
// below 1 by more than the minimum edge. Buying both legs locks in the gap
// at resolution regardless of outcome.
func (d *CrossArbDetector) intraVenue(pair domain.QuotePair, now time.Time) (domain.Signal, bool) {
	edge := 1 - pair.PairSum()
	if edge <= d.params.MinEdge {
		return domain.Signal{}, false
	}
	fees := d.feeFrac(pair.Venue) * 2 // one fee per leg

	return domain.Signal{
		Strategy:   domain.StrategyCrossPlatform,
		Venue:      pair.Venue,
		MarketID:   pair.MarketID,
		Direction:  domain.DirectionBuyBoth,
		Edge:       edge,
		Confidence: 1, // payoff is fixed at resolution
		Price:      pair.PairSum(),
		YesPrice:   pair.Yes.Price,
		NoPrice:    pair.No.Price,
		Inputs: map[string]string{
			"pair_sum": strconv.FormatFloat(pair.PairSum(), 'f', 4, 64),
			"fees":     strconv.FormatFloat(fees, 'f', 4, 64),
		},
		CreatedAt: now,
	}, true
}

// crossVenue compares the YES probability of a mapped market across the two
// venues and emits a buy on the cheaper side when the spread survives fees
// and slippage on both legs.
func (d *CrossArbDetector) crossVenue(
	byMarket map[string]domain.QuotePair,
	polyID, kalshiID string,
	now time.Time,
) (domain.Signal, bool) {
	poly, ok := byMarket[pairKey(domain.VenuePolymarket, polyID)]
	if !ok {
		return domain.Signal{}, false
	}
	kalshi, ok := byMarket[pairKey(domain.VenueKalshi, kalshiID)]
	if !ok {
		return domain.Signal{}, false
	}

	polyProb := poly.ImpliedProb()
	kalshiProb := kalshi.ImpliedProb()
	spread := abs(polyProb - kalshiProb)
	costs := d.feeFrac(domain.VenuePolymarket) +
		d.feeFrac(domain.VenueKalshi) +
		d.params.SlippageBps/10000
	edge := spread - costs
	if edge <= d.params.MinEdge {
		return domain.Signal{}, false
	}

	// Buy YES on whichever venue prices it lower.
	cheap, rich := poly, kalshi
	if kalshiProb < polyProb {
		cheap, rich = kalshi, poly
	}

	return domain.Signal{
		Strategy:        domain.StrategyCrossPlatform,
		Venue:           cheap.Venue,
		MarketID:        cheap.MarketID,
		Direction:       domain.DirectionBuyYes,
		Edge:            edge,
		Confidence:      0.9, // mapped events can still diverge on resolution terms
		Price:           cheap.Yes.Price,
		YesPrice:        cheap.Yes.Price,
		NoPrice:         cheap.No.Price,
		CounterVenue:    rich.Venue,
		CounterMarketID: rich.MarketID,
		CounterPrice:    rich.Yes.Price,
		Inputs: map[string]string{
			"poly_prob":   strconv.FormatFloat(polyProb, 'f', 4, 64),
			"kalshi_prob": strconv.FormatFloat(kalshiProb, 'f', 4, 64),
			"spread":      strconv.FormatFloat(spread, 'f', 4, 64),
			"costs":       strconv.FormatFloat(costs, 'f', 4, 64),
		},
		CreatedAt: now,
	}, true
}

func (d *CrossArbDetector) feeFrac(v domain.Venue) float64 {
	return d.params.FeeBps[v] / 10000
}
