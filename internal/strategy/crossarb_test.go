package strategy

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkarlsen/polyarb/internal/domain"
)

func crossDetector(params CrossArbParams) *CrossArbDetector {
	return NewCrossArbDetector(params, slog.Default())
}

func venuePair(venue domain.Venue, id string, yes, no float64) domain.QuotePair {
	return domain.QuotePair{
		Venue:    venue,
		MarketID: id,
		Yes: domain.Quote{
			Venue: venue, MarketID: id,
			Outcome: domain.OutcomeYes, Price: yes, Liquidity: 1000, Timestamp: testNow,
		},
		No: domain.Quote{
			Venue: venue, MarketID: id,
			Outcome: domain.OutcomeNo, Price: no, Liquidity: 1000, Timestamp: testNow,
		},
	}
}

// YES at 0.40 and NO at 0.55 sum to 0.95, a 0.05 gap above the 0.02 floor.
func TestIntraVenueBuyBoth(t *testing.T) {
	d := crossDetector(CrossArbParams{MinEdge: 0.02})
	pairs := []domain.QuotePair{
		venuePair(domain.VenuePolymarket, "m1", 0.40, 0.55),
	}

	signals := d.Evaluate(pairs, testNow)
	require.Len(t, signals, 1)

	sig := signals[0]
	assert.Equal(t, domain.StrategyCrossPlatform, sig.Strategy)
	assert.Equal(t, domain.DirectionBuyBoth, sig.Direction)
	assert.InDelta(t, 0.05, sig.Edge, 1e-9)
	assert.Equal(t, 1.0, sig.Confidence)
	assert.InDelta(t, 0.95, sig.Price, 1e-9)
}

func TestIntraVenueBelowThreshold(t *testing.T) {
	d := crossDetector(CrossArbParams{MinEdge: 0.02})
	pairs := []domain.QuotePair{
		venuePair(domain.VenuePolymarket, "m1", 0.49, 0.50), // 0.01 gap
		venuePair(domain.VenuePolymarket, "m2", 0.50, 0.52), // sum above 1
	}
	assert.Empty(t, d.Evaluate(pairs, testNow))
}

func TestCrossVenueMappedDiscrepancy(t *testing.T) {
	d := crossDetector(CrossArbParams{
		MinEdge: 0.015,
		FeeBps: map[domain.Venue]float64{
			domain.VenuePolymarket: 10,
			domain.VenueKalshi:     70,
		},
		SlippageBps: 10,
		MarketMap:   map[string]string{"poly-1": "KXHIGHNY-26MAR15"},
	})
	pairs := []domain.QuotePair{
		venuePair(domain.VenuePolymarket, "poly-1", 0.45, 0.55),
		venuePair(domain.VenueKalshi, "KXHIGHNY-26MAR15", 0.55, 0.45),
	}

	signals := d.Evaluate(pairs, testNow)
	require.Len(t, signals, 1)

	sig := signals[0]
	// spread 0.10 minus 90 bps of fees and slippage
	assert.InDelta(t, 0.091, sig.Edge, 1e-9)
	assert.Equal(t, domain.DirectionBuyYes, sig.Direction)
	assert.Equal(t, domain.VenuePolymarket, sig.Venue)
	assert.Equal(t, "poly-1", sig.MarketID)
	assert.Equal(t, domain.VenueKalshi, sig.CounterVenue)
	assert.Equal(t, "KXHIGHNY-26MAR15", sig.CounterMarketID)
	assert.Equal(t, 0.55, sig.CounterPrice)
}

func TestCrossVenueUnmappedProducesNothing(t *testing.T) {
	d := crossDetector(CrossArbParams{MinEdge: 0.015})
	pairs := []domain.QuotePair{
		venuePair(domain.VenuePolymarket, "poly-1", 0.40, 0.60),
		venuePair(domain.VenueKalshi, "KXHIGHNY-26MAR15", 0.60, 0.40),
	}
	assert.Empty(t, d.Evaluate(pairs, testNow))
}

func TestCrossVenueMissingCounterpartLeg(t *testing.T) {
	d := crossDetector(CrossArbParams{
		MinEdge:   0.015,
		MarketMap: map[string]string{"poly-1": "KXHIGHNY-26MAR15"},
	})
	pairs := []domain.QuotePair{
		venuePair(domain.VenuePolymarket, "poly-1", 0.40, 0.60),
	}
	assert.Empty(t, d.Evaluate(pairs, testNow))
}

func TestCrossVenueSpreadEatenByCosts(t *testing.T) {
	d := crossDetector(CrossArbParams{
		MinEdge: 0.015,
		FeeBps: map[domain.Venue]float64{
			domain.VenuePolymarket: 50,
			domain.VenueKalshi:     100,
		},
		SlippageBps: 50,
		MarketMap:   map[string]string{"poly-1": "k-1"},
	})
	pairs := []domain.QuotePair{
		venuePair(domain.VenuePolymarket, "poly-1", 0.49, 0.51),
		venuePair(domain.VenueKalshi, "k-1", 0.52, 0.48),
	}
	// spread 0.03, costs 0.02, net 0.01 below the floor
	assert.Empty(t, d.Evaluate(pairs, testNow))
}
