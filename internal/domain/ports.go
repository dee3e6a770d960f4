package domain

import "context"

// QuoteSource is a venue adapter delivering raw quotes for active markets.
// Adapters report failures as errors; they never abort the cycle themselves.
type QuoteSource interface {
	Venue() Venue
	FetchMarkets(ctx context.Context) ([]Market, error)
	FetchQuotes(ctx context.Context) ([]RawQuote, error)
}

// ForecastSource delivers raw weather forecasts for a location.
type ForecastSource interface {
	FetchForecast(ctx context.Context, city string, lat, lon float64) (RawForecast, error)
}

// OrderPlacer submits a single order to a venue. The executor treats every
// error as an ExecutionFailure scoped to the one signal being processed.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, intent OrderIntent) (OrderResult, error)
}

// QuoteCache keeps each venue's last normalized pairs between cycles. The
// engine reads a venue's entry back only when its live fetch delivers
// nothing, and cached pairs still face the quote staleness bound.
// Implementations are optional; a nil cache is skipped.
type QuoteCache interface {
	PutPairs(ctx context.Context, pairs []QuotePair) error
	GetPairs(ctx context.Context, venue Venue) ([]QuotePair, error)
}
