package domain

import "context"

// Resolution is a market's final outcome as reported by a venue.
type Resolution struct {
	Venue    Venue
	MarketID string
	Winner   Outcome
}

// ResolutionSource reports recently settled markets. Venue adapters that
// cannot observe settlement simply return nothing.
type ResolutionSource interface {
	FetchResolutions(ctx context.Context) ([]Resolution, error)
}
