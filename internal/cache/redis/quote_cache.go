package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mkarlsen/polyarb/internal/domain"
)

// QuoteCache implements domain.QuoteCache using one Redis key per venue.
// Each key "quotes:{venue}" holds the venue's latest normalized pairs as a
// JSON blob with a TTL, so a dead engine leaves no stale prices behind.
type QuoteCache struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ domain.QuoteCache = (*QuoteCache)(nil)

// NewQuoteCache creates a QuoteCache backed by the given Client.
func NewQuoteCache(c *Client, ttl time.Duration) *QuoteCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &QuoteCache{rdb: c.Underlying(), ttl: ttl}
}

func quoteKey(venue domain.Venue) string {
	return "quotes:" + string(venue)
}

// PutPairs replaces each venue's cached pairs with the given set.
func (qc *QuoteCache) PutPairs(ctx context.Context, pairs []domain.QuotePair) error {
	byVenue := make(map[domain.Venue][]domain.QuotePair)
	for _, p := range pairs {
		byVenue[p.Venue] = append(byVenue[p.Venue], p)
	}
	for venue, vp := range byVenue {
		data, err := json.Marshal(vp)
		if err != nil {
			return fmt.Errorf("redis: marshal pairs %s: %w", venue, err)
		}
		if err := qc.rdb.Set(ctx, quoteKey(venue), data, qc.ttl).Err(); err != nil {
			return fmt.Errorf("redis: put pairs %s: %w", venue, err)
		}
	}
	return nil
}

// GetPairs returns the cached pairs for a venue, or ErrNotFound when the key
// is missing or expired.
func (qc *QuoteCache) GetPairs(ctx context.Context, venue domain.Venue) ([]domain.QuotePair, error) {
	data, err := qc.rdb.Get(ctx, quoteKey(venue)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get pairs %s: %w", venue, err)
	}
	var pairs []domain.QuotePair
	if err := json.Unmarshal(data, &pairs); err != nil {
		return nil, fmt.Errorf("redis: unmarshal pairs %s: %w", venue, err)
	}
	return pairs, nil
}
