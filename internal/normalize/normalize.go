// Package normalize converts raw venue and forecast payloads into the typed
// records the edge calculators operate on. Anything that fails validation is
// counted and dropped; normalization never aborts a cycle.
package normalize

import (
	"log/slog"
	"strings"
	"time"

	"github.com/mkarlsen/polyarb/internal/domain"
)

// Normalizer validates raw quotes, links YES/NO legs into pairs, and applies
// the quote staleness bound.
type Normalizer struct {
	maxQuoteAge time.Duration
	logger      *slog.Logger
}

// New creates a Normalizer. Quotes older than maxQuoteAge are dropped as
// stale.
func New(maxQuoteAge time.Duration, logger *slog.Logger) *Normalizer {
	return &Normalizer{
		maxQuoteAge: maxQuoteAge,
		logger:      logger.With(slog.String("component", "normalizer")),
	}
}

// Pairs validates raw quotes and links each market's YES and NO legs.
// Markets missing either leg, carrying out-of-range prices, or quoted past
// the staleness bound produce no pair.
func (n *Normalizer) Pairs(raw []domain.RawQuote, now time.Time) []domain.QuotePair {
	type legs struct {
		yes, no domain.Quote
		hasYes  bool
		hasNo   bool
	}
	byMarket := make(map[string]*legs)
	order := make([]string, 0, len(raw)/2)
	var dropped int

	for _, rq := range raw {
		q, ok := n.quote(rq, now)
		if !ok {
			dropped++
			continue
		}
		key := string(q.Venue) + "/" + q.MarketID
		l := byMarket[key]
		if l == nil {
			l = &legs{}
			byMarket[key] = l
			order = append(order, key)
		}
		switch q.Outcome {
		case domain.OutcomeYes:
			l.yes, l.hasYes = q, true
		case domain.OutcomeNo:
			l.no, l.hasNo = q, true
		}
	}

	pairs := make([]domain.QuotePair, 0, len(byMarket))
	for _, key := range order {
		l := byMarket[key]
		if !l.hasYes || !l.hasNo {
			dropped++
			continue
		}
		pair := domain.QuotePair{
			Venue:    l.yes.Venue,
			MarketID: l.yes.MarketID,
			Yes:      l.yes,
			No:       l.no,
		}
		if !pair.Valid() {
			dropped++
			continue
		}
		pairs = append(pairs, pair)
	}

	if dropped > 0 {
		n.logger.Debug("quotes dropped during normalization",
			slog.Int("dropped", dropped),
			slog.Int("pairs", len(pairs)),
		)
	}
	return pairs
}

// FreshPairs drops pairs with either leg quoted past the staleness bound.
// Pairs re-entering the cycle from the cache go through this check so they
// obey the same bound as live quotes.
func (n *Normalizer) FreshPairs(pairs []domain.QuotePair, now time.Time) []domain.QuotePair {
	if n.maxQuoteAge <= 0 {
		return pairs
	}
	fresh := make([]domain.QuotePair, 0, len(pairs))
	var dropped int
	for _, p := range pairs {
		if p.Yes.Age(now) > n.maxQuoteAge || p.No.Age(now) > n.maxQuoteAge {
			dropped++
			continue
		}
		fresh = append(fresh, p)
	}
	if dropped > 0 {
		n.logger.Debug("stale pairs dropped",
			slog.Int("dropped", dropped),
			slog.Int("kept", len(fresh)),
		)
	}
	return fresh
}

// quote validates a single raw quote.
func (n *Normalizer) quote(rq domain.RawQuote, now time.Time) (domain.Quote, bool) {
	outcome, ok := parseOutcome(rq.Outcome)
	if !ok {
		return domain.Quote{}, false
	}
	q := domain.Quote{
		Venue:     rq.Venue,
		MarketID:  rq.MarketID,
		Outcome:   outcome,
		Price:     rq.Price,
		Liquidity: rq.Liquidity,
		Timestamp: rq.Timestamp,
	}
	if !q.Valid() {
		return domain.Quote{}, false
	}
	if n.maxQuoteAge > 0 && q.Age(now) > n.maxQuoteAge {
		return domain.Quote{}, false
	}
	return q, true
}

// Forecast reduces a raw daily-highs payload to a Forecast for the given
// target date. Confidence follows a days-out schedule: next-day forecasts
// are trusted most, beyond two days considerably less.
func (n *Normalizer) Forecast(raw domain.RawForecast, targetDate string, now time.Time) (domain.Forecast, bool) {
	high, ok := raw.DailyHighF[targetDate]
	if !ok {
		return domain.Forecast{}, false
	}
	target, err := time.Parse(time.DateOnly, targetDate)
	if err != nil {
		return domain.Forecast{}, false
	}

	daysOut := int(target.Sub(now.UTC().Truncate(24*time.Hour)).Hours() / 24)
	var confidence float64
	switch {
	case daysOut <= 1:
		confidence = 0.88
	case daysOut <= 2:
		confidence = 0.82
	default:
		confidence = 0.70
	}

	f := domain.Forecast{
		City:       raw.City,
		TargetDate: targetDate,
		HighF:      high,
		Confidence: confidence,
		IssuedAt:   raw.IssuedAt,
	}
	if !f.Valid() {
		return domain.Forecast{}, false
	}
	return f, true
}

func parseOutcome(s string) (domain.Outcome, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "YES":
		return domain.OutcomeYes, true
	case "NO":
		return domain.OutcomeNo, true
	default:
		return "", false
	}
}
