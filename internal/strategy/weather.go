// Package strategy holds the edge calculators and the signal ranker. Each
// calculator turns normalized quotes and forecasts into candidate signals
// for one cycle; bad or missing inputs for one market skip that market and
// never abort the scan.
package strategy

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mkarlsen/polyarb/internal/domain"
	"github.com/mkarlsen/polyarb/internal/normalize"
)

// tempBucketRe parses temperature buckets like "58 to 62°F" or "58-62F"
// out of a market question.
var tempBucketRe = regexp.MustCompile(`(-?\d+)\s*(?:to|-)\s*(-?\d+)\s*°?[FC]?`)

// City is one watched location.
type City struct {
	Name    string
	Lat     float64
	Lon     float64
	Aliases []string
}

// WeatherParams tunes the weather edge detector.
type WeatherParams struct {
	MinEdge        float64
	MinLiquidity   float64
	MinHoursOut    int
	MaxHoursOut    int
	ForecastMaxAge time.Duration
	Cities         []City
}

// WeatherDetector compares forecast-implied probabilities against the
// market-implied probability of temperature-bucket markets.
type WeatherDetector struct {
	params WeatherParams
	norm   *normalize.Normalizer
	logger *slog.Logger
}

// NewWeatherDetector creates a weather detector.
func NewWeatherDetector(params WeatherParams, norm *normalize.Normalizer, logger *slog.Logger) *WeatherDetector {
	return &WeatherDetector{
		params: params,
		norm:   norm,
		logger: logger.With(slog.String("strategy", string(domain.StrategyWeather))),
	}
}

// Evaluate scans temperature markets against the fetched forecasts and emits
// one signal per market where the calibrated edge clears the minimum.
// forecasts is keyed by city name; a missing, stale, or unmatched input
// yields no signal for that market.
func (w *WeatherDetector) Evaluate(
	markets []domain.Market,
	pairs []domain.QuotePair,
	forecasts map[string]domain.RawForecast,
	now time.Time,
) []domain.Signal {
	byMarket := indexPairs(pairs)

	var signals []domain.Signal
	for _, mkt := range markets {
		sig, ok := w.analyze(mkt, byMarket, forecasts, now)
		if !ok {
			continue
		}
		signals = append(signals, sig)
	}
	return signals
}

func (w *WeatherDetector) analyze(
	mkt domain.Market,
	pairs map[string]domain.QuotePair,
	forecasts map[string]domain.RawForecast,
	now time.Time,
) (domain.Signal, bool) {
	city, ok := w.matchCity(mkt.Question)
	if !ok {
		return domain.Signal{}, false
	}
	lowF, highF, ok := parseTempBucket(mkt.Question)
	if !ok {
		return domain.Signal{}, false
	}

	if mkt.ResolvesAt.IsZero() {
		return domain.Signal{}, false
	}
	hoursOut := mkt.ResolvesAt.Sub(now).Hours()
	if hoursOut < float64(w.params.MinHoursOut) || hoursOut > float64(w.params.MaxHoursOut) {
		return domain.Signal{}, false
	}

	pair, ok := pairs[pairKey(mkt.Venue, mkt.ID)]
	if !ok {
		return domain.Signal{}, false
	}
	if minLeg(pair) < w.params.MinLiquidity {
		return domain.Signal{}, false
	}

	raw, ok := forecasts[city.Name]
	if !ok {
		return domain.Signal{}, false
	}
	// Stale forecasts are rejected outright, producing no signal.
	if now.Sub(raw.IssuedAt) > w.params.ForecastMaxAge {
		w.logger.Debug("forecast rejected",
			slog.String("city", city.Name),
			slog.Time("issued_at", raw.IssuedAt),
			slog.String("error", domain.ErrStaleData.Error()),
		)
		return domain.Signal{}, false
	}

	targetDate := mkt.ResolvesAt.UTC().Format(time.DateOnly)
	forecast, ok := w.norm.Forecast(raw, targetDate, now)
	if !ok {
		return domain.Signal{}, false
	}

	marketProb := pair.ImpliedProb()
	forecastProb := forecast.ProbWithin(lowF, highF)
	edge := forecastProb - marketProb
	if abs(edge) < w.params.MinEdge {
		return domain.Signal{}, false
	}

	direction := domain.DirectionBuyYes
	price := pair.Yes.Price
	if edge < 0 {
		direction = domain.DirectionBuyNo
		price = pair.No.Price
	}

	// Confidence narrows with forecast age: a freshly issued forecast keeps
	// the full days-out confidence, one at the staleness bound half of it.
	recency := 1 - 0.5*float64(now.Sub(raw.IssuedAt))/float64(w.params.ForecastMaxAge)
	confidence := forecast.Confidence * recency

	return domain.Signal{
		Strategy:   domain.StrategyWeather,
		Venue:      mkt.Venue,
		MarketID:   mkt.ID,
		Direction:  direction,
		Edge:       edge,
		Confidence: confidence,
		Price:      price,
		YesPrice:   pair.Yes.Price,
		NoPrice:    pair.No.Price,
		Inputs: map[string]string{
			"city":          city.Name,
			"bucket_low_f":  strconv.FormatFloat(lowF, 'f', -1, 64),
			"bucket_high_f": strconv.FormatFloat(highF, 'f', -1, 64),
			"forecast_high": strconv.FormatFloat(forecast.HighF, 'f', 1, 64),
			"forecast_prob": strconv.FormatFloat(forecastProb, 'f', 4, 64),
			"market_prob":   strconv.FormatFloat(marketProb, 'f', 4, 64),
			"hours_out":     strconv.FormatFloat(hoursOut, 'f', 0, 64),
			"question":      mkt.Question,
		},
		CreatedAt: now,
	}, true
}

// matchCity finds the configured city a market question refers to.
func (w *WeatherDetector) matchCity(question string) (City, bool) {
	q := strings.ToLower(question)
	for _, city := range w.params.Cities {
		if strings.Contains(q, strings.ToLower(city.Name)) {
			return city, true
		}
		for _, alias := range city.Aliases {
			if strings.Contains(q, strings.ToLower(alias)) {
				return city, true
			}
		}
	}
	return City{}, false
}

// parseTempBucket extracts the [low, high] temperature bucket from a market
// question.
func parseTempBucket(question string) (float64, float64, bool) {
	m := tempBucketRe.FindStringSubmatch(question)
	if m == nil {
		return 0, 0, false
	}
	low, err1 := strconv.ParseFloat(m[1], 64)
	high, err2 := strconv.ParseFloat(m[2], 64)
	if err1 != nil || err2 != nil || low > high {
		return 0, 0, false
	}
	return low, high, true
}

func indexPairs(pairs []domain.QuotePair) map[string]domain.QuotePair {
	idx := make(map[string]domain.QuotePair, len(pairs))
	for _, p := range pairs {
		idx[pairKey(p.Venue, p.MarketID)] = p
	}
	return idx
}

func pairKey(venue domain.Venue, marketID string) string {
	return fmt.Sprintf("%s/%s", venue, marketID)
}

func minLeg(p domain.QuotePair) float64 {
	if p.Yes.Liquidity < p.No.Liquidity {
		return p.Yes.Liquidity
	}
	return p.No.Liquidity
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
