package domain

import "time"

// RawForecast is the provider payload for one location before normalization:
// a series of daily temperature highs keyed by ISO date.
type RawForecast struct {
	City       string
	Latitude   float64
	Longitude  float64
	DailyHighF map[string]float64
	IssuedAt   time.Time
}

// Forecast is a normalized temperature forecast for one target day at one
// location. It describes a two-point distribution over a threshold event:
// the predicted high lands where the model says with probability Confidence,
// elsewhere with probability 1-Confidence, so the masses always sum to 1.
type Forecast struct {
	City       string
	TargetDate string // ISO date the market resolves on
	HighF      float64
	Confidence float64 // in (0,1], narrows as the target day approaches
	IssuedAt   time.Time
}

// Valid reports whether the forecast carries a usable distribution.
func (f Forecast) Valid() bool {
	return f.City != "" && f.TargetDate != "" && f.Confidence > 0 && f.Confidence <= 1
}

// Age returns how old the forecast is relative to now.
func (f Forecast) Age(now time.Time) time.Duration {
	return now.Sub(f.IssuedAt)
}

// ProbWithin returns the forecast-implied probability that the day's high
// lands inside [lowF, highF].
func (f Forecast) ProbWithin(lowF, highF float64) float64 {
	if f.HighF >= lowF && f.HighF <= highF {
		return f.Confidence
	}
	return 1 - f.Confidence
}
