// Package openmeteo adapts the Open-Meteo forecast API to the engine's
// forecast port. The API is unauthenticated.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mkarlsen/polyarb/internal/domain"
)

// Client fetches daily high-temperature forecasts.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ domain.ForecastSource = (*Client)(nil)

// NewClient creates an Open-Meteo client. baseURL defaults to the public API
// when empty.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://api.open-meteo.com"
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// FetchForecast returns the next two weeks of daily highs for one location.
func (c *Client) FetchForecast(ctx context.Context, city string, lat, lon float64) (domain.RawForecast, error) {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	params.Set("longitude", strconv.FormatFloat(lon, 'f', 4, 64))
	params.Set("daily", "temperature_2m_max")
	params.Set("temperature_unit", "fahrenheit")
	params.Set("forecast_days", "14")
	params.Set("timezone", "UTC")

	fullURL := c.baseURL + "/v1/forecast?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.RawForecast{}, fmt.Errorf("openmeteo: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.RawForecast{}, fmt.Errorf("openmeteo: fetch %s: %w: %w", city, domain.ErrDataUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.RawForecast{}, fmt.Errorf("openmeteo: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.RawForecast{}, fmt.Errorf("openmeteo: unexpected status %d for %s: %w",
			resp.StatusCode, city, domain.ErrDataUnavailable)
	}

	var payload struct {
		Daily struct {
			Time           []string  `json:"time"`
			Temperature2mM []float64 `json:"temperature_2m_max"`
		} `json:"daily"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return domain.RawForecast{}, fmt.Errorf("openmeteo: decode forecast for %s: %w", city, err)
	}
	if len(payload.Daily.Time) != len(payload.Daily.Temperature2mM) {
		return domain.RawForecast{}, fmt.Errorf("openmeteo: mismatched series lengths for %s: %w",
			city, domain.ErrDataUnavailable)
	}

	highs := make(map[string]float64, len(payload.Daily.Time))
	for i, day := range payload.Daily.Time {
		highs[day] = payload.Daily.Temperature2mM[i]
	}
	return domain.RawForecast{
		City:       city,
		Latitude:   lat,
		Longitude:  lon,
		DailyHighF: highs,
		IssuedAt:   time.Now(),
	}, nil
}
