// Package kalshi adapts the Kalshi trade API to the engine's quote,
// resolution, and order ports.
package kalshi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mkarlsen/polyarb/internal/domain"
)

// Client is the REST client for the Kalshi exchange API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var (
	_ domain.QuoteSource      = (*Client)(nil)
	_ domain.ResolutionSource = (*Client)(nil)
	_ domain.OrderPlacer      = (*Client)(nil)
)

// NewClient creates a Kalshi client.
//
// baseURL is the API root, e.g. "https://api.elections.kalshi.com/trade-api/v2".
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Venue identifies this adapter.
func (c *Client) Venue() domain.Venue {
	return domain.VenueKalshi
}

// FetchMarkets returns the currently open markets.
func (c *Client) FetchMarkets(ctx context.Context) ([]domain.Market, error) {
	apiMarkets, err := c.getMarkets(ctx, "open")
	if err != nil {
		return nil, err
	}
	markets := make([]domain.Market, 0, len(apiMarkets))
	for _, m := range apiMarkets {
		markets = append(markets, m.ToDomainMarket())
	}
	return markets, nil
}

// FetchQuotes returns raw YES/NO quotes built from each market's bid/ask
// midpoints.
func (c *Client) FetchQuotes(ctx context.Context) ([]domain.RawQuote, error) {
	apiMarkets, err := c.getMarkets(ctx, "open")
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var quotes []domain.RawQuote
	for _, m := range apiMarkets {
		quotes = append(quotes,
			domain.RawQuote{
				Venue:     domain.VenueKalshi,
				MarketID:  m.Ticker,
				Outcome:   string(domain.OutcomeYes),
				Price:     mid(m.YesBid, m.YesAsk),
				Liquidity: float64(m.Liquidity) / 100,
				Timestamp: now,
			},
			domain.RawQuote{
				Venue:     domain.VenueKalshi,
				MarketID:  m.Ticker,
				Outcome:   string(domain.OutcomeNo),
				Price:     mid(m.NoBid, m.NoAsk),
				Liquidity: float64(m.Liquidity) / 100,
				Timestamp: now,
			},
		)
	}
	return quotes, nil
}

// FetchResolutions reports settled markets and their results.
func (c *Client) FetchResolutions(ctx context.Context) ([]domain.Resolution, error) {
	apiMarkets, err := c.getMarkets(ctx, "settled")
	if err != nil {
		return nil, err
	}

	var resolutions []domain.Resolution
	for _, m := range apiMarkets {
		var winner domain.Outcome
		switch strings.ToLower(m.Result) {
		case "yes":
			winner = domain.OutcomeYes
		case "no":
			winner = domain.OutcomeNo
		default:
			continue
		}
		resolutions = append(resolutions, domain.Resolution{
			Venue:    domain.VenueKalshi,
			MarketID: m.Ticker,
			Winner:   winner,
		})
	}
	return resolutions, nil
}

// PlaceOrder submits a limit order. Dollar size converts to a contract count
// at the intent price; fewer than one contract's worth is rejected upstream
// by the minimum trade size, so a zero count here is an error.
func (c *Client) PlaceOrder(ctx context.Context, intent domain.OrderIntent) (domain.OrderResult, error) {
	if intent.Price <= 0 {
		return domain.OrderResult{}, fmt.Errorf("kalshi: order price must be positive: %w", domain.ErrExecutionFailed)
	}
	count := int(math.Floor(intent.Size / intent.Price))
	if count < 1 {
		return domain.OrderResult{}, fmt.Errorf("kalshi: size %.2f buys no contracts at %.2f: %w",
			intent.Size, intent.Price, domain.ErrExecutionFailed)
	}

	req := orderRequest{
		Ticker: intent.MarketID,
		Action: strings.ToLower(string(intent.Side)),
		Side:   strings.ToLower(string(intent.Outcome)),
		Count:  count,
		Type:   "limit",
	}
	cents := int(math.Round(intent.Price * 100))
	if intent.Outcome == domain.OutcomeYes {
		req.YesPrice = cents
	} else {
		req.NoPrice = cents
	}

	body, err := c.doRequest(ctx, http.MethodPost, "/portfolio/orders", req)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("kalshi: place order: %w", err)
	}

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.OrderResult{}, fmt.Errorf("kalshi: decode order response: %w", err)
	}
	if resp.Order.Status == "canceled" {
		return domain.OrderResult{
			OrderID: resp.Order.OrderID,
			Message: "order immediately cancelled",
		}, nil
	}
	return domain.OrderResult{
		OrderID:     resp.Order.OrderID,
		Filled:      true,
		FilledPrice: intent.Price,
	}, nil
}

// getMarkets fetches one page of markets in the given status.
func (c *Client) getMarkets(ctx context.Context, status string) ([]APIMarket, error) {
	params := url.Values{}
	params.Set("limit", "500")
	params.Set("status", status)

	body, err := c.doRequest(ctx, http.MethodGet, "/markets?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("kalshi: get markets: %w", err)
	}

	var resp struct {
		Markets []APIMarket `json:"markets"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("kalshi: decode markets: %w", err)
	}
	return resp.Markets, nil
}

// doRequest builds, authenticates, sends, and reads an HTTP request.
func (c *Client) doRequest(ctx context.Context, method, path string, reqBody any) ([]byte, error) {
	var bodyReader io.Reader
	if reqBody != nil {
		jsonBody, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w: %w", domain.ErrDataUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d: %s: %w", resp.StatusCode, respBody, domain.ErrDataUnavailable)
	}
	return respBody, nil
}
