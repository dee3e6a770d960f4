// Package polymarket adapts the Polymarket Gamma and CLOB APIs to the
// engine's quote, resolution, and order ports.
package polymarket

import (
	"bytes"
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

// Client talks to the Gamma API for market discovery and quotes and to the
// CLOB for order placement.
type Client struct {
	gammaURL   string
	clobURL    string
	httpClient *http.Client
}

var (
	_ domain.QuoteSource      = (*Client)(nil)
	_ domain.ResolutionSource = (*Client)(nil)
	_ domain.OrderPlacer      = (*Client)(nil)
)

// NewClient creates a Polymarket client.
//
// gammaURL is the Gamma API root, e.g. "https://gamma-api.polymarket.com";
// clobURL the CLOB root, e.g. "https://clob.polymarket.com".
func NewClient(gammaURL, clobURL string) *Client {
	return &Client{
		gammaURL: gammaURL,
		clobURL:  clobURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Venue identifies this adapter.
func (c *Client) Venue() domain.Venue {
	return domain.VenuePolymarket
}

// FetchMarkets returns the currently active markets.
func (c *Client) FetchMarkets(ctx context.Context) ([]domain.Market, error) {
	apiMarkets, err := c.getMarkets(ctx, true)
	if err != nil {
		return nil, err
	}
	markets := make([]domain.Market, 0, len(apiMarkets))
	for _, m := range apiMarkets {
		markets = append(markets, m.ToDomainMarket())
	}
	return markets, nil
}

// FetchQuotes returns raw YES/NO quotes for the active markets. Markets with
// unreadable price payloads are skipped.
func (c *Client) FetchQuotes(ctx context.Context) ([]domain.RawQuote, error) {
	apiMarkets, err := c.getMarkets(ctx, true)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var quotes []domain.RawQuote
	for _, m := range apiMarkets {
		prices := m.outcomePrices()
		for outcome, price := range prices {
			quotes = append(quotes, domain.RawQuote{
				Venue:     domain.VenuePolymarket,
				MarketID:  m.ID,
				Outcome:   outcome,
				Price:     price,
				Liquidity: m.liquidity(),
				Timestamp: m.updatedAt(now),
			})
		}
	}
	return quotes, nil
}

// FetchResolutions reports recently closed markets whose final prices pin
// the winner. A market counts as resolved when one outcome's price settled
// at or above 0.99.
func (c *Client) FetchResolutions(ctx context.Context) ([]domain.Resolution, error) {
	apiMarkets, err := c.getMarkets(ctx, false)
	if err != nil {
		return nil, err
	}

	var resolutions []domain.Resolution
	for _, m := range apiMarkets {
		if !m.Closed {
			continue
		}
		for outcome, price := range m.outcomePrices() {
			if price < 0.99 {
				continue
			}
			winner := domain.Outcome(outcome)
			if winner != domain.OutcomeYes && winner != domain.OutcomeNo {
				continue
			}
			resolutions = append(resolutions, domain.Resolution{
				Venue:    domain.VenuePolymarket,
				MarketID: m.ID,
				Winner:   winner,
			})
			break
		}
	}
	return resolutions, nil
}

// PlaceOrder submits an order to the CLOB.
func (c *Client) PlaceOrder(ctx context.Context, intent domain.OrderIntent) (domain.OrderResult, error) {
	req := orderRequest{
		MarketID: intent.MarketID,
		Outcome:  string(intent.Outcome),
		Side:     string(intent.Side),
		Price:    intent.Price,
		SizeUSD:  intent.Size,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket: marshal order: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.clobURL+"/order", bytes.NewReader(body))
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket: create order request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket: place order: %w: %w", domain.ErrExecutionFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket: read order response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.OrderResult{}, fmt.Errorf("polymarket: order rejected (status %d): %s: %w",
			resp.StatusCode, respBody, domain.ErrExecutionFailed)
	}

	var orderResp orderResponse
	if err := json.Unmarshal(respBody, &orderResp); err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket: decode order response: %w", err)
	}
	return domain.OrderResult{
		OrderID:     orderResp.OrderID,
		Filled:      orderResp.Success && orderResp.Status != "canceled",
		FilledPrice: intent.Price,
		Message:     orderResp.Error,
	}, nil
}

// getMarkets fetches one page of Gamma markets.
func (c *Client) getMarkets(ctx context.Context, active bool) ([]APIMarket, error) {
	params := url.Values{}
	params.Set("limit", "500")
	params.Set("active", strconv.FormatBool(active))
	params.Set("closed", strconv.FormatBool(!active))

	body, err := c.doGet(ctx, c.gammaURL+"/markets?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("polymarket: get markets: %w", err)
	}

	var apiMarkets []APIMarket
	if err := json.Unmarshal(body, &apiMarkets); err != nil {
		return nil, fmt.Errorf("polymarket: decode markets: %w", err)
	}
	return apiMarkets, nil
}

func (c *Client) doGet(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w: %w", domain.ErrDataUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %w", resp.StatusCode, domain.ErrDataUnavailable)
	}
	return respBody, nil
}
