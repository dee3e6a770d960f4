package polymarket

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/mkarlsen/polyarb/internal/domain"
)

// APIMarket is one market as returned by the Gamma API. Numeric fields
// arrive as JSON strings; OutcomePrices and Outcomes are JSON-encoded string
// arrays inside a string.
type APIMarket struct {
	ID            string `json:"id"`
	Question      string `json:"question"`
	EndDate       string `json:"endDate"`
	Active        bool   `json:"active"`
	Closed        bool   `json:"closed"`
	Outcomes      string `json:"outcomes"`
	OutcomePrices string `json:"outcomePrices"`
	Liquidity     string `json:"liquidity"`
	Volume        string `json:"volume"`
	UpdatedAt     string `json:"updatedAt"`
}

// ToDomainMarket converts the API payload into the engine's market type.
func (m APIMarket) ToDomainMarket() domain.Market {
	resolvesAt, _ := time.Parse(time.RFC3339, m.EndDate)
	return domain.Market{
		Venue:      domain.VenuePolymarket,
		ID:         m.ID,
		Question:   m.Question,
		ResolvesAt: resolvesAt,
		Active:     m.Active && !m.Closed,
	}
}

// outcomePrices decodes the doubly-encoded outcome and price arrays into an
// outcome-name to price map. Malformed payloads return an empty map.
func (m APIMarket) outcomePrices() map[string]float64 {
	var names, prices []string
	if err := json.Unmarshal([]byte(m.Outcomes), &names); err != nil {
		return nil
	}
	if err := json.Unmarshal([]byte(m.OutcomePrices), &prices); err != nil {
		return nil
	}
	if len(names) != len(prices) {
		return nil
	}
	out := make(map[string]float64, len(names))
	for i, name := range names {
		p, err := strconv.ParseFloat(prices[i], 64)
		if err != nil {
			continue
		}
		out[name] = p
	}
	return out
}

// liquidity parses the market's liquidity figure, zero when missing.
func (m APIMarket) liquidity() float64 {
	l, err := strconv.ParseFloat(m.Liquidity, 64)
	if err != nil {
		return 0
	}
	return l
}

// updatedAt parses the quote timestamp, falling back to now for payloads
// that omit it.
func (m APIMarket) updatedAt(now time.Time) time.Time {
	if ts, err := time.Parse(time.RFC3339, m.UpdatedAt); err == nil {
		return ts
	}
	return now
}

// orderRequest is the CLOB order submission payload.
type orderRequest struct {
	MarketID string  `json:"market"`
	Outcome  string  `json:"outcome"`
	Side     string  `json:"side"`
	Price    float64 `json:"price"`
	SizeUSD  float64 `json:"size"`
}

// orderResponse is the CLOB order submission answer.
type orderResponse struct {
	OrderID string `json:"orderID"`
	Success bool   `json:"success"`
	Status  string `json:"status"`
	Error   string `json:"errorMsg"`
}
