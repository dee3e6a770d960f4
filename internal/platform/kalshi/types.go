package kalshi

import (
	"time"

	"github.com/mkarlsen/polyarb/internal/domain"
)

// APIMarket is one market as returned by the Kalshi trade API. Prices are in
// cents.
type APIMarket struct {
	Ticker    string    `json:"ticker"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	Result    string    `json:"result"` // "yes" or "no" once settled
	YesBid    int       `json:"yes_bid"`
	YesAsk    int       `json:"yes_ask"`
	NoBid     int       `json:"no_bid"`
	NoAsk     int       `json:"no_ask"`
	Liquidity int       `json:"liquidity"`
	CloseTime time.Time `json:"close_time"`
}

// ToDomainMarket converts the API payload into the engine's market type.
func (m APIMarket) ToDomainMarket() domain.Market {
	return domain.Market{
		Venue:      domain.VenueKalshi,
		ID:         m.Ticker,
		Question:   m.Title,
		ResolvesAt: m.CloseTime,
		Active:     m.Status == "active",
	}
}

// mid converts a bid and ask in cents into a dollar midpoint. Either side
// missing falls back to the other.
func mid(bid, ask int) float64 {
	switch {
	case bid > 0 && ask > 0:
		return float64(bid+ask) / 200
	case ask > 0:
		return float64(ask) / 100
	default:
		return float64(bid) / 100
	}
}

// orderRequest is the order submission payload. Prices are in cents and
// counts in contracts.
type orderRequest struct {
	Ticker   string `json:"ticker"`
	Action   string `json:"action"` // "buy" or "sell"
	Side     string `json:"side"`   // "yes" or "no"
	Count    int    `json:"count"`
	Type     string `json:"type"`
	YesPrice int    `json:"yes_price,omitempty"`
	NoPrice  int    `json:"no_price,omitempty"`
}

// orderResponse is the order submission answer.
type orderResponse struct {
	Order struct {
		OrderID string `json:"order_id"`
		Status  string `json:"status"`
	} `json:"order"`
}
