// Package signal defines detected pump signals and the process-wide log
// exposed through the read API.
package signal

import "time"

// ActionBuy is the only action this detector emits.
const ActionBuy = "BUY"

// Signal is one detected pump candidate. JSON field names are the public
// wire format of the signals endpoint and must not change.
type Signal struct {
	Symbol             string    `json:"symbol"`
	PriceChangePercent float64   `json:"priceChangePercent"`
	Volume             float64   `json:"volume"`
	SentimentScore     float64   `json:"sentiment_score"`
	Action             string    `json:"action"`
	Timestamp          time.Time `json:"timestamp"`
}
