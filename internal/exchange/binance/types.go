package binance

import "time"

// ExchangeInfo is the exchangeInfo response, reduced to the fields the
// universe filter reads.
type ExchangeInfo struct {
	Symbols []SymbolInfo `json:"symbols"`
}

type SymbolInfo struct {
	Symbol     string `json:"symbol"`
	Status     string `json:"status"`
	QuoteAsset string `json:"quoteAsset"`
}

// Ticker is one row of the bulk 24h ticker response. The exchange encodes
// numeric fields as strings; parsing happens downstream so malformed rows
// can be dropped individually.
type Ticker struct {
	Symbol             string `json:"symbol"`
	PriceChangePercent string `json:"priceChangePercent"`
	LastPrice          string `json:"lastPrice"`
	Volume             string `json:"volume"`
}

// Kline is one candle decoded from the positional klines array format.
type Kline struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}
