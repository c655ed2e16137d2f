// Package universe resolves the set of eligible trading pairs.
package universe

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/pumpwatch/pumpwatch/internal/exchange/binance"
)

// ExchangeInfoFetcher is the slice of the exchange client this package needs.
type ExchangeInfoFetcher interface {
	ExchangeInfo(ctx context.Context) (*binance.ExchangeInfo, error)
}

// Provider fetches instrument metadata once and serves the filtered symbol
// set from memory afterwards. The cache is never invalidated for the life
// of the process; a failed or empty fetch is not cached, so the next call
// retries.
type Provider struct {
	client ExchangeInfoFetcher
	quote  string

	mu      sync.RWMutex
	symbols []string
}

// NewProvider keeps pairs quoted in quote, "USDT" by default.
func NewProvider(client ExchangeInfoFetcher, quote string) *Provider {
	if quote == "" {
		quote = "USDT"
	}
	return &Provider{client: client, quote: quote}
}

// Universe returns the cached symbol set, fetching it on first use. On
// fetch failure it logs and returns an empty set; callers treat that as
// "skip this cycle".
func (p *Provider) Universe(ctx context.Context) []string {
	p.mu.RLock()
	cached := p.symbols
	p.mu.RUnlock()
	if len(cached) > 0 {
		return append([]string(nil), cached...)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.symbols) > 0 {
		return append([]string(nil), p.symbols...)
	}

	info, err := p.client.ExchangeInfo(ctx)
	if err != nil {
		log.Error().Err(err).Msg("universe fetch failed")
		return nil
	}

	symbols := make([]string, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.QuoteAsset == p.quote {
			symbols = append(symbols, s.Symbol)
		}
	}
	if len(symbols) == 0 {
		log.Warn().Str("quote", p.quote).Msg("universe fetch returned no matching pairs")
		return nil
	}

	p.symbols = symbols
	log.Info().Int("pairs", len(symbols)).Str("quote", p.quote).Msg("universe cached")
	return append([]string(nil), symbols...)
}

// Size reports the cached universe size, 0 before the first successful fetch.
func (p *Provider) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.symbols)
}
