// Package market turns raw exchange responses into the per-cycle inputs of
// the detection pipeline: ticker snapshots and close-price histories.
package market

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pumpwatch/pumpwatch/internal/cache"
	"github.com/pumpwatch/pumpwatch/internal/exchange/binance"
)

// Snapshot is one symbol's 24-hour ticker state.
type Snapshot struct {
	Symbol             string
	Volume             float64
	PriceChangePercent float64
}

// ExchangeClient is the slice of the exchange client used per cycle.
type ExchangeClient interface {
	Ticker24h(ctx context.Context) ([]binance.Ticker, error)
	Klines(ctx context.Context, symbol, interval string, limit int) ([]binance.Kline, error)
}

// Config controls history fetching. Workers bounds the number of concurrent
// kline requests per cycle; 1 keeps the original sequential behavior.
type Config struct {
	Interval string
	Limit    int
	Workers  int

	// OnCacheLookup, when set, observes history cache hits and misses.
	OnCacheLookup func(hit bool)
}

type Fetcher struct {
	client ExchangeClient
	cache  cache.Cache
	cfg    Config
}

// historyTTL is short relative to any valid cycle interval, so each cycle
// still observes fresh candles.
const historyTTL = 30 * time.Second

func NewFetcher(client ExchangeClient, c cache.Cache, cfg Config) *Fetcher {
	if cfg.Interval == "" {
		cfg.Interval = "1h"
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 50
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Fetcher{client: client, cache: c, cfg: cfg}
}

// Snapshots fetches the bulk 24h ticker and reduces it to the universe.
// Rows with unparsable or non-finite numerics are dropped. On request
// failure the result is empty, which aborts the cycle upstream.
func (f *Fetcher) Snapshots(ctx context.Context, universe []string) []Snapshot {
	if len(universe) == 0 {
		return nil
	}

	tickers, err := f.client.Ticker24h(ctx)
	if err != nil {
		log.Error().Err(err).Msg("ticker snapshot fetch failed")
		return nil
	}

	eligible := make(map[string]struct{}, len(universe))
	for _, s := range universe {
		eligible[s] = struct{}{}
	}

	snapshots := make([]Snapshot, 0, len(universe))
	for _, t := range tickers {
		if _, ok := eligible[t.Symbol]; !ok {
			continue
		}
		// ParseFloat accepts "NaN" and "Infinity" spellings; a NaN volume
		// would poison the batch mean, so those rows are dropped too.
		volume, err := strconv.ParseFloat(t.Volume, 64)
		if err != nil || math.IsNaN(volume) || math.IsInf(volume, 0) || volume < 0 {
			log.Debug().Str("symbol", t.Symbol).Str("volume", t.Volume).Msg("dropping row with bad volume")
			continue
		}
		pcp, err := strconv.ParseFloat(t.PriceChangePercent, 64)
		if err != nil || math.IsNaN(pcp) || math.IsInf(pcp, 0) {
			log.Debug().Str("symbol", t.Symbol).Str("pcp", t.PriceChangePercent).Msg("dropping row with bad price change")
			continue
		}
		snapshots = append(snapshots, Snapshot{Symbol: t.Symbol, Volume: volume, PriceChangePercent: pcp})
	}
	return snapshots
}

// History returns the symbol's closing prices, most recent last. Results
// are cached briefly so retries within a cycle stay cheap. On failure the
// series is empty and the symbol degrades to fallback scoring.
func (f *Fetcher) History(ctx context.Context, symbol string) []float64 {
	key := strings.Join([]string{"klines", symbol, f.cfg.Interval, strconv.Itoa(f.cfg.Limit)}, ":")
	if b, ok := f.cache.Get(key); ok {
		var closes []float64
		if err := json.Unmarshal(b, &closes); err == nil {
			f.noteCacheLookup(true)
			return closes
		}
	}
	f.noteCacheLookup(false)

	klines, err := f.client.Klines(ctx, symbol, f.cfg.Interval, f.cfg.Limit)
	if err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("history fetch failed")
		return nil
	}

	closes := make([]float64, 0, len(klines))
	for _, k := range klines {
		closes = append(closes, k.Close)
	}
	if b, err := json.Marshal(closes); err == nil {
		f.cache.Set(key, b, historyTTL)
	}
	return closes
}

// Histories fetches close series for all symbols through a bounded worker
// pool. Symbols whose fetch failed map to an empty series.
func (f *Fetcher) Histories(ctx context.Context, symbols []string) map[string][]float64 {
	out := make(map[string][]float64, len(symbols))
	if len(symbols) == 0 {
		return out
	}

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		work = make(chan string)
	)
	workers := f.cfg.Workers
	if workers > len(symbols) {
		workers = len(symbols)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range work {
				closes := f.History(ctx, symbol)
				mu.Lock()
				out[symbol] = closes
				mu.Unlock()
			}
		}()
	}
	for _, s := range symbols {
		work <- s
	}
	close(work)
	wg.Wait()
	return out
}

func (f *Fetcher) noteCacheLookup(hit bool) {
	if f.cfg.OnCacheLookup != nil {
		f.cfg.OnCacheLookup(hit)
	}
}
