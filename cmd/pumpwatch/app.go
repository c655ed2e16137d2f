package main

import (
	"github.com/rs/zerolog/log"

	"github.com/pumpwatch/pumpwatch/internal/cache"
	"github.com/pumpwatch/pumpwatch/internal/config"
	"github.com/pumpwatch/pumpwatch/internal/detector"
	"github.com/pumpwatch/pumpwatch/internal/exchange/binance"
	"github.com/pumpwatch/pumpwatch/internal/market"
	"github.com/pumpwatch/pumpwatch/internal/metrics"
	"github.com/pumpwatch/pumpwatch/internal/notify"
	"github.com/pumpwatch/pumpwatch/internal/notify/telegram"
	"github.com/pumpwatch/pumpwatch/internal/sentiment"
	"github.com/pumpwatch/pumpwatch/internal/signal"
	"github.com/pumpwatch/pumpwatch/internal/universe"
)

// app bundles the wired components shared by serve and scan.
type app struct {
	cfg      *config.Config
	client   *binance.Client
	universe *universe.Provider
	log      *signal.Log
	metrics  *metrics.Registry
	detector *detector.Detector
}

func loadConfig() (*config.Config, error) {
	// Load validates; anything returned here is ready to use.
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	source := configPath
	if source == "" {
		source = config.DefaultPath
	}
	log.Info().
		Str("config", source).
		Dur("batch_interval", cfg.BatchInterval()).
		Float64("price_change_threshold", cfg.PriceChangeThreshold).
		Float64("volume_change_threshold", cfg.VolumeChangeThreshold).
		Str("kline_interval", cfg.KlineInterval).
		Int("kline_limit", cfg.KlineLimit).
		Msg("configuration loaded")
	return cfg, nil
}

func buildApp(cfg *config.Config, notifier notify.Notifier) *app {
	reg := metrics.NewRegistry()

	client := binance.New(binance.Config{
		BaseURL:   cfg.BinanceBaseURL,
		APIKey:    cfg.BinanceAPIKey,
		Timeout:   cfg.RequestTimeout(),
		OnRequest: reg.RecordAPIRequest,
	})

	fetcher := market.NewFetcher(client, cache.NewAuto(), market.Config{
		Interval:      cfg.KlineInterval,
		Limit:         cfg.KlineLimit,
		Workers:       cfg.HistoryWorkers,
		OnCacheLookup: reg.RecordCacheLookup,
	})

	uni := universe.NewProvider(client, "USDT")
	sigLog := signal.NewLog()

	det := detector.New(cfg.BatchInterval(), detector.Deps{
		Universe: uni,
		Market:   fetcher,
		Scorer:   sentiment.NewCalculator(),
		Notifier: notifier,
		Log:      sigLog,
		Metrics:  reg,
	})

	return &app{
		cfg:      cfg,
		client:   client,
		universe: uni,
		log:      sigLog,
		metrics:  reg,
		detector: det,
	}
}

// newNotifier returns the Telegram notifier, or the log-only stand-in when
// credentials are not configured. Validate already warned about the
// missing credentials; no second line here.
func newNotifier(cfg *config.Config) notify.Notifier {
	if cfg.TelegramToken == "" || cfg.TelegramChatID == "" {
		return notify.LogNotifier{}
	}
	return telegram.New(telegram.Config{
		Token:   cfg.TelegramToken,
		ChatID:  cfg.TelegramChatID,
		Timeout: cfg.RequestTimeout(),
	})
}
