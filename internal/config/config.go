package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// DefaultPath is consulted when no --config flag is given. A missing file at
// this path is not an error; configuration then comes from the environment.
const DefaultPath = "config.yaml"

// Config holds all process-wide settings. Values resolve in order: built-in
// default, then environment variable, then config file key when present.
type Config struct {
	BinanceAPIKey  string `yaml:"binance_api_key"`
	BinanceBaseURL string `yaml:"binance_base_url"`

	// Recognized and validated but not consulted by the emission filter,
	// which uses fixed constants. Kept for config compatibility.
	PriceChangeThreshold  float64 `yaml:"price_change_threshold"`
	VolumeChangeThreshold float64 `yaml:"volume_change_threshold"`

	BatchIntervalSeconds int `yaml:"batch_interval"`

	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID string `yaml:"telegram_chat_id"`

	KlineInterval  string `yaml:"kline_interval"`
	KlineLimit     int    `yaml:"kline_limit"`
	HistoryWorkers int    `yaml:"history_workers"`

	ListenAddr            string `yaml:"listen_addr"`
	RequestTimeoutSeconds int    `yaml:"request_timeout"`
}

// Default returns a Config with documented defaults applied.
func Default() *Config {
	return &Config{
		BinanceBaseURL:        "https://fapi.binance.com",
		PriceChangeThreshold:  10.0,
		VolumeChangeThreshold: 2.0,
		BatchIntervalSeconds:  300,
		KlineInterval:         "1h",
		KlineLimit:            50,
		HistoryWorkers:        1,
		ListenAddr:            ":8080",
		RequestTimeoutSeconds: 10,
	}
}

// Load resolves configuration from defaults, environment variables, and the
// YAML file at path. A missing file at DefaultPath falls back to environment
// only; an explicitly requested file that cannot be read is an error. String
// values in the file may reference environment variables via ${VAR}.
func Load(path string) (*Config, error) {
	// Optional .env for local development; absence is fine.
	_ = godotenv.Load()

	cfg := Default()
	if err := cfg.fromEnv(); err != nil {
		return nil, err
	}

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			log.Debug().Str("path", path).Msg("no config file, using environment")
			if err := cfg.Validate(); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	// Unmarshal over the resolved defaults so keys absent from the file
	// keep their environment or default values.
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(b))), cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) fromEnv() error {
	if v := os.Getenv("BINANCE_API_KEY"); v != "" {
		c.BinanceAPIKey = v
	}
	if v := os.Getenv("BINANCE_BASE_URL"); v != "" {
		c.BinanceBaseURL = v
	}
	if v := os.Getenv("TELEGRAM_TOKEN"); v != "" {
		c.TelegramToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.TelegramChatID = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("PRICE_CHANGE_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("PRICE_CHANGE_THRESHOLD: %w", err)
		}
		c.PriceChangeThreshold = f
	}
	if v := os.Getenv("VOLUME_CHANGE_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("VOLUME_CHANGE_THRESHOLD: %w", err)
		}
		c.VolumeChangeThreshold = f
	}
	if v := os.Getenv("BATCH_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("BATCH_INTERVAL: %w", err)
		}
		c.BatchIntervalSeconds = n
	}
	return nil
}

// Validate checks ranges and logs a warning when notification credentials
// are absent; the notifier then degrades to log-only delivery.
func (c *Config) Validate() error {
	if c.BinanceBaseURL == "" {
		return fmt.Errorf("binance_base_url must not be empty")
	}
	if c.BatchIntervalSeconds <= 0 {
		return fmt.Errorf("batch_interval must be positive, got %d", c.BatchIntervalSeconds)
	}
	if c.KlineInterval == "" {
		return fmt.Errorf("kline_interval must not be empty")
	}
	if c.KlineLimit <= 0 {
		return fmt.Errorf("kline_limit must be positive, got %d", c.KlineLimit)
	}
	if c.HistoryWorkers <= 0 {
		return fmt.Errorf("history_workers must be positive, got %d", c.HistoryWorkers)
	}
	if c.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %d", c.RequestTimeoutSeconds)
	}
	if c.TelegramToken == "" || c.TelegramChatID == "" {
		log.Warn().Msg("telegram credentials not set, notifications will be logged only")
	}
	return nil
}

// BatchInterval is the wall-clock period between detection cycles.
func (c *Config) BatchInterval() time.Duration {
	return time.Duration(c.BatchIntervalSeconds) * time.Second
}

// RequestTimeout bounds every outbound HTTP request.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}
