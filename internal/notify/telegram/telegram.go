// Package telegram sends batch notifications through the Telegram Bot
// API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pumpwatch/pumpwatch/internal/notify"
	"github.com/pumpwatch/pumpwatch/internal/signal"
)

const defaultBaseURL = "https://api.telegram.org"

// Config carries bot credentials and transport settings.
type Config struct {
	Token   string
	ChatID  string
	BaseURL string        // override for tests; defaults to the public API
	Timeout time.Duration // per-request timeout; defaults to 10s
}

// Notifier delivers one message per detection cycle to a Telegram chat.
type Notifier struct {
	cfg    Config
	client *http.Client
	apiURL string
}

type message struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

func New(cfg Config) *Notifier {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Notifier{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		apiURL: fmt.Sprintf("%s/bot%s/sendMessage", cfg.BaseURL, cfg.Token),
	}
}

// Notify renders the batch and posts it as a single message. An empty
// batch sends nothing.
func (n *Notifier) Notify(ctx context.Context, signals []signal.Signal) error {
	if len(signals) == 0 {
		return nil
	}

	payload, err := json.Marshal(message{
		ChatID: n.cfg.ChatID,
		Text:   notify.RenderBatch(signals),
	})
	if err != nil {
		return fmt.Errorf("marshal telegram message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.apiURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read telegram response: %w", err)
	}

	var out apiResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return fmt.Errorf("decode telegram response (status %d): %w", resp.StatusCode, err)
	}
	if !out.OK {
		return fmt.Errorf("telegram api error %d: %s", out.ErrorCode, out.Description)
	}

	log.Debug().Int("signals", len(signals)).Msg("telegram batch delivered")
	return nil
}
