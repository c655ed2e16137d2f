package notify

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pumpwatch/pumpwatch/internal/signal"
)

func TestRenderBatchSingleSignal(t *testing.T) {
	ts := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	got := RenderBatch([]signal.Signal{{
		Symbol:             "ABCUSDT",
		PriceChangePercent: 0.5,
		Volume:             1500,
		SentimentScore:     0.8123,
		Action:             signal.ActionBuy,
		Timestamp:          ts,
	}})

	want := "🚀 Pump Signals Detected:\n\n" +
		"🔸 Symbol: ABCUSDT\n" +
		"📈 Price Change: 0.5%\n" +
		"📊 Volume: 1500\n" +
		"🗣 Sentiment Score: 0.81\n" +
		"📍 Action: BUY\n" +
		"🕒 Time: 2025-03-14T09:26:53Z\n\n"
	assert.Equal(t, want, got)
}

func TestRenderBatchMultipleSignals(t *testing.T) {
	ts := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	batch := []signal.Signal{
		{Symbol: "AAAUSDT", SentimentScore: 0.9, Action: signal.ActionBuy, Timestamp: ts},
		{Symbol: "BBBUSDT", SentimentScore: 0.85, Action: signal.ActionBuy, Timestamp: ts},
	}

	got := RenderBatch(batch)
	assert.Equal(t, 1, strings.Count(got, "🚀 Pump Signals Detected:"))
	assert.Contains(t, got, "🔸 Symbol: AAAUSDT\n")
	assert.Contains(t, got, "🔸 Symbol: BBBUSDT\n")
	assert.Less(t, strings.Index(got, "AAAUSDT"), strings.Index(got, "BBBUSDT"))
}

func TestRenderBatchScoreRounding(t *testing.T) {
	got := RenderBatch([]signal.Signal{{Symbol: "X", SentimentScore: 0.7999, Action: signal.ActionBuy}})
	assert.Contains(t, got, "🗣 Sentiment Score: 0.80\n")
}

func TestRenderBatchEmpty(t *testing.T) {
	assert.Equal(t, "🚀 Pump Signals Detected:\n\n", RenderBatch(nil))
}
