package notify

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pumpwatch/pumpwatch/internal/signal"
)

// RenderBatch formats a cycle's signals into the outbound message: a
// header line followed by one block per signal.
func RenderBatch(signals []signal.Signal) string {
	var b strings.Builder
	b.WriteString("🚀 Pump Signals Detected:\n\n")
	for _, s := range signals {
		fmt.Fprintf(&b, "🔸 Symbol: %s\n", s.Symbol)
		fmt.Fprintf(&b, "📈 Price Change: %s%%\n", trimFloat(s.PriceChangePercent))
		fmt.Fprintf(&b, "📊 Volume: %s\n", trimFloat(s.Volume))
		fmt.Fprintf(&b, "🗣 Sentiment Score: %.2f\n", s.SentimentScore)
		fmt.Fprintf(&b, "📍 Action: %s\n", s.Action)
		fmt.Fprintf(&b, "🕒 Time: %s\n\n", s.Timestamp.Format(time.RFC3339))
	}
	return b.String()
}

// trimFloat renders without trailing zeros so 12.50 reads as 12.5.
func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
