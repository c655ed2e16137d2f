// Package notify delivers the per-cycle signal batch to an outbound
// channel.
package notify

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/pumpwatch/pumpwatch/internal/signal"
)

// Notifier sends one consolidated message per detection cycle. Delivery
// failures are non-fatal; the caller logs and moves on.
type Notifier interface {
	Notify(ctx context.Context, signals []signal.Signal) error
}

// LogNotifier is the stand-in used when no delivery credentials are
// configured. The rendered batch goes to the log and nowhere else.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, signals []signal.Signal) error {
	if len(signals) == 0 {
		return nil
	}
	log.Info().Int("signals", len(signals)).Msg("notification (log only):\n" + RenderBatch(signals))
	return nil
}
