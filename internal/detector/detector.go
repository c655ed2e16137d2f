// Package detector runs the periodic detection cycle: fetch the universe
// and market snapshots, score every symbol, record signals and send the
// batch notification.
package detector

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pumpwatch/pumpwatch/internal/market"
	"github.com/pumpwatch/pumpwatch/internal/metrics"
	"github.com/pumpwatch/pumpwatch/internal/notify"
	"github.com/pumpwatch/pumpwatch/internal/sentiment"
	"github.com/pumpwatch/pumpwatch/internal/signal"
)

// A signal needs strong composite sentiment while the 24h price change
// still sits in the pre-move window: a modest dip to barely positive.
const (
	scoreFloor      = 0.79
	priceWindowLow  = -2.0
	priceWindowHigh = 1.0
)

// State is the cycle phase, exposed for health reporting.
type State string

const (
	StateIdle      State = "idle"
	StateFetching  State = "fetching"
	StateScoring   State = "scoring"
	StateNotifying State = "notifying"
)

// ErrCycleRunning reports a trigger that fired while the previous cycle
// was still in flight. The trigger is dropped, never queued.
var ErrCycleRunning = errors.New("detection cycle already running")

var (
	errNoUniverse  = errors.New("universe unavailable")
	errNoSnapshots = errors.New("ticker snapshot unavailable")
)

// UniverseSource yields the tradable pairs for a cycle. An empty result
// means the universe could not be resolved and the cycle aborts.
type UniverseSource interface {
	Universe(ctx context.Context) []string
}

// MarketData supplies the per-cycle ticker snapshots and close histories.
type MarketData interface {
	Snapshots(ctx context.Context, universe []string) []market.Snapshot
	Histories(ctx context.Context, symbols []string) map[string][]float64
}

// Deps are the collaborators a Detector orchestrates.
type Deps struct {
	Universe UniverseSource
	Market   MarketData
	Scorer   *sentiment.Calculator
	Notifier notify.Notifier
	Log      *signal.Log
	Metrics  *metrics.Registry
}

// Detector owns the cycle state machine. At most one cycle runs at a
// time; overlapping triggers are skipped.
type Detector struct {
	interval time.Duration
	universe UniverseSource
	market   MarketData
	scorer   *sentiment.Calculator
	notifier notify.Notifier
	log      *signal.Log
	metrics  *metrics.Registry

	runMu sync.Mutex // serializes cycle execution

	mu        sync.RWMutex
	state     State
	cycles    uint64
	lastCycle time.Time
	lastErr   string

	now func() time.Time
}

func New(interval time.Duration, deps Deps) *Detector {
	return &Detector{
		interval: interval,
		universe: deps.Universe,
		market:   deps.Market,
		scorer:   deps.Scorer,
		notifier: deps.Notifier,
		log:      deps.Log,
		metrics:  deps.Metrics,
		state:    StateIdle,
		now:      time.Now,
	}
}

// Run executes the first cycle immediately, then repeats on the fixed
// interval until ctx is cancelled. Cycle errors never stop the loop.
func (d *Detector) Run(ctx context.Context) error {
	log.Info().Dur("interval", d.interval).Msg("detector starting")
	d.runScheduled(ctx)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("detector stopped")
			return ctx.Err()
		case <-ticker.C:
			d.runScheduled(ctx)
		}
	}
}

func (d *Detector) runScheduled(ctx context.Context) {
	if _, err := d.RunCycle(ctx); err != nil && !errors.Is(err, ErrCycleRunning) {
		log.Error().Err(err).Msg("detection cycle failed")
	}
}

// RunCycle executes one detection cycle and returns the signals it
// emitted. It returns ErrCycleRunning when a cycle is already in flight.
func (d *Detector) RunCycle(ctx context.Context) ([]signal.Signal, error) {
	if !d.runMu.TryLock() {
		log.Warn().Msg("previous detection cycle still running, skipping trigger")
		d.metrics.CyclesTotal.WithLabelValues(metrics.CycleSkipped).Inc()
		return nil, ErrCycleRunning
	}
	defer d.runMu.Unlock()

	timer := d.metrics.StartCycleTimer()
	d.setState(StateFetching)

	symbols := d.universe.Universe(ctx)
	if len(symbols) == 0 {
		timer.Stop(metrics.CycleAborted)
		d.recordCycle(errNoUniverse)
		return nil, errNoUniverse
	}

	snapshots := d.market.Snapshots(ctx, symbols)
	if len(snapshots) == 0 {
		timer.Stop(metrics.CycleAborted)
		d.recordCycle(errNoSnapshots)
		return nil, errNoSnapshots
	}

	// Volume spikes are measured against the batch mean, fixed once per
	// cycle before any symbol is scored.
	var total float64
	for _, s := range snapshots {
		total += s.Volume
	}
	avgVolume := total / float64(len(snapshots))

	names := make([]string, len(snapshots))
	for i, s := range snapshots {
		names[i] = s.Symbol
	}
	histories := d.market.Histories(ctx, names)

	d.setState(StateScoring)
	now := d.now().UTC()
	var batch []signal.Signal
	for _, snap := range snapshots {
		bd, ok := d.scorer.Score(sentiment.Input{
			Symbol:             snap.Symbol,
			Volume:             snap.Volume,
			PriceChangePercent: snap.PriceChangePercent,
			Closes:             histories[snap.Symbol],
		}, avgVolume)
		if !ok {
			continue
		}
		// Stated positively so a NaN score or price change fails closed
		// instead of slipping into the log.
		emit := bd.Score > scoreFloor &&
			snap.PriceChangePercent > priceWindowLow &&
			snap.PriceChangePercent < priceWindowHigh
		if !emit {
			continue
		}

		log.Info().
			Str("symbol", snap.Symbol).
			Float64("score", bd.Score).
			Float64("price_change_percent", snap.PriceChangePercent).
			Str("method", string(bd.Method)).
			Msg("pump signal detected")

		batch = append(batch, signal.Signal{
			Symbol:             snap.Symbol,
			PriceChangePercent: snap.PriceChangePercent,
			Volume:             snap.Volume,
			SentimentScore:     bd.Score,
			Action:             signal.ActionBuy,
			Timestamp:          now,
		})
	}

	d.log.Append(batch...)
	d.metrics.AddSignals(len(batch), d.log.Len())

	if len(batch) > 0 {
		d.setState(StateNotifying)
		if err := d.notifier.Notify(ctx, batch); err != nil {
			// The log already holds the signals; delivery is best effort.
			log.Error().Err(err).Msg("notification delivery failed")
		}
	}

	timer.Stop(metrics.CycleCompleted)
	d.recordCycle(nil)
	log.Info().
		Int("universe", len(symbols)).
		Int("snapshots", len(snapshots)).
		Int("signals", len(batch)).
		Msg("detection cycle complete")
	return batch, nil
}

// Status is a point-in-time view of the cycle state machine.
type Status struct {
	State     State     `json:"state"`
	CyclesRun uint64    `json:"cycles_run"`
	LastCycle time.Time `json:"last_cycle"`
	LastError string    `json:"last_error,omitempty"`
}

func (d *Detector) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Status{
		State:     d.state,
		CyclesRun: d.cycles,
		LastCycle: d.lastCycle,
		LastError: d.lastErr,
	}
}

func (d *Detector) setState(s State) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

// recordCycle closes out a cycle that ran (completed or aborted); skipped
// triggers are not counted.
func (d *Detector) recordCycle(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = StateIdle
	d.cycles++
	d.lastCycle = d.now()
	if err != nil {
		d.lastErr = err.Error()
	} else {
		d.lastErr = ""
	}
}
