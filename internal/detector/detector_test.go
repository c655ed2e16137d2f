package detector

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pumpwatch/pumpwatch/internal/market"
	"github.com/pumpwatch/pumpwatch/internal/metrics"
	"github.com/pumpwatch/pumpwatch/internal/notify"
	"github.com/pumpwatch/pumpwatch/internal/sentiment"
	"github.com/pumpwatch/pumpwatch/internal/signal"
)

type fakeUniverse struct{ symbols []string }

func (f fakeUniverse) Universe(context.Context) []string { return f.symbols }

type fakeMarket struct {
	snapshots []market.Snapshot
	histories map[string][]float64
	block     chan struct{} // when set, Snapshots waits until closed
}

func (f *fakeMarket) Snapshots(ctx context.Context, universe []string) []market.Snapshot {
	if f.block != nil {
		<-f.block
	}
	return f.snapshots
}

func (f *fakeMarket) Histories(ctx context.Context, symbols []string) map[string][]float64 {
	if f.histories == nil {
		return map[string][]float64{}
	}
	return f.histories
}

type fakeNotifier struct {
	mu      sync.Mutex
	batches [][]signal.Signal
	err     error
}

func (f *fakeNotifier) Notify(ctx context.Context, signals []signal.Signal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, signals)
	return f.err
}

func (f *fakeNotifier) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func newTestDetector(symbols []string, m *fakeMarket, n notify.Notifier) (*Detector, *signal.Log) {
	lg := signal.NewLog()
	d := New(time.Minute, Deps{
		Universe: fakeUniverse{symbols},
		Market:   m,
		Scorer:   sentiment.NewCalculator(),
		Notifier: n,
		Log:      lg,
		Metrics:  metrics.NewRegistry(),
	})
	return d, lg
}

// Two modest symbols: neither clears the score floor, so the cycle
// completes with an empty batch and no outbound message.
func TestCycleBelowThresholdEmitsNothing(t *testing.T) {
	m := &fakeMarket{snapshots: []market.Snapshot{
		{Symbol: "AAAUSDT", Volume: 1000, PriceChangePercent: 0.5},
		{Symbol: "BBBUSDT", Volume: 100, PriceChangePercent: 10},
	}}
	n := &fakeNotifier{}
	d, lg := newTestDetector([]string{"AAAUSDT", "BBBUSDT"}, m, n)

	batch, err := d.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Empty(t, batch)
	assert.Equal(t, 0, n.calls())
	assert.Equal(t, 0, lg.Len())

	st := d.Status()
	assert.Equal(t, StateIdle, st.State)
	assert.Equal(t, uint64(1), st.CyclesRun)
	assert.Empty(t, st.LastError)
}

// One symbol spikes hard against the batch average while its price change
// is still inside the entry window. Volume term saturates at 1, the spike
// boost adds 0.1: 0.7 + 0.3*0.009 + 0.1 = 0.8027.
func TestCycleEmitsSignalInsidePriceWindow(t *testing.T) {
	m := &fakeMarket{snapshots: []market.Snapshot{
		{Symbol: "AAAUSDT", Volume: 1000, PriceChangePercent: 0.5},
		{Symbol: "BBBUSDT", Volume: 100, PriceChangePercent: 10},
		{Symbol: "CCCUSDT", Volume: 8000, PriceChangePercent: 0.9},
		{Symbol: "DDDUSDT", Volume: 100, PriceChangePercent: 0.2},
	}}
	n := &fakeNotifier{}
	d, lg := newTestDetector([]string{"AAAUSDT", "BBBUSDT", "CCCUSDT", "DDDUSDT"}, m, n)

	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return fixed }

	batch, err := d.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, batch, 1)

	got := batch[0]
	assert.Equal(t, "CCCUSDT", got.Symbol)
	assert.InDelta(t, 0.8027, got.SentimentScore, 1e-9)
	assert.Equal(t, signal.ActionBuy, got.Action)
	assert.Equal(t, fixed, got.Timestamp)

	require.Equal(t, 1, n.calls())
	assert.Equal(t, 1, lg.Len())

	rendered := notify.RenderBatch(batch)
	assert.Contains(t, rendered, "🔸 Symbol: CCCUSDT")
	assert.Contains(t, rendered, "🗣 Sentiment Score: 0.80")
}

// A runner that already moved 5% scores high but sits outside the price
// window, so it never becomes a signal.
func TestCyclePriceWindowExcludesRunner(t *testing.T) {
	m := &fakeMarket{snapshots: []market.Snapshot{
		{Symbol: "AAAUSDT", Volume: 1000, PriceChangePercent: 0.5},
		{Symbol: "BBBUSDT", Volume: 100, PriceChangePercent: 10},
		{Symbol: "EEEUSDT", Volume: 8000, PriceChangePercent: 5},
		{Symbol: "DDDUSDT", Volume: 100, PriceChangePercent: 0.2},
	}}
	n := &fakeNotifier{}
	d, lg := newTestDetector([]string{"AAAUSDT", "BBBUSDT", "EEEUSDT", "DDDUSDT"}, m, n)

	batch, err := d.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Empty(t, batch)
	assert.Equal(t, 0, n.calls())
	assert.Equal(t, 0, lg.Len())
}

// One NaN volume turns the batch mean, and with it every score, into NaN.
// Such a batch must emit nothing: the log feeds straight into JSON
// encoding, where a single NaN entry would fail every request after it.
func TestCycleNonFiniteVolumeEmitsNothing(t *testing.T) {
	m := &fakeMarket{snapshots: []market.Snapshot{
		{Symbol: "NNNUSDT", Volume: math.NaN(), PriceChangePercent: 0.3},
		{Symbol: "AAAUSDT", Volume: 1000, PriceChangePercent: 0.5},
	}}
	n := &fakeNotifier{}
	d, lg := newTestDetector([]string{"NNNUSDT", "AAAUSDT"}, m, n)

	batch, err := d.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Empty(t, batch)
	assert.Equal(t, 0, n.calls())
	assert.Equal(t, 0, lg.Len())

	_, err = json.Marshal(lg.Snapshot())
	require.NoError(t, err)
}

// With enough history the indicator formula takes over, and a steady
// uptrend scores below the floor where the fallback would have emitted.
func TestCycleHistoryDowngradesScore(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 * math.Pow(1.05, float64(i))
	}
	m := &fakeMarket{
		snapshots: []market.Snapshot{
			{Symbol: "AAAUSDT", Volume: 1000, PriceChangePercent: 0.5},
			{Symbol: "BBBUSDT", Volume: 100, PriceChangePercent: 10},
			{Symbol: "CCCUSDT", Volume: 8000, PriceChangePercent: 0.9},
			{Symbol: "DDDUSDT", Volume: 100, PriceChangePercent: 0.2},
		},
		histories: map[string][]float64{"CCCUSDT": closes},
	}
	n := &fakeNotifier{}
	d, lg := newTestDetector([]string{"AAAUSDT", "BBBUSDT", "CCCUSDT", "DDDUSDT"}, m, n)

	batch, err := d.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Empty(t, batch)
	assert.Equal(t, 0, lg.Len())
}

func TestCycleAbortsWithoutUniverse(t *testing.T) {
	n := &fakeNotifier{}
	d, lg := newTestDetector(nil, &fakeMarket{}, n)

	batch, err := d.RunCycle(context.Background())
	require.Error(t, err)
	assert.Empty(t, batch)
	assert.Equal(t, 0, n.calls())
	assert.Equal(t, 0, lg.Len())

	st := d.Status()
	assert.Equal(t, StateIdle, st.State)
	assert.Equal(t, uint64(1), st.CyclesRun)
	assert.NotEmpty(t, st.LastError)
}

func TestCycleAbortsWithoutSnapshots(t *testing.T) {
	n := &fakeNotifier{}
	d, _ := newTestDetector([]string{"AAAUSDT"}, &fakeMarket{}, n)

	_, err := d.RunCycle(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, n.calls())
}

func TestCycleSkipsWhileRunning(t *testing.T) {
	m := &fakeMarket{block: make(chan struct{})}
	d, _ := newTestDetector([]string{"AAAUSDT"}, m, &fakeNotifier{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		d.RunCycle(context.Background())
	}()

	require.Eventually(t, func() bool {
		return d.Status().State == StateFetching
	}, time.Second, 5*time.Millisecond)

	_, err := d.RunCycle(context.Background())
	assert.ErrorIs(t, err, ErrCycleRunning)

	close(m.block)
	<-done

	// The skipped trigger does not count as a cycle.
	assert.Equal(t, uint64(1), d.Status().CyclesRun)
}

// Scoring the same inputs twice yields the same scores, but the log keeps
// both entries.
func TestLogGrowsAcrossIdenticalCycles(t *testing.T) {
	m := &fakeMarket{snapshots: []market.Snapshot{
		{Symbol: "AAAUSDT", Volume: 1000, PriceChangePercent: 0.5},
		{Symbol: "BBBUSDT", Volume: 100, PriceChangePercent: 10},
		{Symbol: "CCCUSDT", Volume: 8000, PriceChangePercent: 0.9},
		{Symbol: "DDDUSDT", Volume: 100, PriceChangePercent: 0.2},
	}}
	n := &fakeNotifier{}
	d, lg := newTestDetector([]string{"AAAUSDT", "BBBUSDT", "CCCUSDT", "DDDUSDT"}, m, n)

	first, err := d.RunCycle(context.Background())
	require.NoError(t, err)
	second, err := d.RunCycle(context.Background())
	require.NoError(t, err)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].SentimentScore, second[0].SentimentScore)
	assert.Equal(t, 2, lg.Len())
	assert.Equal(t, 2, n.calls())
}

func TestNotifyFailureDoesNotAbortCycle(t *testing.T) {
	m := &fakeMarket{snapshots: []market.Snapshot{
		{Symbol: "AAAUSDT", Volume: 1000, PriceChangePercent: 0.5},
		{Symbol: "BBBUSDT", Volume: 100, PriceChangePercent: 10},
		{Symbol: "CCCUSDT", Volume: 8000, PriceChangePercent: 0.9},
		{Symbol: "DDDUSDT", Volume: 100, PriceChangePercent: 0.2},
	}}
	n := &fakeNotifier{err: errors.New("telegram down")}
	d, lg := newTestDetector([]string{"AAAUSDT", "BBBUSDT", "CCCUSDT", "DDDUSDT"}, m, n)

	batch, err := d.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Len(t, batch, 1)
	assert.Equal(t, 1, lg.Len())
	assert.Empty(t, d.Status().LastError)
}

func TestRunFirstCycleImmediate(t *testing.T) {
	m := &fakeMarket{snapshots: []market.Snapshot{
		{Symbol: "AAAUSDT", Volume: 1000, PriceChangePercent: 0.5},
	}}
	d, _ := newTestDetector([]string{"AAAUSDT"}, m, &fakeNotifier{})
	d.interval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(ctx) }()

	require.Eventually(t, func() bool {
		return d.Status().CyclesRun >= 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
}
