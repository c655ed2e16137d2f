package httpapi

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pumpwatch/pumpwatch/internal/detector"
	"github.com/pumpwatch/pumpwatch/internal/exchange/binance"
	"github.com/pumpwatch/pumpwatch/internal/metrics"
	"github.com/pumpwatch/pumpwatch/internal/signal"
)

type fakeSignals struct{ signals []signal.Signal }

func (f fakeSignals) Snapshot() []signal.Signal {
	if f.signals == nil {
		return []signal.Signal{}
	}
	return f.signals
}

func (f fakeSignals) Len() int { return len(f.signals) }

type fakeDetector struct{ status detector.Status }

func (f fakeDetector) Status() detector.Status { return f.status }

type fakeExchange struct{ health binance.Health }

func (f fakeExchange) Health() binance.Health { return f.health }

type fakeUniverse struct{ size int }

func (f fakeUniverse) Size() int { return f.size }

func newTestServer(t *testing.T, deps Deps) *Server {
	t.Helper()
	if deps.Signals == nil {
		deps.Signals = fakeSignals{}
	}
	if deps.Detector == nil {
		deps.Detector = fakeDetector{status: detector.Status{State: detector.StateIdle}}
	}
	if deps.Exchange == nil {
		deps.Exchange = fakeExchange{health: binance.Health{Healthy: true}}
	}
	if deps.Universe == nil {
		deps.Universe = fakeUniverse{}
	}

	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	s, err := NewServer(cfg, deps)
	require.NoError(t, err)
	return s
}

func doGet(s *Server, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestSignalsEndpoint(t *testing.T) {
	ts := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	s := newTestServer(t, Deps{Signals: fakeSignals{signals: []signal.Signal{
		{Symbol: "AAAUSDT", PriceChangePercent: 0.5, Volume: 1500, SentimentScore: 0.81, Action: signal.ActionBuy, Timestamp: ts},
		{Symbol: "BBBUSDT", PriceChangePercent: -1.2, Volume: 900, SentimentScore: 0.83, Action: signal.ActionBuy, Timestamp: ts},
	}}})

	rec := doGet(s, "/signals")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Len(t, rec.Header().Get("X-Request-ID"), 8)

	var resp SignalsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.DetectedSignals, 2)
	assert.Equal(t, "AAAUSDT", resp.DetectedSignals[0].Symbol)

	body := rec.Body.String()
	assert.Contains(t, body, `"priceChangePercent"`)
	assert.Contains(t, body, `"sentiment_score"`)
}

func TestSignalsEndpointEmptyLog(t *testing.T) {
	s := newTestServer(t, Deps{})

	rec := doGet(s, "/signals")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"detected_signals":[]`)
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, Deps{
		Signals:  fakeSignals{signals: []signal.Signal{{Symbol: "AAAUSDT"}}},
		Detector: fakeDetector{status: detector.Status{State: detector.StateIdle, CyclesRun: 3}},
		Exchange: fakeExchange{health: binance.Health{Healthy: true, SuccessRate: 1}},
		Universe: fakeUniverse{size: 412},
	})

	rec := doGet(s, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, uint64(3), resp.Detector.CyclesRun)
	assert.Equal(t, 412, resp.UniverseSize)
	assert.Equal(t, 1, resp.SignalCount)
}

func TestHealthEndpointDegraded(t *testing.T) {
	s := newTestServer(t, Deps{
		Exchange: fakeExchange{health: binance.Health{Healthy: false, ConsecutiveFailures: 7}},
	})

	rec := doGet(s, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, Deps{Metrics: metrics.NewRegistry().Handler()})

	rec := doGet(s, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pumpwatch_signals_total")
}

func TestNotFound(t *testing.T) {
	s := newTestServer(t, Deps{})

	rec := doGet(s, "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "endpoint_not_found", resp.Code)
}

func TestSignalsMethodNotAllowed(t *testing.T) {
	s := newTestServer(t, Deps{})

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/signals", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCORSAllowsLocalOrigins(t *testing.T) {
	s := newTestServer(t, Deps{})

	req := httptest.NewRequest(http.MethodGet, "/signals", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/signals", nil)
	req.Header.Set("Origin", "https://example.com")
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestNewServerRejectsBusyAddr(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	cfg := DefaultConfig()
	cfg.Addr = listener.Addr().String()
	_, err = NewServer(cfg, Deps{Signals: fakeSignals{}})
	assert.Error(t, err)
}
