package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	opterrors "github.com/kanastasov/Forex-Strategy-Builder-sub001/internal/errors"
	"github.com/kanastasov/Forex-Strategy-Builder-sub001/internal/indicators"
	"github.com/kanastasov/Forex-Strategy-Builder-sub001/internal/monitoring"
	"github.com/kanastasov/Forex-Strategy-Builder-sub001/internal/strategy"
	"github.com/kanastasov/Forex-Strategy-Builder-sub001/pkg/config"
	"github.com/kanastasov/Forex-Strategy-Builder-sub001/pkg/types"
)

type staticBars struct {
	bars    []types.OHLCV
	err     error
	release chan struct{}

	mu      sync.Mutex
	sources []string
}

func (s *staticBars) Load(source, _ string) ([]types.OHLCV, error) {
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	s.sources = append(s.sources, source)
	s.mu.Unlock()
	return s.bars, s.err
}

func (s *staticBars) loaded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sources...)
}

func sineBars(n int) []types.OHLCV {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]types.OHLCV, n)
	for i := range bars {
		price := 1.1 + 0.01*math.Sin(float64(i)/12)
		bars[i] = types.OHLCV{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      price,
			High:      price + 0.0008,
			Low:       price - 0.0008,
			Close:     price + 0.0002,
			Volume:    1000,
		}
	}
	return bars
}

func testConfig() config.Config {
	return config.Config{
		App:    config.AppConfig{Env: "test"},
		Server: config.ServerConfig{Workers: 1},
		Backtest: config.BacktestConfig{
			DataFile:       "bars.csv",
			DataDir:        "data",
			InitialBalance: 10000,
			EntryLots:      1,
		},
		Instrument: types.DefaultInstrument(),
	}
}

type testServer struct {
	manager *Manager
	health  *monitoring.HealthChecker
	router  *gin.Engine
}

func newTestServer(t *testing.T, bars BarSource) *testServer {
	t.Helper()
	return newTestServerWithConfig(t, testConfig(), bars)
}

func newTestServerWithConfig(t *testing.T, cfg config.Config, bars BarSource) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	registry := indicators.NewRegistry()
	health := monitoring.NewHealthChecker()
	manager := NewManager(cfg, bars, registry, health, nil)
	manager.Start()
	t.Cleanup(manager.Stop)

	h := &RunHandler{Runs: manager, Health: health}
	return &testServer{manager: manager, health: health, router: NewRouter("test", h, nil)}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    map[string]any  `json:"meta"`
}

func decodeRun(t *testing.T, w *httptest.ResponseRecorder) RunView {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	var view RunView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	return view
}

func maStrategy(t *testing.T) *strategy.Strategy {
	t.Helper()
	registry := indicators.NewRegistry()
	open, err := registry.NewSlot("Moving Average", strategy.SlotTypeOpen)
	require.NoError(t, err)
	closeSlot, err := registry.NewSlot("Close and Reverse", strategy.SlotTypeClose)
	require.NoError(t, err)
	return &strategy.Strategy{
		Name:             "ma",
		Slots:            []*strategy.Slot{open, closeSlot},
		SameSignalAction: strategy.SameActionNothing,
		OppSignalAction:  strategy.OppositeActionReverse,
	}
}

func waitFinished(t *testing.T, ts *testServer, id string) RunView {
	t.Helper()
	var view RunView
	require.Eventually(t, func() bool {
		var err error
		view, err = ts.manager.Get(id)
		return err == nil && view.Status.Finished()
	}, 10*time.Second, 10*time.Millisecond)
	return view
}

func TestRunLifecycle(t *testing.T) {
	ts := newTestServer(t, &staticBars{bars: sineBars(300)})

	w := ts.do(t, http.MethodPost, "/api/v1/runs", RunRequest{Strategy: maStrategy(t), Seed: 7})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	created := decodeRun(t, w)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, RunQueued, created.Status)

	view := waitFinished(t, ts, created.ID)
	assert.Equal(t, RunCompleted, view.Status)
	require.NotNil(t, view.Result)
	assert.GreaterOrEqual(t, view.Result.FinalBalance, view.Result.InitialBalance)

	w = ts.do(t, http.MethodGet, "/api/v1/runs/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, RunCompleted, decodeRun(t, w).Status)

	w = ts.do(t, http.MethodGet, "/api/v1/runs/"+created.ID+"/strategy", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Moving Average")

	w = ts.do(t, http.MethodGet, "/api/v1/runs/"+created.ID+"/report", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Body.String(), "Net Balance")

	w = ts.do(t, http.MethodGet, "/api/v1/runs", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var list envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, float64(1), list.Meta["count"])
	assert.Len(t, ts.manager.List(), 1)

	w = ts.do(t, http.MethodDelete, "/api/v1/runs/"+created.ID, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCreateRun_Rejected(t *testing.T) {
	ts := newTestServer(t, &staticBars{bars: sineBars(50)})

	noClose := maStrategy(t)
	noClose.Slots = noClose.Slots[:1]
	unknown := maStrategy(t)
	unknown.Slots[0].Params.IndicatorName = "Nope"

	tests := []struct {
		name string
		body any
	}{
		{"malformed json", "{"},
		{"missing strategy", map[string]any{"seed": 1}},
		{"no close slot", RunRequest{Strategy: noClose}},
		{"unknown indicator", RunRequest{Strategy: unknown}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, "/api/v1/runs", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
	assert.Empty(t, ts.manager.List())
}

func TestUnknownRun(t *testing.T) {
	ts := newTestServer(t, &staticBars{})

	for _, req := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/runs/missing"},
		{http.MethodDelete, "/api/v1/runs/missing"},
		{http.MethodGet, "/api/v1/runs/missing/strategy"},
		{http.MethodGet, "/api/v1/runs/missing/report"},
	} {
		w := ts.do(t, req.method, req.path, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, req.path)
	}
}

func TestCancelQueuedRun(t *testing.T) {
	source := &staticBars{bars: sineBars(300), release: make(chan struct{})}
	ts := newTestServer(t, source)

	// the single worker is held by the first run until the bars are released
	first, err := ts.manager.Submit(RunRequest{Strategy: maStrategy(t), Seed: 1})
	require.NoError(t, err)
	second, err := ts.manager.Submit(RunRequest{Strategy: maStrategy(t), Seed: 2})
	require.NoError(t, err)

	w := ts.do(t, http.MethodDelete, "/api/v1/runs/"+second.ID, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(t, http.MethodGet, "/api/v1/runs/"+second.ID+"/strategy", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	close(source.release)

	assert.Equal(t, RunCompleted, waitFinished(t, ts, first.ID).Status)
	view := waitFinished(t, ts, second.ID)
	assert.Equal(t, RunCancelled, view.Status)
	require.NotNil(t, view.Result)
	assert.True(t, view.Result.Cancelled)
	assert.Zero(t, view.Result.Evaluations)
}

func TestRunDataFailure(t *testing.T) {
	ts := newTestServer(t, &staticBars{err: errors.New("disk on fire")})

	created, err := ts.manager.Submit(RunRequest{Strategy: maStrategy(t)})
	require.NoError(t, err)

	view := waitFinished(t, ts, created.ID)
	assert.Equal(t, RunFailed, view.Status)
	assert.Contains(t, view.Error, "disk on fire")
	assert.Nil(t, view.Result)

	_, err = ts.manager.Strategy(created.ID)
	assert.ErrorIs(t, err, ErrNoResult)
	assert.Equal(t, "degraded", ts.health.Status().Status)
	assert.Equal(t, map[string]float64{"DATA": 1}, ts.manager.ErrorRates())

	recent := ts.manager.RecentErrors()
	require.Len(t, recent, 1)
	assert.Contains(t, recent[0], "disk on fire")

	w := ts.do(t, http.MethodGet, "/api/v1/runs", nil)
	var list envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Meta["recent_errors"], 1)
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	ts := newTestServer(t, &staticBars{})

	w := ts.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)

	w = ts.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "optimizer_evaluation_duration_seconds")
}

func TestSubmit_ConcurrentWithWorkers(t *testing.T) {
	cfg := testConfig()
	cfg.Server.Workers = 4
	ts := newTestServerWithConfig(t, cfg, &staticBars{bars: sineBars(60)})

	ids := make([]string, 0, 50)
	for i := 0; i < 50; i++ {
		req := RunRequest{Strategy: maStrategy(t), Seed: int64(i)}
		var (
			view RunView
			err  error
		)
		require.Eventually(t, func() bool {
			view, err = ts.manager.Submit(req)
			return !errors.Is(err, ErrQueueFull)
		}, 10*time.Second, time.Millisecond)
		require.NoError(t, err)
		require.NotEmpty(t, view.ID)
		assert.Equal(t, RunQueued, view.Status)
		assert.Equal(t, "ma", view.Strategy)
		ids = append(ids, view.ID)
	}
	for _, id := range ids {
		assert.Equal(t, RunCompleted, waitFinished(t, ts, id).Status)
	}
	assert.Len(t, ts.manager.List(), 50)
}

func TestCreateRun_DataFileConfinedToDataDir(t *testing.T) {
	source := &staticBars{bars: sineBars(60)}
	ts := newTestServer(t, source)

	for _, name := range []string{"../../etc/passwd", "/etc/passwd", "sub/../../bars.csv"} {
		w := ts.do(t, http.MethodPost, "/api/v1/runs", RunRequest{Strategy: maStrategy(t), DataFile: name})
		assert.Equal(t, http.StatusBadRequest, w.Code, name)
		assert.Contains(t, w.Body.String(), "VALIDATION", name)
	}
	assert.Empty(t, ts.manager.List())

	w := ts.do(t, http.MethodPost, "/api/v1/runs", RunRequest{Strategy: maStrategy(t), DataFile: "EURUSD.csv"})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	waitFinished(t, ts, decodeRun(t, w).ID)

	w = ts.do(t, http.MethodPost, "/api/v1/runs", RunRequest{Strategy: maStrategy(t)})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	waitFinished(t, ts, decodeRun(t, w).ID)

	assert.Equal(t, []string{filepath.Join("data", "EURUSD.csv"), "bars.csv"}, source.loaded())
}

func TestResolveDataFile(t *testing.T) {
	tests := []struct {
		name    string
		root    string
		file    string
		want    string
		wantErr bool
	}{
		{"plain", "data", "EURUSD.csv", filepath.Join("data", "EURUSD.csv"), false},
		{"nested", "data", "fx/EURUSD.csv", filepath.Join("data", "fx", "EURUSD.csv"), false},
		{"inner dots", "data", "fx/../EURUSD.csv", filepath.Join("data", "EURUSD.csv"), false},
		{"parent", "data", "../secret.csv", "", true},
		{"absolute", "data", "/etc/passwd", "", true},
		{"dotted name", "data", "..bars.csv", filepath.Join("data", "..bars.csv"), false},
		{"no root", "", "EURUSD.csv", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveDataFile(tt.root, tt.file)
			if tt.wantErr {
				require.Error(t, err)
				category, _ := opterrors.CategoryOf(err)
				assert.Equal(t, opterrors.ErrorCategoryValidation, category)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWorkerPool_Submit(t *testing.T) {
	pool := NewWorkerPool(1, 1)

	require.NoError(t, pool.Submit(Job{ID: "a", Run: func() {}}))
	assert.ErrorIs(t, pool.Submit(Job{ID: "b", Run: func() {}}), ErrQueueFull)

	done := make(chan struct{})
	pool.Start()
	// the worker drains "a" first
	require.Eventually(t, func() bool {
		return pool.Submit(Job{ID: "c", Run: func() { close(done) }}) == nil
	}, 5*time.Second, time.Millisecond)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not run")
	}

	pool.Stop()
	pool.Stop()
	assert.ErrorIs(t, pool.Submit(Job{ID: "d", Run: func() {}}), ErrPoolStopped)
	assert.Error(t, pool.Context().Err())
}
