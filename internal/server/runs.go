package server

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kanastasov/Forex-Strategy-Builder-sub001/internal/backtest"
	opterrors "github.com/kanastasov/Forex-Strategy-Builder-sub001/internal/errors"
	"github.com/kanastasov/Forex-Strategy-Builder-sub001/internal/indicators"
	"github.com/kanastasov/Forex-Strategy-Builder-sub001/internal/monitoring"
	"github.com/kanastasov/Forex-Strategy-Builder-sub001/internal/optimizer"
	"github.com/kanastasov/Forex-Strategy-Builder-sub001/internal/strategy"
	"github.com/kanastasov/Forex-Strategy-Builder-sub001/pkg/config"
	"github.com/kanastasov/Forex-Strategy-Builder-sub001/pkg/reporting"
	"github.com/kanastasov/Forex-Strategy-Builder-sub001/pkg/types"
)

var (
	ErrRunNotFound = errors.New("run not found")
	ErrRunFinished = errors.New("run already finished")
	ErrNoResult    = errors.New("run has no result yet")
)

type RunStatus string

const (
	RunQueued    RunStatus = "queued"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunCancelled RunStatus = "cancelled"
	RunFailed    RunStatus = "failed"
)

func (s RunStatus) Finished() bool {
	return s == RunCompleted || s == RunCancelled || s == RunFailed
}

// BarSource loads the price series of a run
type BarSource interface {
	Load(source, period string) ([]types.OHLCV, error)
}

// RunRequest starts one optimization pass. Empty fields fall back to the
// server configuration.
type RunRequest struct {
	Strategy *strategy.Strategy `json:"strategy" binding:"required"`
	DataFile string             `json:"data_file"`
	Period   string             `json:"period"`
	Improved *bool              `json:"improved"`
	Seed     int64              `json:"seed"`

	PreservePermanentSL       *bool `json:"preserve_permanent_sl"`
	PreservePermanentTP       *bool `json:"preserve_permanent_tp"`
	PreserveBreakEven         *bool `json:"preserve_break_even"`
	UseDefaultIndicatorValues *bool `json:"use_default_indicator_values"`
}

// RunView is the externally visible state of a run
type RunView struct {
	ID         string            `json:"id"`
	Status     RunStatus         `json:"status"`
	Strategy   string            `json:"strategy"`
	CreatedAt  time.Time         `json:"created_at"`
	StartedAt  *time.Time        `json:"started_at,omitempty"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
	Result     *optimizer.Result `json:"result,omitempty"`
	Error      string            `json:"error,omitempty"`
}

type run struct {
	view   RunView
	req    RunRequest
	ctx    context.Context
	cancel context.CancelFunc
	trace  *reporting.SearchTrace
	best   *strategy.Strategy
}

// Manager owns the run table. The mutex guards the table only; each
// optimization engine is confined to its worker goroutine.
type Manager struct {
	cfg      config.Config
	bars     BarSource
	registry *indicators.Registry
	pool     *WorkerPool
	health   *monitoring.HealthChecker
	logger   *zap.Logger

	mu       sync.RWMutex
	runs     map[string]*run
	errStats *opterrors.ErrorStats
}

func NewManager(cfg config.Config, bars BarSource, registry *indicators.Registry, health *monitoring.HealthChecker, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if health == nil {
		health = monitoring.NewHealthChecker()
	}
	workers := cfg.Server.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Manager{
		cfg:      cfg,
		bars:     bars,
		registry: registry,
		pool:     NewWorkerPool(workers, workers*8),
		health:   health,
		logger:   logger,
		runs:     make(map[string]*run),
		errStats: opterrors.NewErrorStats(20),
	}
}

func (m *Manager) Start() {
	m.pool.Start()
}

// Stop cancels every run and waits for the workers
func (m *Manager) Stop() {
	m.pool.Stop()
}

// Submit validates the request and queues a run
func (m *Manager) Submit(req RunRequest) (RunView, error) {
	if req.Strategy == nil {
		return RunView{}, opterrors.NewValidationError("server", "submit", "strategy is required")
	}
	req.Strategy.EnsureIDs()
	if err := req.Strategy.Validate(); err != nil {
		return RunView{}, opterrors.NewStrategyError("server", "submit", err)
	}
	for i, slot := range req.Strategy.Slots {
		if _, ok := m.registry.Get(slot.Params.IndicatorName); !ok {
			return RunView{}, opterrors.NewValidationError("server", "submit",
				fmt.Sprintf("slot %d: unknown indicator %q", i, slot.Params.IndicatorName))
		}
	}
	if req.DataFile == "" {
		req.DataFile = m.cfg.Backtest.DataFile
	} else {
		path, err := resolveDataFile(m.cfg.Backtest.DataDir, req.DataFile)
		if err != nil {
			return RunView{}, err
		}
		req.DataFile = path
	}
	if req.Period == "" {
		req.Period = m.cfg.Backtest.Period
	}
	if req.DataFile == "" {
		return RunView{}, opterrors.NewValidationError("server", "submit", "data_file is required")
	}

	ctx, cancel := context.WithCancel(m.pool.Context())
	r := &run{
		view: RunView{
			ID:        uuid.NewString(),
			Status:    RunQueued,
			Strategy:  req.Strategy.Name,
			CreatedAt: time.Now(),
		},
		req:    req,
		ctx:    ctx,
		cancel: cancel,
		trace:  reporting.NewSearchTrace(),
	}

	// once the job is queued the worker owns r.view; only the copy is read here
	m.mu.Lock()
	m.runs[r.view.ID] = r
	view := r.view
	m.mu.Unlock()

	if err := m.pool.Submit(Job{ID: view.ID, Run: func() { m.execute(r) }}); err != nil {
		cancel()
		m.mu.Lock()
		delete(m.runs, view.ID)
		m.mu.Unlock()
		return RunView{}, err
	}
	m.logger.Info("run queued", zap.String("run_id", view.ID), zap.String("strategy", view.Strategy))
	return view, nil
}

// resolveDataFile confines a client supplied data file to the data directory
func resolveDataFile(root, name string) (string, error) {
	if root == "" {
		return "", opterrors.NewValidationError("server", "submit", "data_file is not accepted: backtest.data_dir is not set")
	}
	if filepath.IsAbs(name) {
		return "", opterrors.NewValidationError("server", "submit", "data_file must be relative to the data directory")
	}
	path := filepath.Join(root, name)
	rel, err := filepath.Rel(filepath.Clean(root), path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", opterrors.NewValidationError("server", "submit", "data_file escapes the data directory")
	}
	return path, nil
}

// Get returns a copy of the run state
func (m *Manager) Get(id string) (RunView, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runs[id]
	if !ok {
		return RunView{}, ErrRunNotFound
	}
	return r.view, nil
}

// List returns every run, newest first
func (m *Manager) List() []RunView {
	m.mu.RLock()
	views := make([]RunView, 0, len(m.runs))
	for _, r := range m.runs {
		views = append(views, r.view)
	}
	m.mu.RUnlock()

	sort.Slice(views, func(i, j int) bool {
		return views[i].CreatedAt.After(views[j].CreatedAt)
	})
	return views
}

// ErrorRates returns the share of failed runs per error category
func (m *Manager) ErrorRates() map[string]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rates := make(map[string]float64, len(m.errStats.ErrorsByCategory))
	for category := range m.errStats.ErrorsByCategory {
		rates[string(category)] = m.errStats.GetErrorRate(category)
	}
	return rates
}

// RecentErrors returns the latest run failures, oldest first
func (m *Manager) RecentErrors() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.errStats.RecentErrors))
	for _, err := range m.errStats.RecentErrors {
		out = append(out, err.Error())
	}
	return out
}

// Cancel asks a queued or running run to stop. The run keeps its best
// configuration found so far.
func (m *Manager) Cancel(id string) (RunView, error) {
	m.mu.RLock()
	r, ok := m.runs[id]
	var view RunView
	if ok {
		view = r.view
	}
	m.mu.RUnlock()

	if !ok {
		return RunView{}, ErrRunNotFound
	}
	if view.Status.Finished() {
		return view, ErrRunFinished
	}
	r.cancel()
	m.logger.Info("run cancellation requested", zap.String("run_id", id))
	return view, nil
}

// Strategy returns a copy of the optimized strategy of a finished run
func (m *Manager) Strategy(id string) (*strategy.Strategy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	if r.best == nil {
		return nil, ErrNoResult
	}
	return r.best.Clone(), nil
}

// Trace returns the search trace of a finished run as CSV text
func (m *Manager) Trace(id string) ([]byte, error) {
	m.mu.RLock()
	r, ok := m.runs[id]
	var finished bool
	if ok {
		finished = r.view.Status.Finished()
	}
	m.mu.RUnlock()

	if !ok {
		return nil, ErrRunNotFound
	}
	if !finished {
		return nil, ErrNoResult
	}
	return r.trace.Bytes(), nil
}

func (m *Manager) execute(r *run) {
	defer r.cancel()
	logger := m.logger.With(zap.String("run_id", r.view.ID))

	started := time.Now()
	m.mu.Lock()
	r.view.Status = RunRunning
	r.view.StartedAt = &started
	m.mu.Unlock()
	m.health.RunStarted()

	s := r.req.Strategy
	res, err := m.optimize(r, logger)

	finished := time.Now()
	m.mu.Lock()
	r.view.FinishedAt = &finished
	switch {
	case err != nil:
		r.view.Status = RunFailed
		r.view.Error = err.Error()
	case res.Cancelled:
		r.view.Status = RunCancelled
	default:
		r.view.Status = RunCompleted
	}
	if err == nil || res.Evaluations > 0 {
		r.view.Result = &res
		r.best = s.Clone()
	}
	if err != nil {
		m.errStats.RecordError(err)
	}
	m.mu.Unlock()

	m.health.RunFinished(err)
	if err != nil {
		if category, ok := opterrors.CategoryOf(err); ok {
			monitoring.RecordError(string(category))
		}
		logger.Error("run failed", zap.Error(err))
		return
	}
	logger.Info("run finished",
		zap.String("status", string(r.view.Status)),
		zap.Float64("final_balance", res.FinalBalance))
}

func (m *Manager) optimize(r *run, logger *zap.Logger) (optimizer.Result, error) {
	bars, err := m.bars.Load(r.req.DataFile, r.req.Period)
	if err != nil {
		return optimizer.Result{}, opterrors.NewDataError("server", "load_bars", err).
			WithContext("data_file", r.req.DataFile)
	}

	bt := backtest.NewBacktestEngine(bars, m.registry, backtest.Settings{
		InitialBalance: m.cfg.Backtest.InitialBalance,
		EntryLots:      m.cfg.Backtest.EntryLots,
		Instrument:     m.cfg.Instrument,
	})

	seed := r.req.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	engine := optimizer.NewEngine(bt, m.registry, rand.New(rand.NewSource(seed)), m.options(r.req, bt.Instrument()), logger)
	engine.SetTracer(r.trace)

	improved := m.cfg.Optimizer.Improved
	if r.req.Improved != nil {
		improved = *r.req.Improved
	}
	return engine.Optimize(r.ctx, r.req.Strategy, improved)
}

func (m *Manager) options(req RunRequest, inst types.Instrument) optimizer.Options {
	opts := optimizer.OptionsFromConfig(m.cfg.Optimizer, inst)
	override := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	override(&opts.PreservePermanentSL, req.PreservePermanentSL)
	override(&opts.PreservePermanentTP, req.PreservePermanentTP)
	override(&opts.PreserveBreakEven, req.PreserveBreakEven)
	override(&opts.UseDefaultIndicatorValues, req.UseDefaultIndicatorValues)
	return opts
}
