package optimizer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kanastasov/Forex-Strategy-Builder-sub001/internal/backtest"
	"github.com/kanastasov/Forex-Strategy-Builder-sub001/internal/monitoring"
	"github.com/kanastasov/Forex-Strategy-Builder-sub001/internal/strategy"
)

const (
	// SecondChanceBalance is the best balance above which an unimproved strategy may still be explored
	SecondChanceBalance = 500.0
	// SecondChancePercent is the chance of that exploration
	SecondChancePercent = 10

	ImprovedCycles     = 3
	SecondChanceCycles = 1
)

// Result summarizes one optimization pass
type Result struct {
	RunID          string           `json:"run_id"`
	InitialBalance float64          `json:"initial_balance"`
	FinalBalance   float64          `json:"final_balance"`
	Metrics        backtest.Metrics `json:"metrics"`
	Cycles         int              `json:"cycles"`
	Evaluations    int              `json:"evaluations"`
	Accepted       int              `json:"accepted"`
	Restores       int              `json:"restores"`
	Cancelled      bool             `json:"cancelled"`
	Duration       time.Duration    `json:"duration"`
	Parameters     []ParameterState `json:"parameters,omitempty"`
}

// Engine runs the local search. One engine serves one run at a time.
type Engine struct {
	backtester Backtester
	catalog    IndicatorCatalog
	rng        RandomSource
	opts       Options
	logger     *zap.Logger
	tracer     Tracer

	// run state
	runID        string
	live         *strategy.Strategy
	best         *Snapshot
	params       []*Parameter
	evaluations  int
	accepted     int
	restores     int
	wasCancelled bool
}

// NewEngine creates an optimization engine. A nil logger discards output.
func NewEngine(bt Backtester, catalog IndicatorCatalog, rng RandomSource, opts Options, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		backtester: bt,
		catalog:    catalog,
		rng:        rng,
		opts:       opts,
		logger:     logger,
	}
}

// SetTracer attaches an observer of every evaluation
func (e *Engine) SetTracer(t Tracer) {
	e.tracer = t
}

// begin binds the engine to the strategy and builds its parameters
func (e *Engine) begin(s *strategy.Strategy) {
	e.live = s
	e.best = nil
	e.evaluations = 0
	e.accepted = 0
	e.restores = 0
	e.wasCancelled = false

	e.params = e.params[:0]
	for _, slot := range s.Slots {
		for i := range slot.Params.NumParams {
			e.params = append(e.params, newIndicatorParameter(s, slot.ID, i))
		}
	}
	for _, kind := range protectionKinds {
		e.params = append(e.params, newProtectionParameter(s, kind, e.opts.FractionalPips))
	}
}

// Optimize runs one pass over s, mutating it in place. On return s holds the
// best configuration found. Cancellation is reported in the result, not as an
// error. An oracle failure ends the pass with s at its best accepted state.
func (e *Engine) Optimize(ctx context.Context, s *strategy.Strategy, improved bool) (Result, error) {
	start := time.Now()
	res := Result{RunID: uuid.NewString()}
	if ctx.Err() != nil {
		res.Cancelled = true
		monitoring.RecordRun("cancelled")
		return res, nil
	}

	e.runID = res.RunID
	defer monitoring.ClearBestBalance(res.RunID)
	e.begin(s)
	if e.tracer != nil {
		e.tracer.Init(s)
	}
	if err := e.evaluateBaseline(); err != nil {
		monitoring.RecordRun("failed")
		return e.finish(res, start), err
	}
	res.InitialBalance = e.best.Balance()
	e.logger.Info("optimization started",
		zap.String("run_id", res.RunID),
		zap.String("strategy", s.Name),
		zap.Float64("balance", res.InitialBalance),
		zap.Bool("improved", improved))

	err := e.run(ctx, improved, &res)
	if err != nil {
		e.restore(e.best)
		e.logger.Error("optimization failed", zap.String("run_id", res.RunID), zap.Error(err))
		monitoring.RecordRun("failed")
		return e.finish(res, start), err
	}

	res = e.finish(res, start)
	status := "completed"
	if res.Cancelled {
		status = "cancelled"
	}
	monitoring.RecordRun(status)
	e.logger.Info("optimization finished",
		zap.String("run_id", res.RunID),
		zap.String("status", status),
		zap.Float64("initial_balance", res.InitialBalance),
		zap.Float64("final_balance", res.FinalBalance),
		zap.Int("evaluations", res.Evaluations),
		zap.Int("accepted", res.Accepted),
		zap.Duration("duration", res.Duration))
	return res, nil
}

func (e *Engine) run(ctx context.Context, improved bool, res *Result) error {
	cycles := 0
	switch {
	case improved:
		cycles = ImprovedCycles
	case e.best.Balance() > SecondChanceBalance && e.rng.Intn(100) < SecondChancePercent:
		cycles = SecondChanceCycles
		e.logger.Info("second chance exploration", zap.Float64("balance", e.best.Balance()))
	}

	for c := 0; c < cycles && !e.cancelled(ctx); c++ {
		res.Cycles++
		e.logger.Info("mutation cycle", zap.Int("cycle", c+1), zap.Int("of", cycles))
		if err := e.randomizeNumericParameters(ctx); err != nil {
			return err
		}
		for _, kind := range protectionKinds {
			if err := e.randomizeProtection(ctx, kind); err != nil {
				return err
			}
		}
	}

	e.logger.Info("simplifying strategy", zap.Float64("balance", e.best.Balance()))
	if err := e.removeNeedlessFilters(ctx); err != nil {
		return err
	}
	if err := e.normalizeSignalBehavior(ctx); err != nil {
		return err
	}
	for _, kind := range protectionKinds {
		if err := e.removeProtection(ctx, kind); err != nil {
			return err
		}
	}

	if !e.opts.UseDefaultIndicatorValues {
		if err := e.shrinkToDefaults(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) finish(res Result, start time.Time) Result {
	if e.best != nil {
		res.FinalBalance = e.best.Balance()
		res.Metrics = e.best.Metrics()
	}
	res.Evaluations = e.evaluations
	res.Accepted = e.accepted
	res.Restores = e.restores
	res.Cancelled = e.wasCancelled
	res.Duration = time.Since(start)
	res.Parameters = make([]ParameterState, 0, len(e.params))
	for _, p := range e.params {
		res.Parameters = append(res.Parameters, p.State())
	}
	return res
}
