package optimizer

import (
	"time"

	"go.uber.org/zap"

	"github.com/kanastasov/Forex-Strategy-Builder-sub001/internal/backtest"
	opterrors "github.com/kanastasov/Forex-Strategy-Builder-sub001/internal/errors"
	"github.com/kanastasov/Forex-Strategy-Builder-sub001/internal/monitoring"
)

// runOracle backtests the live strategy and records the row in the trace
func (e *Engine) runOracle(operator string) (backtest.Metrics, time.Duration, error) {
	start := time.Now()
	m, err := e.backtester.Run(e.live)
	elapsed := time.Since(start)
	e.evaluations++
	if err != nil {
		return backtest.Metrics{}, elapsed, opterrors.NewBacktestError("optimizer", operator, err).
			WithContext("evaluation", e.evaluations)
	}
	if e.tracer != nil {
		e.tracer.AppendRow(e.live, m)
	}
	return m, elapsed, nil
}

// evaluateBaseline establishes the first best snapshot
func (e *Engine) evaluateBaseline() error {
	m, elapsed, err := e.runOracle("baseline")
	if err != nil {
		return err
	}
	monitoring.RecordEvaluation("baseline", true, elapsed)
	monitoring.UpdateBestBalance(e.runID, m.NetBalance)
	e.best = e.takeSnapshot(m)
	return nil
}

// evaluate compares the live strategy with the best snapshot. An accepted
// change advances the snapshot. A rejected one is left for the caller to undo.
func (e *Engine) evaluate(operator string, acceptTies bool) (bool, error) {
	m, elapsed, err := e.runOracle(operator)
	if err != nil {
		return false, err
	}

	best := e.best.Balance()
	accepted := m.NetBalance > best || (acceptTies && m.NetBalance >= best)
	monitoring.RecordEvaluation(operator, accepted, elapsed)
	e.logger.Debug("evaluation",
		zap.String("operator", operator),
		zap.Float64("balance", m.NetBalance),
		zap.Float64("best", best),
		zap.Bool("accepted", accepted),
		zap.Duration("elapsed", elapsed))

	if !accepted {
		return false, nil
	}

	e.accepted++
	e.best = e.takeSnapshot(m)
	for _, p := range e.params {
		if v := p.Value(); v != p.BestValue() {
			p.SetBestValue(v)
		}
	}
	monitoring.UpdateBestBalance(e.runID, m.NetBalance)
	return true, nil
}
