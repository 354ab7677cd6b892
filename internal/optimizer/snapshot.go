package optimizer

import (
	"go.uber.org/zap"

	"github.com/kanastasov/Forex-Strategy-Builder-sub001/internal/backtest"
	"github.com/kanastasov/Forex-Strategy-Builder-sub001/internal/strategy"
)

// Snapshot is the best configuration seen so far together with its metrics
type Snapshot struct {
	strategy *strategy.Strategy
	metrics  backtest.Metrics
}

// Balance is the fitness of the snapshot
func (sn *Snapshot) Balance() float64 {
	return sn.metrics.NetBalance
}

func (sn *Snapshot) Metrics() backtest.Metrics {
	return sn.metrics
}

// takeSnapshot copies the live strategy
func (e *Engine) takeSnapshot(m backtest.Metrics) *Snapshot {
	return &Snapshot{strategy: e.live.Clone(), metrics: m}
}

// restore rolls the live strategy back to the snapshot in place
func (e *Engine) restore(sn *Snapshot) {
	e.live.CopyFrom(sn.strategy)
	e.restores++
	e.logger.Debug("restored best configuration", zap.Float64("balance", sn.Balance()))
}
