package optimizer

import (
	"github.com/kanastasov/Forex-Strategy-Builder-sub001/internal/backtest"
	"github.com/kanastasov/Forex-Strategy-Builder-sub001/internal/strategy"
)

// Backtester is the fitness oracle. Run must be deterministic for a fixed
// strategy and price series and is never called concurrently by the engine.
type Backtester interface {
	Run(s *strategy.Strategy) (backtest.Metrics, error)
}

// SlotCalculator is implemented by oracles that can re-derive one slot
// after its inputs change
type SlotCalculator interface {
	CalculateSlot(s *strategy.Strategy, slot int) error
}

// IndicatorCatalog supplies built-in defaults and indicator traits
type IndicatorCatalog interface {
	DefaultParams(name string, slotType strategy.SlotType) (strategy.IndicatorParams, bool)
	IsReversal(name string) bool
}

// Tracer observes every evaluation of a run
type Tracer interface {
	// Init freezes the trace layout from the strategy at the start of a run
	Init(s *strategy.Strategy)
	AppendRow(s *strategy.Strategy, m backtest.Metrics)
}

// RandomSource is the randomness of one run. *rand.Rand satisfies it.
type RandomSource interface {
	Float64() float64
	Intn(n int) int
}
