package indicators

import (
	"github.com/kanastasov/Forex-Strategy-Builder-sub001/internal/strategy"
	"github.com/kanastasov/Forex-Strategy-Builder-sub001/pkg/types"
)

// Indicator is a catalog entry: it declares its inputs and turns bars into
// per-bar slot signals
type Indicator interface {
	// Name is the catalog key stored in strategy files
	Name() string

	// Defaults returns the built-in inputs of the indicator for a slot type
	Defaults(slotType strategy.SlotType) strategy.IndicatorParams

	// SupportsSlot reports whether the indicator can be placed in a slot type
	SupportsSlot(slotType strategy.SlotType) bool

	// IsReversal reports whether the indicator closes positions only by reversing them
	IsReversal() bool

	// Calculate computes the slot signals for every bar
	Calculate(bars []types.OHLCV, params strategy.IndicatorParams) (Signals, error)
}

// Signals holds one flag per bar and direction. Meaning depends on the slot:
//   - open slot: enter long / enter short
//   - open filter: long allowed / short allowed
//   - close slot and close filters: exit long / exit short
type Signals struct {
	Long  []bool
	Short []bool
}

// newSignals maps bullish/bearish conditions onto the slot semantics
func newSignals(slotType strategy.SlotType, bullish, bearish []bool) Signals {
	switch slotType {
	case strategy.SlotTypeClose, strategy.SlotTypeCloseFilter:
		// a long is closed on bearish conditions and vice versa
		return Signals{Long: bearish, Short: bullish}
	default:
		return Signals{Long: bullish, Short: bearish}
	}
}
