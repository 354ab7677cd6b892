package indicators

import (
	"github.com/kanastasov/Forex-Strategy-Builder-sub001/internal/strategy"
	"github.com/kanastasov/Forex-Strategy-Builder-sub001/pkg/types"
)

// CloseAndReverse never closes on its own; positions are closed by an
// opposite entry signal reversing them.
type CloseAndReverse struct{}

func (CloseAndReverse) Name() string { return "Close and Reverse" }

func (CloseAndReverse) IsReversal() bool { return true }

func (CloseAndReverse) SupportsSlot(slotType strategy.SlotType) bool {
	return slotType == strategy.SlotTypeClose
}

func (c CloseAndReverse) Defaults(slotType strategy.SlotType) strategy.IndicatorParams {
	return strategy.IndicatorParams{
		IndicatorName: c.Name(),
		SlotType:      slotType,
	}
}

func (CloseAndReverse) Calculate(bars []types.OHLCV, _ strategy.IndicatorParams) (Signals, error) {
	return Signals{
		Long:  make([]bool, len(bars)),
		Short: make([]bool, len(bars)),
	}, nil
}
