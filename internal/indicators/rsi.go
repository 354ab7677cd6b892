package indicators

import (
	"fmt"

	"github.com/kanastasov/Forex-Strategy-Builder-sub001/internal/strategy"
	"github.com/kanastasov/Forex-Strategy-Builder-sub001/pkg/types"
)

var rsiLogic = []string{
	"RSI rises",
	"RSI falls",
	"RSI is higher than the Level line",
	"RSI is lower than the Level line",
	"RSI crosses the Level line upward",
	"RSI crosses the Level line downward",
}

// RSI calculates the Relative Strength Index. Short conditions mirror the
// long ones around the 50 line.
type RSI struct{}

func (RSI) Name() string { return "RSI" }

func (RSI) IsReversal() bool { return false }

func (RSI) SupportsSlot(strategy.SlotType) bool { return true }

func (r RSI) Defaults(slotType strategy.SlotType) strategy.IndicatorParams {
	return strategy.IndicatorParams{
		IndicatorName: r.Name(),
		SlotType:      slotType,
		ListParams:    []strategy.ListParam{logicParam(rsiLogic, 0)},
		NumParams: []strategy.NumericParam{
			{Caption: "Period", Value: 14, Min: 1, Max: 200, Point: 0, Enabled: true},
			{Caption: "Level", Value: 30, Min: 0, Max: 100, Point: 0, Enabled: true},
		},
	}
}

func (r RSI) Calculate(bars []types.OHLCV, params strategy.IndicatorParams) (Signals, error) {
	period := int(numParam(params, 0, 14))
	if period < 1 {
		return Signals{}, fmt.Errorf("%s: period must be positive, got %d", r.Name(), period)
	}
	level := numParam(params, 1, 30)
	mirror := 100 - level

	rsi := rsiSeries(types.Closes(bars), period)
	bullish := make([]bool, len(bars))
	bearish := make([]bool, len(bars))
	logic := listIndex(params, 0)

	for i := 1; i < len(bars); i++ {
		cur, prev := rsi[i], rsi[i-1]
		if !ready(cur, prev) {
			continue
		}
		switch logic {
		case 0:
			bullish[i] = cur > prev
			bearish[i] = cur < prev
		case 1:
			bullish[i] = cur < prev
			bearish[i] = cur > prev
		case 2:
			bullish[i] = cur > level
			bearish[i] = cur < mirror
		case 3:
			bullish[i] = cur < level
			bearish[i] = cur > mirror
		case 4:
			bullish[i] = prev <= level && cur > level
			bearish[i] = prev >= mirror && cur < mirror
		case 5:
			bullish[i] = prev >= level && cur < level
			bearish[i] = prev <= mirror && cur > mirror
		default:
			return Signals{}, fmt.Errorf("%s: unknown logic index %d", r.Name(), logic)
		}
	}
	return newSignals(params.SlotType, bullish, bearish), nil
}
