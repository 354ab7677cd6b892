package indicators

import (
	"fmt"

	"github.com/kanastasov/Forex-Strategy-Builder-sub001/internal/strategy"
	"github.com/kanastasov/Forex-Strategy-Builder-sub001/pkg/types"
)

var maLogic = []string{
	"The price crosses the Moving Average upward",
	"The price is higher than the Moving Average",
}

var maSmoothing = []string{"Simple", "Exponential"}

// MovingAverage compares the close price with a simple or exponential average
type MovingAverage struct{}

func (MovingAverage) Name() string { return "Moving Average" }

func (MovingAverage) IsReversal() bool { return false }

func (MovingAverage) SupportsSlot(strategy.SlotType) bool { return true }

func (m MovingAverage) Defaults(slotType strategy.SlotType) strategy.IndicatorParams {
	return strategy.IndicatorParams{
		IndicatorName: m.Name(),
		SlotType:      slotType,
		ListParams: []strategy.ListParam{
			logicParam(maLogic, 0),
			{Caption: "Smoothing method", Items: append([]string(nil), maSmoothing...), Index: 0, Text: maSmoothing[0], Enabled: true},
		},
		NumParams: []strategy.NumericParam{
			{Caption: "Period", Value: 14, Min: 1, Max: 200, Point: 0, Enabled: true},
			{Caption: "Shift", Value: 0, Min: 0, Max: 100, Point: 0, Enabled: true},
		},
	}
}

func (m MovingAverage) Calculate(bars []types.OHLCV, params strategy.IndicatorParams) (Signals, error) {
	period := int(numParam(params, 0, 14))
	shift := int(numParam(params, 1, 0))
	if period < 1 {
		return Signals{}, fmt.Errorf("%s: period must be positive, got %d", m.Name(), period)
	}

	closes := types.Closes(bars)
	var ma []float64
	if listIndex(params, 1) == 1 {
		ma = emaSeries(closes, period)
	} else {
		ma = smaSeries(closes, period)
	}
	ma = shiftSeries(ma, shift)

	bullish := make([]bool, len(bars))
	bearish := make([]bool, len(bars))
	crossing := listIndex(params, 0) == 0
	for i := 1; i < len(bars); i++ {
		if !ready(ma[i], ma[i-1]) {
			continue
		}
		if crossing {
			bullish[i] = closes[i-1] <= ma[i-1] && closes[i] > ma[i]
			bearish[i] = closes[i-1] >= ma[i-1] && closes[i] < ma[i]
		} else {
			bullish[i] = closes[i] > ma[i]
			bearish[i] = closes[i] < ma[i]
		}
	}
	return newSignals(params.SlotType, bullish, bearish), nil
}
