package indicators

import (
	"fmt"

	"github.com/kanastasov/Forex-Strategy-Builder-sub001/internal/strategy"
	"github.com/kanastasov/Forex-Strategy-Builder-sub001/pkg/types"
)

var bandsLogic = []string{
	"The bar closes below the Lower Band",
	"The bar closes above the Upper Band",
}

// BollingerBands represents the Bollinger Bands indicator
type BollingerBands struct{}

func (BollingerBands) Name() string { return "Bollinger Bands" }

func (BollingerBands) IsReversal() bool { return false }

func (BollingerBands) SupportsSlot(strategy.SlotType) bool { return true }

func (b BollingerBands) Defaults(slotType strategy.SlotType) strategy.IndicatorParams {
	return strategy.IndicatorParams{
		IndicatorName: b.Name(),
		SlotType:      slotType,
		ListParams:    []strategy.ListParam{logicParam(bandsLogic, 0)},
		NumParams: []strategy.NumericParam{
			{Caption: "Period", Value: 20, Min: 2, Max: 200, Point: 0, Enabled: true},
			{Caption: "Multiplier", Value: 2, Min: 0.3, Max: 5, Point: 2, Enabled: true},
		},
	}
}

func (b BollingerBands) Calculate(bars []types.OHLCV, params strategy.IndicatorParams) (Signals, error) {
	period := int(numParam(params, 0, 20))
	if period < 2 {
		return Signals{}, fmt.Errorf("%s: period must be at least 2, got %d", b.Name(), period)
	}
	multiplier := numParam(params, 1, 2)

	closes := types.Closes(bars)
	middle := smaSeries(closes, period)
	dev := stdDevSeries(closes, middle, period)

	bullish := make([]bool, len(bars))
	bearish := make([]bool, len(bars))
	breakout := listIndex(params, 0) == 1
	for i := range bars {
		if !ready(middle[i], dev[i]) {
			continue
		}
		upper := middle[i] + multiplier*dev[i]
		lower := middle[i] - multiplier*dev[i]
		if breakout {
			bullish[i] = closes[i] > upper
			bearish[i] = closes[i] < lower
		} else {
			bullish[i] = closes[i] < lower
			bearish[i] = closes[i] > upper
		}
	}
	return newSignals(params.SlotType, bullish, bearish), nil
}
