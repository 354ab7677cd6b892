package indicators

import (
	"fmt"

	"github.com/kanastasov/Forex-Strategy-Builder-sub001/internal/strategy"
	"github.com/kanastasov/Forex-Strategy-Builder-sub001/pkg/types"
)

var macdLogic = []string{
	"The MACD line crosses the Signal line upward",
	"The MACD line is higher than zero",
}

// MACD compares a fast and a slow EMA of the close price
type MACD struct{}

func (MACD) Name() string { return "MACD" }

func (MACD) IsReversal() bool { return false }

func (MACD) SupportsSlot(strategy.SlotType) bool { return true }

func (m MACD) Defaults(slotType strategy.SlotType) strategy.IndicatorParams {
	return strategy.IndicatorParams{
		IndicatorName: m.Name(),
		SlotType:      slotType,
		ListParams:    []strategy.ListParam{logicParam(macdLogic, 0)},
		NumParams: []strategy.NumericParam{
			{Caption: "Fast period", Value: 12, Min: 1, Max: 100, Point: 0, Enabled: true},
			{Caption: "Slow period", Value: 26, Min: 2, Max: 200, Point: 0, Enabled: true},
			{Caption: "Signal period", Value: 9, Min: 1, Max: 100, Point: 0, Enabled: true},
		},
	}
}

func (m MACD) Calculate(bars []types.OHLCV, params strategy.IndicatorParams) (Signals, error) {
	fast := int(numParam(params, 0, 12))
	slow := int(numParam(params, 1, 26))
	signal := int(numParam(params, 2, 9))
	if fast < 1 || slow < 1 || signal < 1 {
		return Signals{}, fmt.Errorf("%s: periods must be positive (%d, %d, %d)", m.Name(), fast, slow, signal)
	}

	closes := types.Closes(bars)
	fastEMA := emaSeries(closes, fast)
	slowEMA := emaSeries(closes, slow)
	line := nanSeries(len(closes))
	for i := range closes {
		if ready(fastEMA[i], slowEMA[i]) {
			line[i] = fastEMA[i] - slowEMA[i]
		}
	}
	signalLine := emaSeriesNaN(line, signal)

	bullish := make([]bool, len(bars))
	bearish := make([]bool, len(bars))
	crossing := listIndex(params, 0) == 0
	for i := 1; i < len(bars); i++ {
		if crossing {
			if !ready(line[i], line[i-1], signalLine[i], signalLine[i-1]) {
				continue
			}
			bullish[i] = line[i-1] <= signalLine[i-1] && line[i] > signalLine[i]
			bearish[i] = line[i-1] >= signalLine[i-1] && line[i] < signalLine[i]
		} else {
			if !ready(line[i]) {
				continue
			}
			bullish[i] = line[i] > 0
			bearish[i] = line[i] < 0
		}
	}
	return newSignals(params.SlotType, bullish, bearish), nil
}
