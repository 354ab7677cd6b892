package indicators

import (
	"math"

	"github.com/kanastasov/Forex-Strategy-Builder-sub001/internal/strategy"
)

// Series helpers. Bars without enough history hold NaN.

func smaSeries(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period < 1 || len(values) < period {
		return out
	}
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// emaSeries seeds with the SMA of the first period values
func emaSeries(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period < 1 || len(values) < period {
		return out
	}
	alpha := 2.0 / float64(period+1)
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	out[period-1] = sum / float64(period)
	for i := period; i < len(values); i++ {
		out[i] = values[i]*alpha + out[i-1]*(1-alpha)
	}
	return out
}

// emaSeriesNaN runs an EMA over a series that starts with NaN values
func emaSeriesNaN(values []float64, period int) []float64 {
	start := 0
	for start < len(values) && math.IsNaN(values[start]) {
		start++
	}
	out := nanSeries(len(values))
	tail := emaSeries(values[start:], period)
	copy(out[start:], tail)
	return out
}

func stdDevSeries(values, mean []float64, period int) []float64 {
	out := nanSeries(len(values))
	for i := period - 1; i < len(values); i++ {
		if i < 0 || math.IsNaN(mean[i]) {
			continue
		}
		variance := 0.0
		for j := i - period + 1; j <= i; j++ {
			d := values[j] - mean[i]
			variance += d * d
		}
		out[i] = math.Sqrt(variance / float64(period))
	}
	return out
}

// rsiSeries uses Wilder smoothing
func rsiSeries(closes []float64, period int) []float64 {
	out := nanSeries(len(closes))
	if period < 1 || len(closes) <= period {
		return out
	}

	avgGain, avgLoss := 0.0, 0.0
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// shiftSeries moves values forward by n bars
func shiftSeries(values []float64, n int) []float64 {
	if n <= 0 {
		return values
	}
	out := nanSeries(len(values))
	for i := n; i < len(values); i++ {
		out[i] = values[i-n]
	}
	return out
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func ready(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return false
		}
	}
	return true
}

// numParam returns the value of a numeric input or the fallback
func numParam(params strategy.IndicatorParams, i int, fallback float64) float64 {
	if i < len(params.NumParams) {
		return params.NumParams[i].Value
	}
	return fallback
}

func listIndex(params strategy.IndicatorParams, i int) int {
	if i < len(params.ListParams) {
		return params.ListParams[i].Index
	}
	return 0
}

func logicParam(items []string, index int) strategy.ListParam {
	return strategy.ListParam{
		Caption: "Logic",
		Items:   append([]string(nil), items...),
		Index:   index,
		Text:    items[index],
		Enabled: true,
	}
}
