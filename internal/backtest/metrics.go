package backtest

// Metrics are the scalar outputs of one backtest run. Money values are in
// account currency, NetBalance is the profit over the initial balance.
type Metrics struct {
	NetBalance      float64 `json:"net_balance"`
	MaxDrawdown     float64 `json:"max_drawdown"`
	GrossProfit     float64 `json:"gross_profit"`
	GrossLoss       float64 `json:"gross_loss"`
	ExecutedOrders  int     `json:"executed_orders"`
	TradedLots      float64 `json:"traded_lots"`
	TimeInPosition  int     `json:"time_in_position"`
	SentOrders      int     `json:"sent_orders"`
	ChargedSpread   float64 `json:"charged_spread"`
	ChargedRollover float64 `json:"charged_rollover"`
	WinLossRatio    float64 `json:"win_loss_ratio"`
	EquityDrawdown  float64 `json:"equity_drawdown"`
}

// tradeStats accumulates closed-trade results during a run
type tradeStats struct {
	wins        int
	losses      int
	grossProfit float64
	grossLoss   float64
}

func (t *tradeStats) record(pnl float64) {
	if pnl > 0 {
		t.wins++
		t.grossProfit += pnl
	} else if pnl < 0 {
		t.losses++
		t.grossLoss += pnl
	}
}

// winLossRatio is the share of winning trades among decided trades
func (t *tradeStats) winLossRatio() float64 {
	total := t.wins + t.losses
	if total == 0 {
		return 0
	}
	return float64(t.wins) / float64(total)
}

// drawdownTracker follows the largest drop from a running peak
type drawdownTracker struct {
	peak float64
	max  float64
}

func newDrawdownTracker(start float64) drawdownTracker {
	return drawdownTracker{peak: start}
}

func (d *drawdownTracker) update(value float64) {
	if value > d.peak {
		d.peak = value
	}
	if dd := d.peak - value; dd > d.max {
		d.max = dd
	}
}
