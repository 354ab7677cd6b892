package backtest

import (
	"errors"
	"fmt"
	"math"

	"github.com/kanastasov/Forex-Strategy-Builder-sub001/internal/indicators"
	"github.com/kanastasov/Forex-Strategy-Builder-sub001/internal/strategy"
	"github.com/kanastasov/Forex-Strategy-Builder-sub001/pkg/types"
)

// maxCachedSignals bounds the per-fingerprint signal cache
const maxCachedSignals = 1024

// Settings are the account and instrument properties of a run
type Settings struct {
	InitialBalance float64
	EntryLots      float64
	Instrument     types.Instrument
}

// BacktestEngine replays a strategy over a fixed price series. It is
// deterministic and not safe for concurrent use.
type BacktestEngine struct {
	settings Settings
	bars     []types.OHLCV
	registry *indicators.Registry
	cache    map[string]indicators.Signals
}

func NewBacktestEngine(bars []types.OHLCV, registry *indicators.Registry, settings Settings) *BacktestEngine {
	if settings.EntryLots <= 0 {
		settings.EntryLots = 1
	}
	if settings.Instrument.Point <= 0 {
		settings.Instrument = types.DefaultInstrument()
	}
	return &BacktestEngine{
		settings: settings,
		bars:     bars,
		registry: registry,
		cache:    make(map[string]indicators.Signals),
	}
}

// Instrument returns the quoting properties used by the engine
func (b *BacktestEngine) Instrument() types.Instrument {
	return b.settings.Instrument
}

// CalculateSlot recomputes the signals of one slot
func (b *BacktestEngine) CalculateSlot(s *strategy.Strategy, slot int) error {
	if slot < 0 || slot >= len(s.Slots) {
		return fmt.Errorf("slot index %d out of range", slot)
	}
	_, err := b.slotSignals(s.Slots[slot])
	return err
}

func (b *BacktestEngine) slotSignals(slot *strategy.Slot) (indicators.Signals, error) {
	key := slot.Params.Fingerprint()
	if sig, ok := b.cache[key]; ok {
		return sig, nil
	}
	sig, err := b.registry.Calculate(b.bars, slot.Params)
	if err != nil {
		return indicators.Signals{}, fmt.Errorf("slot %s: %w", slot.Type, err)
	}
	if len(b.cache) >= maxCachedSignals {
		b.cache = make(map[string]indicators.Signals)
	}
	b.cache[key] = sig
	return sig, nil
}

// position is the single netted position of a run
type position struct {
	dir      float64 // +1 long, -1 short
	lots     float64
	price    float64
	stop     float64
	target   float64
	beArmed  bool
	hasStop  bool
	hasLimit bool
}

type run struct {
	b        *BacktestEngine
	s        *strategy.Strategy
	metrics  Metrics
	stats    tradeStats
	balance  float64
	pos      *position
	reversal bool
}

// Run backtests the strategy and returns its metrics
func (b *BacktestEngine) Run(s *strategy.Strategy) (Metrics, error) {
	if len(b.bars) < 2 {
		return Metrics{}, errors.New("not enough bars to backtest")
	}
	closeIdx := s.CloseSlot()
	if s.OpenSlot() < 0 || closeIdx < 0 {
		return Metrics{}, errors.New("strategy needs an open and a close slot")
	}

	var entries, entryFilters, exits, exitFilters []indicators.Signals
	for _, slot := range s.Slots {
		sig, err := b.slotSignals(slot)
		if err != nil {
			return Metrics{}, err
		}
		switch slot.Type {
		case strategy.SlotTypeOpen:
			entries = append(entries, sig)
		case strategy.SlotTypeOpenFilter:
			entryFilters = append(entryFilters, sig)
		case strategy.SlotTypeClose:
			exits = append(exits, sig)
		case strategy.SlotTypeCloseFilter:
			exitFilters = append(exitFilters, sig)
		}
	}

	r := &run{
		b:        b,
		s:        s,
		balance:  b.settings.InitialBalance,
		reversal: b.registry.IsReversal(s.Slots[closeIdx].Params.IndicatorName),
	}
	balanceDD := newDrawdownTracker(r.balance)
	equityDD := newDrawdownTracker(r.balance)
	barsInPosition := 0

	for i := 1; i < len(b.bars); i++ {
		bar := b.bars[i]
		j := i - 1 // decisions taken on the previous close are filled at this open

		if r.pos != nil && allAgree(exits, exitFilters, j, r.pos.dir > 0) {
			r.closeAll(bar.Open)
		}
		if dir := entryDirection(entries[0], entryFilters, j); dir != 0 {
			r.onEntrySignal(dir, bar.Open)
		}

		if r.pos != nil {
			r.checkProtections(bar)
		}
		if r.pos != nil && bar.Timestamp.YearDay() != b.bars[i-1].Timestamp.YearDay() {
			r.chargeRollover()
		}
		if r.pos != nil {
			barsInPosition++
		}

		balanceDD.update(r.balance)
		equityDD.update(r.balance + r.openProfit(bar.Close))
	}

	if r.pos != nil {
		r.closeAll(b.bars[len(b.bars)-1].Close)
	}
	balanceDD.update(r.balance)

	m := r.metrics
	m.NetBalance = r.balance - b.settings.InitialBalance
	m.MaxDrawdown = balanceDD.max
	m.EquityDrawdown = math.Max(equityDD.max, balanceDD.max)
	m.GrossProfit = r.stats.grossProfit
	m.GrossLoss = r.stats.grossLoss
	m.WinLossRatio = r.stats.winLossRatio()
	m.TimeInPosition = int(math.Round(100 * float64(barsInPosition) / float64(len(b.bars)-1)))
	return m, nil
}

func entryDirection(open indicators.Signals, filters []indicators.Signals, j int) float64 {
	long := open.Long[j]
	short := open.Short[j]
	for _, f := range filters {
		long = long && f.Long[j]
		short = short && f.Short[j]
	}
	switch {
	case long && !short:
		return 1
	case short && !long:
		return -1
	default:
		return 0
	}
}

// allAgree reports whether the close slot and every close filter signal an exit
func allAgree(exits, filters []indicators.Signals, j int, long bool) bool {
	for _, list := range [][]indicators.Signals{exits, filters} {
		for _, sig := range list {
			if long && !sig.Long[j] || !long && !sig.Short[j] {
				return false
			}
		}
	}
	return true
}

func (r *run) onEntrySignal(dir, price float64) {
	lots := r.b.settings.EntryLots
	if r.pos == nil {
		r.open(dir, lots, price)
		return
	}

	if dir == r.pos.dir {
		switch r.s.SameSignalAction {
		case strategy.SameActionAdd:
			r.open(dir, lots, price)
		case strategy.SameActionWinner:
			if r.openProfit(price) > 0 {
				r.open(dir, lots, price)
			}
		}
		return
	}

	action := r.s.OppSignalAction
	if r.reversal {
		action = strategy.OppositeActionReverse
	}
	switch action {
	case strategy.OppositeActionReduce:
		r.reduce(lots, price)
	case strategy.OppositeActionClose:
		r.closeAll(price)
	case strategy.OppositeActionReverse:
		r.closeAll(price)
		r.open(dir, lots, price)
	}
}

// open opens a new position or adds to the current one in the same direction
func (r *run) open(dir, lots, price float64) {
	inst := r.b.settings.Instrument
	spread := inst.Spread * inst.Point * lots * inst.LotSize
	r.balance -= spread
	r.metrics.ChargedSpread += spread
	r.metrics.SentOrders++
	r.metrics.ExecutedOrders++
	r.metrics.TradedLots += lots

	if r.pos == nil {
		r.pos = &position{dir: dir, lots: lots, price: price}
	} else {
		total := r.pos.lots + lots
		r.pos.price = (r.pos.price*r.pos.lots + price*lots) / total
		r.pos.lots = total
	}
	r.placeProtections()
}

func (r *run) placeProtections() {
	point := r.b.settings.Instrument.Point
	p := r.pos
	if r.s.UsePermanentSL && r.s.PermanentSL > 0 {
		p.stop = p.price - p.dir*float64(r.s.PermanentSL)*point
		if !p.hasStop {
			r.metrics.SentOrders++
		}
		p.hasStop = true
	}
	if r.s.UsePermanentTP && r.s.PermanentTP > 0 {
		p.target = p.price + p.dir*float64(r.s.PermanentTP)*point
		if !p.hasLimit {
			r.metrics.SentOrders++
		}
		p.hasLimit = true
	}
}

func (r *run) checkProtections(bar types.OHLCV) {
	p := r.pos
	point := r.b.settings.Instrument.Point

	if r.s.UseBreakEven && r.s.BreakEven > 0 && !p.beArmed {
		favorable := bar.High - p.price
		if p.dir < 0 {
			favorable = p.price - bar.Low
		}
		if favorable >= float64(r.s.BreakEven)*point {
			p.beArmed = true
			if !p.hasStop || (p.dir > 0 && p.stop < p.price) || (p.dir < 0 && p.stop > p.price) {
				p.stop = p.price
				if !p.hasStop {
					r.metrics.SentOrders++
				}
				p.hasStop = true
			}
		}
	}

	// the stop is assumed to fill first when both levels are touched
	if p.hasStop && (p.dir > 0 && bar.Low <= p.stop || p.dir < 0 && bar.High >= p.stop) {
		r.fillProtective(p.stop)
		return
	}
	if p.hasLimit && (p.dir > 0 && bar.High >= p.target || p.dir < 0 && bar.Low <= p.target) {
		r.fillProtective(p.target)
	}
}

// fillProtective closes the position through an already-sent stop or limit order
func (r *run) fillProtective(price float64) {
	r.metrics.SentOrders--
	r.closeAll(price)
}

func (r *run) reduce(lots, price float64) {
	if lots >= r.pos.lots {
		r.closeAll(price)
		return
	}
	r.realize(lots, price)
	r.pos.lots -= lots
}

func (r *run) closeAll(price float64) {
	r.realize(r.pos.lots, price)
	r.pos = nil
}

func (r *run) realize(lots, price float64) {
	inst := r.b.settings.Instrument
	pnl := (price - r.pos.price) * r.pos.dir * lots * inst.LotSize
	r.balance += pnl
	r.stats.record(pnl)
	r.metrics.SentOrders++
	r.metrics.ExecutedOrders++
}

func (r *run) chargeRollover() {
	inst := r.b.settings.Instrument
	swap := inst.SwapLong
	if r.pos.dir < 0 {
		swap = inst.SwapShort
	}
	money := swap * inst.Point * r.pos.lots * inst.LotSize
	r.balance += money
	r.metrics.ChargedRollover -= money
}

func (r *run) openProfit(price float64) float64 {
	if r.pos == nil {
		return 0
	}
	return (price - r.pos.price) * r.pos.dir * r.pos.lots * r.b.settings.Instrument.LotSize
}
