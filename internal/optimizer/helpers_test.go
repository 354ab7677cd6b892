package optimizer

import (
	"errors"

	"github.com/kanastasov/Forex-Strategy-Builder-sub001/internal/backtest"
	"github.com/kanastasov/Forex-Strategy-Builder-sub001/internal/strategy"
)

// fakeOracle scores strategies with a plain function
type fakeOracle struct {
	score   func(s *strategy.Strategy) float64
	calls   int
	failAt  int
	recalcs []int
}

func constantOracle(balance float64) *fakeOracle {
	return &fakeOracle{score: func(*strategy.Strategy) float64 { return balance }}
}

func (f *fakeOracle) Run(s *strategy.Strategy) (backtest.Metrics, error) {
	f.calls++
	if f.failAt > 0 && f.calls == f.failAt {
		return backtest.Metrics{}, errors.New("oracle crashed")
	}
	return backtest.Metrics{NetBalance: f.score(s)}, nil
}

func (f *fakeOracle) CalculateSlot(_ *strategy.Strategy, slot int) error {
	f.recalcs = append(f.recalcs, slot)
	return nil
}

// fakeCatalog knows one indicator, "Test", whose period defaults to 10
type fakeCatalog struct {
	reversal map[string]bool
}

func (c fakeCatalog) DefaultParams(name string, slotType strategy.SlotType) (strategy.IndicatorParams, bool) {
	if name != "Test" {
		return strategy.IndicatorParams{}, false
	}
	return testParams(10, 30), true
}

func (c fakeCatalog) IsReversal(name string) bool {
	return c.reversal[name]
}

// scriptedRandom replays queued draws, then falls back to fixed values
type scriptedRandom struct {
	ints   []int
	floats []float64
}

func (r *scriptedRandom) Intn(n int) int {
	if len(r.ints) == 0 {
		return 0
	}
	v := r.ints[0]
	r.ints = r.ints[1:]
	return v % n
}

func (r *scriptedRandom) Float64() float64 {
	if len(r.floats) == 0 {
		return 0.5
	}
	v := r.floats[0]
	r.floats = r.floats[1:]
	return v
}

func testParams(period, level float64) strategy.IndicatorParams {
	return strategy.IndicatorParams{
		IndicatorName: "Test",
		ListParams: []strategy.ListParam{{
			Caption: "Logic",
			Items:   []string{"Rises", "Is higher than the Level line"},
			Index:   0,
			Text:    "Rises",
			Enabled: true,
		}},
		NumParams: []strategy.NumericParam{
			{Caption: "Period", Value: period, Min: 1, Max: 100, Point: 0, Enabled: true},
			{Caption: "Level", Value: level, Min: 0, Max: 100, Point: 0, Enabled: true},
		},
	}
}

// testStrategy has an open slot, two open filters, a close slot and a close filter
func testStrategy() *strategy.Strategy {
	s := &strategy.Strategy{
		Name:             "test",
		SameSignalAction: strategy.SameActionAdd,
		OppSignalAction:  strategy.OppositeActionReverse,
		UsePermanentSL:   true,
		PermanentSL:      30,
		UsePermanentTP:   false,
		PermanentTP:      100,
		UseBreakEven:     true,
		BreakEven:        40,
	}
	s.Slots = []*strategy.Slot{
		strategy.NewSlot(strategy.SlotTypeOpen, testParams(20, 30)),
		strategy.NewSlot(strategy.SlotTypeOpenFilter, testParams(25, 30)),
		strategy.NewSlot(strategy.SlotTypeOpenFilter, testParams(30, 30)),
		strategy.NewSlot(strategy.SlotTypeClose, testParams(35, 30)),
		strategy.NewSlot(strategy.SlotTypeCloseFilter, testParams(40, 30)),
	}
	return s
}

func periodOf(s *strategy.Strategy, slot int) float64 {
	return s.Slots[slot].Params.NumParams[0].Value
}

func newTestEngine(oracle *fakeOracle, rng RandomSource, opts Options) *Engine {
	return NewEngine(oracle, fakeCatalog{}, rng, opts, nil)
}
