package indicators

import (
	"fmt"
	"sort"
	"sync"

	"github.com/kanastasov/Forex-Strategy-Builder-sub001/internal/strategy"
	"github.com/kanastasov/Forex-Strategy-Builder-sub001/pkg/types"
)

// Registry is the indicator catalog. It is safe for concurrent reads.
type Registry struct {
	indicators map[string]Indicator
	mutex      sync.RWMutex
}

// NewRegistry creates a catalog holding the built-in indicators
func NewRegistry() *Registry {
	r := &Registry{indicators: make(map[string]Indicator)}
	r.Register(MovingAverage{})
	r.Register(RSI{})
	r.Register(BollingerBands{})
	r.Register(MACD{})
	r.Register(CloseAndReverse{})
	return r
}

// Register adds or replaces an indicator
func (r *Registry) Register(ind Indicator) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.indicators[ind.Name()] = ind
}

// Get looks an indicator up by name
func (r *Registry) Get(name string) (Indicator, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	ind, ok := r.indicators[name]
	return ind, ok
}

// Names returns the catalog keys in alphabetical order
func (r *Registry) Names() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	names := make([]string, 0, len(r.indicators))
	for name := range r.indicators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultParams returns the built-in inputs of an indicator for a slot type
func (r *Registry) DefaultParams(name string, slotType strategy.SlotType) (strategy.IndicatorParams, bool) {
	ind, ok := r.Get(name)
	if !ok {
		return strategy.IndicatorParams{}, false
	}
	return ind.Defaults(slotType), true
}

// IsReversal reports whether the named indicator is a reversal-type close indicator
func (r *Registry) IsReversal(name string) bool {
	ind, ok := r.Get(name)
	return ok && ind.IsReversal()
}

// NewSlot builds a slot holding the indicator with its default inputs
func (r *Registry) NewSlot(name string, slotType strategy.SlotType) (*strategy.Slot, error) {
	ind, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown indicator %q", name)
	}
	if !ind.SupportsSlot(slotType) {
		return nil, fmt.Errorf("indicator %q cannot be used in a %s slot", name, slotType)
	}
	return strategy.NewSlot(slotType, ind.Defaults(slotType)), nil
}

// Calculate computes the signals of the indicator named in params
func (r *Registry) Calculate(bars []types.OHLCV, params strategy.IndicatorParams) (Signals, error) {
	ind, ok := r.Get(params.IndicatorName)
	if !ok {
		return Signals{}, fmt.Errorf("unknown indicator %q", params.IndicatorName)
	}
	if !ind.SupportsSlot(params.SlotType) {
		return Signals{}, fmt.Errorf("indicator %q cannot be used in a %s slot", params.IndicatorName, params.SlotType)
	}
	return ind.Calculate(bars, params)
}
