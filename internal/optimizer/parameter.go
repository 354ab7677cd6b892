package optimizer

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/kanastasov/Forex-Strategy-Builder-sub001/internal/strategy"
)

// Structural protection bounds, in points
const (
	StructuralMin = 5
	StructuralMax = 5000
)

// Kind tags what a Parameter points at
type Kind int

const (
	KindIndicator Kind = iota
	KindPermanentSL
	KindPermanentTP
	KindBreakEven
)

func (k Kind) String() string {
	switch k {
	case KindIndicator:
		return "indicator"
	case KindPermanentSL:
		return "permanent_sl"
	case KindPermanentTP:
		return "permanent_tp"
	case KindBreakEven:
		return "break_even"
	default:
		return "unknown"
	}
}

// Parameter is a view over one tunable scalar of the live strategy. Reads
// and writes go straight to the strategy. Indicator parameters follow their
// slot by ID, so they survive reordering of the slot list.
type Parameter struct {
	kind           Kind
	s              *strategy.Strategy
	slotID         string
	index          int
	fractionalPips bool

	best         float64
	previousBest float64
}

func newIndicatorParameter(s *strategy.Strategy, slotID string, index int) *Parameter {
	p := &Parameter{kind: KindIndicator, s: s, slotID: slotID, index: index}
	p.resetBest()
	return p
}

func newProtectionParameter(s *strategy.Strategy, kind Kind, fractionalPips bool) *Parameter {
	p := &Parameter{kind: kind, s: s, fractionalPips: fractionalPips}
	p.resetBest()
	return p
}

func (p *Parameter) resetBest() {
	p.best = p.Value()
	p.previousBest = p.best
}

func (p *Parameter) Kind() Kind { return p.kind }

// SlotID is empty for protection parameters
func (p *Parameter) SlotID() string { return p.slotID }

// Index is the position of an indicator parameter within its slot
func (p *Parameter) Index() int { return p.index }

// numeric returns the backing indicator input, or nil when the slot is gone
func (p *Parameter) numeric() *strategy.NumericParam {
	i := p.s.SlotIndex(p.slotID)
	if i < 0 || p.index >= len(p.s.Slots[i].Params.NumParams) {
		return nil
	}
	return &p.s.Slots[i].Params.NumParams[p.index]
}

// Attached reports whether the parameter still points into the strategy
func (p *Parameter) Attached() bool {
	return p.kind != KindIndicator || p.numeric() != nil
}

func (p *Parameter) Caption() string {
	switch p.kind {
	case KindIndicator:
		if np := p.numeric(); np != nil {
			return np.Caption
		}
		return ""
	case KindPermanentSL:
		return "Permanent SL"
	case KindPermanentTP:
		return "Permanent TP"
	case KindBreakEven:
		return "Break Even"
	default:
		return ""
	}
}

// Enabled reports whether the input is active: the numeric input flag or the protection switch
func (p *Parameter) Enabled() bool {
	switch p.kind {
	case KindIndicator:
		np := p.numeric()
		return np != nil && np.Enabled
	case KindPermanentSL:
		return p.s.UsePermanentSL
	case KindPermanentTP:
		return p.s.UsePermanentTP
	case KindBreakEven:
		return p.s.UseBreakEven
	default:
		return false
	}
}

// setEnabled switches a protection on or off. Indicator inputs keep their flag.
func (p *Parameter) setEnabled(on bool) {
	switch p.kind {
	case KindPermanentSL:
		p.s.UsePermanentSL = on
	case KindPermanentTP:
		p.s.UsePermanentTP = on
	case KindBreakEven:
		p.s.UseBreakEven = on
	}
}

func (p *Parameter) Value() float64 {
	switch p.kind {
	case KindIndicator:
		if np := p.numeric(); np != nil {
			return np.Value
		}
		return 0
	case KindPermanentSL:
		return float64(p.s.PermanentSL)
	case KindPermanentTP:
		return float64(p.s.PermanentTP)
	case KindBreakEven:
		return float64(p.s.BreakEven)
	default:
		return 0
	}
}

// SetValue writes the value clamped into [Minimum, Maximum] and rounded to the parameter precision
func (p *Parameter) SetValue(v float64) {
	v = math.Max(p.Minimum(), math.Min(p.Maximum(), v))
	switch p.kind {
	case KindIndicator:
		if np := p.numeric(); np != nil {
			np.Value = roundTo(v, np.Point)
		}
	case KindPermanentSL:
		p.s.PermanentSL = int(math.Round(v))
	case KindPermanentTP:
		p.s.PermanentTP = int(math.Round(v))
	case KindBreakEven:
		p.s.BreakEven = int(math.Round(v))
	}
}

func (p *Parameter) Minimum() float64 {
	if p.kind == KindIndicator {
		if np := p.numeric(); np != nil {
			return np.Min
		}
		return 0
	}
	return StructuralMin
}

func (p *Parameter) Maximum() float64 {
	if p.kind == KindIndicator {
		if np := p.numeric(); np != nil {
			return np.Max
		}
		return 0
	}
	return StructuralMax
}

// Point is the number of decimal places the value is kept at
func (p *Parameter) Point() int {
	if p.kind == KindIndicator {
		if np := p.numeric(); np != nil {
			return np.Point
		}
	}
	return 0
}

// Step is the smallest change the parameter can make
func (p *Parameter) Step() float64 {
	if p.kind == KindIndicator {
		point := p.Point()
		return roundTo(math.Pow(10, -float64(point)), point)
	}
	if p.fractionalPips {
		return 10
	}
	return 1
}

func (p *Parameter) BestValue() float64 { return p.best }

func (p *Parameter) PreviousBestValue() float64 { return p.previousBest }

// SetBestValue records a new best, keeping the one before it
func (p *Parameter) SetBestValue(v float64) {
	p.previousBest = p.best
	p.best = v
}

// ParameterState is a read-only copy of a parameter at the end of a run
type ParameterState struct {
	Kind         Kind    `json:"kind"`
	SlotID       string  `json:"slot_id,omitempty"`
	Caption      string  `json:"caption"`
	Enabled      bool    `json:"enabled"`
	Value        float64 `json:"value"`
	PreviousBest float64 `json:"previous_best"`
	Point        int     `json:"point"`
}

func (p *Parameter) State() ParameterState {
	return ParameterState{
		Kind:         p.kind,
		SlotID:       p.slotID,
		Caption:      p.Caption(),
		Enabled:      p.Enabled(),
		Value:        p.Value(),
		PreviousBest: p.previousBest,
		Point:        p.Point(),
	}
}

func roundTo(v float64, places int) float64 {
	return decimal.NewFromFloat(v).Round(int32(places)).InexactFloat64()
}
