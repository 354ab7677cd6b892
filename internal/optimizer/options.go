package optimizer

import (
	"github.com/kanastasov/Forex-Strategy-Builder-sub001/pkg/config"
	"github.com/kanastasov/Forex-Strategy-Builder-sub001/pkg/types"
)

// Options are the user preferences of a run
type Options struct {
	PreservePermanentSL       bool
	PreservePermanentTP       bool
	PreserveBreakEven         bool
	UseDefaultIndicatorValues bool

	// FractionalPips scales protection draws for 3 and 5 digit quoting
	FractionalPips bool
}

// OptionsFromConfig maps the configured preferences onto run options
func OptionsFromConfig(cfg config.OptimizerConfig, inst types.Instrument) Options {
	return Options{
		PreservePermanentSL:       cfg.PreservePermanentSL,
		PreservePermanentTP:       cfg.PreservePermanentTP,
		PreserveBreakEven:         cfg.PreserveBreakEven,
		UseDefaultIndicatorValues: cfg.UseDefaultIndicatorValues,
		FractionalPips:            inst.IsFractionalPip(),
	}
}

func (o Options) preserved(kind Kind) bool {
	switch kind {
	case KindPermanentSL:
		return o.PreservePermanentSL
	case KindPermanentTP:
		return o.PreservePermanentTP
	case KindBreakEven:
		return o.PreserveBreakEven
	default:
		return false
	}
}

// protectionMultiplier scales the uniform [5, 100] protection draw
func (o Options) protectionMultiplier() int {
	if o.FractionalPips {
		return 50
	}
	return 5
}

// removalSentinel is the distance set when a protection is switched off
func (o Options) removalSentinel() float64 {
	if o.FractionalPips {
		return 1000
	}
	return 100
}
