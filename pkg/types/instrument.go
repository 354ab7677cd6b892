package types

// Instrument describes the quoting conventions of a traded symbol.
// Spread and swaps are expressed in points (the smallest price increment).
type Instrument struct {
	Symbol    string  `json:"symbol" mapstructure:"symbol"`
	Digits    int     `json:"digits" mapstructure:"digits"`
	Point     float64 `json:"point" mapstructure:"point"`
	LotSize   float64 `json:"lot_size" mapstructure:"lot_size"`
	Spread    float64 `json:"spread" mapstructure:"spread"`
	SwapLong  float64 `json:"swap_long" mapstructure:"swap_long"`
	SwapShort float64 `json:"swap_short" mapstructure:"swap_short"`
}

// IsFractionalPip reports whether the instrument is quoted with an extra
// fractional digit (5-digit majors, 3-digit JPY crosses).
func (i Instrument) IsFractionalPip() bool {
	return i.Digits == 3 || i.Digits == 5
}

// DefaultInstrument returns EURUSD-like 5-digit quoting
func DefaultInstrument() Instrument {
	return Instrument{
		Symbol:    "EURUSD",
		Digits:    5,
		Point:     0.00001,
		LotSize:   100000,
		Spread:    20,
		SwapLong:  -5,
		SwapShort: 1,
	}
}
