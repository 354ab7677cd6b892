package strategy

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxNumericParams is the number of numeric inputs an indicator may declare
const MaxNumericParams = 6

// NumericParam is one numeric input of an indicator.
// Point is the number of decimal places the value is kept at.
type NumericParam struct {
	Caption string  `json:"caption"`
	Value   float64 `json:"value"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Point   int     `json:"point"`
	Enabled bool    `json:"enabled"`
}

// ListParam is one enumerated input of an indicator (usually its logic)
type ListParam struct {
	Caption string   `json:"caption"`
	Items   []string `json:"items,omitempty"`
	Index   int      `json:"index"`
	Text    string   `json:"text"`
	Enabled bool     `json:"enabled"`
}

// Select sets the list parameter to the item at index
func (lp *ListParam) Select(index int) error {
	if index < 0 || index >= len(lp.Items) {
		return fmt.Errorf("list param %q: index %d out of range", lp.Caption, index)
	}
	lp.Index = index
	lp.Text = lp.Items[index]
	return nil
}

// IndicatorParams holds the indicator assigned to a slot together with its inputs
type IndicatorParams struct {
	IndicatorName string         `json:"indicator"`
	SlotType      SlotType       `json:"slot_type"`
	ListParams    []ListParam    `json:"list_params,omitempty"`
	NumParams     []NumericParam `json:"num_params,omitempty"`
}

// Clone returns a deep copy of the parameters
func (p IndicatorParams) Clone() IndicatorParams {
	out := p
	if p.ListParams != nil {
		out.ListParams = make([]ListParam, len(p.ListParams))
		for i, lp := range p.ListParams {
			out.ListParams[i] = lp
			if lp.Items != nil {
				out.ListParams[i].Items = append([]string(nil), lp.Items...)
			}
		}
	}
	if p.NumParams != nil {
		out.NumParams = append([]NumericParam(nil), p.NumParams...)
	}
	return out
}

// Logic returns the text of the first list parameter, which by convention
// selects the indicator logic
func (p IndicatorParams) Logic() string {
	if len(p.ListParams) == 0 {
		return ""
	}
	return p.ListParams[0].Text
}

// Fingerprint identifies the calculated output of the parameters
func (p IndicatorParams) Fingerprint() string {
	var sb strings.Builder
	sb.WriteString(p.IndicatorName)
	sb.WriteByte('|')
	sb.WriteString(p.SlotType.String())
	for _, lp := range p.ListParams {
		sb.WriteByte('|')
		sb.WriteString(strconv.Itoa(lp.Index))
	}
	for _, np := range p.NumParams {
		sb.WriteByte('|')
		sb.WriteString(strconv.FormatFloat(np.Value, 'g', -1, 64))
	}
	return sb.String()
}
