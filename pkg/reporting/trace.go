package reporting

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/kanastasov/Forex-Strategy-Builder-sub001/internal/backtest"
	opterrors "github.com/kanastasov/Forex-Strategy-Builder-sub001/internal/errors"
	"github.com/kanastasov/Forex-Strategy-Builder-sub001/internal/strategy"
)

// MetricColumns are the fixed leading columns of every trace
var MetricColumns = []string{
	"Net Balance",
	"Max Drawdown",
	"Gross Profit",
	"Gross Loss",
	"Executed Orders",
	"Traded Lots",
	"Time in Position",
	"Sent Orders",
	"Charged Spread",
	"Charged Rollover",
	"Win/Loss Ratio",
	"Equity Drawdown",
}

type columnKind int

const (
	columnPermanentSL columnKind = iota
	columnPermanentTP
	columnBreakEven
	columnParam
)

// column is one variable trace column. Parameter columns follow their slot by id.
type column struct {
	kind    columnKind
	caption string
	slotID  string
	index   int
	point   int
}

// SearchTrace records one row per evaluated configuration. The column layout
// is frozen by Init and holds for every row of the run.
type SearchTrace struct {
	mu      sync.Mutex
	columns []column
	header  []string
	rows    [][]string
}

func NewSearchTrace() *SearchTrace {
	return &SearchTrace{}
}

// Init resets the trace and fixes its columns from the active protections
// and the enabled numeric inputs of s
func (t *SearchTrace) Init(s *strategy.Strategy) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.columns = t.columns[:0]
	t.rows = nil
	if s.UsePermanentSL {
		t.columns = append(t.columns, column{kind: columnPermanentSL, caption: "Permanent SL"})
	}
	if s.UsePermanentTP {
		t.columns = append(t.columns, column{kind: columnPermanentTP, caption: "Permanent TP"})
	}
	if s.UseBreakEven {
		t.columns = append(t.columns, column{kind: columnBreakEven, caption: "Break Even"})
	}
	for _, slot := range s.Slots {
		for i, np := range slot.Params.NumParams {
			if !np.Enabled {
				continue
			}
			t.columns = append(t.columns, column{
				kind:    columnParam,
				caption: np.Caption,
				slotID:  slot.ID,
				index:   i,
				point:   np.Point,
			})
		}
	}

	t.header = append([]string(nil), MetricColumns...)
	for _, c := range t.columns {
		t.header = append(t.header, c.caption)
	}
}

// AppendRow formats m and the current values of the traced inputs
func (t *SearchTrace) AppendRow(s *strategy.Strategy, m backtest.Metrics) {
	t.mu.Lock()
	defer t.mu.Unlock()

	row := make([]string, 0, len(t.header))
	row = append(row,
		money(m.NetBalance),
		money(m.MaxDrawdown),
		money(m.GrossProfit),
		money(m.GrossLoss),
		strconv.Itoa(m.ExecutedOrders),
		strconv.FormatFloat(m.TradedLots, 'f', -1, 64),
		strconv.Itoa(m.TimeInPosition),
		strconv.Itoa(m.SentOrders),
		money(m.ChargedSpread),
		money(m.ChargedRollover),
		money(m.WinLossRatio),
		money(m.EquityDrawdown),
	)
	for _, c := range t.columns {
		row = append(row, c.value(s))
	}
	t.rows = append(t.rows, row)
}

func (c column) value(s *strategy.Strategy) string {
	switch c.kind {
	case columnPermanentSL:
		return strconv.Itoa(s.PermanentSL)
	case columnPermanentTP:
		return strconv.Itoa(s.PermanentTP)
	case columnBreakEven:
		return strconv.Itoa(s.BreakEven)
	}
	i := s.SlotIndex(c.slotID)
	if i < 0 || c.index >= len(s.Slots[i].Params.NumParams) {
		// the slot was removed by the search
		return ""
	}
	return decimal.NewFromFloat(s.Slots[i].Params.NumParams[c.index].Value).StringFixed(int32(c.point))
}

func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// Header returns a copy of the column captions
func (t *SearchTrace) Header() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.header...)
}

// Rows returns a copy of the recorded rows
func (t *SearchTrace) Rows() [][]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	rows := make([][]string, len(t.rows))
	for i, r := range t.rows {
		rows[i] = append([]string(nil), r...)
	}
	return rows
}

// Len returns the number of recorded rows
func (t *SearchTrace) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rows)
}

// Bytes renders the trace as comma-separated text. Every line ends with a
// comma before the line break.
func (t *SearchTrace) Bytes() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()

	var b strings.Builder
	writeLine := func(fields []string) {
		for _, f := range fields {
			b.WriteString(f)
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	writeLine(t.header)
	for _, r := range t.rows {
		writeLine(r)
	}
	return []byte(b.String())
}

// Save writes the trace next to the strategy file as <base>-Report-<N>.csv
// and returns the path written. A failure leaves the trace untouched.
func (t *SearchTrace) Save(strategyPath string) (string, error) {
	path, err := NextReportPath(strategyPath, ".csv")
	if err != nil {
		return "", opterrors.NewReportError("reporting", "save_csv", err)
	}
	if err := EnsureDirectoryExists(path); err != nil {
		return "", opterrors.NewReportError("reporting", "save_csv", err).WithContext("path", path)
	}
	if err := os.WriteFile(path, t.Bytes(), 0644); err != nil {
		return "", opterrors.NewReportError("reporting", "save_csv", err).WithContext("path", path)
	}
	return path, nil
}
