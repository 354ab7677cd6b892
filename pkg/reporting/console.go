package reporting

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/shopspring/decimal"

	"github.com/kanastasov/Forex-Strategy-Builder-sub001/internal/optimizer"
)

// PrintRunSummary renders the outcome of a run and its final tunable values
func PrintRunSummary(w io.Writer, res optimizer.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("OPTIMIZATION RESULT")
	t.SetStyle(table.StyleRounded)

	status := "completed"
	if res.Cancelled {
		status = "cancelled"
	}
	t.AppendRows([]table.Row{
		{"Run", res.RunID},
		{"Status", status},
		{"Initial balance", money(res.InitialBalance)},
		{"Final balance", money(res.FinalBalance)},
		{"Improvement", money(res.FinalBalance - res.InitialBalance)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Cycles", res.Cycles},
		{"Evaluations", res.Evaluations},
		{"Accepted", res.Accepted},
		{"Restores", res.Restores},
		{"Duration", res.Duration.Round(time.Millisecond).String()},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Max drawdown", money(res.Metrics.MaxDrawdown)},
		{"Executed orders", res.Metrics.ExecutedOrders},
		{"Win/loss ratio", money(res.Metrics.WinLossRatio)},
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 18, WidthMax: 18, Align: text.AlignLeft},
		{Number: 2, WidthMin: 25, WidthMax: 40, Align: text.AlignLeft},
	})
	t.Render()

	if len(res.Parameters) == 0 {
		return
	}
	fmt.Fprintln(w)

	p := table.NewWriter()
	p.SetOutputMirror(w)
	p.SetTitle("TUNABLE VALUES")
	p.SetStyle(table.StyleRounded)
	p.AppendHeader(table.Row{"Kind", "Caption", "Enabled", "Value", "Previous best"})
	for _, ps := range res.Parameters {
		p.AppendRow(table.Row{
			ps.Kind.String(),
			ps.Caption,
			ps.Enabled,
			decimal.NewFromFloat(ps.Value).StringFixed(int32(ps.Point)),
			decimal.NewFromFloat(ps.PreviousBest).StringFixed(int32(ps.Point)),
		})
	}
	p.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})
	p.Render()
}
