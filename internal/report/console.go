// Package report renders backtest results as console tables and CSV files.
package report

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/sdkkds2125/FMA-SMA-ATX/internal/model"
	"github.com/sdkkds2125/FMA-SMA-ATX/internal/portfolio"
)

// Console writes human-readable results.
type Console struct {
	out io.Writer
}

// NewConsole creates a Console writing to out.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

// Summary prints the headline results followed by a breakdown table.
func (c *Console) Summary(runID string, sum portfolio.Summary) {
	fmt.Fprintln(c.out, "\n--- Backtest Results ---")
	if runID != "" {
		fmt.Fprintf(c.out, "Run:                     %s\n", runID)
	}
	fmt.Fprintf(c.out, "Initial Portfolio Value: %s\n", Money(sum.InitialValue))
	fmt.Fprintf(c.out, "Final Portfolio Value:   %s\n", Money(sum.FinalValue))
	fmt.Fprintf(c.out, "Total Profit:            %s (%.2f%%)\n", Money(sum.Profit), sum.ProfitPct)
	fmt.Fprintf(c.out, "Total Trades:            %d\n", sum.TotalTrades)

	table := tablewriter.NewWriter(c.out)
	table.Header("Metric", "Value")
	table.Append("Cash", Money(sum.Cash))
	table.Append("Realized P&L", Money(sum.RealizedPnL))
	table.Append("Buys / Adds / Sells", fmt.Sprintf("%d / %d / %d", sum.Buys, sum.BuyAdds, sum.Sells))
	table.Append("Open positions", strconv.Itoa(sum.OpenPositions))
	table.Append("Max drawdown", fmt.Sprintf("%.2f%%", sum.Drawdown.MaxPct))
	if !sum.Drawdown.TroughAt.IsZero() {
		table.Append("Max drawdown trough", sum.Drawdown.TroughAt.Format(model.DateLayout))
	}
	table.Append("Days processed / skipped", fmt.Sprintf("%d / %d", sum.Stats.DaysProcessed, sum.Stats.DaysSkipped))
	table.Append("Buys without cash", strconv.Itoa(sum.Stats.InsufficientFunds))
	table.Append("Sells held by loss prevention", strconv.Itoa(sum.Stats.LossPreventedSells))
	table.Render()
}

// Trades prints the last limit trades (all when limit <= 0).
func (c *Console) Trades(trades []model.Trade, limit int) {
	if len(trades) == 0 {
		fmt.Fprintln(c.out, "\nNo trades.")
		return
	}
	shown := trades
	if limit > 0 && len(trades) > limit {
		shown = trades[len(trades)-limit:]
		fmt.Fprintf(c.out, "\nLast %d of %d trades\n", limit, len(trades))
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Date", "Ticker", "Action", "Price", "Qty", "Notional")
	for i := range shown {
		t := &shown[i]
		table.Append(
			t.Date.Format(model.DateLayout),
			t.Ticker,
			string(t.Action),
			fmt.Sprintf("%.2f", t.Price),
			strconv.FormatFloat(t.Quantity, 'f', -1, 64),
			Money(t.Notional()),
		)
	}
	table.Render()
}

// Positions prints open positions valued at prices.
func (c *Console) Positions(positions []model.Position, prices map[string]float64) {
	if len(positions) == 0 {
		return
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("Ticker", "Qty", "Avg Price", "Last", "Market Value", "Unrealized")
	for _, p := range positions {
		last, ok := prices[p.Ticker]
		lastCell, mvCell, upnlCell := "NA", "NA", "NA"
		if ok {
			lastCell = fmt.Sprintf("%.2f", last)
			mvCell = Money(p.MarketValue(last))
			upnlCell = Money((last - p.AvgPrice) * p.Quantity)
		}
		table.Append(
			p.Ticker,
			strconv.FormatFloat(p.Quantity, 'f', -1, 64),
			fmt.Sprintf("%.2f", p.AvgPrice),
			lastCell,
			mvCell,
			upnlCell,
		)
	}
	table.Render()
}

// Money formats v as $1,234.56.
func Money(v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	cents := math.Round(v * 100)
	s := strconv.FormatFloat(math.Floor(cents/100), 'f', 0, 64)
	frac := int64(cents) % 100

	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return fmt.Sprintf("%s$%s.%02d", sign, b.String(), frac)
}
