package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/rxtech-lab/argo-papertrade/internal/types"
	"github.com/schollz/progressbar/v3"
)

var (
	// TitleStyle for section headers.
	TitleStyle = lipgloss.NewStyle().Bold(true)

	// HelpStyle for secondary text.
	HelpStyle = lipgloss.NewStyle().Faint(true)

	// ErrorStyle for error messages.
	ErrorStyle = lipgloss.NewStyle().Bold(true)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return TitleStyle.Padding(0, 1)
			}

			return lipgloss.NewStyle().Padding(0, 1)
		})
}

func render(w io.Writer, t *table.Table) {
	fmt.Fprintln(w, t.Render())
}

// price shows fractional amounts such as an average cost with two decimals.
func price(m types.Money) string {
	if m.Decimal().IsInteger() {
		return m.String()
	}

	return m.Decimal().StringFixed(2)
}

func percent(p float64) string {
	return strconv.FormatFloat(p, 'f', 2, 64) + "%"
}

func source(q types.Quote) string {
	if q.Synthetic {
		return "synthetic"
	}

	return "live"
}

func printQuotes(w io.Writer, quotes []types.Quote) {
	t := newTable("SYMBOL", "NAME", "PRICE", "CHANGE", "CHANGE %", "HIGH", "LOW", "VOLUME", "SOURCE")
	for _, q := range quotes {
		t.Row(q.Symbol, q.Name, price(q.Price), q.ChangeAbs.Text(), percent(q.ChangePct),
			price(q.High), price(q.Low), strconv.FormatInt(q.Volume, 10), source(q))
	}

	render(w, t)
}

func printCandles(w io.Writer, symbol string, candles []types.Candle) {
	fmt.Fprintln(w, TitleStyle.Render(fmt.Sprintf("%s daily candles (%d)", symbol, len(candles))))

	t := newTable("DATE", "OPEN", "HIGH", "LOW", "CLOSE", "VOLUME")
	for _, c := range candles {
		t.Row(c.Date.Format("2006-01-02"), price(c.Open), price(c.High), price(c.Low), price(c.Close),
			strconv.FormatInt(c.Volume, 10))
	}

	render(w, t)
}

func printSymbols(w io.Writer, symbols []types.Symbol) {
	if len(symbols) == 0 {
		fmt.Fprintln(w, HelpStyle.Render("no matching symbols"))

		return
	}

	t := newTable("CODE", "NAME", "MARKET")
	for _, s := range symbols {
		t.Row(s.Code, s.Name, s.Market)
	}

	render(w, t)
}

func printHoldings(w io.Writer, holdings []types.Holding) {
	if len(holdings) == 0 {
		fmt.Fprintln(w, HelpStyle.Render("no holdings"))

		return
	}

	t := newTable("SYMBOL", "NAME", "QTY", "AVG COST", "INVESTED", "PRICE", "VALUE", "PNL", "PNL %")
	for _, h := range holdings {
		t.Row(h.Symbol, h.Name, strconv.FormatInt(h.Quantity, 10), price(h.AvgCost), price(h.TotalInvested),
			price(h.LastPrice), price(h.LastValue), price(h.LastPnL), percent(h.LastPnLPercent))
	}

	render(w, t)
}

func printSummary(w io.Writer, s types.AccountSummary) {
	fmt.Fprintln(w, TitleStyle.Render("Account "+s.Account.ID))

	t := newTable("CASH", "HOLDINGS", "EQUITY", "INITIAL", "PNL", "PNL %")
	t.Row(price(s.Account.CashBalance), price(s.HoldingsValue), price(s.TotalEquity),
		price(s.Account.InitialBalance), price(s.TotalPnL), percent(s.TotalPnLPercent))
	render(w, t)

	printHoldings(w, s.Holdings)
}

func printTransactions(w io.Writer, records []types.TransactionRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, HelpStyle.Render("no transactions"))

		return
	}

	t := newTable("ID", "TIME", "SIDE", "SYMBOL", "NAME", "QTY", "PRICE", "TOTAL", "BALANCE")
	for _, r := range records {
		t.Row(r.ID, r.Timestamp.Local().Format("2006-01-02 15:04:05"), string(r.Side), r.Symbol, r.Name,
			strconv.FormatInt(r.Quantity, 10), price(r.Price), price(r.TotalAmount), price(r.BalanceAfter))
	}

	render(w, t)
}

func printTransaction(w io.Writer, r types.TransactionRecord) {
	fmt.Fprintf(w, "%s %d %s @ %s = %s, balance %s (tx %s)\n",
		r.Side, r.Quantity, r.Symbol, price(r.Price), price(r.TotalAmount), price(r.BalanceAfter), r.ID)
}

// quoteProgress draws a progress bar on w while quotes are fetched through the throttle.
func quoteProgress(w io.Writer, total int) (update func(done, total int), finish func()) {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("quoting"),
		progressbar.OptionClearOnFinish(),
	)

	return func(done, _ int) { _ = bar.Set(done) }, func() { _ = bar.Finish() }
}
