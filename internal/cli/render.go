package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	"saldo/internal/core"
	"saldo/internal/ledger"
)

func balanceMarkdown(state core.LedgerState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Balance: %s\n\n", state.Balance)
	credits, debits := ledger.Totals(state.History)
	fmt.Fprintf(&b, "%d transactions, in %s, out %s\n", len(state.History), credits, debits)
	return b.String()
}

func recordsMarkdown(title string, records []core.TransactionRecord, loc *time.Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", title)
	if len(records) == 0 {
		b.WriteString("No transactions.\n")
		return b.String()
	}
	b.WriteString("| When | Kind | Description | Amount | Balance |\n")
	b.WriteString("|---|---|---|---:|---:|\n")
	for _, r := range records {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
			r.Timestamp.In(loc).Format(time.DateTime),
			r.Kind,
			escapeCell(r.Description),
			r.Amount,
			r.ResultingBalance)
	}
	return b.String()
}

func calendarMarkdown(groups []ledger.DayGroup, loc *time.Location) string {
	if len(groups) == 0 {
		return "No transactions.\n"
	}
	var b strings.Builder
	for i, g := range groups {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(recordsMarkdown(g.Date.Format("Monday 02 January 2006"), g.Records, loc))
	}
	return b.String()
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

// printMarkdown styles md for the terminal unless plain is set.
func printMarkdown(w io.Writer, md string, plain bool) error {
	if plain {
		_, err := io.WriteString(w, md)
		return err
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return fmt.Errorf("create markdown renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}
	_, err = io.WriteString(w, out)
	return err
}
