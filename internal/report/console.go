// Package report implements a tablewriter-based console status reporter:
// one row per registered exchange, showing its lifecycle state, balance
// valued in its estimate currency, and open-order count.
package report

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/polybot/internal/exchange"
	"github.com/alejandrodnm/polybot/internal/manager"
)

// Console prints a manager's exchange roster to an io.Writer.
type Console struct {
	out io.Writer
}

// NewConsole creates a reporter writing to stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter creates a reporter writing to w, for tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// Print renders one row per exchange registered on mgr.
func (c *Console) Print(mgr *manager.Manager) {
	fmt.Fprintf(c.out, "\n[%s] trading engine status (up since %s)\n",
		time.Now().Format("15:04:05"), mgr.StartedAt().Format("15:04:05"))

	table := tablewriter.NewWriter(c.out)
	table.Header("Exchange", "State", "Estimate Ccy", "Valuation", "Open Orders", "Connected")

	mgr.Each(func(name string, ex *exchange.Exchange) {
		estimateLabel := "-"
		valuationLabel := "-"
		if cur := ex.EstimateCurrency(); cur != nil {
			estimateLabel = cur.Id()
			if v, ok := ex.Valuation(); ok {
				valuationLabel = fmt.Sprintf("%.2f", v)
			}
		}

		connectedLabel := "-"
		if at := ex.ConnectedAt(); !at.IsZero() {
			connectedLabel = at.Format("15:04:05")
		}

		table.Append(
			name,
			ex.State().String(),
			estimateLabel,
			valuationLabel,
			fmt.Sprintf("%d", ex.Tracks().Len()),
			connectedLabel,
		)
	})

	table.Render()
}
