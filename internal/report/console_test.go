package report_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polybot/internal/currency"
	"github.com/alejandrodnm/polybot/internal/exchange"
	"github.com/alejandrodnm/polybot/internal/exchange/exchangetest"
	"github.com/alejandrodnm/polybot/internal/manager"
	"github.com/alejandrodnm/polybot/internal/report"
	"github.com/alejandrodnm/polybot/internal/txn"
)

func TestConsole_Print_RendersOneRowPerExchange(t *testing.T) {
	mgr, err := manager.New(t.TempDir())
	require.NoError(t, err)

	usd := currency.New("REPORT_USD", "Report Dollar", true, 1)
	eur := currency.New("REPORT_EUR", "Report Euro", true, 1)
	pair := txn.NewPair(usd, eur, 0, 0, 2, 2, txn.Boundaries{})
	pair.SetRate(1, 0.5)
	pairs := txn.NewPairTransactionMap()
	pairs.Register(pair)
	pairs.RegisterInvert(pair)

	_, err = mgr.Register("venue-report", exchangetest.New(pairs), exchange.Config{})
	require.NoError(t, err)

	var buf bytes.Buffer
	console := report.NewConsoleWriter(&buf)
	console.Print(mgr)

	out := buf.String()
	assert.Contains(t, out, "trading engine status")
	assert.Contains(t, out, "venue-report")
	assert.Contains(t, out, "DISCONNECTED")
}
