package csvlog_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polybot/internal/csvlog"
	"github.com/alejandrodnm/polybot/internal/currency"
	"github.com/alejandrodnm/polybot/internal/operation"
	"github.com/alejandrodnm/polybot/internal/order"
	"github.com/alejandrodnm/polybot/internal/txn"
)

func readAll(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRateRecorder_WritesHeaderOnceAndDedupsUnchangedRate(t *testing.T) {
	dir := t.TempDir()
	usd := currency.New("CSV_RATE_USD", "Csv Dollar", true, 1)
	eur := currency.New("CSV_RATE_EUR", "Csv Euro", true, 1)

	r := csvlog.NewRateRecorder(dir)
	require.NoError(t, r.Record(usd, eur, 1000, 0.5))
	require.NoError(t, r.Record(usd, eur, 2000, 0.5)) // unchanged, must not append
	require.NoError(t, r.Record(usd, eur, 3000, 0.6))
	require.NoError(t, r.Close())

	content := readAll(t, filepath.Join(dir, "pair-CSV_RATE_USD-CSV_RATE_EUR.csv"))
	lines := splitLines(content)
	assert.Equal(t, []string{
		"timestamp_ms,rate",
		"1000,0.5",
		"3000,0.6",
	}, lines)
}

func TestTransactionRecorder_AppendsOneRowPerLeg(t *testing.T) {
	dir := t.TempDir()
	usd := currency.New("CSV_TXN_USD", "Csv Txn Dollar", true, 1)
	eur := currency.New("CSV_TXN_EUR", "Csv Txn Euro", true, 1)
	pair := txn.NewPair(usd, eur, 0.01, 0, 2, 2, txn.Boundaries{})

	rec, err := csvlog.NewTransactionRecorder(dir)
	require.NoError(t, err)

	o := order.New(pair, order.Limit, 0.5)
	rec.RecordTransaction("order-1", 500, o, 100)
	require.NoError(t, rec.Close())

	content := readAll(t, filepath.Join(dir, "transactions.csv"))
	lines := splitLines(content)
	require.Len(t, lines, 2)
	assert.Equal(t, "now,creationTime,orderId,orderType,initialCcy,finalCcy,amount,rate,finalAmount,fee", lines[0])
	assert.Contains(t, lines[1], "order-1")
	assert.Contains(t, lines[1], "LIMIT")
	assert.Contains(t, lines[1], "CSV_TXN_USD")
	assert.Contains(t, lines[1], "CSV_TXN_EUR")
}

func TestProfitRecorder_WritesOneRowPerProfitCurrency(t *testing.T) {
	dir := t.TempDir()
	usd := currency.New("CSV_PROFIT_USD", "Csv Profit Dollar", true, 1)
	eur := currency.New("CSV_PROFIT_EUR", "Csv Profit Euro", true, 1)

	rec, err := csvlog.NewProfitRecorder(dir)
	require.NoError(t, err)

	ctx := operation.NewContext("strategy-1", usd, 100)
	ctx.AddProfit(eur, 5)
	rec.RecordProfit(ctx)
	require.NoError(t, rec.Close())

	content := readAll(t, filepath.Join(dir, "profit.csv"))
	lines := splitLines(content)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "strategy-1")
	assert.Contains(t, lines[1], "CSV_PROFIT_USD")
	assert.Contains(t, lines[1], "CSV_PROFIT_EUR")
}

func TestProfitRecorder_WritesZeroProfitRowOnFailure(t *testing.T) {
	dir := t.TempDir()
	usd := currency.New("CSV_PROFIT_FAIL_USD", "Csv Profit Fail Dollar", true, 1)

	rec, err := csvlog.NewProfitRecorder(dir)
	require.NoError(t, err)

	ctx := operation.NewContext("strategy-2", usd, 50)
	ctx.SetFailureCause("TIMEOUT")
	rec.RecordProfit(ctx)
	require.NoError(t, rec.Close())

	content := readAll(t, filepath.Join(dir, "profit.csv"))
	lines := splitLines(content)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "TIMEOUT")
	assert.Contains(t, lines[1], ",0")
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}
