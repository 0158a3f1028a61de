package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polybot/internal/currency"
	"github.com/alejandrodnm/polybot/internal/operation"
	"github.com/alejandrodnm/polybot/internal/order"
	"github.com/alejandrodnm/polybot/internal/store"
	"github.com/alejandrodnm/polybot/internal/txn"
)

func TestRecorder_RecordTransaction_IsQueryableByOrderID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.db")
	rec, err := store.Open(path)
	require.NoError(t, err)
	defer rec.Close()

	usd := currency.New("STORE_USD", "Store Dollar", true, 1)
	eur := currency.New("STORE_EUR", "Store Euro", true, 1)
	pair := txn.NewPair(usd, eur, 0, 0, 2, 2, txn.Boundaries{})
	o := order.New(pair, order.Limit, 0.5)

	rec.RecordTransaction("order-42", 1000, o, 80)

	rows, err := rec.Transactions(context.Background(), "order-42")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "order-42", rows[0].OrderID)
	assert.Equal(t, "LIMIT", rows[0].OrderType)
	assert.Equal(t, "STORE_USD", rows[0].InitialCcy)
	assert.Equal(t, "STORE_EUR", rows[0].FinalCcy)
	assert.Equal(t, 80.0, rows[0].Amount)
}

func TestRecorder_Transactions_OrdersNewestFirst(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.db")
	rec, err := store.Open(path)
	require.NoError(t, err)
	defer rec.Close()

	usd := currency.New("STORE_ORD_USD", "Store Ord Dollar", true, 1)
	eur := currency.New("STORE_ORD_EUR", "Store Ord Euro", true, 1)
	pair := txn.NewPair(usd, eur, 0, 0, 2, 2, txn.Boundaries{})
	o := order.New(pair, order.Limit, 0.5)

	rec.RecordTransaction("order-multi", 1000, o, 10)
	rec.RecordTransaction("order-multi", 2000, o, 20)

	rows, err := rec.Transactions(context.Background(), "order-multi")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(2000), rows[0].CreationTime)
	assert.Equal(t, int64(1000), rows[1].CreationTime)
}

func TestRecorder_RecordProfit_DoesNotPanic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.db")
	rec, err := store.Open(path)
	require.NoError(t, err)
	defer rec.Close()

	usd := currency.New("STORE_PROFIT_USD", "Store Profit Dollar", true, 1)
	eur := currency.New("STORE_PROFIT_EUR", "Store Profit Euro", true, 1)

	ctx := operation.NewContext("strategy-store", usd, 200)
	ctx.AddProfit(eur, 15)

	assert.NotPanics(t, func() { rec.RecordProfit(ctx) })
}
