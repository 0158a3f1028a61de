package exchange_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polybot/internal/currency"
	"github.com/alejandrodnm/polybot/internal/exchange"
	"github.com/alejandrodnm/polybot/internal/exchange/exchangetest"
	"github.com/alejandrodnm/polybot/internal/operation"
	"github.com/alejandrodnm/polybot/internal/order"
	"github.com/alejandrodnm/polybot/internal/track"
	"github.com/alejandrodnm/polybot/internal/txn"
)

type noopRecorder struct{}

func (noopRecorder) RecordTransaction(orderID string, creationTime int64, o *order.Order, amount float64) {
}

func TestExchange_Process_PlacesAndCompletesASingleLegOrder(t *testing.T) {
	usd := currency.New("PROC_USD", "Proc Dollar", true, 1)
	eur := currency.New("PROC_EUR", "Proc Euro", true, 1)
	pair := txn.NewPair(usd, eur, 0, 0, 2, 2, txn.Boundaries{})
	pair.SetRate(1, 0.5)

	pairs := txn.NewPairTransactionMap()
	require.NoError(t, pairs.Register(pair))
	_, err := pairs.RegisterInvert(pair)
	require.NoError(t, err)

	adapter := exchangetest.New(pairs)
	// An immediately filled order never shows up in an order snapshot, so
	// it resolves once the registration timeout after activation lapses.
	ex := exchange.New("process-test", adapter, exchange.Config{
		OutputDirectory:      t.TempDir(),
		OrderPollingPeriod:   100 * time.Millisecond,
		OrderRegisterTimeout: 200 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, ex.Connect(ctx, false))
	defer ex.Stop()

	o := order.New(pair, order.Limit, 0.4) // below market rate, fills immediately
	opCtx := operation.NewContext("proc-strategy", usd, 100)
	completed := make(chan struct{})
	opCtx.OnComplete(func(*operation.Context) { close(completed) })

	ex.Process(o, 100, order.Limit, opCtx, noopRecorder{}, 1.0, true, 0)
	opCtx.Release()

	select {
	case <-completed:
	case <-time.After(4 * time.Second):
		t.Fatal("order did not complete within timeout")
	}

	assert.Eventually(t, func() bool {
		return ex.Tracks().Len() == 0
	}, 4*time.Second, 50*time.Millisecond, "completed order should be dropped from the track list")
}

type countingRecorder struct{ calls int32 }

func (r *countingRecorder) RecordTransaction(orderID string, creationTime int64, o *order.Order, amount float64) {
	atomic.AddInt32(&r.calls, 1)
}

// S4 Chained order: USD->EUR completes first, spawning EUR->BTC for the
// converted amount; once that leg completes too the context's profit map
// is non-empty and OnComplete fires exactly once for the whole chain.
func TestExchange_Process_CompletesATwoLegChain(t *testing.T) {
	usd := currency.New("CHAIN_USD", "Chain Dollar", true, 1)
	eur := currency.New("CHAIN_EUR", "Chain Euro", true, 1)
	btc := currency.New("CHAIN_BTC", "Chain Bitcoin", false, 0.0001)

	usdEur := txn.NewPair(usd, eur, 0, 0, 2, 2, txn.Boundaries{})
	eurBtc := txn.NewPair(eur, btc, 0, 0, 2, 8, txn.Boundaries{})
	usdEur.SetRate(1, 0.5)
	eurBtc.SetRate(1, 0.0001)

	pairs := txn.NewPairTransactionMap()
	require.NoError(t, pairs.Register(usdEur))
	require.NoError(t, pairs.Register(eurBtc))
	_, err := pairs.RegisterInvert(usdEur)
	require.NoError(t, err)
	_, err = pairs.RegisterInvert(eurBtc)
	require.NoError(t, err)

	adapter := exchangetest.New(pairs)
	ex := exchange.New("chain-test", adapter, exchange.Config{
		OutputDirectory:    t.TempDir(),
		OrderPollingPeriod: 100 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, ex.Connect(ctx, false))
	defer ex.Stop()

	leg1 := order.New(usdEur, order.Market, 0)
	leg2 := order.New(eurBtc, order.Market, 0)
	leg1.Chain(leg2)

	opCtx := operation.NewContext("chain-strategy", usd, 100)
	completed := make(chan struct{})
	opCtx.OnComplete(func(*operation.Context) { close(completed) })

	recorder := &countingRecorder{}
	ex.Process(leg1, 100, order.Market, opCtx, recorder, 0.5, leg1.Next == nil, 0)
	opCtx.Release()

	select {
	case <-completed:
	case <-time.After(4 * time.Second):
		t.Fatal("chain did not complete within timeout")
	}

	assert.Equal(t, int32(2), atomic.LoadInt32(&recorder.calls), "both legs should have been recorded")
	profit := opCtx.Profit()
	assert.NotEmpty(t, profit)
}

// A LIMIT order placed above the current market rate rests at the venue
// instead of filling immediately, and the adapter assigns it an id
// distinct from the local placeholder id Process generates. It must stay
// tracked and open across several polling cycles rather than being
// spuriously dropped as vanished once the placeholder is renamed to that
// venue id; when the rate finally becomes satisfiable it still completes.
func TestExchange_Process_RestingOrderSurvivesAcrossPollingCyclesUnderVenueID(t *testing.T) {
	usd := currency.New("REST_USD", "Rest Dollar", true, 1)
	eur := currency.New("REST_EUR", "Rest Euro", true, 1)
	pair := txn.NewPair(usd, eur, 0, 0, 2, 2, txn.Boundaries{})
	pair.SetRate(1, 0.5)

	pairs := txn.NewPairTransactionMap()
	require.NoError(t, pairs.Register(pair))
	_, err := pairs.RegisterInvert(pair)
	require.NoError(t, err)

	adapter := exchangetest.New(pairs)
	ex := exchange.New("resting-test", adapter, exchange.Config{
		OutputDirectory:    t.TempDir(),
		OrderPollingPeriod: 50 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, ex.Connect(ctx, false))
	defer ex.Stop()

	o := order.New(pair, order.Limit, 0.6) // above market rate, rests unfilled
	opCtx := operation.NewContext("resting-strategy", usd, 100)
	completed := make(chan struct{})
	opCtx.OnComplete(func(*operation.Context) { close(completed) })

	ex.Process(o, 100, order.Limit, opCtx, noopRecorder{}, 1.0, true, 0)
	opCtx.Release()

	// Give the poller several reconcile cycles to observe the order
	// resting under the venue's own id before the rate is ever satisfied.
	time.Sleep(300 * time.Millisecond)

	require.Equal(t, 1, ex.Tracks().Len(), "resting order must still be tracked, not dropped as vanished")
	entries := ex.Tracks().Snapshot()
	require.Len(t, entries, 1)
	e := entries[0]
	assert.NotEqual(t, "", e.Track.ID)
	assert.Equal(t, track.CancelNone, e.CancelCause, "resting order must not have been flagged for cancellation")

	select {
	case <-completed:
		t.Fatal("order should not have completed yet, rate was never satisfied")
	default:
	}

	// Now satisfy the rate so the next poll fills it.
	pair.SetRate(2, 0.6)

	select {
	case <-completed:
	case <-time.After(4 * time.Second):
		t.Fatal("order did not complete within timeout once the rate became satisfiable")
	}

	assert.Eventually(t, func() bool {
		return ex.Tracks().Len() == 0
	}, 4*time.Second, 50*time.Millisecond, "completed order should be dropped from the track list")
}
