package order_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alejandrodnm/polybot/internal/currency"
	"github.com/alejandrodnm/polybot/internal/order"
	"github.com/alejandrodnm/polybot/internal/txn"
)

func TestOrder_New_MarketUsesCurrentRate(t *testing.T) {
	usd := currency.New("ORD_USD", "Ord Dollar", true, 1)
	eur := currency.New("ORD_EUR", "Ord Euro", true, 1)
	p := txn.NewPair(usd, eur, 0, 0, 2, 2, txn.Boundaries{})
	p.SetRate(1, 0.5)

	o := order.New(p, order.Market, 999)
	assert.Equal(t, 0.5, o.Rate)
}

func TestOrder_Chain_GetFinalAmount(t *testing.T) {
	usd := currency.New("ORD_CHAIN_USD", "Ord Dollar", true, 1)
	eur := currency.New("ORD_CHAIN_EUR", "Ord Euro", true, 1)
	btc := currency.New("ORD_CHAIN_BTC", "Ord Bitcoin", false, 0.0001)

	leg1 := txn.NewPair(usd, eur, 0, 0, 2, 2, txn.Boundaries{})
	leg2 := txn.NewPair(eur, btc, 0, 0, 2, 8, txn.Boundaries{})

	head := order.New(leg1, order.Limit, 0.5)
	head.Chain(order.New(leg2, order.Limit, 0.0001))

	assert.Equal(t, usd, head.InitialCurrency())
	assert.Equal(t, btc, head.FinalCurrency())

	got := head.GetFinalAmount(100, false)
	assert.InDelta(t, 100*0.5*0.0001, got, 1e-12)
}

func TestOrder_IsValid_RejectsOutOfBoundsAmount(t *testing.T) {
	usd := currency.New("ORD_BOUND_USD", "Ord Dollar", true, 1)
	eur := currency.New("ORD_BOUND_EUR", "Ord Euro", true, 1)
	p := txn.NewPair(usd, eur, 0, 0, 2, 2, txn.Boundaries{
		InitialAmount: txn.Interval{Min: 10, Max: 100},
	})

	o := order.New(p, order.Limit, 0.5)
	assert.True(t, o.IsValid(50))
	assert.False(t, o.IsValid(5))
	assert.False(t, o.IsValid(200))
}

func TestOrder_IsValid_RejectsBrokenChainComposition(t *testing.T) {
	usd := currency.New("ORD_BROKEN_USD", "Ord Dollar", true, 1)
	eur := currency.New("ORD_BROKEN_EUR", "Ord Euro", true, 1)
	gbp := currency.New("ORD_BROKEN_GBP", "Ord Pound", true, 1)
	btc := currency.New("ORD_BROKEN_BTC", "Ord Bitcoin", false, 0.0001)

	leg1 := txn.NewPair(usd, eur, 0, 0, 2, 2, txn.Boundaries{})
	leg2 := txn.NewPair(gbp, btc, 0, 0, 2, 8, txn.Boundaries{}) // does not continue from eur

	head := order.New(leg1, order.Limit, 0.5)
	head.Chain(order.New(leg2, order.Limit, 0.0001))

	assert.False(t, head.IsValid(100))
}
