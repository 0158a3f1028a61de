// Package order implements Order and OrderChain: a chained sequence of
// transactions with rates, timeouts, and final/initial amount arithmetic.
package order

import (
	"time"

	"github.com/alejandrodnm/polybot/internal/currency"
	"github.com/alejandrodnm/polybot/internal/txn"
)

// Kind distinguishes how an order's price behaves.
type Kind int

const (
	// Limit orders carry a fixed rate chosen by the strategy.
	Limit Kind = iota
	// Market orders track the transaction's current rate at submission time.
	Market
	// Withdraw orders move funds off the exchange entirely.
	Withdraw
)

// DefaultTimeout is the time a venue-confirmed order is allowed to remain
// outstanding before it is cancelled.
const DefaultTimeout = 24 * time.Hour

// Order owns a transaction pointer, a rate, a timeout, and optionally the
// next order in a chain. Orders are uniquely owned by their holder (a
// TrackOrder or a chain head); they are never shared.
type Order struct {
	Transaction txn.Transaction
	Kind        Kind
	Rate        float64
	Timeout     time.Duration
	Next        *Order
}

// New creates a standalone order for t. For Limit orders rate is the
// strategy-fixed price; for Market and Withdraw orders rate is ignored and
// the transaction's current rate is used instead.
func New(t txn.Transaction, kind Kind, rate float64) *Order {
	if kind != Limit {
		rate, _ = t.Rate()
	}
	return &Order{
		Transaction: t,
		Kind:        kind,
		Rate:        rate,
		Timeout:     DefaultTimeout,
	}
}

// Chain appends next as the tail of o's chain, returning o for convenience.
func (o *Order) Chain(next *Order) *Order {
	tail := o
	for tail.Next != nil {
		tail = tail.Next
	}
	tail.Next = next
	return o
}

// Legs returns the chain as a flat slice, head first.
func (o *Order) Legs() []*Order {
	out := []*Order{}
	for leg := o; leg != nil; leg = leg.Next {
		out = append(out, leg)
	}
	return out
}

// InitialCurrency returns the currency the chain head consumes.
func (o *Order) InitialCurrency() *currency.Currency {
	return o.Transaction.Initial()
}

// FinalCurrency returns the currency the chain tail produces.
func (o *Order) FinalCurrency() *currency.Currency {
	tail := o
	for tail.Next != nil {
		tail = tail.Next
	}
	return tail.Transaction.Final()
}

// GetFinalAmount walks the chain from o, applying each leg's rate (and,
// when includeFee is true, its transaction's fee) to the running amount,
// and returns the amount produced by the final leg.
func (o *Order) GetFinalAmount(amount float64, includeFee bool) float64 {
	for leg := o; leg != nil; leg = leg.Next {
		amount *= leg.Rate
		if includeFee {
			amount = txn.ApplyFee(leg.Transaction, amount)
		}
	}
	return amount
}

// IsValid reports whether amount, propagated through every leg of the
// chain, satisfies each leg's transaction boundaries, and that consecutive
// legs compose (leg[i].Final() == leg[i+1].Initial()).
func (o *Order) IsValid(amount float64) bool {
	prev := o
	current := amount
	for leg := o; leg != nil; leg = leg.Next {
		if leg != o && !prev.Transaction.Final().Is(leg.Transaction.Initial()) {
			return false
		}
		b := leg.Transaction.Boundaries()
		if !b.InitialAmount.Contains(current) {
			return false
		}
		if !b.Rate.Contains(leg.Rate) {
			return false
		}
		out := current * leg.Rate
		if !b.FinalAmount.Contains(out) {
			return false
		}
		current = out
		prev = leg
	}
	return true
}
