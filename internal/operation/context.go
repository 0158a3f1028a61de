// Package operation implements Operation, OperationContext, and
// OperationOrder: the unit of work dispatched when an order leg is
// submitted, and the shared, reference-counted context that ties together
// every leg of a chain and every retry of a leg.
package operation

import (
	"sync"
	"sync/atomic"

	"github.com/alejandrodnm/polybot/internal/currency"
)

// Context is shared by every Operation spawned for one chain: the
// operation itself, each in-flight TrackOrder, and every pending event may
// hold a reference. When the last strong reference is released, every
// onComplete handler registered via OnComplete fires exactly once.
//
// Go has no destructors, so the reference count is explicit: callers must
// pair every Retain with a Release. The initial reference returned by
// NewContext counts as one Retain that the caller must eventually Release.
type Context struct {
	// StrategyID identifies the strategy that spawned this chain. Only
	// Context carries it; a TrackOrder created without a context has no
	// strategy id at all.
	StrategyID string

	refs int32

	mu           sync.Mutex
	profit       map[*currency.Currency]float64
	failureCause string
	released     bool
	onComplete   []func(*Context)

	initialCurrency *currency.Currency
	initialAmount   float64
	converted       map[*currency.Currency]float64
}

// NewContext creates a context with one outstanding reference, owned by
// the caller.
func NewContext(strategyID string, initialCurrency *currency.Currency, initialAmount float64) *Context {
	return &Context{
		StrategyID:      strategyID,
		refs:            1,
		profit:          make(map[*currency.Currency]float64),
		converted:       make(map[*currency.Currency]float64),
		initialCurrency: initialCurrency,
		initialAmount:   initialAmount,
	}
}

// Retain adds a strong reference and returns the context for chaining.
func (c *Context) Retain() *Context {
	atomic.AddInt32(&c.refs, 1)
	return c
}

// Release drops a strong reference. When the count reaches zero every
// OnComplete handler fires, snapshot-then-dispatch so a handler may safely
// read the final profit map without racing a concurrent Retain.
func (c *Context) Release() {
	if atomic.AddInt32(&c.refs, -1) > 0 {
		return
	}
	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return
	}
	c.released = true
	handlers := append([]func(*Context){}, c.onComplete...)
	c.mu.Unlock()

	for _, h := range handlers {
		h(c)
	}
}

// OnComplete registers a handler to run when the last reference is
// released. If the context has already been released, cb fires
// immediately.
func (c *Context) OnComplete(cb func(*Context)) {
	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		cb(c)
		return
	}
	c.onComplete = append(c.onComplete, cb)
	c.mu.Unlock()
}

// AddProfit adds amount to the running profit total for currency cur.
func (c *Context) AddProfit(cur *currency.Currency, amount float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profit[cur] += amount
}

// Profit returns a snapshot of the context's profit map.
func (c *Context) Profit() map[*currency.Currency]float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[*currency.Currency]float64, len(c.profit))
	for k, v := range c.profit {
		out[k] = v
	}
	return out
}

// SetFailureCause records why the chain failed to complete, e.g.
// "PLACE_ORDER" or "TIMEOUT". Set once; later calls are ignored.
func (c *Context) SetFailureCause(cause string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failureCause == "" {
		c.failureCause = cause
	}
}

// FailureCause returns the recorded failure cause, or "" if the chain has
// not failed.
func (c *Context) FailureCause() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failureCause
}

// RecordConversion updates the converted-amount bookkeeping used to
// compute end-to-end profit/loss: cur now holds amount, having started the
// chain as initialAmount of initialCurrency.
func (c *Context) RecordConversion(cur *currency.Currency, amount float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.converted[cur] = amount
}

// Ratio returns amount-of-cur-now divided by the chain's initial amount, or
// (0, false) if cur has not been converted yet.
func (c *Context) Ratio(cur *currency.Currency) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.converted[cur]
	if !ok || c.initialAmount == 0 {
		return 0, false
	}
	return v / c.initialAmount, true
}

// InitialCurrency returns the currency the chain started from.
func (c *Context) InitialCurrency() *currency.Currency { return c.initialCurrency }

// InitialAmount returns the amount the chain started with.
func (c *Context) InitialAmount() float64 { return c.initialAmount }
