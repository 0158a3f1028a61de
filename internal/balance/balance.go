// Package balance implements per-currency funds tracking (Balance) and its
// time-ordered movement journal (Movements).
package balance

import (
	"sync"

	"github.com/alejandrodnm/polybot/internal/currency"
)

// Balance holds two maps keyed by currency: fundList (the total including
// anything reserved) and reservedFundList (the portion allocated to an
// outstanding order or chain continuation). Get returns what remains
// available for new orders.
type Balance struct {
	mu               sync.RWMutex
	fundList         map[*currency.Currency]float64
	reservedFundList map[*currency.Currency]float64

	// exchangeRef is a non-owning back-reference to whatever owns this
	// balance, used only for logging context; never dereferenced for
	// lifecycle purposes.
	exchangeRef any

	initialEstimate     float64
	initialEstimateKnown bool
}

// New creates an empty Balance.
func New() *Balance {
	return &Balance{
		fundList:         make(map[*currency.Currency]float64),
		reservedFundList: make(map[*currency.Currency]float64),
	}
}

// SetExchangeRef stores a non-owning reference to the balance's owner.
func (b *Balance) SetExchangeRef(ref any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.exchangeRef = ref
}

// ExchangeRef returns the balance's non-owning back-reference.
func (b *Balance) ExchangeRef() any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.exchangeRef
}

// Get returns the funds available for new orders: fundList[c] -
// reservedFundList[c].
func (b *Balance) Get(c *currency.Currency) float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.fundList[c] - b.reservedFundList[c]
}

// GetWithReserve returns the total funds including what is reserved.
func (b *Balance) GetWithReserve(c *currency.Currency) float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.fundList[c]
}

// Reserved returns the amount of c currently reserved.
func (b *Balance) Reserved(c *currency.Currency) float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.reservedFundList[c]
}

// SetFund replaces the total (including-reserve) amount of c, typically
// from a fresh adapter snapshot.
func (b *Balance) SetFund(c *currency.Currency, amount float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fundList[c] = amount
}

// SetReserve replaces the reserved amount of c.
func (b *Balance) SetReserve(c *currency.Currency, amount float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reservedFundList[c] = amount
}

// AddReserve increments the reserved amount of c by delta (delta may be
// negative to release a reservation).
func (b *Balance) AddReserve(c *currency.Currency, delta float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reservedFundList[c] += delta
}

// Currencies returns every currency with a fund entry, including entries
// whose amount is zero.
func (b *Balance) Currencies() []*currency.Currency {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*currency.Currency, 0, len(b.fundList))
	for c := range b.fundList {
		out = append(out, c)
	}
	return out
}

// SetInitialEstimate memoizes the initial estimate-currency valuation of
// this balance, computed once when the exchange first connects.
func (b *Balance) SetInitialEstimate(v float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.initialEstimate = v
	b.initialEstimateKnown = true
}

// InitialEstimate returns the memoized initial estimate, if set.
func (b *Balance) InitialEstimate() (float64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.initialEstimate, b.initialEstimateKnown
}

// Diff compares b against a newer snapshot, invoking cb(c, delta) for every
// currency whose fundList entry changed, delta = new - old.
func (b *Balance) Diff(newSnapshot map[*currency.Currency]float64, cb func(c *currency.Currency, delta float64)) {
	b.mu.RLock()
	old := make(map[*currency.Currency]float64, len(b.fundList))
	for c, v := range b.fundList {
		old[c] = v
	}
	b.mu.RUnlock()

	seen := make(map[*currency.Currency]bool, len(newSnapshot))
	for c, v := range newSnapshot {
		seen[c] = true
		if delta := v - old[c]; delta != 0 {
			cb(c, delta)
		}
	}
	for c, v := range old {
		if !seen[c] && v != 0 {
			cb(c, -v)
		}
	}
}

// ReplaceSnapshot atomically swaps fundList for newSnapshot.
func (b *Balance) ReplaceSnapshot(newSnapshot map[*currency.Currency]float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fundList = make(map[*currency.Currency]float64, len(newSnapshot))
	for c, v := range newSnapshot {
		b.fundList[c] = v
	}
}
