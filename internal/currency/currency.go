// Package currency defines the process-wide currency identity used across
// the trading engine: transactions, orders, and balances all reference a
// Currency by pointer, so two Currency values are the same currency iff
// they are the same pointer.
package currency

import "strings"

// Currency is a process-wide singleton identity for a tradable asset.
// Compared by identity (pointer equality), never by Id.
type Currency struct {
	id          string
	name        string
	aliases     map[string]bool
	fiat        bool
	minTradeAmt float64
}

// NONE is the sentinel currency used as the "final" side of a withdraw
// transaction, which has no destination currency.
var NONE = &Currency{id: "NONE", name: "NONE"}

var registry = map[string]*Currency{
	"NONE": NONE,
}

// New registers and returns a new Currency identity. Calling New twice with
// the same id returns the same pointer.
func New(id, name string, fiat bool, minTradeAmt float64, aliases ...string) *Currency {
	if c, ok := registry[id]; ok {
		return c
	}
	aliasSet := make(map[string]bool, len(aliases))
	for _, a := range aliases {
		aliasSet[strings.ToUpper(a)] = true
	}
	c := &Currency{
		id:          id,
		name:        name,
		fiat:        fiat,
		minTradeAmt: minTradeAmt,
		aliases:     aliasSet,
	}
	registry[id] = c
	return c
}

// Lookup returns a previously registered currency by id, or nil.
func Lookup(id string) *Currency {
	return registry[id]
}

// LookupByTicker resolves a currency from a ticker symbol, checking the id
// and then every registered alias.
func LookupByTicker(ticker string) *Currency {
	ticker = strings.ToUpper(ticker)
	if c, ok := registry[ticker]; ok {
		return c
	}
	for _, c := range registry {
		if c.aliases[ticker] {
			return c
		}
	}
	return nil
}

func (c *Currency) Id() string      { return c.id }
func (c *Currency) Name() string    { return c.name }
func (c *Currency) IsFiat() bool    { return c.fiat }
func (c *Currency) IsNone() bool    { return c == NONE }
func (c *Currency) MinTradeAmount() float64 {
	return c.minTradeAmt
}

func (c *Currency) String() string {
	return c.id
}

// Is reports whether two currency pointers refer to the same identity.
// Provided for readability at call sites instead of raw `==`.
func (c *Currency) Is(other *Currency) bool {
	return c == other
}

// TickerToCurrency splits a concatenated ticker (e.g. "USDEUR") into its two
// component currencies, trying every registered currency as a prefix. It is
// the inverse of concatenating two currency ids, used by adapters mapping a
// venue's pair symbol back to a (initial, final) currency pair.
func TickerToCurrency(ticker string) (initial, final *Currency, ok bool) {
	ticker = strings.ToUpper(ticker)
	for _, a := range registry {
		if a == NONE {
			continue
		}
		if !strings.HasPrefix(ticker, a.id) {
			continue
		}
		rest := strings.TrimPrefix(ticker, a.id)
		if b := Lookup(rest); b != nil {
			return a, b, true
		}
	}
	return nil, nil, false
}
