package txn

import (
	"github.com/alejandrodnm/polybot/internal/currency"
)

// Chain is a shortest directed sequence of transactions from Initial to
// Final, one hop per intermediate currency.
type Chain struct {
	Legs []Transaction
}

// Initial returns the currency at the start of the chain.
func (c Chain) Initial() *currency.Currency {
	return c.Legs[0].Initial()
}

// Final returns the currency at the end of the chain.
func (c Chain) Final() *currency.Currency {
	return c.Legs[len(c.Legs)-1].Final()
}

// ChainMap holds, for every ordered pair of currencies reachable from one
// another, the shortest chain of transactions connecting them.
type ChainMap struct {
	chains map[*currency.Currency]map[*currency.Currency]Chain
}

// BuildOrderChainMap precomputes the shortest chain for every ordered pair
// of currencies reachable in m, using bounded depth-first search with an
// ignoredCurrencies set that forbids revisiting a currency already on the
// current path. Among multiple chains between the same pair, the
// shortest-depth one wins.
func BuildOrderChainMap(m *PairTransactionMap) *ChainMap {
	cm := &ChainMap{chains: make(map[*currency.Currency]map[*currency.Currency]Chain)}
	for _, start := range m.Currencies() {
		visited := map[*currency.Currency]bool{start: true}
		cm.search(m, start, nil, visited)
	}
	return cm
}

func (cm *ChainMap) search(m *PairTransactionMap, from *currency.Currency, path []Transaction, ignoredCurrencies map[*currency.Currency]bool) {
	for final, t := range m.Neighbors(from) {
		if ignoredCurrencies[final] {
			continue
		}
		newPath := append(append([]Transaction(nil), path...), t)
		start := newPath[0].Initial()
		cm.record(start, final, Chain{Legs: newPath})

		nextIgnored := make(map[*currency.Currency]bool, len(ignoredCurrencies)+1)
		for k := range ignoredCurrencies {
			nextIgnored[k] = true
		}
		nextIgnored[final] = true
		cm.search(m, final, newPath, nextIgnored)
	}
}

func (cm *ChainMap) record(start, end *currency.Currency, c Chain) {
	row, ok := cm.chains[start]
	if !ok {
		row = make(map[*currency.Currency]Chain)
		cm.chains[start] = row
	}
	if existing, ok := row[end]; ok && len(existing.Legs) <= len(c.Legs) {
		return
	}
	row[end] = c
}

// Lookup returns the shortest known chain from initial to final, or
// (Chain{}, false) if final is unreachable from initial.
func (cm *ChainMap) Lookup(initial, final *currency.Currency) (Chain, bool) {
	row, ok := cm.chains[initial]
	if !ok {
		return Chain{}, false
	}
	c, ok := row[final]
	return c, ok
}

// Reachable returns every currency reachable from c via a registered chain.
func (cm *ChainMap) Reachable(c *currency.Currency) []*currency.Currency {
	row := cm.chains[c]
	out := make([]*currency.Currency, 0, len(row))
	for k := range row {
		out = append(out, k)
	}
	return out
}

// ReachabilityCount returns, for every currency with at least one outgoing
// chain, the number of distinct currencies reachable from it. Used to pick
// an estimate currency: the fiat with maximum reachability.
func (cm *ChainMap) ReachabilityCount() map[*currency.Currency]int {
	out := make(map[*currency.Currency]int, len(cm.chains))
	for c, row := range cm.chains {
		out[c] = len(row)
	}
	return out
}
