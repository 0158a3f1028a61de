package exchange

import (
	"github.com/alejandrodnm/polybot/internal/currency"
	"github.com/alejandrodnm/polybot/internal/txn"
)

// knownMinimumCurrencies are the anchors propagateMinimums chains from: a
// currency whose MinTradeAmount is already authoritative.
var knownMinimumCurrencies = []string{"USD", "EUR", "BTC"}

// propagateMinimums implements connect-protocol step 5: for each currency,
// find its minimum tradeable amount via a chain from one of the known
// anchor currencies, and write it into every transaction's InitialAmount
// boundary.
//
// BoundariesForWrite's ok return is ignored: an inverted transaction's
// (nil, false) response is silently treated as "nothing to write",
// reproducing the original's behavior of skipping inverse-only pairs
// rather than resolving through the base transaction.
func (ex *Exchange) propagateMinimums() {
	ex.lockProperties.RLock()
	chains := ex.chains
	currencies := append([]*currency.Currency(nil), ex.currencies...)
	ex.lockProperties.RUnlock()

	if chains == nil {
		return
	}

	for _, target := range currencies {
		min, ok := chainedMinimum(chains, target)
		if !ok {
			continue
		}
		for _, t := range ex.pairs.Neighbors(target) {
			bw, _ := t.BoundariesForWrite()
			if bw == nil {
				continue
			}
			if bw.InitialAmount.Min == 0 || bw.InitialAmount.Min < min {
				bw.InitialAmount.Min = min
			}
		}
	}
}

// chainedMinimum resolves target's minimum tradeable amount by converting
// a known anchor currency's own minimum along the shortest chain to
// target. target's own MinTradeAmount, if already set, wins outright.
func chainedMinimum(chains *txn.ChainMap, target *currency.Currency) (float64, bool) {
	if m := target.MinTradeAmount(); m > 0 {
		return m, true
	}
	for _, id := range knownMinimumCurrencies {
		anchor := currency.Lookup(id)
		if anchor == nil || anchor == target {
			continue
		}
		chain, ok := chains.Lookup(anchor, target)
		if !ok {
			continue
		}
		amount := anchor.MinTradeAmount()
		for _, leg := range chain.Legs {
			rate, _ := leg.Rate()
			if rate <= 0 {
				amount = 0
				break
			}
			amount *= rate
		}
		if amount > 0 {
			return amount, true
		}
	}
	return 0, false
}
