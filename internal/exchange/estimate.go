package exchange

import "github.com/alejandrodnm/polybot/internal/currency"

// chooseEstimateCurrency implements connect-protocol step 4: for each
// currency, count how many others are reachable via the order-chain map,
// then pick the fiat with maximum reachability, preferring USD, then EUR,
// then any currency tied for the maximum.
func (ex *Exchange) chooseEstimateCurrency() {
	ex.lockProperties.RLock()
	chains := ex.chains
	currencies := append([]*currency.Currency(nil), ex.currencies...)
	ex.lockProperties.RUnlock()

	if chains == nil {
		return
	}
	counts := chains.ReachabilityCount()

	var best *currency.Currency
	bestCount := -1
	for _, c := range currencies {
		if !c.IsFiat() {
			continue
		}
		n := counts[c]
		if n > bestCount {
			best, bestCount = c, n
		}
	}

	if usd := currency.Lookup("USD"); usd != nil && counts[usd] == bestCount {
		best = usd
	} else if eur := currency.Lookup("EUR"); eur != nil && counts[eur] == bestCount {
		best = eur
	}

	if best != nil {
		ex.estimateCurrency.Store(best)
	}
}

// EstimateCurrency returns the currency chosen to value the whole
// portfolio in, or nil before the first connect completes.
func (ex *Exchange) EstimateCurrency() *currency.Currency {
	return ex.estimateCurrency.Load()
}
