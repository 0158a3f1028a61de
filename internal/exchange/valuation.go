package exchange

import "github.com/alejandrodnm/polybot/internal/currency"

// valueInEstimateCurrency converts amount of c into the estimate currency
// by walking the shortest order chain between them, applying each leg's
// current rate. Returns (0, false) if no chain connects them or no
// estimate currency has been chosen yet.
func (ex *Exchange) valueInEstimateCurrency(c *currency.Currency, amount float64) (float64, bool) {
	estimate := ex.EstimateCurrency()
	if estimate == nil {
		return 0, false
	}
	if c == estimate {
		return amount, true
	}

	ex.lockProperties.RLock()
	chains := ex.chains
	ex.lockProperties.RUnlock()
	if chains == nil {
		return 0, false
	}

	chain, ok := chains.Lookup(c, estimate)
	if !ok {
		return 0, false
	}
	for _, leg := range chain.Legs {
		rate, _ := leg.Rate()
		if rate <= 0 {
			return 0, false
		}
		amount *= rate
	}
	return amount, true
}

// Valuation sums every currency's total balance (reserve included), converted into the
// estimate currency, returning (0, false) before the estimate currency is
// known.
func (ex *Exchange) Valuation() (float64, bool) {
	estimate := ex.EstimateCurrency()
	if estimate == nil {
		return 0, false
	}

	bal := ex.Balance()
	total := 0.0
	any := false
	for _, c := range bal.Currencies() {
		v, ok := ex.valueInEstimateCurrency(c, bal.GetWithReserve(c))
		if !ok {
			continue
		}
		total += v
		any = true
	}
	return total, any
}

// FinalizeInitialEstimate computes the portfolio's valuation once, right
// after connecting, and memoizes it on the balance. This is an explicit
// step rather than a lazily-computed value read from inside a reporting
// path, so that "first read wins" races never depend on print-call
// ordering.
func (ex *Exchange) FinalizeInitialEstimate() {
	if v, ok := ex.Valuation(); ok {
		ex.Balance().SetInitialEstimate(v)
	}
}
