package exchange

import (
	"log/slog"

	"github.com/alejandrodnm/polybot/internal/currency"
)

// approximateRate is a rough expected rate for a well-known currency pair,
// used only as a sanity anchor; venues are never expected to match it
// exactly.
type approximateRate struct {
	initial, final string
	expected        float64
}

var knownApproximateRates = []approximateRate{
	{"USD", "EUR", 0.85},
	{"EUR", "USD", 1.18},
}

// RunSanityCheck runs after connection, before trading is enabled: it
// spot-checks a handful of well-known rates and every registered inverse
// pair's internal consistency. Failures are logged as errors and never
// abort the connect sequence; they exist purely as visibility signals for
// a misconfigured venue.
func (ex *Exchange) RunSanityCheck() {
	ex.lockProperties.RLock()
	pairs := ex.pairs
	ex.lockProperties.RUnlock()
	if pairs == nil {
		return
	}

	for _, known := range knownApproximateRates {
		initial := currency.Lookup(known.initial)
		final := currency.Lookup(known.final)
		if initial == nil || final == nil {
			continue
		}
		t := pairs.Lookup(initial, final)
		if t == nil {
			continue
		}
		actual, _ := t.Rate()
		if actual == 0 {
			continue
		}
		if diff := absf(known.expected-actual) / actual; diff > 0.5 {
			slog.Error("exchange: sanity check failed: rate far from expectation",
				"exchange", ex.cfg.Name, "pair", known.initial+"/"+known.final,
				"expected", known.expected, "actual", actual, "relative_diff", diff)
		}
	}

	for _, initial := range pairs.Currencies() {
		for final, direct := range pairs.Neighbors(initial) {
			inverse := pairs.Lookup(final, initial)
			if inverse == nil || inverse == direct {
				continue
			}
			rate, _ := direct.Rate()
			invRate, _ := inverse.Rate()
			if rate == 0 || invRate == 0 {
				continue
			}
			spread := 1/invRate - rate
			if spread > 0.5*rate {
				slog.Error("exchange: sanity check failed: inverse pair spread too wide",
					"exchange", ex.cfg.Name, "initial", initial.Id(), "final", final.Id(),
					"rate", rate, "inverse_rate", invRate)
			}
			roundTrip := rate * invRate
			if roundTrip >= 1.0 {
				slog.Error("exchange: sanity check failed: round trip does not lose value",
					"exchange", ex.cfg.Name, "initial", initial.Id(), "final", final.Id(), "round_trip", roundTrip)
			}
		}
	}
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
