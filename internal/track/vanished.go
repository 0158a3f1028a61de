package track

import (
	"math"

	"github.com/alejandrodnm/polybot/internal/order"
	"github.com/alejandrodnm/polybot/internal/ringbuffer"
)

// clamp restricts v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// processedProbability combines the rate-distance, initial-currency, and
// final-currency signals over [lastPresent, now] into a single probability
// that a vanished order was actually filled by the venue. For LIMIT/MARKET
// orders it is the mean of all three signals; for WITHDRAW only the
// initial-currency signal applies, since a withdrawal has no final-side
// transaction.
func (l *List) processedProbability(e *Entry, lastPresent, now int64) float64 {
	t := e.Track

	initial := t.Order.Transaction.Initial()
	negMoved := -l.movements.SumSince(lastPresent, initial, -1)
	initialSignal := clamp(negMoved/maxf(t.Amount, 1e-12), 0, 1)

	if t.Kind == order.Withdraw {
		return initialSignal
	}

	rateSignal := l.rateDistanceSignal(t, lastPresent, now)

	final := t.Order.FinalCurrency()
	expectedFinal := t.Order.GetFinalAmount(t.Amount, true)
	posMoved := l.movements.SumSince(lastPresent, final, 1)
	finalSignal := clamp(posMoved/maxf(expectedFinal, 1e-12), 0, 1)

	return (rateSignal + initialSignal + finalSignal) / 3
}

// rateDistanceSignal computes d = min(orderRate - recordedRate) across the
// transaction's rate history sampled over [lastPresent, now], then converts
// it into a [0,1] signal: the further the recorded rate rose above the
// order's frozen rate, the stronger the signal that it could have matched.
func (l *List) rateDistanceSignal(t *TrackOrder, lastPresent, now int64) float64 {
	history := t.Order.Transaction.RateHistory()
	minDiff := math.Inf(1)
	history.ReadInterval(now, lastPresent, func(e ringbuffer.Entry[float64]) {
		d := t.Rate - e.Value
		if d < minDiff {
			minDiff = d
		}
	})
	if math.IsInf(minDiff, 1) {
		return 0
	}
	return clamp(-minDiff/(0.02*t.Rate), 0, 1)
}
