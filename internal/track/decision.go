package track

import "github.com/alejandrodnm/polybot/internal/order"

// resolveVanished decides what to do with an entry that did not appear in
// the latest snapshot: a non-placeholder in Phase B, or a placeholder past
// its retention window in Phase D. It returns the action
// to emit (nil if none) and whether the entry should be dropped from the
// list.
func (l *List) resolveVanished(e *Entry, lastPresent, now int64) (*Action, bool) {
	p := l.processedProbability(e, lastPresent, now)
	t := e.Track

	if e.CancelCause != CancelNone {
		if p > 0.8 {
			e.CancelCause = CancelNone
			return l.treatAsProcessed(e, lastPresent, now), true
		}
		switch e.CancelCause {
		case CancelFailed:
			return &Action{Kind: ActionFailed, Track: t}, true
		case CancelTimeout:
			return &Action{Kind: ActionTimeout, Track: t}, true
		default: // CancelCancel drops silently
			return nil, true
		}
	}

	if p < 0.2 {
		if e.IsPlaceholder() {
			e.CancelCause = CancelFailed
		} else {
			e.CancelCause = CancelCancel
		}
		e.CancelTimestamp = now
		return nil, false
	}

	return l.treatAsProcessed(e, lastPresent, now), true
}

// treatAsProcessed consumes the matching balance movements (so a second
// vanished order in the same snapshot cannot claim the same delta) and
// emits a PROCESS action for the entry's full remaining amount, or no
// action when that amount is neglectable (five times it is not a valid
// order amount).
func (l *List) treatAsProcessed(e *Entry, lastPresent, now int64) *Action {
	t := e.Track
	amount := t.Amount

	initial := t.Order.Transaction.Initial()
	l.movements.Consume(lastPresent, -amount, initial)

	if t.Kind != order.Withdraw {
		final := t.Order.FinalCurrency()
		expected := t.Order.GetFinalAmount(amount, true)
		l.movements.Consume(lastPresent, expected, final)
	}

	t.Amount = 0
	if !t.Order.IsValid(amount * 5) {
		return nil
	}
	return &Action{Kind: ActionProcess, Track: t, Amount: amount}
}
