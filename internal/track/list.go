package track

import (
	"log/slog"
	"sync"

	"github.com/alejandrodnm/polybot/internal/balance"
	"github.com/alejandrodnm/polybot/internal/currency"
	"github.com/alejandrodnm/polybot/internal/event"
	"github.com/alejandrodnm/polybot/internal/txn"
)

// ServerRow is one row of a fresh order snapshot reported by an adapter.
type ServerRow struct {
	ID           string
	Pair         txn.Transaction
	Amount       float64
	Rate         float64
	CreationTime int64
}

// ActionKind identifies which lifecycle event an Action should dispatch.
type ActionKind int

const (
	ActionProcess ActionKind = iota
	ActionFailed
	ActionTimeout
)

// Action is a lifecycle event collected during reconciliation, applied only
// after the list's lock has been released.
type Action struct {
	Kind    ActionKind
	Track   *TrackOrder
	Amount  float64
	Partial bool
}

// Canceller issues a cancellation request to the venue. Implemented by the
// exchange's adapter wrapper.
type Canceller interface {
	CancelOrder(id string) error
}

// List is the authoritative local order list: TrackOrderList. Reads may be
// concurrent; writes (reconciliation passes) are exclusive.
type List struct {
	mu        sync.RWMutex
	entries   map[string]*Entry
	nextLocal int

	events                 *event.Manager
	movements              *balance.Movements
	liveBalance            *balance.Balance
	canceller              Canceller
	orderRegisterTimeoutMs int64
}

// NewList creates an empty TrackOrderList.
func NewList(events *event.Manager, movements *balance.Movements, liveBalance *balance.Balance, canceller Canceller, orderRegisterTimeoutMs int64) *List {
	return &List{
		entries:                make(map[string]*Entry),
		events:                 events,
		movements:              movements,
		liveBalance:            liveBalance,
		canceller:              canceller,
		orderRegisterTimeoutMs: orderRegisterTimeoutMs,
	}
}

// AddPlaceholder inserts a new placeholder entry immediately after setOrder
// returns locally, before the venue confirms an id.
func (l *List) AddPlaceholder(t *TrackOrder) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[t.ID] = &Entry{Track: t, Type: Placeholder}
}

// Activate marks a placeholder entry as having been observed active at
// least once (used by Phase D's retention window).
func (l *List) Activate(id string, ts int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[id]; ok && e.Type == Placeholder {
		e.Type = ActivatedPlaceholder
		e.ActivatedTimestamp = ts
	}
}

// Match activates the placeholder registered under localID and adopts
// venueIDs as its tracking key(s) going forward: when the venue confirms a
// different id than the one generated locally, the entry is re-keyed to
// it so future snapshots (which report the venue's id, never the local
// one) match it by id in Phase A instead of falling through to
// vanished-order resolution. If the venue split the order into more than
// one resting order, every id past the first fans out into its own entry
// sharing the original order and context. Every registered event
// container is copied to each new id so completion/error/timeout handlers
// keep firing after the rename.
func (l *List) Match(localID string, venueIDs []string, ts int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[localID]
	if !ok || e.Type != Placeholder {
		return
	}
	e.Type = ActivatedPlaceholder
	e.ActivatedTimestamp = ts

	if len(venueIDs) == 0 {
		return
	}

	primary := venueIDs[0]
	if primary != localID {
		delete(l.entries, localID)
		e.Track.ID = primary
		l.entries[primary] = e
		l.events.CopyOrder(localID, primary, event.Order)
	}

	for _, extra := range venueIDs[1:] {
		fork := &Entry{
			Track: &TrackOrder{
				ID:           extra,
				Order:        e.Track.Order,
				Kind:         e.Track.Kind,
				Amount:       e.Track.Amount,
				CreationTime: e.Track.CreationTime,
				Context:      e.Track.Context,
				Rate:         e.Track.Rate,
			},
			Type:               ActivatedPlaceholder,
			ActivatedTimestamp: ts,
		}
		l.entries[extra] = fork
		l.events.CopyOrder(localID, extra, event.Order)
	}
}

// Len returns the number of entries currently tracked.
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Get returns the entry for id, if any.
func (l *List) Get(id string) (*Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[id]
	return e, ok
}

// Snapshot returns a shallow copy of every tracked entry.
func (l *List) Snapshot() []*Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Entry, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e)
	}
	return out
}

// Reconcile runs the full Phase A -> B -> C -> D pipeline against a fresh
// server snapshot, then emits collected actions and issues any pending
// timeout cancellations, both outside the list's lock.
func (l *List) Reconcile(now, lastPresent, serverTimestamp int64, updatedList []ServerRow) []Action {
	l.mu.Lock()
	actions := l.reconcileLocked(now, lastPresent, updatedList)
	toCancel := l.scanTimeoutsLocked(serverTimestamp)
	l.mu.Unlock()

	for _, id := range toCancel {
		if err := l.canceller.CancelOrder(id); err != nil {
			slog.Error("track: cancelOrderImpl failed, will retry next cycle", "id", id, "err", err)
		}
	}

	l.dispatch(actions)
	l.gcEvents()
	return actions
}

func (l *List) reconcileLocked(now, lastPresent int64, updatedList []ServerRow) []Action {
	remainingByID := make(map[string]ServerRow, len(updatedList))
	for _, r := range updatedList {
		remainingByID[r.ID] = r
	}

	var actions []Action

	// Phase A: match by id.
	for id, e := range l.entries {
		row, ok := remainingByID[id]
		if !ok {
			continue
		}
		delete(remainingByID, id)

		if e.CancelCause != CancelNone && e.CancelTimestamp+l.orderRegisterTimeoutMs > now {
			e.CancelCause = CancelNone
			slog.Warn("track: clearing cancel flag, order still present before deadline", "id", id)
		}

		matched := e.Track.Amount - row.Amount
		e.Track.Amount = row.Amount
		if e.Track.Amount < 0 {
			e.Track.Amount = 0
		}
		e.Track.CreationTime = row.CreationTime
		if row.Rate > 0 {
			e.Track.Rate = row.Rate
		}
		if e.Type == Placeholder || e.Type == ActivatedPlaceholder {
			e.Type = MatchedPlaceholder
		} else {
			e.Type = Matched
		}

		if matched > 0 {
			actions = append(actions, l.buildProcessAction(e, matched)...)
		}
	}

	// Phase B: resolve orders that vanished but were not matched.
	for id, e := range l.entries {
		if e.IsPlaceholder() {
			continue
		}
		if _, stillPresent := remainingByID[id]; stillPresent {
			continue
		}
		// Already consumed by phase A above if matched; re-skip if gone.
		if _, ok := l.entries[id]; !ok {
			continue
		}
		act, drop := l.resolveVanished(e, lastPresent, now)
		if act != nil {
			actions = append(actions, *act)
		}
		if drop {
			delete(l.entries, id)
		}
	}

	// Phase C: placeholder matching against whatever updated rows remain.
	placeholders := make([]*Entry, 0)
	for _, e := range l.entries {
		if e.Type == Placeholder || e.Type == ActivatedPlaceholder {
			placeholders = append(placeholders, e)
		}
	}
	matchActions := l.matchPlaceholders(placeholders, remainingByID)
	actions = append(actions, matchActions...)

	// Phase D: retain remaining placeholders, tag orphans.
	dActions := l.retainAndTagOrphans(now, remainingByID)
	actions = append(actions, dActions...)

	return actions
}

func (l *List) buildProcessAction(e *Entry, matchedAmount float64) []Action {
	t := e.Track
	original := matchedAmount + t.Amount
	partial := original > 0 && t.Amount >= original/2
	if !t.Order.IsValid(matchedAmount * 5) {
		slog.Info("track: matched amount too small to trigger, ignoring", "id", t.ID, "amount", matchedAmount)
		return nil
	}
	return []Action{{Kind: ActionProcess, Track: t, Amount: matchedAmount, Partial: partial}}
}

func (l *List) dispatch(actions []Action) {
	for _, a := range actions {
		switch a.Kind {
		case ActionProcess:
			l.events.Trigger(event.OnComplete, a.Track.ID, event.Payload{Amount: a.Amount})
		case ActionFailed:
			if a.Track.Context != nil {
				a.Track.Context.SetFailureCause("PLACE_ORDER")
			}
			l.events.Trigger(event.OnError, a.Track.ID, event.Payload{Amount: a.Amount, Cause: "PLACE_ORDER"})
		case ActionTimeout:
			if a.Track.Context != nil {
				a.Track.Context.SetFailureCause("TIMEOUT")
			}
			l.events.Trigger(event.OnTimeout, a.Track.ID, event.Payload{Amount: a.Amount, Cause: "TIMEOUT"})
		}
	}
}

func (l *List) gcEvents() {
	live := make(map[string]bool, len(l.entries))
	l.mu.RLock()
	for id := range l.entries {
		live[id] = true
	}
	l.mu.RUnlock()
	l.events.GC(live)
}

func (l *List) scanTimeoutsLocked(serverTimestamp int64) []string {
	var toCancel []string
	for id, e := range l.entries {
		if e.IsPlaceholder() {
			continue
		}
		if e.CancelCause != CancelNone {
			continue
		}
		if e.Track.CreationTime+e.Track.Order.Timeout.Milliseconds() < serverTimestamp {
			e.CancelCause = CancelTimeout
			e.CancelTimestamp = serverTimestamp
			toCancel = append(toCancel, id)
		}
	}
	return toCancel
}

// firstOrderFinalAmount returns the amount the chain's first leg would
// produce if the remaining amount were filled now, i.e. the amount of the
// chain's intermediate currency that should be reserved.
func firstOrderFinalAmount(t *TrackOrder) float64 {
	return t.Amount * t.Rate
}

// ComputeReserves reserves, for each active chained order,
// firstOrderFinalAmount(remaining) in the chain's intermediate currency,
// plus a defensive reserve against movements within the last
// 2×orderRegisterTimeoutMs that could otherwise be re-spent by a
// concurrent strategy before the next leg is placed.
func (l *List) ComputeReserves(now int64) {
	l.mu.RLock()
	entries := make([]*Entry, 0, len(l.entries))
	for _, e := range l.entries {
		entries = append(entries, e)
	}
	l.mu.RUnlock()

	reserve := make(map[*currency.Currency]float64)
	for _, e := range entries {
		if e.Track.Order.Next == nil {
			continue
		}
		intermediate := e.Track.Order.Transaction.Final()
		reserve[intermediate] += firstOrderFinalAmount(e.Track)
	}

	window := 2 * l.orderRegisterTimeoutMs
	for c, expected := range reserve {
		credited := l.movements.SumSince(now-window, c, 1)
		available := l.liveBalance.Get(c)
		extra := credited
		if extra > available {
			extra = available
		}
		if extra > expected {
			extra = expected
		}
		if extra < 0 {
			extra = 0
		}
		l.liveBalance.SetReserve(c, expected+extra)
	}
}
