package track

import (
	"log/slog"
	"sort"
	"time"

	"github.com/alejandrodnm/polybot/internal/event"
)

const fiveMinutesMs = int64(5 * time.Minute / time.Millisecond)

// weight scores how well a placeholder matches a candidate updated row
// for the same transaction pair.
func weight(ph *Entry, row ServerRow) float64 {
	t := ph.Track
	if t.Order.Transaction != row.Pair {
		return 0
	}

	rateWeight := clamp(1-absf(row.Rate-t.Rate)/(0.10*t.Rate), 0, 1)
	if rateWeight <= 0 {
		return 0
	}

	timeWeight := clamp(1-absf(float64(row.CreationTime-t.CreationTime))/float64(fiveMinutesMs), 0, 1)

	var amountWeight float64
	if row.Amount <= t.Amount*1.1 {
		amountWeight = clamp(1-absf(row.Amount-t.Amount)/maxf(t.Amount, 1e-12), 0, 1)
	}

	return rateWeight + timeWeight + amountWeight
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// matchPlaceholders runs Phase C: greedy argmax matching between the
// remaining placeholders and the remaining updated rows, stopping once the
// best available weight drops below 0.1.
func (l *List) matchPlaceholders(placeholders []*Entry, remaining map[string]ServerRow) []Action {
	var actions []Action
	rowIDs := make([]string, 0, len(remaining))
	for id := range remaining {
		rowIDs = append(rowIDs, id)
	}

	claimed := make(map[string]bool)
	// originalID remembers, per placeholder, the id it was still tracked
	// under before its first match this pass: once renamed in place, a
	// second (or third...) row claimed by the same placeholder is a venue
	// split of one order into several resting orders, and needs its own
	// fanned-out entry rather than overwriting the first match.
	originalID := make(map[*Entry]string)
	claimsForPH := make(map[*Entry]int)

	for {
		bestW := 0.0
		var bestPH *Entry
		var bestRowID string
		secondBestW := 0.0

		for _, ph := range placeholders {
			for _, rowID := range rowIDs {
				if claimed[rowID] {
					continue
				}
				row := remaining[rowID]
				w := weight(ph, row)
				if w > bestW {
					secondBestW = bestW
					bestW = w
					bestPH = ph
					bestRowID = rowID
				} else if w > secondBestW {
					secondBestW = w
				}
			}
		}

		if bestPH == nil || bestW < 0.1 {
			break
		}

		if secondBestW > bestW/2 {
			slog.Warn("track: ambiguous placeholder match, another placeholder scored close", "id", bestPH.Track.ID, "weight", bestW, "runner_up", secondBestW)
		}

		row := remaining[bestRowID]
		claimed[bestRowID] = true
		delete(remaining, bestRowID)

		if _, seen := originalID[bestPH]; !seen {
			originalID[bestPH] = bestPH.Track.ID
		}
		fromID := originalID[bestPH]

		if claimsForPH[bestPH] == 0 {
			// Adopt the venue's id as the entry's tracking key: the next
			// snapshot reports this row under bestRowID, never the local
			// placeholder id, so Phase A can only keep matching it by id
			// once the entry lives under that key.
			delete(l.entries, bestPH.Track.ID)
			bestPH.Track.ID = bestRowID
			bestPH.Track.Amount = row.Amount
			bestPH.Track.CreationTime = row.CreationTime
			bestPH.Type = MatchedPlaceholder
			l.entries[bestRowID] = bestPH
			if fromID != bestRowID {
				l.events.CopyOrder(fromID, bestRowID, event.Order)
			}
			if !bestPH.Track.Order.IsValid(row.Amount * 5) {
				delete(l.entries, bestRowID)
			}
		} else {
			// The venue split the original order: fan out a new entry
			// for this extra id, sharing the placeholder's order and
			// context but tracked independently from here on.
			fork := &Entry{
				Track: &TrackOrder{
					ID:           bestRowID,
					Order:        bestPH.Track.Order,
					Kind:         bestPH.Track.Kind,
					Amount:       row.Amount,
					CreationTime: row.CreationTime,
					Context:      bestPH.Track.Context,
					Rate:         bestPH.Track.Rate,
				},
				Type: MatchedPlaceholder,
			}
			l.entries[bestRowID] = fork
			l.events.CopyOrder(fromID, bestRowID, event.Order)
			if !fork.Track.Order.IsValid(row.Amount * 5) {
				delete(l.entries, bestRowID)
			}
		}
		claimsForPH[bestPH]++
	}

	return actions
}

// retainAndTagOrphans runs Phase D: sorts the remaining placeholders so
// activated ones are evaluated first, decides which survive the retention
// window, and inserts any still-unclaimed updated rows as orphan MATCHED
// entries.
func (l *List) retainAndTagOrphans(now int64, remaining map[string]ServerRow) []Action {
	var actions []Action

	var toEvaluate []*Entry
	for _, e := range l.entries {
		if e.Type == Placeholder || e.Type == ActivatedPlaceholder {
			toEvaluate = append(toEvaluate, e)
		}
	}
	sort.SliceStable(toEvaluate, func(i, j int) bool {
		return toEvaluate[i].Type == ActivatedPlaceholder && toEvaluate[j].Type != ActivatedPlaceholder
	})

	for _, e := range toEvaluate {
		if l.retainPlaceholder(e, now) {
			continue
		}
		act, drop := l.resolveVanished(e, e.Track.CreationTime, now)
		if act != nil {
			actions = append(actions, *act)
		}
		if drop {
			delete(l.entries, e.Track.ID)
		}
	}

	for id, row := range remaining {
		slog.Warn("track: venue reports an order the engine did not place", "id", id)
		// A synthetic TrackOrder is created with no context: nothing
		// local is waiting on its completion, so no events fire for it.
		l.entries[id] = &Entry{
			Track: &TrackOrder{ID: id, Amount: row.Amount, Rate: row.Rate, CreationTime: row.CreationTime},
			Type:  Matched,
		}
	}

	return actions
}

// retainPlaceholder reports whether a placeholder should survive this
// reconciliation cycle without being run through vanished-order resolution.
// A placeholder marked cancel is kept only while still within its cancel
// deadline; any other is kept if it has not yet been activated or was
// activated within the registration timeout.
func (l *List) retainPlaceholder(e *Entry, now int64) bool {
	if e.CancelCause != CancelNone {
		return e.CancelTimestamp+l.orderRegisterTimeoutMs > now
	}
	if e.Type == Placeholder {
		return true
	}
	return e.ActivatedTimestamp+l.orderRegisterTimeoutMs > now
}
