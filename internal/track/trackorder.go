// Package track implements TrackOrder, TrackOrderEntry, and TrackOrderList:
// the authoritative local order state machine that reconciles what the
// engine believes exists against each snapshot the venue reports.
package track

import (
	"github.com/alejandrodnm/polybot/internal/operation"
	"github.com/alejandrodnm/polybot/internal/order"
)

// CancelCause explains why an entry is being dropped.
type CancelCause int

const (
	CancelNone CancelCause = iota
	CancelFailed
	CancelCancel
	CancelTimeout
)

func (c CancelCause) String() string {
	switch c {
	case CancelFailed:
		return "FAILED"
	case CancelCancel:
		return "CANCEL"
	case CancelTimeout:
		return "TIMEOUT"
	default:
		return "NONE"
	}
}

// EntryType tracks an entry's position in the placeholder lifecycle.
type EntryType int

const (
	Placeholder EntryType = iota
	ActivatedPlaceholder
	MatchedPlaceholder
	Matched
)

// TrackOrder is the order-level record the engine believes to be true. Its
// rate is frozen at construction to max(specified, transaction.current):
// that frozen rate is what every reconciliation distance calculation uses,
// and it never changes except when a same-id match adopts the server's
// rate.
type TrackOrder struct {
	ID           string
	Order        *order.Order
	Kind         order.Kind
	Amount       float64
	CreationTime int64
	Context      *operation.Context
	Rate         float64
}

// New creates a TrackOrder, freezing its reconciliation rate.
func New(id string, o *order.Order, kind order.Kind, amount float64, creationTime int64, ctx *operation.Context, specifiedRate float64) *TrackOrder {
	rate := specifiedRate
	if current, _ := o.Transaction.Rate(); current > rate {
		rate = current
	}
	return &TrackOrder{
		ID:           id,
		Order:        o,
		Kind:         kind,
		Amount:       amount,
		CreationTime: creationTime,
		Context:      ctx,
		Rate:         rate,
	}
}

// Entry is TrackOrderList's internal wrapper around a TrackOrder, carrying
// its cancellation state and placeholder-lifecycle tag.
type Entry struct {
	Track              *TrackOrder
	CancelCause        CancelCause
	CancelTimestamp    int64
	ActivatedTimestamp int64
	Type               EntryType
}

// IsPlaceholder reports whether the entry has not yet been seen in a venue
// order snapshot (Placeholder or ActivatedPlaceholder), even if Match has
// already re-keyed it to a venue-confirmed id.
func (e *Entry) IsPlaceholder() bool {
	return e.Type == Placeholder || e.Type == ActivatedPlaceholder
}
