package operation

import (
	"github.com/alejandrodnm/polybot/internal/event"
	"github.com/alejandrodnm/polybot/internal/order"
)

// TransactionRecorder persists a completed leg, e.g. as a CSV row.
type TransactionRecorder interface {
	RecordTransaction(orderID string, creationTime int64, o *order.Order, amount float64)
}

// Operation bundles the order leg, the amount it was submitted for, the
// shared chain context, and the event manager it registers its standard
// handlers on.
type Operation struct {
	OrderID      string
	Order        *order.Order
	Amount       float64
	Context      *Context
	ProfitRatio  float64
	IsLastLeg    bool
	CreationTime int64

	events *event.Manager
}

// New constructs an Operation, retains ctx for its lifetime, and attaches
// the two standard handlers every operation carries: recordTransaction and
// applyProfit, both operation-lifetime so they survive a placeholder being
// matched to its venue-confirmed id.
func New(mgr *event.Manager, recorder TransactionRecorder, orderID string, creationTime int64, o *order.Order, amount float64, ctx *Context, profitRatio float64, isLastLeg bool) *Operation {
	ctx.Retain()
	op := &Operation{
		OrderID:      orderID,
		Order:        o,
		Amount:       amount,
		Context:      ctx,
		ProfitRatio:  profitRatio,
		IsLastLeg:    isLastLeg,
		CreationTime: creationTime,
		events:       mgr,
	}

	mgr.On(event.OnComplete, orderID, "recordTransaction", ctx, func(p event.Payload) {
		recorder.RecordTransaction(orderID, creationTime, o, p.Amount)
	}, event.Operation)

	mgr.On(event.OnComplete, orderID, "applyProfit", ctx, func(p event.Payload) {
		if isLastLeg && profitRatio != 0 {
			finalNoFee := o.GetFinalAmount(p.Amount, false)
			ctx.AddProfit(o.FinalCurrency(), finalNoFee*profitRatio)
		}
	}, event.Operation)

	release := func(event.Payload) { ctx.Release() }
	mgr.On(event.OnComplete, orderID, "releaseContext", ctx, release, event.Operation)
	mgr.On(event.OnError, orderID, "releaseContext", ctx, release, event.Operation)
	mgr.On(event.OnTimeout, orderID, "releaseContext", ctx, release, event.Operation)

	return op
}

// OperationOrder extends Operation with monitorProfit: on each completion
// it records the converted amount for the leg's final currency so the
// chain's end-to-end profit ratio (relative to the initial investment) can
// be computed from the context at any point.
type OperationOrder struct {
	*Operation
}

// NewOrder constructs an OperationOrder, attaching monitorProfit in
// addition to Operation's standard handlers.
func NewOrder(mgr *event.Manager, recorder TransactionRecorder, orderID string, creationTime int64, o *order.Order, amount float64, ctx *Context, profitRatio float64, isLastLeg bool) *OperationOrder {
	op := New(mgr, recorder, orderID, creationTime, o, amount, ctx, profitRatio, isLastLeg)
	oo := &OperationOrder{Operation: op}

	mgr.On(event.OnComplete, orderID, "monitorProfit", ctx, func(p event.Payload) {
		final := o.FinalCurrency()
		ctx.RecordConversion(final, o.GetFinalAmount(p.Amount, true))
	}, event.Operation)

	return oo
}
