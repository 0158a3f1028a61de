package exchange

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/polybot/internal/event"
	"github.com/alejandrodnm/polybot/internal/operation"
	"github.com/alejandrodnm/polybot/internal/order"
	"github.com/alejandrodnm/polybot/internal/track"
)

// defaultOrderRetries is how many times onOrderError re-invokes process
// with the then-current available amount before giving up.
const defaultOrderRetries = 3

// Process implements the order placement pipeline. It inserts a placeholder
// synchronously (atomic under the orders write-scope), then dispatches the
// actual adapter call to the job pool so the caller is never blocked on
// network I/O. Retries are reentrant: they are implemented by registering
// an onOrderError handler that re-invokes Process with nbRetries-1 and the
// then-current available amount.
func (ex *Exchange) Process(o *order.Order, amount float64, kind order.Kind, ctx *operation.Context, recorder operation.TransactionRecorder, profitRatio float64, isLastLeg bool, nbRetries int) {
	id := uuid.NewString()
	now := time.Now().UnixMilli()
	rate := o.Rate
	t := track.New(id, o, kind, amount, now, ctx, rate)

	ex.lockOrders.Lock()
	ex.tracks.AddPlaceholder(t)
	ex.lockOrders.Unlock()
	ex.tracks.ComputeReserves(now)

	// Chaining handlers are registered before the operation's own, so the
	// next leg or a retry retains ctx before this leg releases it.
	ex.registerChaining(id, o, kind, ctx, recorder, profitRatio, isLastLeg, nbRetries)
	operation.New(ex.events, recorder, id, now, o, amount, ctx, profitRatio, isLastLeg)

	ex.jobs.Submit(func() {
		ex.placeAsync(id, o, amount, nbRetries, ctx, recorder, kind, profitRatio, isLastLeg)
	})
}

func (ex *Exchange) placeAsync(id string, o *order.Order, amount float64, nbRetries int, ctx *operation.Context, recorder operation.TransactionRecorder, kind order.Kind, profitRatio float64, isLastLeg bool) {
	placeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ids, err := ex.adapter.SetOrderImpl(placeCtx, o, amount)
	if err != nil {
		slog.Error("exchange: setOrderImpl failed", "exchange", ex.cfg.Name, "id", id, "err", err)
		ex.lockOrders.Lock()
		if e, ok := ex.tracks.Get(id); ok {
			e.CancelCause = track.CancelFailed
			e.CancelTimestamp = time.Now().UnixMilli()
		}
		ex.lockOrders.Unlock()
		return
	}

	now := time.Now().UnixMilli()
	ex.lockOrders.Lock()
	ex.tracks.Match(id, ids, now)
	ex.lockOrders.Unlock()

	select {
	case ex.eventOrders <- struct{}{}:
	default:
	}
}

// registerChaining attaches the TIMEOUT monitor every order carries
// (failureCause = TIMEOUT on the context) and, on completion, spawns the
// next leg of the chain at firstOrderFinalAmount(completedAmount).
func (ex *Exchange) registerChaining(orderID string, o *order.Order, kind order.Kind, ctx *operation.Context, recorder operation.TransactionRecorder, profitRatio float64, isLastLeg bool, nbRetries int) {
	ex.events.On(event.OnTimeout, orderID, "timeoutMonitor", ctx, func(p event.Payload) {
		ctx.SetFailureCause("TIMEOUT")
	}, event.Order)

	if o.Next == nil {
		return
	}

	ex.events.On(event.OnComplete, orderID, "chainNext", ctx, func(p event.Payload) {
		final := p.Amount * o.Rate
		if !o.Next.IsValid(final) {
			slog.Warn("exchange: chain leg dropped, next amount invalid", "order", orderID)
			return
		}
		ex.Process(o.Next, final, kind, ctx, recorder, profitRatio, o.Next.Next == nil, defaultOrderRetries)
	}, event.Order)

	ex.events.On(event.OnError, orderID, "retry", ctx, func(p event.Payload) {
		if nbRetries <= 0 {
			return
		}
		available := ex.fundBalance.Get(o.Transaction.Initial())
		ex.Process(o, available, kind, ctx, recorder, profitRatio, isLastLeg, nbRetries-1)
	}, event.Order)
}
