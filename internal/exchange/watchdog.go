package exchange

import (
	"context"
	"log/slog"
	"time"
)

const (
	watchdogTimeout         = 60 * time.Second
	watchdogReconnectDelay  = 60 * time.Second
	watchdogFaultThreshold  = 6
)

// Watchdog waits for signs of life from the exchange's pollers and forces a
// disconnect/reconnect cycle when they stop arriving. It is the last
// per-exchange thread to stop, and the only one that survives Disconnect.
type Watchdog struct {
	ex      *Exchange
	stopped chan struct{}
}

// NewWatchdog creates a Watchdog bound to ex.
func NewWatchdog(ex *Exchange) *Watchdog {
	return &Watchdog{ex: ex, stopped: make(chan struct{})}
}

// Stop signals the watchdog loop to exit.
func (w *Watchdog) Stop() {
	close(w.stopped)
}

// Run waits for eventBalance/eventOrders/eventRates. Each wait that times
// out while CONNECTED increments a fault counter; an iteration that leaves
// the counter at the same value as the previous one resets it to zero. If
// the counter stays non-zero and changing across more than
// watchdogFaultThreshold iterations, the exchange is disconnected and,
// after watchdogReconnectDelay, one reconnection is attempted; a failed
// reconnection is logged and not retried.
func (w *Watchdog) Run(ctx context.Context) {
	ex := w.ex
	faultCount := 0
	lastFaultCount := -1
	changingIterations := 0

	timer := time.NewTimer(watchdogTimeout)
	defer timer.Stop()

	for {
		select {
		case <-w.stopped:
			return
		case <-ctx.Done():
			return
		case <-ex.eventBalance:
			resetTimer(timer, watchdogTimeout)
		case <-ex.eventOrders:
			resetTimer(timer, watchdogTimeout)
		case <-ex.eventRates:
			resetTimer(timer, watchdogTimeout)
		case <-timer.C:
			if ex.State() == Connected {
				faultCount++
			}
			resetTimer(timer, watchdogTimeout)
		}

		if faultCount == lastFaultCount {
			faultCount = 0
			changingIterations = 0
		} else if faultCount != 0 {
			changingIterations++
		} else {
			changingIterations = 0
		}
		lastFaultCount = faultCount

		if changingIterations > watchdogFaultThreshold {
			slog.Warn("exchange: watchdog forcing disconnect", "exchange", ex.cfg.Name, "faults", faultCount)
			ex.Disconnect()
			faultCount = 0
			lastFaultCount = -1
			changingIterations = 0

			select {
			case <-time.After(watchdogReconnectDelay):
			case <-w.stopped:
				return
			case <-ctx.Done():
				return
			}
			if err := ex.Connect(ctx, true); err != nil {
				slog.Error("exchange: watchdog reconnect failed", "exchange", ex.cfg.Name, "err", err)
			}
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
