// Package exchange implements the Exchange Runtime: the per-venue lifecycle
// state machine, its pollers, watchdog, job pool, and the order placement
// pipeline that ties TrackOrderList, EventManager, and Operation together.
package exchange

import (
	"context"

	"github.com/alejandrodnm/polybot/internal/order"
	"github.com/alejandrodnm/polybot/internal/track"
	"github.com/alejandrodnm/polybot/internal/txn"
)

// RatesPollingMode selects how the Rates poller drives an adapter.
type RatesPollingMode int

const (
	// RatesPush means the adapter pushes rate updates via its own
	// callback; the poller does nothing but wait.
	RatesPush RatesPollingMode = iota
	// RatesUpdateAll calls a single adapter method that refreshes every
	// pair in one round trip.
	RatesUpdateAll
	// RatesPerCurrency fans out one task per currency in parallel.
	RatesPerCurrency
	// RatesPerPair fans out one task per non-inverted pair in parallel.
	RatesPerPair
)

// Adapter is the venue-specific interface the Exchange Runtime drives. One
// implementation per venue; every method is wrapped by adapter-with-retry
// except SetOrderImpl, which is never retried at this layer.
type Adapter interface {
	// UpdatePropertiesImpl populates a fresh PairTransactionMap and
	// reports the venue's current server time.
	UpdatePropertiesImpl(ctx context.Context) (*txn.PairTransactionMap, int64, error)

	// UpdateRatesImpl refreshes every pair's current rate in one call.
	UpdateRatesImpl(ctx context.Context) error
	// UpdateRatesForCurrencyImpl refreshes every pair touching one
	// currency; used under RatesPerCurrency.
	UpdateRatesForCurrencyImpl(ctx context.Context, pairs []txn.Transaction) error
	// UpdateRatesForPairImpl refreshes a single pair; used under
	// RatesPerPair.
	UpdateRatesForPairImpl(ctx context.Context, pair txn.Transaction) error

	// UpdateBalanceImpl populates a fresh balance snapshot.
	UpdateBalanceImpl(ctx context.Context) (map[string]float64, error)
	// UpdateOrdersImpl populates a fresh open-orders snapshot.
	UpdateOrdersImpl(ctx context.Context) ([]track.ServerRow, error)

	// SetOrderImpl submits an order, returning the venue-assigned ids it
	// produced (zero or more, for venues that split a submission).
	SetOrderImpl(ctx context.Context, o *order.Order, amount float64) ([]string, error)
	// CancelOrderImpl requests cancellation of a previously submitted
	// order. Idempotent: cancelling twice is harmless.
	CancelOrderImpl(ctx context.Context, id string) error
	// WithdrawImpl requests a withdrawal. Optional: an adapter that does
	// not support withdrawals returns an error.
	WithdrawImpl(ctx context.Context, currencyID string, amount float64) error
}
