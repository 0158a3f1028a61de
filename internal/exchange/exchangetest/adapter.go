// Package exchangetest provides an in-memory Adapter that emulates a venue
// well enough to drive the Exchange runtime without a live connection:
// orders fill against a synthetic balance at the transaction's current
// rate, with injectable latency and failure rates so reconciliation and
// retry paths can be exercised deterministically in tests.
package exchangetest

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/alejandrodnm/polybot/internal/currency"
	"github.com/alejandrodnm/polybot/internal/order"
	"github.com/alejandrodnm/polybot/internal/track"
	"github.com/alejandrodnm/polybot/internal/txn"
)

// initialBalancePerCurrency mirrors the mock venue's seed balance, split
// evenly across every registered currency.
const initialBalancePerCurrency = 2000.0

// pendingOrder is an order held back until its rate becomes satisfiable,
// modeling a limit order resting below the current market rate.
type pendingOrder struct {
	id           string
	o            *order.Order
	amount       float64
	creationTime int64
}

// Adapter is an in-memory venue. Zero value is not usable; use New.
type Adapter struct {
	mu sync.Mutex

	pairs      *txn.PairTransactionMap
	currencies []*currency.Currency

	balance map[*currency.Currency]float64
	orders  []pendingOrder

	nextID int

	// LatencyMs bounds the random per-call delay; 0 disables it.
	LatencyMs int
	// FailurePercent is the chance (0-100) any call fails with a
	// transient error, emulating a busy server.
	FailurePercent int
}

// New creates an in-memory adapter over a prebuilt PairTransactionMap.
func New(pairs *txn.PairTransactionMap) *Adapter {
	return &Adapter{
		pairs:      pairs,
		currencies: pairs.Currencies(),
		balance:    make(map[*currency.Currency]float64),
		nextID:     1,
	}
}

// transientError marks an error as retryable, so adapterclient.Do retries
// instead of giving up immediately.
type transientError struct{ msg string }

func (e *transientError) Error() string   { return e.msg }
func (e *transientError) Retryable() bool { return true }

func (a *Adapter) sleep(ctx context.Context) error {
	if a.LatencyMs <= 0 {
		return nil
	}
	d := time.Duration(rand.IntN(a.LatencyMs*2+1)) * time.Millisecond
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Adapter) maybeFail() error {
	if a.FailurePercent > 0 && rand.IntN(100) < a.FailurePercent {
		return &transientError{msg: "exchangetest: simulated server busy"}
	}
	return nil
}

// UpdatePropertiesImpl publishes the fixed pair map this adapter was built
// with; the venue's server clock is reported as exactly local time.
func (a *Adapter) UpdatePropertiesImpl(ctx context.Context) (*txn.PairTransactionMap, int64, error) {
	if err := a.sleep(ctx); err != nil {
		return nil, 0, err
	}
	return a.pairs, 0, nil
}

// UpdateRatesImpl is a no-op: rates are pushed directly onto the pair map
// by test setup code via txn.Transaction.SetRate, so there is nothing to
// poll here.
func (a *Adapter) UpdateRatesImpl(ctx context.Context) error {
	return a.sleep(ctx)
}

func (a *Adapter) UpdateRatesForCurrencyImpl(ctx context.Context, pairs []txn.Transaction) error {
	return a.sleep(ctx)
}

func (a *Adapter) UpdateRatesForPairImpl(ctx context.Context, pair txn.Transaction) error {
	return a.sleep(ctx)
}

// UpdateBalanceImpl seeds the balance on first call, split evenly across
// every known currency, then reports the live synthetic balance.
func (a *Adapter) UpdateBalanceImpl(ctx context.Context) (map[string]float64, error) {
	if err := a.sleep(ctx); err != nil {
		return nil, err
	}
	if err := a.maybeFail(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.balance) == 0 && len(a.currencies) > 0 {
		per := initialBalancePerCurrency / float64(len(a.currencies))
		for _, c := range a.currencies {
			a.balance[c] = per
		}
	}

	out := make(map[string]float64, len(a.balance))
	for c, amt := range a.balance {
		out[c.Id()] = amt
	}
	return out, nil
}

// UpdateOrdersImpl reports every order still resting unfilled.
func (a *Adapter) UpdateOrdersImpl(ctx context.Context) ([]track.ServerRow, error) {
	if err := a.sleep(ctx); err != nil {
		return nil, err
	}
	if err := a.maybeFail(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.matchRestingLocked()

	rows := make([]track.ServerRow, 0, len(a.orders))
	for _, p := range a.orders {
		rows = append(rows, track.ServerRow{
			ID:           p.id,
			Pair:         p.o.Transaction,
			Amount:       p.amount,
			Rate:         p.o.Rate,
			CreationTime: p.creationTime,
		})
	}
	return rows, nil
}

// SetOrderImpl fills immediately if the order's rate is already satisfied
// by the transaction's current rate, otherwise it rests as a pending
// order until a later UpdateOrdersImpl call finds it fillable.
func (a *Adapter) SetOrderImpl(ctx context.Context, o *order.Order, amount float64) ([]string, error) {
	if err := a.sleep(ctx); err != nil {
		return nil, err
	}
	if err := a.maybeFail(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if !o.IsValid(amount) {
		return nil, fmt.Errorf("exchangetest: order invalid for amount %v", amount)
	}
	available := a.balance[o.Transaction.Initial()]
	if available < amount {
		return nil, fmt.Errorf("exchangetest: insufficient funds, available=%v amount=%v", available, amount)
	}

	rate, _ := o.Transaction.Rate()
	id := fmt.Sprintf("mock-%d", a.nextID)
	a.nextID++

	if rate >= o.Rate {
		a.fillLocked(o, amount)
		return []string{id}, nil
	}

	a.orders = append(a.orders, pendingOrder{
		id:           id,
		o:            o,
		amount:       amount,
		creationTime: time.Now().UnixMilli(),
	})
	return []string{id}, nil
}

// CancelOrderImpl removes a still-resting order; filled orders are no
// longer tracked and cancelling them is a silent no-op.
func (a *Adapter) CancelOrderImpl(ctx context.Context, id string) error {
	if err := a.sleep(ctx); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, p := range a.orders {
		if p.id == id {
			a.orders = append(a.orders[:i], a.orders[i+1:]...)
			return nil
		}
	}
	return nil
}

// WithdrawImpl debits the synthetic balance directly.
func (a *Adapter) WithdrawImpl(ctx context.Context, currencyID string, amount float64) error {
	if err := a.sleep(ctx); err != nil {
		return err
	}
	if err := a.maybeFail(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	c := currency.Lookup(currencyID)
	if c == nil {
		return fmt.Errorf("exchangetest: unknown currency %s", currencyID)
	}
	if a.balance[c] < amount {
		return fmt.Errorf("exchangetest: insufficient funds to withdraw %v %s", amount, currencyID)
	}
	a.balance[c] -= amount
	return nil
}

// matchRestingLocked fills every resting order whose rate is now
// satisfied by its transaction's current rate. Called with a.mu held.
func (a *Adapter) matchRestingLocked() {
	kept := a.orders[:0]
	for _, p := range a.orders {
		rate, _ := p.o.Transaction.Rate()
		if rate >= p.o.Rate {
			a.fillLocked(p.o, p.amount)
			continue
		}
		kept = append(kept, p)
	}
	a.orders = kept
}

// fillLocked moves amount from the initial currency to the final currency
// at the transaction's current rate, less fees. Called with a.mu held.
func (a *Adapter) fillLocked(o *order.Order, amount float64) {
	rate, _ := o.Transaction.Rate()
	final := txn.ApplyFee(o.Transaction, amount*rate)
	a.balance[o.Transaction.Initial()] -= amount
	a.balance[o.Transaction.Final()] += final
}
