// Package txn implements the Transaction model: directed currency-pair
// transactions carrying a current rate, bounded rate history, fees and
// boundaries, plus the PairTransactionMap index and order-chain-map
// construction.
//
// A deep virtual hierarchy (Transaction / PairTransaction /
// InvertPairTransaction / WithdrawTransaction) in the reference design is
// flattened here into a single Transaction interface with three concrete
// implementations: a tagged sum instead of a class hierarchy.
package txn

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/polybot/internal/currency"
	"github.com/alejandrodnm/polybot/internal/ringbuffer"
)

// historyCapacity is the bounded rate-history capacity.
const historyCapacity = 1024

// Transaction is the interface shared by pair, inverted, and withdraw
// transactions.
type Transaction interface {
	Initial() *currency.Currency
	Final() *currency.Currency

	// Rate returns the current rate and the timestamp (ms) it was set at.
	Rate() (rate float64, timestampMs int64)

	// SetRate records a new (rate, timestamp) pair. Returns false and logs
	// a warning if timestampMs is older than the current one,
	// or if rate <= 0.
	SetRate(timestampMs int64, rate float64) bool

	// RateHistory exposes the bounded rate history ring buffer.
	RateHistory() *ringbuffer.RingBuffer[float64]

	PercentFee() float64
	FixedFee() float64

	// DecimalPlace is the display rounding precision.
	DecimalPlace() int
	// OrderDecimalPlace is the rate-submission rounding precision.
	OrderDecimalPlace() int

	Boundaries() Boundaries

	// BoundariesForWrite returns a pointer to the boundaries that may be
	// mutated in place (e.g. by propagateMinimums), or (nil, false) if this
	// transaction does not own mutable boundaries (an inverted transaction
	// derives its boundaries from its base and cannot be written directly;
	// see DESIGN.md for why this asymmetry is preserved as-is).
	BoundariesForWrite() (*Boundaries, bool)

	// IsInverted reports whether this is a view over a base transaction.
	IsInverted() bool
}

// pairTransaction is a directly-quoted (initial, final) transaction.
type pairTransaction struct {
	initial, final *currency.Currency

	mu          sync.RWMutex
	rate        float64
	rateTsMs    int64
	history     *ringbuffer.RingBuffer[float64]
	boundaries  Boundaries

	percentFee         float64
	fixedFee           float64
	decimalPlace       int
	orderDecimalPlace  int

	invert *invertTransaction // weak back-reference, resolved lazily
}

// NewPair creates a directly-quoted pair transaction.
func NewPair(initial, final *currency.Currency, percentFee, fixedFee float64, decimalPlace, orderDecimalPlace int, boundaries Boundaries) Transaction {
	return &pairTransaction{
		initial:           initial,
		final:             final,
		history:           ringbuffer.New[float64](historyCapacity),
		boundaries:        boundaries,
		percentFee:        percentFee,
		fixedFee:          fixedFee,
		decimalPlace:      decimalPlace,
		orderDecimalPlace: orderDecimalPlace,
	}
}

func (t *pairTransaction) Initial() *currency.Currency { return t.initial }
func (t *pairTransaction) Final() *currency.Currency   { return t.final }

func (t *pairTransaction) Rate() (float64, int64) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rate, t.rateTsMs
}

func (t *pairTransaction) SetRate(timestampMs int64, rate float64) bool {
	if rate <= 0 {
		slog.Warn("txn: rejecting non-positive rate", "pair", t.String(), "rate", rate)
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if timestampMs < t.rateTsMs {
		slog.Warn("txn: rejecting stale rate write", "pair", t.String(), "ts", timestampMs, "current_ts", t.rateTsMs)
		return false
	}
	t.rate = rate
	t.rateTsMs = timestampMs
	t.history.Push(timestampMs, rate)
	return true
}

func (t *pairTransaction) RateHistory() *ringbuffer.RingBuffer[float64] { return t.history }
func (t *pairTransaction) PercentFee() float64                         { return t.percentFee }
func (t *pairTransaction) FixedFee() float64                           { return t.fixedFee }
func (t *pairTransaction) DecimalPlace() int                           { return t.decimalPlace }
func (t *pairTransaction) OrderDecimalPlace() int                      { return t.orderDecimalPlace }
func (t *pairTransaction) Boundaries() Boundaries                      { t.mu.RLock(); defer t.mu.RUnlock(); return t.boundaries }
func (t *pairTransaction) IsInverted() bool                            { return false }

func (t *pairTransaction) BoundariesForWrite() (*Boundaries, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return &t.boundaries, true
}

func (t *pairTransaction) String() string {
	return fmt.Sprintf("%s/%s", t.initial.Id(), t.final.Id())
}

// invertTransaction is a read-through view over a base pairTransaction: its
// rate history and fees are shared through the base, its boundaries are the
// inverse intervals.
type invertTransaction struct {
	base *pairTransaction
}

// NewInvert constructs the inverted view of base and links base back to it.
// Callers must use PairTransactionMap.RegisterInvert, which enforces the
// "registered at most once" invariant, instead of calling this directly.
func NewInvert(base Transaction) Transaction {
	bp, ok := base.(*pairTransaction)
	if !ok {
		panic("txn: NewInvert requires a direct pair transaction as base")
	}
	inv := &invertTransaction{base: bp}
	bp.invert = inv
	return inv
}

func (t *invertTransaction) Initial() *currency.Currency { return t.base.final }
func (t *invertTransaction) Final() *currency.Currency   { return t.base.initial }

func (t *invertTransaction) Rate() (float64, int64) {
	rate, ts := t.base.Rate()
	if rate == 0 {
		return 0, ts
	}
	return 1 / rate, ts
}

func (t *invertTransaction) SetRate(timestampMs int64, rate float64) bool {
	if rate <= 0 {
		return false
	}
	return t.base.SetRate(timestampMs, 1/rate)
}

func (t *invertTransaction) RateHistory() *ringbuffer.RingBuffer[float64] { return t.base.history }
func (t *invertTransaction) PercentFee() float64                         { return t.base.percentFee }
func (t *invertTransaction) FixedFee() float64                           { return t.base.fixedFee }
func (t *invertTransaction) DecimalPlace() int                           { return t.base.decimalPlace }
func (t *invertTransaction) OrderDecimalPlace() int                      { return t.base.orderDecimalPlace }
func (t *invertTransaction) IsInverted() bool                            { return true }

func (t *invertTransaction) Boundaries() Boundaries {
	return InvertBoundaries(t.base.Boundaries())
}

// BoundariesForWrite returns (nil, false): an inverted transaction's
// boundaries are derived, not stored, so there is nothing to write to. The
// minimums propagator calls this without checking the ok value, silently
// skipping inverse-only pairs; see internal/exchange/minimums.go.
func (t *invertTransaction) BoundariesForWrite() (*Boundaries, bool) {
	return nil, false
}

// withdrawTransaction models a withdrawal: initial = a currency, final =
// currency.NONE, rate permanently 1, percentFee describes the amount lost
// on withdrawal.
type withdrawTransaction struct {
	initial    *currency.Currency
	percentFee float64
	fixedFee   float64
	boundaries Boundaries
	history    *ringbuffer.RingBuffer[float64]
}

// NewWithdraw creates a withdraw transaction for the given currency.
func NewWithdraw(initial *currency.Currency, percentFee, fixedFee float64, boundaries Boundaries) Transaction {
	h := ringbuffer.New[float64](1)
	h.Push(time.Now().UnixMilli(), 1)
	return &withdrawTransaction{
		initial:    initial,
		percentFee: percentFee,
		fixedFee:   fixedFee,
		boundaries: boundaries,
		history:    h,
	}
}

func (t *withdrawTransaction) Initial() *currency.Currency { return t.initial }
func (t *withdrawTransaction) Final() *currency.Currency   { return currency.NONE }
func (t *withdrawTransaction) Rate() (float64, int64)      { return 1, 0 }
func (t *withdrawTransaction) SetRate(int64, float64) bool { return false }
func (t *withdrawTransaction) RateHistory() *ringbuffer.RingBuffer[float64] { return t.history }
func (t *withdrawTransaction) PercentFee() float64                         { return t.percentFee }
func (t *withdrawTransaction) FixedFee() float64                           { return t.fixedFee }
func (t *withdrawTransaction) DecimalPlace() int                           { return 8 }
func (t *withdrawTransaction) OrderDecimalPlace() int                      { return 8 }
func (t *withdrawTransaction) Boundaries() Boundaries                      { return t.boundaries }
func (t *withdrawTransaction) IsInverted() bool                            { return false }
func (t *withdrawTransaction) BoundariesForWrite() (*Boundaries, bool)     { return &t.boundaries, true }

// ApplyFee returns amount after the transaction's percent and fixed fee are
// deducted.
func ApplyFee(t Transaction, amount float64) float64 {
	out := amount * (1 - t.PercentFee())
	out -= t.FixedFee()
	if out < 0 {
		return 0
	}
	return out
}
