package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alejandrodnm/polybot/internal/adapterclient"
	"github.com/alejandrodnm/polybot/internal/balance"
	"github.com/alejandrodnm/polybot/internal/csvlog"
	"github.com/alejandrodnm/polybot/internal/currency"
	"github.com/alejandrodnm/polybot/internal/event"
	"github.com/alejandrodnm/polybot/internal/track"
	"github.com/alejandrodnm/polybot/internal/txn"
)

// connectPhaseTimeout bounds each step of the connect protocol.
const connectPhaseTimeout = 120 * time.Second

// Exchange is the per-venue runtime: lifecycle state machine, the shared
// domain objects it owns (transaction map, balance, track list), its
// pollers, watchdog, and job pool.
//
// Lock order is always properties -> rates -> orders -> balance, enforced
// by never up-casting a read scope to a write scope; this keeps the
// runtime deadlock-free by construction.
type Exchange struct {
	cfg     Config
	adapter Adapter
	limiter *adapterclient.Limiter

	state atomic.Int32

	lockProperties sync.RWMutex
	pairs          *txn.PairTransactionMap
	chains         *txn.ChainMap
	currencies     []*currency.Currency

	lockRates sync.RWMutex

	lockOrders sync.RWMutex
	tracks     *track.List

	lockBalance          sync.RWMutex
	fundBalance          *balance.Balance
	movements            *balance.Movements
	lastBalanceTimestamp atomic.Int64

	events *event.Manager
	jobs   *JobPool

	estimateCurrency atomic.Pointer[currency.Currency]
	serverDeltaMs    atomic.Int64
	connectedAt      atomic.Int64

	watchdog     *Watchdog
	rateRecorder *csvlog.RateRecorder

	eventProperties chan struct{}
	eventRates      chan struct{}
	eventOrders     chan struct{}
	eventBalance    chan struct{}

	active atomic.Bool
}

// New wires an Exchange for the given venue adapter.
func New(name string, a Adapter, cfg Config) *Exchange {
	cfg.Name = name
	cfg.setDefaults()

	mgr := event.NewManager()
	fundBalance := balance.New()
	movements := balance.NewMovements()

	ex := &Exchange{
		cfg:             cfg,
		adapter:         a,
		limiter:         adapterclient.NewLimiter(10, 5),
		pairs:           txn.NewPairTransactionMap(),
		events:          mgr,
		fundBalance:     fundBalance,
		movements:       movements,
		jobs:            NewJobPool(8),
		eventProperties: make(chan struct{}, 1),
		eventRates:      make(chan struct{}, 1),
		eventOrders:     make(chan struct{}, 1),
		eventBalance:    make(chan struct{}, 1),
	}
	ex.tracks = track.NewList(mgr, movements, fundBalance, ex, int64(cfg.OrderRegisterTimeout/time.Millisecond))
	ex.watchdog = NewWatchdog(ex)

	if cfg.RatesRecording && cfg.OutputDirectory != "" {
		ex.rateRecorder = csvlog.NewRateRecorder(cfg.OutputDirectory)
	}
	return ex
}

// CancelOrder implements track.Canceller by delegating to the adapter
// under adapter-with-retry.
func (ex *Exchange) CancelOrder(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return adapterclient.Do(ctx, ex.limiter, "CancelOrderImpl", func(ctx context.Context) error {
		return ex.adapter.CancelOrderImpl(ctx, id)
	})
}

// State returns the exchange's current lifecycle state.
func (ex *Exchange) State() State {
	return State(ex.state.Load())
}

// Name returns the venue name this Exchange was registered under.
func (ex *Exchange) Name() string {
	return ex.cfg.Name
}

// Balance returns the exchange's current balance snapshot. The pointer
// itself is replaced on every reconnect, so callers should re-fetch it
// rather than cache it across a Connect call.
func (ex *Exchange) Balance() *balance.Balance {
	ex.lockBalance.RLock()
	defer ex.lockBalance.RUnlock()
	return ex.fundBalance
}

// Tracks returns the exchange's current TrackOrderList.
func (ex *Exchange) Tracks() *track.List {
	ex.lockOrders.RLock()
	defer ex.lockOrders.RUnlock()
	return ex.tracks
}

// ConnectedAt returns when Connect last completed successfully, or the
// zero value if it never has.
func (ex *Exchange) ConnectedAt() time.Time {
	ms := ex.connectedAt.Load()
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func (ex *Exchange) setState(s State) {
	ex.state.Store(int32(s))
}

// ServerTimestamp returns localNow + delta, the last-known server clock
// offset used for order timeout decisions.
func (ex *Exchange) ServerTimestamp() int64 {
	return time.Now().UnixMilli() + ex.serverDeltaMs.Load()
}

// Connect runs the eight-step connect protocol, bounded by
// connectPhaseTimeout per phase. Failures abort the attempt with
// CONNECT_TIMEOUT and leave the exchange Disconnected; a failed Connect is
// not retried, and the watchdog is started only by a successful one.
func (ex *Exchange) Connect(ctx context.Context, keepPendingOrders bool) error {
	ex.setState(Connecting)
	ex.active.Store(true)

	// 1. Clear the balance, and the order list unless keepPendingOrders is
	// set. Registered events and properties are not reset here.
	ex.lockBalance.Lock()
	ex.fundBalance = balance.New()
	ex.lockBalance.Unlock()
	if !keepPendingOrders {
		ex.lockOrders.Lock()
		ex.tracks = track.NewList(ex.events, ex.movements, ex.fundBalance, ex, int64(ex.cfg.OrderRegisterTimeout/time.Millisecond))
		ex.lockOrders.Unlock()
	}

	// 2. Properties poller first publication.
	if err := ex.runPhase(ctx, "properties", ex.pollPropertiesOnce); err != nil {
		ex.setState(Disconnected)
		return fmt.Errorf("exchange %s: CONNECT_TIMEOUT: properties: %w", ex.cfg.Name, err)
	}
	go ex.propertiesLoop(ctx)

	// 3. Rates poller first publication. There is no per-pair wait: a pair
	// the first poll left unrated stays unrated until a later poll.
	if err := ex.runPhase(ctx, "rates", ex.pollRatesOnce); err != nil {
		ex.setState(Disconnected)
		return fmt.Errorf("exchange %s: CONNECT_TIMEOUT: rates: %w", ex.cfg.Name, err)
	}
	go ex.ratesLoop(ctx)

	// 4. Identify the estimate currency.
	ex.chooseEstimateCurrency()

	// 5. Propagate boundary minimums.
	ex.propagateMinimums()

	// 6. Balance-and-orders poller, unless read-only.
	if !ex.cfg.ReadOnly {
		if err := ex.runPhase(ctx, "balance", ex.pollBalanceAndOrdersOnce); err != nil {
			ex.setState(Disconnected)
			return fmt.Errorf("exchange %s: CONNECT_TIMEOUT: balance: %w", ex.cfg.Name, err)
		}
		go ex.balanceAndOrdersLoop(ctx)
		ex.FinalizeInitialEstimate()
	}

	// 7. Sanity check: logged, never fatal.
	ex.RunSanityCheck()

	// 8. Record connectedTimestamp.
	ex.connectedAt.Store(time.Now().UnixMilli())
	ex.setState(Connected)

	go ex.watchdog.Run(ctx)
	return nil
}

// Disconnect terminates every per-exchange poller except the watchdog.
func (ex *Exchange) Disconnect() {
	ex.setState(Disconnecting)
	ex.active.Store(false)
	ex.setState(Disconnected)
}

// Stop terminates the watchdog, the last thread to go, and closes any CSV
// recorders this exchange owns.
func (ex *Exchange) Stop() {
	ex.Disconnect()
	ex.watchdog.Stop()
	if ex.rateRecorder != nil {
		if err := ex.rateRecorder.Close(); err != nil {
			slog.Warn("exchange: rate recorder close failed", "exchange", ex.cfg.Name, "err", err)
		}
	}
}

func (ex *Exchange) runPhase(ctx context.Context, name string, fn func(context.Context) error) error {
	phaseCtx, cancel := context.WithTimeout(ctx, connectPhaseTimeout)
	defer cancel()
	if err := fn(phaseCtx); err != nil {
		return err
	}
	slog.Info("exchange: phase complete", "exchange", ex.cfg.Name, "phase", name)
	return nil
}
