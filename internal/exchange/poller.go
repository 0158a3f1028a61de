package exchange

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/polybot/internal/adapterclient"
	"github.com/alejandrodnm/polybot/internal/currency"
	"github.com/alejandrodnm/polybot/internal/track"
	"github.com/alejandrodnm/polybot/internal/txn"
)

func (ex *Exchange) propertiesLoop(ctx context.Context) {
	ticker := time.NewTicker(ex.cfg.PropertiesPollingPeriod)
	defer ticker.Stop()
	for ex.active.Load() {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = ex.pollPropertiesOnce(ctx)
		}
	}
}

func (ex *Exchange) pollPropertiesOnce(ctx context.Context) error {
	var fresh *txn.PairTransactionMap
	var serverNow int64
	err := adapterclient.Do(ctx, ex.limiter, "UpdatePropertiesImpl", func(ctx context.Context) error {
		var err error
		fresh, serverNow, err = ex.adapter.UpdatePropertiesImpl(ctx)
		return err
	})
	if err != nil {
		return err
	}

	ex.serverDeltaMs.Store(serverNow - time.Now().UnixMilli())

	ex.lockProperties.Lock()
	if ex.pairs == nil || !samePairSet(ex.pairs, fresh) {
		ex.pairs = fresh
		ex.chains = txn.BuildOrderChainMap(fresh)
		ex.currencies = fresh.Currencies()
	}
	ex.lockProperties.Unlock()

	notify(ex.eventProperties)
	return nil
}

// samePairSet reports whether a and b register the same set of currency
// pairs, used to avoid discarding a perfectly good (and already
// rate-populated) map on every properties poll.
func samePairSet(a, b *txn.PairTransactionMap) bool {
	as, bs := a.Currencies(), b.Currencies()
	if len(as) != len(bs) {
		return false
	}
	for _, c := range as {
		if len(a.Neighbors(c)) != len(b.Neighbors(c)) {
			return false
		}
	}
	return true
}

func (ex *Exchange) ratesLoop(ctx context.Context) {
	ticker := time.NewTicker(ex.cfg.RatesPollingPeriod)
	defer ticker.Stop()
	for ex.active.Load() {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = ex.pollRatesOnce(ctx)
		}
	}
}

func (ex *Exchange) pollRatesOnce(ctx context.Context) error {
	if ex.cfg.RatesPolling == RatesPush {
		ex.recordRates()
		return nil
	}

	ex.lockRates.Lock()
	defer ex.lockRates.Unlock()

	var err error
	switch ex.cfg.RatesPolling {
	case RatesUpdateAll:
		err = adapterclient.Do(ctx, ex.limiter, "UpdateRatesImpl", ex.adapter.UpdateRatesImpl)
	case RatesPerCurrency:
		err = ex.fanOutRates(ctx, ex.currencies, nil)
	case RatesPerPair:
		err = ex.fanOutRates(ctx, nil, ex.directPairs())
	}
	if err != nil {
		return err
	}

	ex.recordRates()
	notify(ex.eventRates)
	return nil
}

// recordRates appends a row to the pair's pair-<A>-<B>.csv file for every direct pair whose rate has
// changed since the last call; a no-op if rate recording is disabled.
func (ex *Exchange) recordRates() {
	if ex.rateRecorder == nil {
		return
	}
	for _, t := range ex.directPairs() {
		rate, ts := t.Rate()
		if ts == 0 {
			continue
		}
		if err := ex.rateRecorder.Record(t.Initial(), t.Final(), ts, rate); err != nil {
			slog.Warn("exchange: rate recorder write failed", "exchange", ex.cfg.Name, "err", err)
		}
	}
}

func (ex *Exchange) directPairs() []txn.Transaction {
	var out []txn.Transaction
	for _, c := range ex.currencies {
		for _, t := range ex.pairs.Neighbors(c) {
			if !t.IsInverted() {
				out = append(out, t)
			}
		}
	}
	return out
}

func (ex *Exchange) fanOutRates(ctx context.Context, currencies []*currency.Currency, pairs []txn.Transaction) error {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	record := func(err error) {
		if err == nil {
			return
		}
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	if currencies != nil {
		for _, c := range currencies {
			wg.Add(1)
			go func(c *currency.Currency) {
				defer wg.Done()
				var pairs []txn.Transaction
				for _, t := range ex.pairs.Neighbors(c) {
					pairs = append(pairs, t)
				}
				record(adapterclient.Do(ctx, ex.limiter, "UpdateRatesForCurrencyImpl", func(ctx context.Context) error {
					return ex.adapter.UpdateRatesForCurrencyImpl(ctx, pairs)
				}))
			}(c)
		}
	}
	for _, p := range pairs {
		wg.Add(1)
		go func(p txn.Transaction) {
			defer wg.Done()
			record(adapterclient.Do(ctx, ex.limiter, "UpdateRatesForPairImpl", func(ctx context.Context) error {
				return ex.adapter.UpdateRatesForPairImpl(ctx, p)
			}))
		}(p)
	}
	wg.Wait()
	return firstErr
}

func (ex *Exchange) balanceAndOrdersLoop(ctx context.Context) {
	ticker := time.NewTicker(ex.cfg.OrderPollingPeriod)
	defer ticker.Stop()
	for ex.active.Load() {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = ex.pollBalanceAndOrdersOnce(ctx)
		}
	}
}

func (ex *Exchange) pollBalanceAndOrdersOnce(ctx context.Context) error {
	now := time.Now().UnixMilli()

	ex.lockOrders.Lock()
	defer ex.lockOrders.Unlock()
	ex.lockBalance.Lock()
	defer ex.lockBalance.Unlock()

	// Balance and order snapshots are consumed in pairs: reconciliation
	// uses movements captured since the previous poll, whose timestamp
	// becomes lastPresent; this call's timestamp is stored at once for the
	// next poll.
	lastPresent := ex.lastBalanceTimestamp.Swap(now)
	if lastPresent == 0 {
		lastPresent = now
	}

	rawBalance, err := fetchBalance(ctx, ex)
	if err != nil {
		return err
	}
	snapshot := make(map[*currency.Currency]float64, len(rawBalance))
	for id, amount := range rawBalance {
		c := currency.Lookup(id)
		if c == nil {
			continue
		}
		// fundList always holds the total including whatever is reserved;
		// when the adapter's own balance excludes it, add the reserve
		// back in so a cap of cfg.BalanceIncludeReserve doesn't silently
		// shrink Get() below what was previously committed to an order.
		if !ex.cfg.BalanceIncludeReserve {
			amount += ex.fundBalance.Reserved(c)
		}
		snapshot[c] = amount
	}
	ex.fundBalance.ReplaceSnapshot(snapshot)
	ex.movements.Update(now, ex.fundBalance)
	notify(ex.eventBalance)

	rows, err := fetchOrders(ctx, ex)
	if err != nil {
		return err
	}

	ex.tracks.Reconcile(now, lastPresent, ex.ServerTimestamp(), rows)
	ex.tracks.ComputeReserves(now)
	notify(ex.eventOrders)
	return nil
}

func fetchBalance(ctx context.Context, ex *Exchange) (map[string]float64, error) {
	var out map[string]float64
	err := adapterclient.Do(ctx, ex.limiter, "UpdateBalanceImpl", func(ctx context.Context) error {
		var err error
		out, err = ex.adapter.UpdateBalanceImpl(ctx)
		return err
	})
	return out, err
}

func fetchOrders(ctx context.Context, ex *Exchange) ([]track.ServerRow, error) {
	var out []track.ServerRow
	err := adapterclient.Do(ctx, ex.limiter, "UpdateOrdersImpl", func(ctx context.Context) error {
		rows, err := ex.adapter.UpdateOrdersImpl(ctx)
		out = rows
		return err
	})
	return out, err
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
