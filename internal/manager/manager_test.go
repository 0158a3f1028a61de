package manager_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polybot/internal/currency"
	"github.com/alejandrodnm/polybot/internal/exchange"
	"github.com/alejandrodnm/polybot/internal/exchange/exchangetest"
	"github.com/alejandrodnm/polybot/internal/manager"
	"github.com/alejandrodnm/polybot/internal/txn"
)

func demoPairs(usdID, eurID string) *txn.PairTransactionMap {
	usd := currency.New(usdID, "Manager Test Dollar", true, 1)
	eur := currency.New(eurID, "Manager Test Euro", true, 1)
	pair := txn.NewPair(usd, eur, 0, 0, 2, 2, txn.Boundaries{})
	pair.SetRate(1, 0.5)

	pairs := txn.NewPairTransactionMap()
	pairs.Register(pair)
	pairs.RegisterInvert(pair)
	return pairs
}

func TestManager_New_CreatesOutputDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "output")
	mgr, err := manager.New(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, mgr.OutputDirectory())

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestManager_Register_RejectsDuplicateName(t *testing.T) {
	mgr, err := manager.New(t.TempDir())
	require.NoError(t, err)

	adapter := exchangetest.New(demoPairs("MGR_DUP1_USD", "MGR_DUP1_EUR"))
	_, err = mgr.Register("venue-a", adapter, exchange.Config{})
	require.NoError(t, err)

	_, err = mgr.Register("venue-a", adapter, exchange.Config{})
	assert.Error(t, err)
}

func TestManager_Exchange_LooksUpByName(t *testing.T) {
	mgr, err := manager.New(t.TempDir())
	require.NoError(t, err)

	adapter := exchangetest.New(demoPairs("MGR_LOOKUP_USD", "MGR_LOOKUP_EUR"))
	ex, err := mgr.Register("venue-b", adapter, exchange.Config{})
	require.NoError(t, err)

	got, ok := mgr.Exchange("venue-b")
	assert.True(t, ok)
	assert.Same(t, ex, got)

	_, ok = mgr.Exchange("not-registered")
	assert.False(t, ok)
}

func TestManager_Each_VisitsInRegistrationOrder(t *testing.T) {
	mgr, err := manager.New(t.TempDir())
	require.NoError(t, err)

	_, err = mgr.Register("first", exchangetest.New(demoPairs("MGR_ORDER1_USD", "MGR_ORDER1_EUR")), exchange.Config{})
	require.NoError(t, err)
	_, err = mgr.Register("second", exchangetest.New(demoPairs("MGR_ORDER2_USD", "MGR_ORDER2_EUR")), exchange.Config{})
	require.NoError(t, err)

	var seen []string
	mgr.Each(func(name string, ex *exchange.Exchange) { seen = append(seen, name) })
	assert.Equal(t, []string{"first", "second"}, seen)
}

func TestManager_StartConnectsRegisteredExchanges(t *testing.T) {
	mgr, err := manager.New(t.TempDir())
	require.NoError(t, err)

	adapter := exchangetest.New(demoPairs("MGR_START_USD", "MGR_START_EUR"))
	ex, err := mgr.Register("venue-start", adapter, exchange.Config{ReadOnly: true})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, mgr.Start(ctx, false))
	defer mgr.Stop()

	assert.Equal(t, exchange.Connected, ex.State())
	assert.False(t, mgr.StartedAt().IsZero())
}
