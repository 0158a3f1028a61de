package balance_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alejandrodnm/polybot/internal/balance"
	"github.com/alejandrodnm/polybot/internal/currency"
)

func TestBalance_GetSubtractsReserve(t *testing.T) {
	usd := currency.New("BAL_USD", "Bal Dollar", true, 1)
	b := balance.New()
	b.ReplaceSnapshot(map[*currency.Currency]float64{usd: 100})
	b.SetReserve(usd, 30)

	assert.Equal(t, 70.0, b.Get(usd))
	assert.Equal(t, 100.0, b.GetWithReserve(usd))
	assert.Equal(t, 30.0, b.Reserved(usd))
}

func TestBalance_AddReserveAccumulates(t *testing.T) {
	eur := currency.New("BAL_EUR", "Bal Euro", true, 1)
	b := balance.New()
	b.AddReserve(eur, 10)
	b.AddReserve(eur, 5)
	assert.Equal(t, 15.0, b.Reserved(eur))

	b.AddReserve(eur, -5)
	assert.Equal(t, 10.0, b.Reserved(eur))
}

func TestBalance_DiffReportsDeltasAndRemovals(t *testing.T) {
	usd := currency.New("BAL_DIFF_USD", "Diff Dollar", true, 1)
	eur := currency.New("BAL_DIFF_EUR", "Diff Euro", true, 1)
	b := balance.New()
	b.ReplaceSnapshot(map[*currency.Currency]float64{usd: 100, eur: 50})

	type delta struct {
		c *currency.Currency
		d float64
	}
	var deltas []delta
	b.Diff(map[*currency.Currency]float64{usd: 80}, func(c *currency.Currency, d float64) {
		deltas = append(deltas, delta{c, d})
	})

	require := map[*currency.Currency]float64{}
	for _, d := range deltas {
		require[d.c] = d.d
	}
	assert.Equal(t, -20.0, require[usd])
	assert.Equal(t, -50.0, require[eur])
}

func TestBalance_InitialEstimateUnknownUntilSet(t *testing.T) {
	b := balance.New()
	_, known := b.InitialEstimate()
	assert.False(t, known)

	b.SetInitialEstimate(1234.5)
	v, known := b.InitialEstimate()
	assert.True(t, known)
	assert.Equal(t, 1234.5, v)
}

func TestMovements_UpdateAndSumSince(t *testing.T) {
	usd := currency.New("MOV_USD", "Mov Dollar", true, 1)
	b := balance.New()
	mv := balance.NewMovements()

	b.ReplaceSnapshot(map[*currency.Currency]float64{usd: 100})
	mv.Update(1000, b)

	b.ReplaceSnapshot(map[*currency.Currency]float64{usd: 40})
	mv.Update(2000, b)

	assert.Equal(t, -60.0, mv.SumSince(1000, usd, -1))
	assert.Equal(t, 0.0, mv.SumSince(2001, usd, -1))
	assert.Equal(t, 40.0, mv.LastSeen(usd))
}

func TestMovements_ConsumeReducesRemainder(t *testing.T) {
	usd := currency.New("CONS_USD", "Cons Dollar", true, 1)
	b := balance.New()
	mv := balance.NewMovements()

	b.ReplaceSnapshot(map[*currency.Currency]float64{usd: 100})
	mv.Update(1000, b)
	b.ReplaceSnapshot(map[*currency.Currency]float64{usd: 0})
	mv.Update(2000, b)

	remainder := mv.Consume(1000, -100, usd)
	assert.Equal(t, 0.0, remainder)

	remainder = mv.Consume(1000, -100, usd)
	assert.Equal(t, -100.0, remainder, "a second consume of the same window finds nothing left to claim")
}
