package balance

import (
	"sync"

	"github.com/alejandrodnm/polybot/internal/currency"
	"github.com/alejandrodnm/polybot/internal/ringbuffer"
)

// movementHistoryCapacity bounds how many journal entries are retained per
// currency before the oldest are overwritten.
const movementHistoryCapacity = 512

// Movements tracks, per currency, the last-seen fund amount and a
// bounded time-ordered journal of non-zero deltas observed between
// successive Update calls.
type Movements struct {
	mu       sync.RWMutex
	lastSeen map[*currency.Currency]float64
	journal  map[*currency.Currency]*ringbuffer.RingBuffer[float64]
}

// NewMovements creates an empty Movements journal.
func NewMovements() *Movements {
	return &Movements{
		lastSeen: make(map[*currency.Currency]float64),
		journal:  make(map[*currency.Currency]*ringbuffer.RingBuffer[float64]),
	}
}

// Update diffs b's current snapshot against the last-seen amounts and
// appends a journal entry, timestamped ts, for every currency whose amount
// changed by a non-zero delta.
func (m *Movements) Update(ts int64, b *Balance) {
	for _, c := range b.Currencies() {
		amount := b.GetWithReserve(c)
		m.mu.Lock()
		delta := amount - m.lastSeen[c]
		m.lastSeen[c] = amount
		if delta != 0 {
			rb, ok := m.journal[c]
			if !ok {
				rb = ringbuffer.New[float64](movementHistoryCapacity)
				m.journal[c] = rb
			}
			rb.Push(ts, delta)
		}
		m.mu.Unlock()
	}
}

// Consume walks the journal for c from fromTs forward, subtracting from
// entries whose sign matches amount's sign until amount is satisfied or the
// journal is exhausted, zeroing out the portion of each entry it claims.
// This makes Consume genuinely monotone: repeated calls with the same
// (fromTs, c), or calls from a second vanished order racing on the same
// window, see only whatever delta earlier calls left unclaimed.
func (m *Movements) Consume(fromTs int64, amount float64, c *currency.Currency) float64 {
	if amount == 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rb, ok := m.journal[c]
	if !ok {
		return amount
	}

	sign := 1.0
	if amount < 0 {
		sign = -1.0
	}
	remaining := amount
	for _, e := range rb.MutableEntries() {
		if e.Timestamp < fromTs {
			continue
		}
		if (e.Value > 0) != (sign > 0) {
			continue
		}
		avail := e.Value * sign
		take := remaining * sign
		if take <= 0 {
			break
		}
		if avail >= take {
			e.Value -= take * sign
			remaining = 0
			break
		}
		e.Value = 0
		remaining -= avail * sign
	}
	return remaining
}

// LastSeen returns the most recently observed amount for c.
func (m *Movements) LastSeen(c *currency.Currency) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastSeen[c]
}

// SumSince sums every journal delta for c with timestamp >= fromTs that
// matches the sign of want (positive deltas if want > 0, negative deltas if
// want < 0).
func (m *Movements) SumSince(fromTs int64, c *currency.Currency, want float64) float64 {
	m.mu.RLock()
	rb, ok := m.journal[c]
	m.mu.RUnlock()
	if !ok {
		return 0
	}
	var total float64
	for _, e := range rb.All() {
		if e.Timestamp < fromTs {
			continue
		}
		if (e.Value > 0) != (want > 0) {
			continue
		}
		total += e.Value
	}
	return total
}
