package txn

import (
	"fmt"
	"sync"

	"github.com/alejandrodnm/polybot/internal/currency"
)

// PairTransactionMap is the directed initial -> final -> Transaction index.
// Registering an invert pair requires the base to already exist and
// back-links the base to its invert so both directions resolve to the same
// shared transaction (through the Transaction interface).
type PairTransactionMap struct {
	mu    sync.RWMutex
	edges map[*currency.Currency]map[*currency.Currency]Transaction
}

// New creates an empty PairTransactionMap.
func NewPairTransactionMap() *PairTransactionMap {
	return &PairTransactionMap{
		edges: make(map[*currency.Currency]map[*currency.Currency]Transaction),
	}
}

// Register adds t under (t.Initial(), t.Final()). Returns an error if that
// direction is already registered: a pair may be registered at most once.
func (m *PairTransactionMap) Register(t Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registerLocked(t.Initial(), t.Final(), t)
}

// RegisterInvert registers the inverse of an already-registered base
// transaction (base.Final() -> base.Initial()). Fails if the base isn't
// registered yet, or if the invert direction is already registered:
// registering an inverse twice fails, and registering an inverse before its
// base fails.
func (m *PairTransactionMap) RegisterInvert(base Transaction) (Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.lookupLocked(base.Initial(), base.Final())
	if existing == nil {
		return nil, fmt.Errorf("txn: RegisterInvert: base %s/%s not registered", base.Initial().Id(), base.Final().Id())
	}
	if existing != base {
		return nil, fmt.Errorf("txn: RegisterInvert: base %s/%s does not match registered transaction", base.Initial().Id(), base.Final().Id())
	}

	inv := NewInvert(base)
	if err := m.registerLocked(inv.Initial(), inv.Final(), inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func (m *PairTransactionMap) registerLocked(initial, final *currency.Currency, t Transaction) error {
	if row, ok := m.edges[initial]; ok {
		if _, exists := row[final]; exists {
			return fmt.Errorf("txn: pair %s/%s already registered", initial.Id(), final.Id())
		}
	} else {
		m.edges[initial] = make(map[*currency.Currency]Transaction)
	}
	m.edges[initial][final] = t
	return nil
}

// Lookup returns the transaction registered for (initial, final), or nil.
func (m *PairTransactionMap) Lookup(initial, final *currency.Currency) Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lookupLocked(initial, final)
}

func (m *PairTransactionMap) lookupLocked(initial, final *currency.Currency) Transaction {
	row, ok := m.edges[initial]
	if !ok {
		return nil
	}
	return row[final]
}

// Currencies returns every currency that appears as the initial side of at
// least one registered transaction.
func (m *PairTransactionMap) Currencies() []*currency.Currency {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*currency.Currency, 0, len(m.edges))
	for c := range m.edges {
		out = append(out, c)
	}
	return out
}

// Neighbors returns every (final, transaction) edge out of c.
func (m *PairTransactionMap) Neighbors(c *currency.Currency) map[*currency.Currency]Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row := m.edges[c]
	out := make(map[*currency.Currency]Transaction, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}
