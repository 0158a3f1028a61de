package event

import "sync"

// Manager is the process-wide registry of per-order Containers, keyed by
// order id.
type Manager struct {
	mu         sync.RWMutex
	containers map[string]*Container
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{containers: make(map[string]*Container)}
}

func (m *Manager) containerFor(orderID string) *Container {
	m.mu.RLock()
	c, ok := m.containers[orderID]
	m.mu.RUnlock()
	if ok {
		return c
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.containers[orderID]; ok {
		return c
	}
	c = newContainer()
	m.containers[orderID] = c
	return c
}

// On registers cb on orderID's event set of the given kind.
func (m *Manager) On(kind Kind, orderID, name string, ctx any, cb Callback, lifetime Lifetime) {
	m.containerFor(orderID).register(kind, name, ctx, cb, lifetime)
}

// Trigger fires every callback registered on orderID's event set of the
// given kind, snapshot-then-dispatch.
func (m *Manager) Trigger(kind Kind, orderID string, payload Payload) {
	m.mu.RLock()
	c, ok := m.containers[orderID]
	m.mu.RUnlock()
	if !ok {
		return
	}
	payload.OrderID = orderID
	c.trigger(kind, payload)
}

// CopyOrder duplicates every registration on from whose lifetime is >=
// minLifetime onto to's container. Used when a placeholder is re-keyed to
// a venue-confirmed id. A chain's next leg inherits nothing through it:
// each leg registers its own handlers.
func (m *Manager) CopyOrder(from, to string, minLifetime Lifetime) {
	src := m.containerFor(from)
	dst := m.containerFor(to)
	src.copyInto(dst, minLifetime)
}

// GC prunes every container whose order id is not present in live, the set
// of ids the tracker currently considers active. Called after every
// reconciliation pass.
func (m *Manager) GC(live map[string]bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.containers {
		if !live[id] {
			delete(m.containers, id)
		}
	}
}

// Len reports how many order ids currently have a registered container.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.containers)
}
