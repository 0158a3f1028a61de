package event

import "sync"

// Container holds the three event sets for a single order id.
type Container struct {
	mu sync.Mutex
	sets [3][]registration // indexed by Kind
}

// newContainer creates an empty Container.
func newContainer() *Container {
	return &Container{}
}

// Register appends a callback to the named event set.
func (c *Container) register(kind Kind, name string, ctx any, cb Callback, lifetime Lifetime) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets[kind] = append(c.sets[kind], registration{name: name, context: ctx, callback: cb, lifetime: lifetime})
}

// trigger snapshots the named event set under the lock, releases it, then
// invokes every callback. This is what makes triggering reentrancy-safe: a
// callback that registers a new event during dispatch only affects future
// triggers, never the snapshot already in flight.
func (c *Container) trigger(kind Kind, payload Payload) {
	c.mu.Lock()
	snapshot := append([]registration(nil), c.sets[kind]...)
	c.mu.Unlock()

	for _, r := range snapshot {
		r.callback(payload)
	}
}

// copyInto duplicates every registration whose lifetime is >= minLifetime
// from c into dst, across all three event sets.
func (c *Container) copyInto(dst *Container, minLifetime Lifetime) {
	c.mu.Lock()
	defer c.mu.Unlock()
	dst.mu.Lock()
	defer dst.mu.Unlock()

	for kind := range c.sets {
		for _, r := range c.sets[kind] {
			if r.lifetime >= minLifetime {
				dst.sets[kind] = append(dst.sets[kind], r)
			}
		}
	}
}

// empty reports whether the container holds no registrations at all.
func (c *Container) empty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, set := range c.sets {
		if len(set) > 0 {
			return false
		}
	}
	return true
}
