package event_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alejandrodnm/polybot/internal/event"
)

func TestManager_TriggerDispatchesToRegisteredCallback(t *testing.T) {
	m := event.NewManager()
	var got event.Payload
	fired := 0
	m.On(event.OnComplete, "order-1", "handler", nil, func(p event.Payload) {
		fired++
		got = p
	}, event.Order)

	m.Trigger(event.OnComplete, "order-1", event.Payload{Amount: 42, Cause: "filled"})

	assert.Equal(t, 1, fired)
	assert.Equal(t, "order-1", got.OrderID)
	assert.Equal(t, 42.0, got.Amount)
	assert.Equal(t, "filled", got.Cause)
}

func TestManager_TriggerOnUnknownOrderIsNoop(t *testing.T) {
	m := event.NewManager()
	assert.NotPanics(t, func() {
		m.Trigger(event.OnComplete, "never-registered", event.Payload{})
	})
}

func TestManager_TriggerOnlyFiresMatchingKind(t *testing.T) {
	m := event.NewManager()
	var completeFired, errorFired bool
	m.On(event.OnComplete, "order-2", "c", nil, func(event.Payload) { completeFired = true }, event.Order)
	m.On(event.OnError, "order-2", "e", nil, func(event.Payload) { errorFired = true }, event.Order)

	m.Trigger(event.OnError, "order-2", event.Payload{})

	assert.False(t, completeFired)
	assert.True(t, errorFired)
}

func TestManager_CopyOrderRespectsMinLifetime(t *testing.T) {
	m := event.NewManager()
	var orderFired, opFired, ctxFired int
	m.On(event.OnComplete, "src", "order-scope", nil, func(event.Payload) { orderFired++ }, event.Order)
	m.On(event.OnComplete, "src", "op-scope", nil, func(event.Payload) { opFired++ }, event.Operation)
	m.On(event.OnComplete, "src", "ctx-scope", nil, func(event.Payload) { ctxFired++ }, event.Context)

	m.CopyOrder("src", "dst", event.Operation)
	m.Trigger(event.OnComplete, "dst", event.Payload{})

	assert.Equal(t, 0, orderFired, "order-scoped registrations must not survive copyOrder")
	assert.Equal(t, 1, opFired)
	assert.Equal(t, 1, ctxFired)
}

func TestManager_GCPrunesDeadContainers(t *testing.T) {
	m := event.NewManager()
	m.On(event.OnComplete, "keep-me", "h", nil, func(event.Payload) {}, event.Order)
	m.On(event.OnComplete, "drop-me", "h", nil, func(event.Payload) {}, event.Order)

	assert.Equal(t, 2, m.Len())
	m.GC(map[string]bool{"keep-me": true})
	assert.Equal(t, 1, m.Len())
}
