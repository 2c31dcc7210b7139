package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stagesync/pkg/types"
)

func envelopeOfType(t *testing.T, msgType string) *types.Envelope {
	t.Helper()
	env, err := types.NewEnvelope(msgType, map[string]string{}, "", "")
	require.NoError(t, err)
	return env
}

func TestListeners_RegistrationOrder(t *testing.T) {
	reg := newListenerRegistry()
	var order []string

	reg.add("NOTIFICATION", func(*types.Envelope) { order = append(order, "first") })
	reg.add("NOTIFICATION", func(*types.Envelope) { order = append(order, "second") })
	reg.add("NOTIFICATION", func(*types.Envelope) { order = append(order, "third") })

	reg.invoke(envelopeOfType(t, "NOTIFICATION"))

	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestListeners_ExactTypeMatch(t *testing.T) {
	reg := newListenerRegistry()
	called := 0
	reg.add("QUEUE_UPDATED", func(*types.Envelope) { called++ })

	reg.invoke(envelopeOfType(t, "QUEUE_UPDATE"))
	assert.Zero(t, called, "QUEUE_UPDATE must not match QUEUE_UPDATED")

	reg.invoke(envelopeOfType(t, "QUEUE_UPDATED"))
	assert.Equal(t, 1, called)
}

func TestListeners_PanicIsolation(t *testing.T) {
	reg := newListenerRegistry()
	var survived bool

	reg.add("NOTIFICATION", func(*types.Envelope) { panic("listener blew up") })
	reg.add("NOTIFICATION", func(*types.Envelope) { survived = true })

	assert.NotPanics(t, func() {
		reg.invoke(envelopeOfType(t, "NOTIFICATION"))
	})
	assert.True(t, survived, "a panicking callback must not block later ones")
}

func TestListeners_OffIdempotent(t *testing.T) {
	reg := newListenerRegistry()
	calls := 0
	cb := func(*types.Envelope) { calls++ }
	other := func(*types.Envelope) { calls += 100 }

	reg.add("NOTIFICATION", cb)
	reg.remove("NOTIFICATION", cb)
	reg.remove("NOTIFICATION", cb) // second removal is a no-op
	reg.remove("NOTIFICATION", other)
	reg.remove("UNKNOWN_TYPE", cb)

	reg.invoke(envelopeOfType(t, "NOTIFICATION"))
	assert.Zero(t, calls)
}

func TestListeners_RemoveKeepsOthers(t *testing.T) {
	reg := newListenerRegistry()
	var order []string
	first := func(*types.Envelope) { order = append(order, "first") }
	second := func(*types.Envelope) { order = append(order, "second") }

	reg.add("NOTIFICATION", first)
	reg.add("NOTIFICATION", second)
	reg.remove("NOTIFICATION", first)

	reg.invoke(envelopeOfType(t, "NOTIFICATION"))
	assert.Equal(t, []string{"second"}, order)
}

func TestListeners_NilCallbackIgnored(t *testing.T) {
	reg := newListenerRegistry()
	reg.add("NOTIFICATION", nil)

	assert.NotPanics(t, func() {
		reg.invoke(envelopeOfType(t, "NOTIFICATION"))
	})
}
