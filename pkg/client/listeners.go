package client

import (
	"log"
	"reflect"
	"sync"

	"stagesync/pkg/types"
)

// Listener receives every envelope of the type it registered for,
// whether or not the reducer modelled that type.
type Listener func(*types.Envelope)

// listenerRegistry maps exact type strings to callbacks in
// registration order.
type listenerRegistry struct {
	mu        sync.RWMutex
	listeners map[string][]Listener
}

func newListenerRegistry() *listenerRegistry {
	return &listenerRegistry{listeners: make(map[string][]Listener)}
}

// add appends the callback under the type string.
func (r *listenerRegistry) add(msgType string, cb Listener) {
	if cb == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners[msgType] = append(r.listeners[msgType], cb)
}

// remove drops the first registration of this exact callback. Unknown
// callbacks and types are a no-op; repeat removal is safe.
func (r *listenerRegistry) remove(msgType string, cb Listener) {
	if cb == nil {
		return
	}
	target := reflect.ValueOf(cb).Pointer()

	r.mu.Lock()
	defer r.mu.Unlock()
	registered := r.listeners[msgType]
	for i, existing := range registered {
		if reflect.ValueOf(existing).Pointer() == target {
			r.listeners[msgType] = append(registered[:i:i], registered[i+1:]...)
			return
		}
	}
}

// invoke calls every callback registered under the envelope's type, in
// registration order. A panicking callback is isolated: the rest still
// run.
func (r *listenerRegistry) invoke(env *types.Envelope) {
	r.mu.RLock()
	registered := append([]Listener(nil), r.listeners[env.Type]...)
	r.mu.RUnlock()

	for _, cb := range registered {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					log.Printf("listener panic recovered: type=%s err=%v", env.Type, rec)
				}
			}()
			cb(env)
		}()
	}
}
