package mail

import "reflect"

// listenerRegistry remembers every listener bound to the pool and how many
// of them each transport has already received.
//
// Listeners are append-only, so a transport that has seen the first n
// listeners only needs the ones after n to catch up.
type listenerRegistry struct {
	listeners []Listener
	delivered map[Transport]int
}

func newListenerRegistry() *listenerRegistry {
	return &listenerRegistry{delivered: make(map[Transport]int)}
}

// add remembers l. A listener already bound is ignored. Identity is only
// checked when the dynamic value of l is comparable, so ListenerFunc values
// and structs holding one are always new.
func (r *listenerRegistry) add(l Listener) {
	if reflect.ValueOf(l).Comparable() {
		for _, known := range r.listeners {
			if known == l {
				return
			}
		}
	}
	r.listeners = append(r.listeners, l)
}

// catchUp binds to t every listener it has not received yet.
func (r *listenerRegistry) catchUp(t Transport) {
	for _, l := range r.listeners[r.delivered[t]:] {
		t.BindListener(l)
	}
	r.delivered[t] = len(r.listeners)
}

// retain forgets transports that are no longer members of the pool.
// A transport that later rejoins is treated as new.
func (r *listenerRegistry) retain(members []Transport) {
	keep := make(map[Transport]struct{}, len(members))
	for _, t := range members {
		keep[t] = struct{}{}
	}

	for t := range r.delivered {
		if _, ok := keep[t]; !ok {
			delete(r.delivered, t)
		}
	}
}
