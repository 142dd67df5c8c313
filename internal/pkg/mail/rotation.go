package mail

// rotation is the ordered set of active transports.
// The front is the next transport to use.
type rotation struct {
	items []Transport
}

func (r *rotation) len() int { return len(r.items) }

// next moves the front transport to the back and returns it.
func (r *rotation) next() (Transport, bool) {
	if len(r.items) == 0 {
		return nil, false
	}

	t := r.items[0]
	copy(r.items, r.items[1:])
	r.items[len(r.items)-1] = t
	return t, true
}

// removeTail removes the back transport, which after next is the one just used.
func (r *rotation) removeTail() (Transport, bool) {
	n := len(r.items)
	if n == 0 {
		return nil, false
	}

	t := r.items[n-1]
	r.items[n-1] = nil
	r.items = r.items[:n-1]
	return t, true
}

func (r *rotation) push(t Transport) {
	r.items = append(r.items, t)
}

func (r *rotation) reset(ts []Transport) {
	r.items = append(r.items[:0:0], ts...)
}

func (r *rotation) snapshot() []Transport {
	return append([]Transport(nil), r.items...)
}
