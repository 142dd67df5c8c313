package mail

import "context"

// stopResult is the outcome of stopping a transport on its way into
// quarantine. A non-nil err is suppressed by the pool.
type stopResult struct {
	transport Transport
	err       error
}

func (r stopResult) suppressed() bool { return r.err != nil }

// quarantine holds transports removed from rotation after a failure.
type quarantine struct {
	items []Transport
}

func (q *quarantine) len() int { return len(q.items) }

// add quarantines t and stops it. The stop error is returned, never raised.
func (q *quarantine) add(ctx context.Context, t Transport) stopResult {
	q.items = append(q.items, t)
	return stopResult{transport: t, err: t.Stop(ctx)}
}

// drainInto moves every quarantined transport back to r, oldest first.
// Transports are not restarted here; the dispatcher starts them lazily.
func (q *quarantine) drainInto(r *rotation) []Transport {
	drained := q.items
	for _, t := range drained {
		r.push(t)
	}
	q.items = nil
	return drained
}

func (q *quarantine) clear() { q.items = nil }

func (q *quarantine) snapshot() []Transport {
	return append([]Transport(nil), q.items...)
}
