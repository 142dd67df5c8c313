package mail

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRotation(t *testing.T) {
	t.Parallel()

	a, b, c := newFake("a", 1), newFake("b", 1), newFake("c", 1)

	var r rotation
	r.reset(transports(a, b, c))

	got, ok := r.next()
	assert.True(t, ok)
	assert.Same(t, a, got)
	assert.Equal(t, transports(b, c, a), r.snapshot())

	got, ok = r.removeTail()
	assert.True(t, ok)
	assert.Same(t, a, got)
	assert.Equal(t, 2, r.len())
	assert.False(t, r.contains(a))

	r.push(a)
	assert.True(t, r.contains(a))
	assert.Equal(t, transports(b, c, a), r.snapshot())

	var empty rotation
	_, ok = empty.next()
	assert.False(t, ok)
	_, ok = empty.removeTail()
	assert.False(t, ok)
}

func TestRotation_ResetCopies(t *testing.T) {
	t.Parallel()

	a, b := newFake("a", 1), newFake("b", 1)
	in := transports(a, b)

	var r rotation
	r.reset(in)
	r.next()

	assert.Equal(t, transports(a, b), in)
}

func TestQuarantine(t *testing.T) {
	t.Parallel()

	// Arrange
	a, b := newFake("a", 1), newFake("b", 1)
	b.stopErr = errors.New("already closed")
	var q quarantine

	// Act
	resA := q.add(context.Background(), a)
	resB := q.add(context.Background(), b)

	// Assert
	assert.False(t, resA.suppressed())
	assert.True(t, resB.suppressed())
	assert.Same(t, b, resB.transport)
	assert.ErrorIs(t, resB.err, b.stopErr)
	assert.Equal(t, 2, q.len())
	assert.True(t, q.contains(a))

	var r rotation
	r.reset(transports(newFake("c", 1)))
	drained := q.drainInto(&r)

	assert.Equal(t, transports(a, b), drained)
	assert.Zero(t, q.len())
	assert.Equal(t, 3, r.len())
	assert.True(t, r.contains(b))
}
