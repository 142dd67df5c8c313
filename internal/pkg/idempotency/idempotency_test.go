package idempotency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseState(t *testing.T) {
	t.Parallel()

	for _, s := range []State{StateInProgress, StateCompleted, StateFailed} {
		got, err := parseState(s.String())
		assert.NoError(t, err)
		assert.Equal(t, s, got)
	}

	got, err := parseState("none")
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, StateError, got)
}

func TestOptions(t *testing.T) {
	t.Parallel()

	o := execOptions{lockDuration: defaultLockDuration, stateTTL: defaultStateTTL}
	WithLockDuration(0)(&o)
	WithStateTTL(-time.Second)(&o)
	assert.Equal(t, execOptions{lockDuration: time.Minute, stateTTL: 24 * time.Hour}, o)

	WithLockDuration(5 * time.Second)(&o)
	WithStateTTL(time.Hour)(&o)
	assert.Equal(t, execOptions{lockDuration: 5 * time.Second, stateTTL: time.Hour}, o)
}

func TestNew_DefaultPrefix(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultPrefix, New(nil, "").prefix)
	assert.Equal(t, "x:", New(nil, "x:").prefix)
}
