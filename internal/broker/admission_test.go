package broker

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestAdmissionRateLimit(t *testing.T) {
	// Refill rate near zero so only the burst tokens exist.
	a := newAdmission(0.001, 2, 10, zerolog.Nop())

	ok, _ := a.allow(0)
	assert.True(t, ok)
	ok, _ = a.allow(0)
	assert.True(t, ok)

	ok, reason := a.allow(0)
	assert.False(t, ok, "bucket drained")
	assert.Equal(t, rejectRateLimited, reason)
}

func TestAdmissionCapacity(t *testing.T) {
	a := newAdmission(1000, 1000, 3, zerolog.Nop())

	ok, _ := a.allow(2)
	assert.True(t, ok)

	ok, reason := a.allow(3)
	assert.False(t, ok)
	assert.Equal(t, rejectMaxConnections, reason)

	// Capacity rejection happens before the limiter and costs no token.
	ok, _ = a.allow(0)
	assert.True(t, ok)
}

func TestAdmissionZeroConfigTakesDefaults(t *testing.T) {
	a := newAdmission(0, 0, 5, zerolog.Nop())
	ok, _ := a.allow(0)
	assert.True(t, ok)
}
