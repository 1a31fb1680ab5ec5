package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLimiter_BurstThenDeny(t *testing.T) {
	l := NewLimiter(1, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("a"), "request %d", i)
	}
	assert.False(t, l.Allow("a"))

	// buckets are per client
	assert.True(t, l.Allow("b"))
	assert.InDelta(t, 2, l.Tokens("b"), 0.01)
}

func TestLimiter_SameBucket(t *testing.T) {
	l := NewLimiter(100, 10)
	assert.Same(t, l.GetLimiter("x"), l.GetLimiter("x"))
}
