package jitter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDuration_WithinBounds(t *testing.T) {
	base := 100 * time.Millisecond
	for i := 0; i < 1000; i++ {
		d := Duration(base, DefaultJitter)
		assert.GreaterOrEqual(t, d, base)
		assert.LessOrEqual(t, d, base+base/2)
	}
}

func TestDuration_ZeroFactor(t *testing.T) {
	base := 250 * time.Millisecond
	assert.Equal(t, base, Duration(base, 0))
}

func TestExponentialBackoff_Growth(t *testing.T) {
	base := time.Second
	max := 30 * time.Second

	// Без джиттера рост строго удваивается до потолка.
	assert.Equal(t, time.Second, ExponentialBackoff(base, max, 0, 0))
	assert.Equal(t, 2*time.Second, ExponentialBackoff(base, max, 1, 0))
	assert.Equal(t, 8*time.Second, ExponentialBackoff(base, max, 3, 0))
}

func TestExponentialBackoff_CappedAtMax(t *testing.T) {
	base := time.Second
	max := 5 * time.Second

	assert.Equal(t, max, ExponentialBackoff(base, max, 10, 0))
}
