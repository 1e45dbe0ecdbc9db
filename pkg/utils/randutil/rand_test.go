package randutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInt63n(t *testing.T) {
	for i := 0; i < 100; i++ {
		n := Int63n(10)
		assert.True(t, n >= 0 && n < 10, n)
	}
	assert.Zero(t, Int63n(0))
	assert.Zero(t, Int63n(-5))
}

func TestUint64n(t *testing.T) {
	assert.Less(t, Uint64n(), uint64(1<<32))
}

func TestStringN(t *testing.T) {
	s := StringN(16)
	assert.Len(t, s, 16)
	assert.NotEqual(t, s, StringN(16))
	assert.Empty(t, StringN(0))
}
