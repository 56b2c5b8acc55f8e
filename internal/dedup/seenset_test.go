package dedup

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObserveSuppressesDuplicates(t *testing.T) {
	s := NewSeenSet(500)

	assert.True(t, s.Observe("m1"))
	assert.False(t, s.Observe("m1"))
	assert.False(t, s.Observe("m1"))
	assert.True(t, s.Observe("m2"))
}

func TestFIFOEvictionBeyondCapacity(t *testing.T) {
	s := NewSeenSet(3)

	assert.True(t, s.Observe("a"))
	assert.True(t, s.Observe("b"))
	assert.True(t, s.Observe("c"))
	assert.Equal(t, 3, s.Len())

	// "d" evicts "a", the oldest by insertion order.
	assert.True(t, s.Observe("d"))
	assert.Equal(t, 3, s.Len())
	assert.True(t, s.Observe("a"))
	assert.False(t, s.Observe("c"))
}

func TestCapacityHolds(t *testing.T) {
	s := NewSeenSet(500)
	for i := 0; i < 600; i++ {
		s.Observe(fmt.Sprintf("m%d", i))
	}
	assert.Equal(t, 500, s.Len())

	// Recent ids are still deduplicated.
	assert.False(t, s.Observe("m599"))
	// The earliest ids were evicted and count as new again.
	assert.True(t, s.Observe("m0"))
}
