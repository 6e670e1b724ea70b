package concurrency

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingCapacityRoundsUp(t *testing.T) {
	assert.Equal(t, 8, NewRing[int](5).Cap())
	assert.Equal(t, 1, NewRing[int](0).Cap())
}

func TestRingFullAndEmpty(t *testing.T) {
	r := NewRing[string](2)
	_, ok := r.Pop()
	assert.False(t, ok)

	require.True(t, r.Push("a"))
	require.True(t, r.Push("b"))
	assert.False(t, r.Push("c"))
	assert.Equal(t, 2, r.Len())

	v, ok := r.Pop()
	require.True(t, ok)
	assert.Equal(t, "a", v)
	require.True(t, r.Push("c"))
	v, _ = r.Pop()
	assert.Equal(t, "b", v)
	v, _ = r.Pop()
	assert.Equal(t, "c", v)
	assert.Zero(t, r.Len())
}

func TestRingProducerConsumer(t *testing.T) {
	const n = 10000
	r := NewRing[int](64)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; {
			if r.Push(i) {
				i++
			}
		}
	}()
	for want := 0; want < n; {
		if v, ok := r.Pop(); ok {
			require.Equal(t, want, v)
			want++
		}
	}
	wg.Wait()
}
