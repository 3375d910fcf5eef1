package idgenerator

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdGenerator_Next(t *testing.T) {
	gen := New(0)

	assert.Equal(t, uint32(1), gen.Next())
	assert.Equal(t, uint32(2), gen.Next())
	assert.Equal(t, uint32(3), gen.Next())
}

func TestIdGenerator_StartValue(t *testing.T) {
	gen := New(100)
	assert.Equal(t, uint32(101), gen.Next())
}

func TestIdGenerator_Concurrent(t *testing.T) {
	gen := New(0)

	const n = 200
	ids := make(chan uint32, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- gen.Next()
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[uint32]bool, n)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}
