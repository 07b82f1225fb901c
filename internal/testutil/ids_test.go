package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequentialIDs_Generate(t *testing.T) {
	ids := NewSequentialIDs("trace")

	assert.Equal(t, "trace-0001", ids.Generate())
	assert.Equal(t, "trace-0002", ids.Generate())
}

func TestSequentialIDs_DefaultPrefix(t *testing.T) {
	assert.Equal(t, "run-0001", NewSequentialIDs("").Generate())
}

func TestSequentialIDs_ConcurrentCallsAreUnique(t *testing.T) {
	ids := NewSequentialIDs("")
	seen := make(chan string, 200)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				seen <- ids.Generate()
			}
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[string]bool)
	for id := range seen {
		assert.False(t, unique[id], "duplicate %s", id)
		unique[id] = true
	}
	assert.Len(t, unique, 200)
}
