package testutil

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequentialIDs(t *testing.T) {
	g := NewSequentialIDs("")
	assert.Equal(t, "obj-000001", g.NewID())
	assert.Equal(t, "obj-000002", g.NewID())

	custom := NewSequentialIDs("rec")
	assert.Equal(t, "rec-000001", custom.NewID())
}

func TestSequentialIDs_ConcurrentUnique(t *testing.T) {
	g := NewSequentialIDs("c")
	var (
		mu  sync.Mutex
		ids []string
		wg  sync.WaitGroup
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := g.NewID()
			mu.Lock()
			ids = append(ids, id)
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Strings(ids)
	assert.Len(t, ids, 50)
	assert.Equal(t, "c-000001", ids[0])
	assert.Equal(t, "c-000050", ids[49])
}
