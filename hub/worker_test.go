package hub

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerRunsTasksInFIFOOrder(t *testing.T) {
	w := newWorker("room/fifo", testLogger(), 0)

	var mu sync.Mutex
	var order []int

	for i := 0; i < 20; i++ {
		i := i
		w.schedule(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 20
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		assert.Equal(t, i, v)
	}
}

func TestWorkerRecoversFromPanic(t *testing.T) {
	w := newWorker("room/panicky", testLogger(), 0)

	var ran bool
	var mu sync.Mutex

	w.schedule(func() { panic("boom") })
	w.schedule(func() {
		mu.Lock()
		ran = true
		mu.Unlock()
	})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return ran
	}, time.Second, time.Millisecond, "worker must keep processing after a task panics")
}
