package stream

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWorkerPoolRunsEveryJob(t *testing.T) {
	p := NewWorkerPool(4)
	defer p.Shutdown()

	var count int64
	var wg sync.WaitGroup
	wg.Add(100)
	for i := 0; i < 100; i++ {
		require.NoError(t, p.Enqueue(func() {
			atomic.AddInt64(&count, 1)
			wg.Done()
		}))
	}
	wg.Wait()

	require.EqualValues(t, 100, atomic.LoadInt64(&count))
}

func TestWorkerPoolRejectsEnqueueAfterShutdown(t *testing.T) {
	p := NewWorkerPool(2)
	p.Shutdown()

	err := p.Enqueue(func() {})
	require.Error(t, err)
}

func TestWorkerPoolShutdownIsIdempotent(t *testing.T) {
	p := NewWorkerPool(2)
	p.Shutdown()
	p.Shutdown()
}

func TestWorkerPoolSurvivesPanickingJob(t *testing.T) {
	p := NewWorkerPool(1)
	defer p.Shutdown()

	done := make(chan struct{})
	require.NoError(t, p.Enqueue(func() { panic("boom") }))
	require.NoError(t, p.Enqueue(func() { close(done) }))

	<-done
}
