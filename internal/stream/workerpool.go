package stream

import (
	"fmt"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "octaworld_worker_pool_jobs_enqueued_total",
		Help: "Number of jobs accepted by the worker pool.",
	})

	jobsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "octaworld_worker_pool_jobs_rejected_total",
		Help: "Number of jobs rejected because the worker pool had already shut down.",
	})

	jobsDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "octaworld_worker_pool_jobs_discarded_total",
		Help: "Number of queued jobs thrown away unrun at shutdown.",
	})

	jobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "octaworld_worker_pool_job_duration_seconds",
		Help: "Wall-clock time spent running a single worker pool job.",
	})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "octaworld_worker_pool_queue_depth",
		Help: "Number of jobs currently queued but not yet picked up by a worker.",
	})
)

// WorkerPool is the classic bounded pool of spec section 4.6: a fixed
// number of worker goroutines draining an unbounded job queue guarded by a
// condition variable, rather than a buffered channel — enqueue never blocks
// the caller no matter how many jobs are already queued. It offers no
// per-job completion signal: jobs are fire-and-forget, per the design note
// "fire-and-forget concurrency" in section 9. A caller needing a
// completion signal closes over its own channel inside the job.
type WorkerPool struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    []func()
	shutdown bool
	wg       sync.WaitGroup
}

// NewWorkerPool starts n worker goroutines waiting on the job queue
// condition. n is typically runtime.GOMAXPROCS(0) or hardware concurrency.
func NewWorkerPool(n int) *WorkerPool {
	if n < 1 {
		n = 1
	}

	p := &WorkerPool{}
	p.cond = sync.NewCond(&p.mu)

	p.wg.Add(n)
	for i := 0; i < n; i++ {
		go p.worker()
	}
	return p
}

// worker waits on the queue-nonempty-or-shutdown condition, pops, runs the
// job, and repeats, per spec section 4.6. A shutdown with jobs still
// queued drops them unrun rather than draining the backlog first.
func (p *WorkerPool) worker() {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.shutdown {
			p.cond.Wait()
		}
		if p.shutdown {
			p.mu.Unlock()
			return
		}
		job := p.queue[0]
		p.queue = p.queue[1:]
		queueDepth.Set(float64(len(p.queue)))
		p.mu.Unlock()

		p.run(job)
	}
}

func (p *WorkerPool) run(job func()) {
	start := time.Now()
	defer func() {
		jobDuration.Observe(time.Since(start).Seconds())
		if r := recover(); r != nil {
			logs.Error(fmt.Errorf("worker pool job panicked: %v", r))
		}
	}()
	job()
}

// Enqueue places fn on the unbounded FIFO and wakes one waiting worker. It
// never blocks the caller. It returns ErrTypeShutdownEnqueue if the pool
// has already been shut down.
func (p *WorkerPool) Enqueue(fn func()) error {
	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		jobsRejected.Inc()
		return newShutdownEnqueueError()
	}
	p.queue = append(p.queue, fn)
	queueDepth.Set(float64(len(p.queue)))
	p.mu.Unlock()

	p.cond.Signal()
	jobsEnqueued.Inc()
	return nil
}

// Shutdown sets the shutdown flag, wakes every worker, and joins them.
// Jobs still queued at that moment are discarded without running; jobs
// already running are allowed to finish. This call is terminal: no job
// enqueued after Shutdown returns is ever run.
func (p *WorkerPool) Shutdown() {
	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		return
	}
	p.shutdown = true
	discarded := len(p.queue)
	p.queue = nil
	queueDepth.Set(0)
	p.mu.Unlock()

	if discarded > 0 {
		jobsDiscarded.Add(float64(discarded))
	}

	p.cond.Broadcast()
	p.wg.Wait()
}
