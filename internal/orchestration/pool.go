package orchestration

import (
	"context"
	"sync"

	"github.com/nucleus/datapuur/internal/core"
)

// RunFunc executes one job and returns its final snapshot.
type RunFunc func(ctx context.Context, jobID string) *core.Job

type task struct {
	jobID  string
	result chan *core.Job
}

// Pool runs jobs on a fixed number of goroutines fed by a bounded queue.
type Pool struct {
	run    RunFunc
	queue  chan task
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewPool starts workers goroutines with room for queueSize pending jobs.
func NewPool(workers, queueSize int, run RunFunc) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		run:    run,
		queue:  make(chan task, queueSize),
		ctx:    ctx,
		cancel: cancel,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for t := range p.queue {
		job := p.run(p.ctx, t.jobID)
		t.result <- job
		close(t.result)
	}
}

// Submit enqueues jobID without blocking. The returned channel receives the
// terminal job once and is then closed. A full queue or a stopped pool
// yields an E_UNAVAILABLE error.
func (p *Pool) Submit(jobID string) (<-chan *core.Job, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, core.UnavailableError("ingestion pool is shut down")
	}
	t := task{jobID: jobID, result: make(chan *core.Job, 1)}
	select {
	case p.queue <- t:
		return t.result, nil
	default:
		return nil, core.UnavailableError("ingestion queue is full")
	}
}

// Shutdown stops accepting jobs and waits for queued and running ones. If
// ctx ends first, running jobs are cancelled and ctx.Err is returned.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}
