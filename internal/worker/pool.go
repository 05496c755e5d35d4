// Package worker runs background jobs on a fixed set of goroutines.
package worker

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"go-media-analyzer/internal/logger"
)

// Stats is a point-in-time view of a pool's counters
type Stats struct {
	Workers       int
	TotalJobs     int64
	CompletedJobs int64
	PanickedJobs  int64
	ActiveWorkers int64
	QueuedJobs    int
}

// Job is a unit of background work
type Job func(ctx context.Context)

// Pool manages concurrent jobs with a bounded queue
type Pool struct {
	workers  int
	jobQueue chan Job
	ctx      context.Context
	cancel   context.CancelFunc

	wg        sync.WaitGroup
	workersWg sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool

	total     atomic.Int64
	completed atomic.Int64
	panicked  atomic.Int64
	active    atomic.Int64
}

// NewPool creates a pool; workers <= 0 uses the CPU count
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		workers:  workers,
		jobQueue: make(chan Job, workers*2),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the workers. Later calls are no-ops.
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.workersWg.Add(1)
			go p.worker()
		}
	})
}

func (p *Pool) worker() {
	defer p.workersWg.Done()
	for job := range p.jobQueue {
		p.run(job)
	}
}

func (p *Pool) run(job Job) {
	p.active.Add(1)
	defer func() {
		if r := recover(); r != nil {
			p.panicked.Add(1)
			logger.WithField("panic", r).Error("Background job panicked")
		}
		p.active.Add(-1)
		p.completed.Add(1)
		p.wg.Done()
	}()
	job(p.ctx)
}

// Submit queues job, blocking while the queue is full. It returns false once
// the pool is closed.
func (p *Pool) Submit(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	p.wg.Add(1)
	p.total.Add(1)
	p.jobQueue <- job
	return true
}

// Wait blocks until every accepted job has finished
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Close stops accepting jobs, lets queued jobs finish and cancels their context afterwards
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.jobQueue)
		p.mu.Unlock()

		p.Start()
		p.workersWg.Wait()
		p.cancel()
	})
}

// GetStats returns the pool counters
func (p *Pool) GetStats() Stats {
	return Stats{
		Workers:       p.workers,
		TotalJobs:     p.total.Load(),
		CompletedJobs: p.completed.Load(),
		PanickedJobs:  p.panicked.Load(),
		ActiveWorkers: p.active.Load(),
		QueuedJobs:    len(p.jobQueue),
	}
}
