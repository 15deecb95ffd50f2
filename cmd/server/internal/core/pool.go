package core

import (
	"context"
	"sync"
	"time"
)

// WorkerPool runs one goroutine per submitted task with no upper bound.
// After Shutdown it refuses new tasks; ShutdownNow additionally cancels the
// context handed to running tasks.
type WorkerPool struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

// NewWorkerPool returns a pool accepting work.
func NewWorkerPool() *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{ctx: ctx, cancel: cancel}
}

// Go starts task on its own goroutine. It returns false if the pool has been shut down.
func (p *WorkerPool) Go(task func(ctx context.Context)) bool {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return false
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		task(p.ctx)
	}()
	return true
}

// Shutdown stops accepting new tasks. Running tasks are left alone.
func (p *WorkerPool) Shutdown() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
}

// AwaitTermination waits up to timeout for all tasks to return and reports
// whether they did.
func (p *WorkerPool) AwaitTermination(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

// ShutdownNow stops the pool and cancels the context of running tasks.
func (p *WorkerPool) ShutdownNow() {
	p.Shutdown()
	p.cancel()
}
