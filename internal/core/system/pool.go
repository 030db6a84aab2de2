package system

import (
	"runtime"
	"sync"
)

// WorkerPool runs async chunks on a fixed set of goroutines. One pool may be
// shared by several worlds.
type WorkerPool struct {
	jobs    chan func()
	wg      sync.WaitGroup
	size    int
	closing sync.Once
}

// NewWorkerPool starts size workers. size <= 0 uses GOMAXPROCS.
func NewWorkerPool(size int) *WorkerPool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	p := &WorkerPool{
		jobs: make(chan func(), size*4),
		size: size,
	}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker()
	}
	return p
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		job()
	}
}

func (p *WorkerPool) Size() int { return p.size }

// Submit queues fn. Jobs must not block on other jobs.
func (p *WorkerPool) Submit(fn func()) {
	p.jobs <- fn
}

// Close stops accepting jobs and waits for the workers to drain the queue.
func (p *WorkerPool) Close() {
	p.closing.Do(func() {
		close(p.jobs)
	})
	p.wg.Wait()
}
