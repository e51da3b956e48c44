// Package jobs provides bounded fan-out for independent per-page work.
//
// Validation runs two pools per document: a CPU pool for problem
// detection sized to available cores, and a wider I/O pool for
// secondary-extraction calls capped to respect the provider's rate
// limits. Pools are one-shot: submit, wait, discard.
package jobs

import (
	"context"
	"runtime"
	"sync"
)

// Pool runs submitted tasks on a fixed number of worker goroutines.
type Pool struct {
	tasks chan func(ctx context.Context)
	wg    sync.WaitGroup
}

// NewPool starts a pool with the given worker count. A count of zero or
// less defaults to GOMAXPROCS.
func NewPool(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	p := &Pool{
		tasks: make(chan func(ctx context.Context)),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for task := range p.tasks {
				if ctx.Err() != nil {
					// Context cancelled: drain remaining tasks without
					// running them so Submit never blocks forever.
					continue
				}
				task(ctx)
			}
		}()
	}
	return p
}

// Submit queues a task. Blocks until a worker picks it up or another
// task slot frees; must not be called after Wait.
func (p *Pool) Submit(task func(ctx context.Context)) {
	p.tasks <- task
}

// Wait closes the queue and blocks until every submitted task finishes.
func (p *Pool) Wait() {
	close(p.tasks)
	p.wg.Wait()
}
