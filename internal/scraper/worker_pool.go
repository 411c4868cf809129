package scraper

import (
	"context"
	"sync"

	"feedsync/internal/domain/listing"
)

// Task produces at most one candidate. A nil candidate with a nil error
// means the page held nothing usable.
type Task func(ctx context.Context) (listing.Candidate, error)

type Result struct {
	Index     int
	Candidate listing.Candidate
	Err       error
}

type WorkerPool struct {
	workers int
	tasks   chan indexedTask
	wg      sync.WaitGroup
}

type indexedTask struct {
	index int
	run   Task
}

func NewWorkerPool(workers, buffer int) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	if buffer < 0 {
		buffer = 0
	}
	return &WorkerPool{
		workers: workers,
		tasks:   make(chan indexedTask, buffer),
	}
}

// Submit queues t under index. It returns false when ctx ends first.
func (p *WorkerPool) Submit(ctx context.Context, index int, t Task) bool {
	if p == nil || t == nil {
		return false
	}
	select {
	case <-ctx.Done():
		return false
	case p.tasks <- indexedTask{index: index, run: t}:
		return true
	}
}

func (p *WorkerPool) Close() {
	if p == nil {
		return
	}
	close(p.tasks)
}

func (p *WorkerPool) Run(ctx context.Context) <-chan Result {
	buf := p.workers * 64
	out := make(chan Result, buf)

	p.wg.Add(p.workers)
	for i := 0; i < p.workers; i++ {
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case t, ok := <-p.tasks:
					if !ok {
						return
					}
					c, err := t.run(ctx)
					select {
					case <-ctx.Done():
						return
					case out <- Result{Index: t.index, Candidate: c, Err: err}:
					}
				}
			}
		}()
	}

	go func() {
		p.wg.Wait()
		close(out)
	}()

	return out
}

// runOrdered runs tasks on a pool and returns results in submission order.
func runOrdered(ctx context.Context, workers int, tasks []Task) []Result {
	results := make([]Result, len(tasks))
	for i := range results {
		results[i] = Result{Index: i, Err: context.Canceled}
	}
	if len(tasks) == 0 {
		return results
	}

	pool := NewWorkerPool(workers, len(tasks))
	out := pool.Run(ctx)
	for i, t := range tasks {
		if !pool.Submit(ctx, i, t) {
			break
		}
	}
	pool.Close()

	for r := range out {
		results[r.Index] = r
	}
	if err := ctx.Err(); err != nil {
		for i := range results {
			if results[i].Err == context.Canceled {
				results[i].Err = err
			}
		}
	}
	return results
}
