package worker

import (
	"context"
	"sync"
	"sync/atomic"
)

type ProcessFunc[T any] func(ctx context.Context, job T) error

// Pool runs jobs on a fixed number of goroutines. Jobs left in the queue when ctx is
// cancelled are dropped.
type Pool[T any] struct {
	numWorkers int
	jobs       chan T
	processor  ProcessFunc[T]
	onError    func(job T, err error)
	wg         sync.WaitGroup

	succeeded atomic.Int64
	failed    atomic.Int64
}

func NewPool[T any](numWorkers int, bufferSize int, processor ProcessFunc[T]) *Pool[T] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &Pool[T]{
		numWorkers: numWorkers,
		jobs:       make(chan T, bufferSize),
		processor:  processor,
	}
}

// OnError registers a callback for failed jobs. Call before Start.
func (wp *Pool[T]) OnError(fn func(job T, err error)) {
	wp.onError = fn
}

func (wp *Pool[T]) Start(ctx context.Context) {
	for i := 1; i <= wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx)
	}
}

func (wp *Pool[T]) worker(ctx context.Context) {
	defer wp.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-wp.jobs:
			if !ok || ctx.Err() != nil {
				return
			}
			if err := wp.processor(ctx, job); err != nil {
				wp.failed.Add(1)
				if wp.onError != nil {
					wp.onError(job, err)
				}
				continue
			}
			wp.succeeded.Add(1)
		}
	}
}

func (wp *Pool[T]) Submit(job T) {
	wp.jobs <- job
}

// Stop closes the queue and waits for workers to finish.
func (wp *Pool[T]) Stop() {
	close(wp.jobs)
	wp.wg.Wait()
}

func (wp *Pool[T]) Stats() (succeeded, failed int64) {
	return wp.succeeded.Load(), wp.failed.Load()
}
