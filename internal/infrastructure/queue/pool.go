package queue

import (
	"context"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
)

const channelBuffer = 256

// QueueObserver receives the number of pending jobs after each enqueue and dequeue.
type QueueObserver func(depth int)

type job struct {
	ctx  context.Context
	fn   func()
	done chan struct{}
}

// Pool runs CPU-bound work on a fixed set of workers so that request
// goroutines never run it unbounded.
type Pool struct {
	jobs    chan job
	workers int
	observe QueueObserver
	log     zerolog.Logger

	startOnce sync.Once
	wg        sync.WaitGroup
}

// NewPool creates a Pool with numWorkers workers.
// If numWorkers <= 0, runtime.NumCPU() is used.
func NewPool(numWorkers int, observe QueueObserver, log zerolog.Logger) *Pool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if observe == nil {
		observe = func(int) {}
	}
	return &Pool{
		jobs:    make(chan job, channelBuffer),
		workers: numWorkers,
		observe: observe,
		log:     log,
	}
}

// Start launches the workers. They stop when ctx is cancelled. Calling
// Start more than once has no effect.
func (p *Pool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		p.wg.Add(p.workers)
		for i := 0; i < p.workers; i++ {
			go p.runWorker(ctx, i)
		}
		p.log.Debug().Int("workers", p.workers).Msg("worker pool started")
	})
}

// Wait blocks until every worker has exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Do schedules fn and blocks until it has run or ctx is done. When ctx ends
// first, ctx.Err() is returned and fn may still run later or be skipped.
func (p *Pool) Do(ctx context.Context, fn func()) error {
	j := job{ctx: ctx, fn: fn, done: make(chan struct{})}

	select {
	case p.jobs <- j:
		p.observe(len(p.jobs))
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) runWorker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-p.jobs:
			p.observe(len(p.jobs))
			// the submitter already gave up
			if j.ctx.Err() != nil {
				close(j.done)
				continue
			}
			p.run(id, j)
		}
	}
}

func (p *Pool) run(id int, j job) {
	defer close(j.done)
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Interface("panic", r).Int("worker_id", id).Msg("pool job panicked")
		}
	}()
	j.fn()
}
