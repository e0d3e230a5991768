// Package async runs blocking calls on a named, fixed-size worker pool.
//
// Submission never blocks: when the bounded queue is full the task is
// rejected with ErrQueueFull so callers can shed load immediately.
package async

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

var (
	ErrQueueFull  = errors.New("async: queue full")
	ErrPoolClosed = errors.New("async: pool closed")
)

type workerKey struct{}

// WorkerName returns the name of the pool worker running the task that owns
// ctx, or "" outside a pool task.
func WorkerName(ctx context.Context) string {
	name, _ := ctx.Value(workerKey{}).(string)
	return name
}

type task struct {
	ctx context.Context
	run func(ctx context.Context)
}

type Pool struct {
	name    string
	workers int
	queue   chan task
	log     *zap.Logger

	mu      sync.RWMutex // guards closed against sends on queue
	started bool
	closed  bool
	wg      sync.WaitGroup
}

func NewPool(name string, workers, queueSize int, log *zap.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &Pool{
		name:    name,
		workers: workers,
		queue:   make(chan task, queueSize),
		log:     log.With(zap.String("pool", name)),
	}
}

func (p *Pool) Name() string { return p.name }

// Start launches the workers. Calling it more than once has no effect.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.closed {
		return
	}
	p.started = true
	for i := 1; i <= p.workers; i++ {
		p.wg.Add(1)
		go p.worker(fmt.Sprintf("%s-%d", p.name, i))
	}
	p.log.Info("worker pool started", zap.Int("workers", p.workers), zap.Int("queue_size", cap(p.queue)))
}

// Shutdown stops accepting tasks, lets the workers drain what is already
// queued and waits for them until ctx ends.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	started := p.started
	p.mu.Unlock()

	if !started {
		// nobody will drain the queue; fail whatever is still in it
		for t := range p.queue {
			t.run(nil)
		}
		return nil
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		p.log.Info("worker pool stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown %s: %w", p.name, ctx.Err())
	}
}

func (p *Pool) worker(name string) {
	defer p.wg.Done()
	for t := range p.queue {
		t.run(context.WithValue(t.ctx, workerKey{}, name))
	}
}

func (p *Pool) enqueue(t task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.queue <- t:
		return nil
	default:
		p.log.Warn("queue full, rejecting task")
		return ErrQueueFull
	}
}

// Submit queues fn on p and returns its Future without waiting for a worker.
// If ctx ends before a worker picks the task up, the future resolves with
// ctx.Err() and fn never runs; after that point ctx is only passed to fn.
func Submit[T any](ctx context.Context, p *Pool, fn func(ctx context.Context) (T, error)) (*Future[T], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f := newFuture[T]()
	stop := context.AfterFunc(ctx, func() { f.abort(context.Cause(ctx)) })
	t := task{
		ctx: ctx,
		run: func(wctx context.Context) {
			defer stop()
			if wctx == nil {
				f.abort(ErrPoolClosed)
				return
			}
			if err := wctx.Err(); err != nil {
				f.abort(err)
				return
			}
			if !f.claim() {
				return
			}
			v, err := safeRun(wctx, fn)
			f.resolve(v, err)
		},
	}
	if err := p.enqueue(t); err != nil {
		stop()
		return nil, err
	}
	return f, nil
}

func safeRun[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) (v T, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("async task panic: %v", rec)
		}
	}()
	return fn(ctx)
}
