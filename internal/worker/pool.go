package worker

import (
	"context"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"
)

// Job is a unit of background work. Returned errors are logged by the
// pool; there is no retry.
type Job func(ctx context.Context) error

// Pool runs submitted jobs on a fixed set of goroutines with a bounded
// queue. It carries the notification fan-out so that no background
// effect ever runs on a request path, and a slow job cannot occupy more
// than one worker.
type Pool struct {
	jobs    chan Job
	wg      sync.WaitGroup
	baseCtx context.Context
	cancel  context.CancelFunc
	logger  *zap.Logger

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// NewPool starts size workers over a queue of queueSize pending jobs.
func NewPool(size, queueSize int, logger *zap.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		jobs:    make(chan Job, queueSize),
		baseCtx: ctx,
		cancel:  cancel,
		logger:  logger,
	}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.work()
	}
	return p
}

// Submit enqueues a job without blocking. It reports false when the
// queue is full or the pool has shut down; the job is dropped and the
// drop is logged, which is the backpressure signal operators watch for.
// The lock orders Submit against the channel close in Shutdown.
func (p *Pool) Submit(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.logger.Warn("worker pool shut down, job dropped")
		return false
	}
	select {
	case p.jobs <- job:
		return true
	default:
		p.logger.Warn("worker queue full, job dropped")
		return false
	}
}

// Shutdown stops accepting work and waits for in-flight jobs until ctx
// expires.
func (p *Pool) Shutdown(ctx context.Context) {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.jobs)
		p.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		p.cancel()
		<-done
	}
}

func (p *Pool) work() {
	defer p.wg.Done()
	for job := range p.jobs {
		p.run(job)
	}
}

func (p *Pool) run(job Job) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("worker panic recovered",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
		}
	}()
	if err := job(p.baseCtx); err != nil {
		p.logger.Error("background job failed", zap.Error(err))
	}
}
