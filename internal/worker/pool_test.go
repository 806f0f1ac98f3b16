package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestPoolRunsSubmittedJobs(t *testing.T) {
	pool := NewPool(2, 16, zap.NewNop())

	var ran int64
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		ok := pool.Submit(func(ctx context.Context) error {
			defer wg.Done()
			atomic.AddInt64(&ran, 1)
			return nil
		})
		if !ok {
			wg.Done()
			t.Fatal("submit rejected with free queue space")
		}
	}
	wg.Wait()

	if got := atomic.LoadInt64(&ran); got != 10 {
		t.Fatalf("ran = %d, want 10", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	pool.Shutdown(ctx)
}

func TestPoolDropsWhenQueueFull(t *testing.T) {
	pool := NewPool(1, 1, zap.NewNop())
	block := make(chan struct{})

	// occupy the single worker, then fill the single queue slot
	pool.Submit(func(ctx context.Context) error {
		<-block
		return nil
	})
	pool.Submit(func(ctx context.Context) error { return nil })

	deadline := time.After(time.Second)
	for {
		if !pool.Submit(func(ctx context.Context) error { return nil }) {
			break
		}
		select {
		case <-deadline:
			t.Fatal("submit never reported a full queue")
		default:
		}
	}

	close(block)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	pool.Shutdown(ctx)
}

func TestPoolRejectsSubmitAfterShutdown(t *testing.T) {
	pool := NewPool(2, 16, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	pool.Shutdown(ctx)

	for i := 0; i < 4; i++ {
		if pool.Submit(func(ctx context.Context) error { return nil }) {
			t.Fatal("submit accepted after shutdown")
		}
	}
}

func TestPoolSubmitDuringShutdownDoesNotPanic(t *testing.T) {
	pool := NewPool(2, 16, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				pool.Submit(func(ctx context.Context) error { return nil })
			}
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	pool.Shutdown(ctx)
	wg.Wait()
}

func TestPoolSurvivesFailingAndPanickingJobs(t *testing.T) {
	pool := NewPool(1, 8, zap.NewNop())

	done := make(chan struct{})
	pool.Submit(func(ctx context.Context) error { return errors.New("boom") })
	pool.Submit(func(ctx context.Context) error { panic("boom") })
	pool.Submit(func(ctx context.Context) error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pool stopped processing after failures")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	pool.Shutdown(ctx)
}
