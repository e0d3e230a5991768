package async

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func startPool(t *testing.T, workers, queue int) *Pool {
	t.Helper()
	p := NewPool("test-executor", workers, queue, zaptest.NewLogger(t))
	p.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = p.Shutdown(ctx)
	})
	return p
}

func TestSubmitResolves(t *testing.T) {
	p := startPool(t, 2, 4)
	require.Equal(t, "test-executor", p.Name())

	f, err := Submit(context.Background(), p, func(ctx context.Context) (string, error) {
		return WorkerName(ctx), nil
	})
	require.NoError(t, err)

	name, err := f.Await(context.Background())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(name, p.Name()+"-"), name)
	assert.Equal(t, "", WorkerName(context.Background()))
}

func TestSubmitPropagatesError(t *testing.T) {
	p := startPool(t, 1, 1)
	boom := errors.New("boom")

	f, err := Submit(context.Background(), p, func(context.Context) (int, error) { return 0, boom })
	require.NoError(t, err)
	_, err = f.Await(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestSubmitRecoversPanic(t *testing.T) {
	p := startPool(t, 1, 1)

	f, err := Submit(context.Background(), p, func(context.Context) (int, error) { panic("kaboom") })
	require.NoError(t, err)
	_, err = f.Await(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")

	// the worker survived
	f, err = Submit(context.Background(), p, func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	v, err := f.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestSubmitDoesNotBlock(t *testing.T) {
	p := startPool(t, 1, 4)
	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	f, err := Submit(context.Background(), p, func(context.Context) (int, error) {
		<-release
		return 1, nil
	})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	select {
	case <-f.Done():
		t.Fatal("future resolved before the task was released")
	default:
	}
}

func TestQueueFullRejects(t *testing.T) {
	p := startPool(t, 1, 1)
	release := make(chan struct{})
	running := make(chan struct{})

	_, err := Submit(context.Background(), p, func(context.Context) (int, error) {
		close(running)
		<-release
		return 0, nil
	})
	require.NoError(t, err)
	<-running

	// one slot in the queue
	_, err = Submit(context.Background(), p, func(context.Context) (int, error) { return 0, nil })
	require.NoError(t, err)

	_, err = Submit(context.Background(), p, func(context.Context) (int, error) { return 0, nil })
	assert.ErrorIs(t, err, ErrQueueFull)
	close(release)
}

func TestCancelBeforeStart(t *testing.T) {
	p := startPool(t, 1, 2)
	release := make(chan struct{})
	running := make(chan struct{})

	blocker, err := Submit(context.Background(), p, func(context.Context) (int, error) {
		close(running)
		<-release
		return 1, nil
	})
	require.NoError(t, err)
	<-running

	var ran atomic.Bool
	queued, err := Submit(context.Background(), p, func(context.Context) (int, error) {
		ran.Store(true)
		return 2, nil
	})
	require.NoError(t, err)

	assert.True(t, queued.Cancel())
	_, err = queued.Await(context.Background())
	assert.ErrorIs(t, err, context.Canceled)

	// cancelling a running task has no effect
	assert.False(t, blocker.Cancel())
	close(release)
	v, err := blocker.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	// drain: the cancelled task is skipped by the worker
	tail, err := Submit(context.Background(), p, func(context.Context) (int, error) { return 3, nil })
	require.NoError(t, err)
	_, err = tail.Await(context.Background())
	require.NoError(t, err)
	assert.False(t, ran.Load())
}

func TestSubmitContextCancelledBeforeStart(t *testing.T) {
	p := startPool(t, 1, 2)
	release := make(chan struct{})
	running := make(chan struct{})
	_, err := Submit(context.Background(), p, func(context.Context) (int, error) {
		close(running)
		<-release
		return 0, nil
	})
	require.NoError(t, err)
	<-running

	ctx, cancel := context.WithCancel(context.Background())
	f, err := Submit(ctx, p, func(context.Context) (int, error) { return 1, nil })
	require.NoError(t, err)
	cancel()

	_, err = f.Await(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
	close(release)

	_, err = Submit(ctx, p, func(context.Context) (int, error) { return 1, nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestShutdownDrainsAndRejects(t *testing.T) {
	p := NewPool("drain", 1, 8, zaptest.NewLogger(t))
	p.Start()

	var done atomic.Int32
	futures := make([]*Future[int], 0, 5)
	for i := 0; i < 5; i++ {
		f, err := Submit(context.Background(), p, func(context.Context) (int, error) {
			time.Sleep(5 * time.Millisecond)
			done.Add(1)
			return 0, nil
		})
		require.NoError(t, err)
		futures = append(futures, f)
	}

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Equal(t, int32(5), done.Load())
	for _, f := range futures {
		_, err := f.Await(context.Background())
		require.NoError(t, err)
	}

	_, err := Submit(context.Background(), p, func(context.Context) (int, error) { return 0, nil })
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestShutdownWithoutStartFailsQueued(t *testing.T) {
	p := NewPool("idle", 1, 2, zaptest.NewLogger(t))
	f, err := Submit(context.Background(), p, func(context.Context) (int, error) { return 1, nil })
	require.NoError(t, err)

	require.NoError(t, p.Shutdown(context.Background()))
	_, err = f.Await(context.Background())
	assert.ErrorIs(t, err, ErrPoolClosed)
}
