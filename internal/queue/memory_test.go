package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueue_DeliversToSubscriber(t *testing.T) {
	q := NewMemoryQueue(nil, WithWorkers(2))

	var mu sync.Mutex
	received := make(map[string]bool)
	done := make(chan struct{}, 3)

	q.Subscribe("test-queue", func(_ context.Context, payload []byte) error {
		mu.Lock()
		received[string(payload)] = true
		mu.Unlock()
		done <- struct{}{}
		return nil
	})

	for _, msg := range []string{"one", "two", "three"} {
		require.NoError(t, q.Enqueue(context.Background(), "test-queue", []byte(msg)))
	}

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for delivery")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, received["one"])
	assert.True(t, received["two"])
	assert.True(t, received["three"])
}

func TestMemoryQueue_QueuesAreIndependent(t *testing.T) {
	q := NewMemoryQueue(nil, WithWorkers(1))

	gotA := make(chan []byte, 1)
	gotB := make(chan []byte, 1)
	q.Subscribe("queue-a", func(_ context.Context, p []byte) error { gotA <- p; return nil })
	q.Subscribe("queue-b", func(_ context.Context, p []byte) error { gotB <- p; return nil })

	require.NoError(t, q.Enqueue(context.Background(), "queue-a", []byte("for-a")))
	require.NoError(t, q.Enqueue(context.Background(), "queue-b", []byte("for-b")))

	select {
	case p := <-gotA:
		assert.Equal(t, "for-a", string(p))
	case <-time.After(2 * time.Second):
		t.Fatal("queue-a delivery timed out")
	}
	select {
	case p := <-gotB:
		assert.Equal(t, "for-b", string(p))
	case <-time.After(2 * time.Second):
		t.Fatal("queue-b delivery timed out")
	}
}

func TestMemoryQueue_HandlerErrorDoesNotStopWorkers(t *testing.T) {
	q := NewMemoryQueue(nil, WithWorkers(1))

	var calls atomic.Int32
	done := make(chan struct{}, 2)
	q.Subscribe("flaky", func(_ context.Context, _ []byte) error {
		n := calls.Add(1)
		done <- struct{}{}
		if n == 1 {
			return errors.New("first message fails")
		}
		return nil
	})

	require.NoError(t, q.Enqueue(context.Background(), "flaky", []byte("a")))
	require.NoError(t, q.Enqueue(context.Background(), "flaky", []byte("b")))

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("worker stopped after handler error")
		}
	}
	assert.Equal(t, int32(2), calls.Load())
}

func TestMemoryQueue_ShutdownDrainsPending(t *testing.T) {
	q := NewMemoryQueue(nil, WithWorkers(1))

	var processed atomic.Int32
	q.Subscribe("drain", func(_ context.Context, _ []byte) error {
		time.Sleep(10 * time.Millisecond)
		processed.Add(1)
		return nil
	})

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(context.Background(), "drain", []byte{byte(i)}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q.Shutdown(ctx)

	assert.Equal(t, int32(5), processed.Load())
}

func TestMemoryQueue_EnqueueAfterShutdownFails(t *testing.T) {
	q := NewMemoryQueue(nil)
	q.Subscribe("closed", func(_ context.Context, _ []byte) error { return nil })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	q.Shutdown(ctx)

	err := q.Enqueue(context.Background(), "closed", []byte("late"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shutting down")
}

// A producer stalled on a full buffer must not hold the queue lock: other
// queues keep accepting messages and Shutdown returns promptly, failing the
// stalled send instead of waiting for a consumer that will never come.
func TestMemoryQueue_BlockedEnqueueDoesNotStallOthersOrShutdown(t *testing.T) {
	q := NewMemoryQueue(nil, WithBufferSize(1))

	// No subscriber on "full": the first message fills the buffer, the
	// second blocks in the backpressure branch.
	require.NoError(t, q.Enqueue(context.Background(), "full", []byte("fits")))

	blockedErr := make(chan error, 1)
	go func() {
		blockedErr <- q.Enqueue(context.Background(), "full", []byte("stuck"))
	}()

	// Give the goroutine time to reach the blocking send.
	time.Sleep(50 * time.Millisecond)

	otherOK := make(chan error, 1)
	go func() {
		otherOK <- q.Enqueue(context.Background(), "other", []byte("independent"))
	}()
	select {
	case err := <-otherOK:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("enqueue on an unrelated queue stalled behind a full buffer")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	start := time.Now()
	q.Shutdown(ctx)
	assert.Less(t, time.Since(start), time.Second, "shutdown must not wait on a stalled producer")

	select {
	case err := <-blockedErr:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "shutting down")
	case <-time.After(time.Second):
		t.Fatal("stalled enqueue did not return after shutdown")
	}
}

func TestMemoryQueue_HandlerContextHasTimeout(t *testing.T) {
	q := NewMemoryQueue(nil, WithWorkers(1), WithProcessTimeout(50*time.Millisecond))

	deadlineSet := make(chan bool, 1)
	q.Subscribe("timed", func(ctx context.Context, _ []byte) error {
		_, ok := ctx.Deadline()
		deadlineSet <- ok
		return nil
	})

	require.NoError(t, q.Enqueue(context.Background(), "timed", []byte("x")))

	select {
	case ok := <-deadlineSet:
		assert.True(t, ok, "handler context should carry the process timeout")
	case <-time.After(2 * time.Second):
		t.Fatal("delivery timed out")
	}
}
