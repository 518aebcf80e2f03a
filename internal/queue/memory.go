package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// MemoryQueue is a channel-backed in-process transport: one buffered channel
// and one worker pool per logical queue. Messages accepted before shutdown
// are drained; messages are delivered at most once (a crash loses them),
// which is the weaker end of the at-least-once contract consumers already
// have to tolerate.
type MemoryQueue struct {
	logger  *slog.Logger
	workers int
	buffer  int
	timeout time.Duration

	mu     sync.Mutex
	chans  map[string]chan []byte
	closed bool
	done   chan struct{}

	sendWG sync.WaitGroup
	wg     sync.WaitGroup
}

type Option func(*MemoryQueue)

func WithWorkers(n int) Option {
	return func(q *MemoryQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithBufferSize(n int) Option {
	return func(q *MemoryQueue) {
		if n > 0 {
			q.buffer = n
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *MemoryQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewMemoryQueue(logger *slog.Logger, opts ...Option) *MemoryQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &MemoryQueue{
		logger:  logger,
		workers: 4,
		buffer:  256,
		timeout: 3 * time.Minute,
		chans:   make(map[string]chan []byte),
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

func (q *MemoryQueue) channel(name string) chan []byte {
	q.mu.Lock()
	defer q.mu.Unlock()
	ch, ok := q.chans[name]
	if !ok {
		ch = make(chan []byte, q.buffer)
		q.chans[name] = ch
	}
	return ch
}

// Enqueue publishes payload to the named queue, blocking if the buffer is
// full (backpressure on the upload path). The send happens outside the lock
// so a producer waiting on a full buffer never stalls other queues or
// Shutdown; sendWG keeps Shutdown from closing a channel mid-publish, and
// the done channel unblocks stalled producers when Shutdown starts.
func (q *MemoryQueue) Enqueue(_ context.Context, name string, payload []byte) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return fmt.Errorf("queue %q: shutting down", name)
	}
	ch, ok := q.chans[name]
	if !ok {
		ch = make(chan []byte, q.buffer)
		q.chans[name] = ch
	}
	q.sendWG.Add(1)
	q.mu.Unlock()
	defer q.sendWG.Done()

	select {
	case ch <- payload:
	default:
		q.logger.Warn("queue.enqueue.backpressure", "queue", name)
		select {
		case ch <- payload:
		case <-q.done:
			return fmt.Errorf("queue %q: shutting down", name)
		}
	}
	q.logger.Debug("queue.enqueue.ok", "queue", name, "bytes", len(payload))
	return nil
}

// Subscribe starts the consumer pool for the named queue. Handler errors are
// logged and the message is considered handled; there is no redelivery here.
func (q *MemoryQueue) Subscribe(name string, h Handler) {
	ch := q.channel(name)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go func(workerID int) {
			defer q.wg.Done()
			q.logger.Info("queue.worker.started", "queue", name, "worker_id", workerID)

			for payload := range ch {
				ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
				err := h(ctx, payload)
				cancel()

				if err != nil {
					q.logger.Error("queue.message.failed",
						"queue", name, "worker_id", workerID, "error", err)
				} else {
					q.logger.Debug("queue.message.ok",
						"queue", name, "worker_id", workerID)
				}
			}

			q.logger.Info("queue.worker.stopped", "queue", name, "worker_id", workerID)
		}(i + 1)
	}
}

// Shutdown stops accepting messages, closes all queues and waits for the
// consumer pools to drain, or until ctx expires.
func (q *MemoryQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.done)
	q.mu.Unlock()

	// In-flight sends either complete or bail out on done; only after that
	// is it safe to close the channels.
	q.sendWG.Wait()

	q.mu.Lock()
	for _, ch := range q.chans {
		close(ch)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.interrupted")
	case <-done:
		q.logger.Info("queue.shutdown.drained")
	}
}
