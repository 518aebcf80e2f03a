// Package queue is the transport between job creation and job processing:
// named logical queues carrying opaque payloads to registered consumers.
package queue

import "context"

// Handler consumes one delivered message. A non-nil error is logged by the
// transport; it is never redelivered by the in-process implementation.
type Handler func(ctx context.Context, payload []byte) error

// Queue decouples the synchronous upload path from the workers. Delivery
// semantics are the transport's concern; consumers must tolerate redelivery.
type Queue interface {
	// Enqueue publishes payload to the named queue.
	Enqueue(ctx context.Context, queue string, payload []byte) error
	// Subscribe registers the handler for the named queue and starts its
	// consumer pool. At most one handler per queue.
	Subscribe(queue string, h Handler)
}
