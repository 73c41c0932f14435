// Package bus provides the at-least-once message channel between services.
//
// Delivery guarantees are deliberately weak: messages may arrive more than
// once, in any order, and concurrently to multiple workers. Consumers are
// responsible for idempotent application. A handler error does not requeue
// the message; it is logged and the message is considered consumed. There
// is no dead-letter queue or replay path.
package bus

import (
	"context"

	"github.com/devblocker/devblocker/internal/event"
)

// Channel is the pub/sub transport. Publish routes an envelope to every
// queue bound to its kind in the topology; Consume returns a stream of
// envelopes for one queue. The returned channel closes when ctx ends.
type Channel interface {
	Publish(ctx context.Context, env event.Envelope) error
	Consume(ctx context.Context, queue string) (<-chan event.Envelope, error)
}
