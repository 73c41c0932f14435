package bus

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/devblocker/devblocker/internal/event"
)

// HandlerFunc applies one event to local state. It may be invoked more
// than once for the same logical event, including concurrently from two
// workers, and must converge to the same end state as a single
// invocation.
type HandlerFunc func(ctx context.Context, env event.Envelope) error

// Consumer binds a queue to a handler with a pool of workers.
type Consumer struct {
	Queue   string
	Workers int
	Handle  HandlerFunc
}

// Run consumes each configured queue until ctx is cancelled. Handler
// errors are logged and the message is considered consumed: no negative
// acknowledgement, no redelivery, no dead-letter queue. Run returns when
// ctx ends or a queue subscription fails.
func Run(ctx context.Context, ch Channel, logger *slog.Logger, consumers ...Consumer) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, c := range consumers {
		deliveries, err := ch.Consume(ctx, c.Queue)
		if err != nil {
			return err
		}

		workers := c.Workers
		if workers <= 0 {
			workers = 1
		}

		for range workers {
			g.Go(func() error {
				for env := range deliveries {
					if err := c.Handle(ctx, env); err != nil {
						logger.Error("consumer: handler failed, message dropped",
							"queue", c.Queue,
							"kind", string(env.Kind),
							"entity_ids", env.EntityIDs,
							"error", err)
					}
				}
				return nil
			})
		}
	}

	return g.Wait()
}
