package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/devblocker/devblocker/internal/event"
	"github.com/devblocker/devblocker/internal/storage"
)

// PgChannel carries envelopes over Postgres LISTEN/NOTIFY. Each queue in
// the topology maps to one NOTIFY channel; Publish fans an envelope out to
// every queue bound to its kind, so independent consumers each receive
// their own copy.
//
// NOTIFY is fire-and-forget for disconnected listeners, which is within
// this system's contract: the consumer side compensates with idempotent
// application, and lost events are the accepted publish-failure gap.
type PgChannel struct {
	db     *storage.DB
	topo   event.Topology
	logger *slog.Logger

	mu   sync.RWMutex
	subs map[string][]chan event.Envelope
}

const pgSubscriberDepth = 64

// NewPgChannel creates a channel over db's dedicated notify connection.
// Call Start in a goroutine before consuming.
func NewPgChannel(db *storage.DB, topo event.Topology, logger *slog.Logger) *PgChannel {
	return &PgChannel{
		db:     db,
		topo:   topo,
		logger: logger,
		subs:   make(map[string][]chan event.Envelope),
	}
}

// Publish sends env to every queue bound to its kind.
func (c *PgChannel) Publish(ctx context.Context, env event.Envelope) error {
	route, err := c.topo.Route(env.Kind)
	if err != nil {
		return err
	}
	data, err := event.Marshal(env)
	if err != nil {
		return err
	}
	for _, queue := range route.Queues {
		if err := c.db.Notify(ctx, queue, string(data)); err != nil {
			return fmt.Errorf("bus: publish %s to %s: %w", env.Kind, queue, err)
		}
	}
	return nil
}

// Consume subscribes to queue. The LISTEN registrations all live in
// Start, which owns the dedicated connection, so Consume only attaches a
// subscriber and is safe to call while the receive loop is blocked in
// WaitForNotification. The returned channel closes when ctx ends.
func (c *PgChannel) Consume(ctx context.Context, queue string) (<-chan event.Envelope, error) {
	sub := make(chan event.Envelope, pgSubscriberDepth)
	c.mu.Lock()
	c.subs[queue] = append(c.subs[queue], sub)
	c.mu.Unlock()

	out := make(chan event.Envelope)
	go func() {
		defer close(out)
		defer c.unsubscribe(queue, sub)
		for {
			select {
			case env := <-sub:
				select {
				case out <- env:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// unsubscribe detaches sub so dispatch stops filling a buffer nobody
// drains.
func (c *PgChannel) unsubscribe(queue string, sub chan event.Envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	subs := c.subs[queue]
	for i, s := range subs {
		if s == sub {
			c.subs[queue] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// Start registers LISTEN for every queue in the topology, then runs the
// notification receive loop. The dedicated connection is only ever used
// from this goroutine; a LISTEN issued elsewhere would race with
// WaitForNotification on a connection that is not safe for concurrent
// use. It blocks, so call it in a goroutine. Returns when ctx is
// cancelled.
func (c *PgChannel) Start(ctx context.Context) {
	for _, queue := range c.topo.Queues() {
		if err := c.db.Listen(ctx, queue); err != nil {
			c.logger.Error("bus: listen failed, receive loop not started",
				"queue", queue, "error", err)
			return
		}
	}

	for {
		queue, payload, err := c.db.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("bus: notification error, retrying", "error", err)
			continue
		}

		env, err := event.Unmarshal([]byte(payload))
		if err != nil {
			// A malformed message is dropped, not requeued; there is no
			// dead-letter path.
			c.logger.Error("bus: drop undecodable message", "queue", queue, "error", err)
			continue
		}
		c.dispatch(queue, env)
	}
}

// dispatch sends an envelope to each subscriber of queue. A subscriber
// with a full buffer loses the message rather than blocking the receive
// loop; idempotent consumers tolerate the resulting gaps the same way
// they tolerate publish failures.
func (c *PgChannel) dispatch(queue string, env event.Envelope) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, sub := range c.subs[queue] {
		select {
		case sub <- env:
		default:
			c.logger.Warn("bus: subscriber buffer full, dropping",
				"queue", queue, "kind", string(env.Kind))
		}
	}
}
