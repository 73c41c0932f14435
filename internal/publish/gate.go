// Package publish gates event publication on transaction commit. Events
// staged during a transaction are sent to the message channel only after
// the commit succeeds; a rolled-back transaction publishes nothing.
package publish

import (
	"context"
	"log/slog"

	"github.com/devblocker/devblocker/internal/bus"
	"github.com/devblocker/devblocker/internal/event"
	"github.com/devblocker/devblocker/internal/storage"
)

// Gate publishes events after the surrounding transaction commits.
type Gate struct {
	ch     bus.Channel
	logger *slog.Logger
}

// NewGate returns a commit-gated publisher over ch.
func NewGate(ch bus.Channel, logger *slog.Logger) *Gate {
	return &Gate{ch: ch, logger: logger}
}

// Stage registers env for publication once the transaction in ctx commits.
// Outside a transaction the event publishes immediately.
//
// A publish failure after commit is logged with the full envelope and
// otherwise swallowed: the local state change already succeeded and must
// not be unwound, so the event is lost rather than the write. Downstream
// consumers are written to tolerate missing events.
func (g *Gate) Stage(ctx context.Context, env event.Envelope) {
	storage.OnCommit(ctx, func(ctx context.Context) {
		if err := g.ch.Publish(ctx, env); err != nil {
			g.logger.Error("publish: event lost after commit",
				"error", err,
				"event_type", string(env.Kind),
				"entity_ids", env.EntityIDs,
				"occurred_at", env.OccurredAt,
			)
		}
	})
}
