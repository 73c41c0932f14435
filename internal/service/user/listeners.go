package user

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/devblocker/devblocker/internal/bus"
	"github.com/devblocker/devblocker/internal/event"
)

// Consumers returns the queue bindings for the user service.
func (s *Service) Consumers() []bus.Consumer {
	return []bus.Consumer{
		{Queue: event.UserRegisteredQueue, Workers: 1, Handle: s.handleUserRegistered},
	}
}

// handleUserRegistered bootstraps a profile for a new account. The
// insert is ON CONFLICT DO NOTHING, so a redelivered event is a no-op.
func (s *Service) handleUserRegistered(ctx context.Context, env event.Envelope) error {
	p, ok := env.Body.(event.UserRegisteredPayload)
	if !ok {
		return fmt.Errorf("user: unexpected payload %T for %s", env.Body, env.Kind)
	}
	userID, err := uuid.Parse(p.UserID)
	if err != nil {
		return fmt.Errorf("user: parse user id: %w", err)
	}

	created, err := s.db.CreateProfile(ctx, userID, p.Email)
	if err != nil {
		return err
	}
	if created {
		s.logger.Info("profile bootstrapped", "user_id", userID)
	} else {
		s.logger.Debug("profile already exists", "user_id", userID)
	}
	return nil
}
