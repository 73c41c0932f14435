// Package notification provides the notification service: fan-out
// decision logic, the event listeners that drive it, and the read API
// over stored notifications.
package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/devblocker/devblocker/internal/bus"
	"github.com/devblocker/devblocker/internal/client"
	"github.com/devblocker/devblocker/internal/event"
	"github.com/devblocker/devblocker/internal/model"
	"github.com/devblocker/devblocker/internal/storage"
)

// Service encapsulates notification fan-out and storage.
type Service struct {
	db       *storage.DB
	users    *client.UserClient
	blockers *client.BlockerClient
	logger   *slog.Logger
}

// New creates a notification Service. users and blockers may be nil;
// fan-out paths that need them then degrade per their fail-open rules.
func New(db *storage.DB, users *client.UserClient, blockers *client.BlockerClient, logger *slog.Logger) *Service {
	return &Service{db: db, users: users, blockers: blockers, logger: logger}
}

// Consumers returns the queue bindings for the notification service.
func (s *Service) Consumers() []bus.Consumer {
	return []bus.Consumer{
		{Queue: event.NotifyBlockerCreatedQueue, Workers: 2, Handle: s.handleBlockerCreated},
		{Queue: event.NotifyCommentAddedQueue, Workers: 2, Handle: s.handleCommentAdded},
		{Queue: event.NotifySolutionAddedQueue, Workers: 2, Handle: s.handleSolutionAdded},
		{Queue: event.NotifySolutionAcceptedQueue, Workers: 2, Handle: s.handleSolutionAccepted},
	}
}

func (s *Service) handleBlockerCreated(ctx context.Context, env event.Envelope) error {
	p, ok := env.Body.(event.BlockerCreatedPayload)
	if !ok {
		return fmt.Errorf("notification: unexpected payload %T for %s", env.Body, env.Kind)
	}

	// Team roster lookup is fail-open: on error the team leg of the
	// fan-out is skipped, the rest still goes out.
	var roster []uuid.UUID
	if p.TeamCode != "" && s.users != nil {
		members, err := s.users.TeamMembersByCode(ctx, p.TeamCode)
		if err != nil {
			s.logger.Warn("team roster lookup failed, skipping team fan-out",
				"team_code", p.TeamCode, "error", err)
		} else {
			roster = members
		}
	}

	return s.store(ctx, DecideBlockerCreated(p, roster))
}

func (s *Service) handleCommentAdded(ctx context.Context, env event.Envelope) error {
	p, ok := env.Body.(event.CommentAddedPayload)
	if !ok {
		return fmt.Errorf("notification: unexpected payload %T for %s", env.Body, env.Kind)
	}
	blocker, ok := s.fetchBlocker(ctx, p.BlockerID)
	if !ok {
		return nil
	}
	return s.store(ctx, DecideCommentAdded(p, blocker))
}

func (s *Service) handleSolutionAdded(ctx context.Context, env event.Envelope) error {
	p, ok := env.Body.(event.SolutionAddedPayload)
	if !ok {
		return fmt.Errorf("notification: unexpected payload %T for %s", env.Body, env.Kind)
	}
	blocker, ok := s.fetchBlocker(ctx, p.BlockerID)
	if !ok {
		return nil
	}
	return s.store(ctx, DecideSolutionAdded(p, blocker))
}

func (s *Service) handleSolutionAccepted(ctx context.Context, env event.Envelope) error {
	p, ok := env.Body.(event.SolutionAcceptedPayload)
	if !ok {
		return fmt.Errorf("notification: unexpected payload %T for %s", env.Body, env.Kind)
	}
	return s.store(ctx, DecideSolutionAccepted(p))
}

// fetchBlocker retrieves creator/assignee context from the blocker
// service. Fail-open: if the blocker cannot be fetched the event is
// consumed without notifications.
func (s *Service) fetchBlocker(ctx context.Context, blockerID string) (BlockerContext, bool) {
	id, err := uuid.Parse(blockerID)
	if err != nil {
		s.logger.Warn("invalid blocker id in event", "blocker_id", blockerID)
		return BlockerContext{}, false
	}
	if s.blockers == nil {
		s.logger.Warn("blocker service not configured, skipping fan-out", "blocker_id", blockerID)
		return BlockerContext{}, false
	}

	b, err := s.blockers.Get(ctx, id)
	if err != nil {
		s.logger.Warn("blocker lookup failed, skipping fan-out",
			"blocker_id", blockerID, "error", err)
		return BlockerContext{}, false
	}

	ctxB := BlockerContext{Title: b.Title, AssignedTo: b.AssignedTo}
	createdBy := b.CreatedBy
	ctxB.CreatedBy = &createdBy
	return ctxB, true
}

// store persists the decided notifications. There is no uniqueness
// guard: a redelivered event produces duplicate notifications, which
// this design accepts.
func (s *Service) store(ctx context.Context, notifications []model.Notification) error {
	for _, n := range notifications {
		if err := s.db.CreateNotification(ctx, n); err != nil {
			return err
		}
		s.logger.Info("notification created",
			"user_id", n.UserID, "type", string(n.Type), "related_entity_id", n.RelatedEntityID)
	}
	return nil
}

// List returns a user's notifications, newest first.
func (s *Service) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]model.Notification, error) {
	return s.db.ListNotifications(ctx, userID, unreadOnly, limit, offset)
}

// MarkRead flips a notification to read. The transition is one-way.
func (s *Service) MarkRead(ctx context.Context, notificationID, userID uuid.UUID) error {
	return s.db.MarkNotificationRead(ctx, notificationID, userID)
}

// UnreadCount returns the number of unread notifications for a user.
func (s *Service) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.db.CountUnreadNotifications(ctx, userID)
}
