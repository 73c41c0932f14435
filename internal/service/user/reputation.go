package user

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/devblocker/devblocker/internal/model"
)

// IncrementReputation appends a reputation transaction and updates the
// running total in one local transaction, then synchronously checks
// badge thresholds against the new total. The badge check runs in the
// request path, not via the event pipeline, so it is never exposed to
// redelivery duplication; awarding itself is idempotent via the
// (user_id, badge_id) constraint.
func (s *Service) IncrementReputation(ctx context.Context, userID uuid.UUID, points int, reason, source string) (model.Reputation, error) {
	if reason == "" {
		reason = "Reputation incremented"
	}
	if source == "" {
		source = "API"
	}

	total, err := s.db.ApplyReputation(ctx, model.ReputationTransaction{
		ID:        uuid.New(),
		UserID:    userID,
		Points:    points,
		Reason:    reason,
		Source:    source,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return model.Reputation{}, err
	}

	s.logger.Info("reputation updated",
		"user_id", userID, "points", points, "total", total)

	if err := s.checkBadgeThresholds(ctx, userID, total); err != nil {
		// The reputation change already committed; a failed badge scan
		// is repaired by the next reputation change.
		s.logger.Error("badge threshold check failed", "user_id", userID, "error", err)
	}

	return s.db.GetReputation(ctx, userID)
}

// Reputation returns a user's running total.
func (s *Service) Reputation(ctx context.Context, userID uuid.UUID) (model.Reputation, error) {
	return s.db.GetReputation(ctx, userID)
}

// ReputationHistory returns a user's transaction ledger, newest first.
func (s *Service) ReputationHistory(ctx context.Context, userID uuid.UUID) ([]model.ReputationTransaction, error) {
	return s.db.ListReputationTransactions(ctx, userID)
}

// checkBadgeThresholds awards every threshold badge the new total now
// meets. Already-owned badges are skipped by the unique constraint, so
// a concurrent check cannot double-award.
func (s *Service) checkBadgeThresholds(ctx context.Context, userID uuid.UUID, total int) error {
	badges, err := s.db.ListBadges(ctx)
	if err != nil {
		return err
	}
	for _, b := range badges {
		if b.ReputationThreshold == nil || total < *b.ReputationThreshold {
			continue
		}
		awarded, err := s.db.AwardBadge(ctx, userID, b.ID)
		if err != nil {
			return fmt.Errorf("user: award badge %s: %w", b.Name, err)
		}
		if awarded {
			s.logger.Info("badge awarded", "user_id", userID, "badge", b.Name)
		}
	}
	return nil
}

// CreateBadge defines a new badge. A nil threshold makes it manual-only.
func (s *Service) CreateBadge(ctx context.Context, name, description string, threshold *int) (model.Badge, error) {
	if name == "" {
		return model.Badge{}, fmt.Errorf("user: badge name is required")
	}
	b := model.Badge{
		ID:                  uuid.New(),
		Name:                name,
		Description:         description,
		ReputationThreshold: threshold,
		CreatedAt:           time.Now().UTC(),
	}
	if err := s.db.CreateBadge(ctx, b); err != nil {
		return model.Badge{}, err
	}
	return b, nil
}

// Badges returns every badge definition.
func (s *Service) Badges(ctx context.Context) ([]model.Badge, error) {
	return s.db.ListBadges(ctx)
}

// UserBadges returns the badges a user holds.
func (s *Service) UserBadges(ctx context.Context, userID uuid.UUID) ([]model.Badge, error) {
	return s.db.ListUserBadges(ctx, userID)
}
