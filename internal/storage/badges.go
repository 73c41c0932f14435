package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/devblocker/devblocker/internal/model"
)

// CreateBadge inserts a badge definition. Badge names are unique.
func (db *DB) CreateBadge(ctx context.Context, b model.Badge) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO badges (badge_id, name, description, reputation_threshold, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		b.ID, b.Name, b.Description, b.ReputationThreshold, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("storage: create badge: %w", err)
	}
	return nil
}

// ListBadges returns every badge definition.
func (db *DB) ListBadges(ctx context.Context) ([]model.Badge, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT badge_id, name, COALESCE(description, ''), reputation_threshold, created_at
		 FROM badges ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("storage: list badges: %w", err)
	}
	defer rows.Close()

	var badges []model.Badge
	for rows.Next() {
		var b model.Badge
		if err := rows.Scan(&b.ID, &b.Name, &b.Description, &b.ReputationThreshold, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan badge: %w", err)
		}
		badges = append(badges, b)
	}
	return badges, rows.Err()
}

// AwardBadge grants a badge to a user. Returns true when the badge was
// newly awarded; a repeat award is a no-op.
func (db *DB) AwardBadge(ctx context.Context, userID, badgeID uuid.UUID) (bool, error) {
	tag, err := db.pool.Exec(ctx,
		`INSERT INTO user_badges (user_id, badge_id) VALUES ($1, $2)
		 ON CONFLICT (user_id, badge_id) DO NOTHING`, userID, badgeID)
	if err != nil {
		return false, fmt.Errorf("storage: award badge: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListUserBadges returns the badges a user holds, oldest first.
func (db *DB) ListUserBadges(ctx context.Context, userID uuid.UUID) ([]model.Badge, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT b.badge_id, b.name, COALESCE(b.description, ''), b.reputation_threshold, b.created_at
		 FROM user_badges ub JOIN badges b ON b.badge_id = ub.badge_id
		 WHERE ub.user_id = $1 ORDER BY ub.earned_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("storage: list user badges: %w", err)
	}
	defer rows.Close()

	var badges []model.Badge
	for rows.Next() {
		var b model.Badge
		if err := rows.Scan(&b.ID, &b.Name, &b.Description, &b.ReputationThreshold, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan user badge: %w", err)
		}
		badges = append(badges, b)
	}
	return badges, rows.Err()
}
