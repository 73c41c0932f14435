package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/devblocker/devblocker/internal/model"
)

// CreateNotification inserts a notification row. There is deliberately no
// uniqueness constraint: a redelivered event can produce a duplicate
// notification, which this design accepts.
func (db *DB) CreateNotification(ctx context.Context, n model.Notification) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO notifications (notification_id, user_id, type, title, message, related_entity_id, related_entity_type, read, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, $8)`,
		n.ID, n.UserID, string(n.Type), n.Title, n.Message,
		nullIfEmpty(n.RelatedEntityID), nullIfEmpty(n.RelatedEntityType), n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("storage: create notification: %w", err)
	}
	return nil
}

// ListNotifications returns a user's notifications newest first.
func (db *DB) ListNotifications(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.pool.Query(ctx,
		`SELECT notification_id, user_id, type, title, message,
		        COALESCE(related_entity_id, ''), COALESCE(related_entity_type, ''),
		        read, created_at
		 FROM notifications
		 WHERE user_id = $1 AND (NOT $2 OR NOT read)
		 ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		userID, unreadOnly, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("storage: list notifications: %w", err)
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		var (
			n   model.Notification
			typ string
		)
		if err := rows.Scan(&n.ID, &n.UserID, &typ, &n.Title, &n.Message,
			&n.RelatedEntityID, &n.RelatedEntityType, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan notification: %w", err)
		}
		n.Type = model.NotificationType(typ)
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkNotificationRead flips read to true. The transition is one-way; a
// second call is a no-op, and the row must belong to userID.
func (db *DB) MarkNotificationRead(ctx context.Context, notificationID, userID uuid.UUID) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE notifications SET read = TRUE
		 WHERE notification_id = $1 AND user_id = $2`,
		notificationID, userID)
	if err != nil {
		return fmt.Errorf("storage: mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either absent or owned by someone else; callers see the same error.
		if !db.notificationExists(ctx, notificationID, userID) {
			return ErrNotFound
		}
	}
	return nil
}

func (db *DB) notificationExists(ctx context.Context, notificationID, userID uuid.UUID) bool {
	var exists bool
	err := db.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM notifications WHERE notification_id = $1 AND user_id = $2)`,
		notificationID, userID,
	).Scan(&exists)
	return err == nil && exists
}

// CountUnreadNotifications returns the unread count for a user.
func (db *DB) CountUnreadNotifications(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := db.pool.QueryRow(ctx,
		`SELECT count(*) FROM notifications WHERE user_id = $1 AND NOT read`, userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("storage: count unread: %w", err)
	}
	return n, nil
}

// CountNotificationsByTypeAndEntity is a test/diagnostic helper: how many
// notifications of a type reference a related entity for a user.
func (db *DB) CountNotificationsByTypeAndEntity(ctx context.Context, userID uuid.UUID, typ model.NotificationType, relatedEntityID string) (int, error) {
	var n int
	err := db.pool.QueryRow(ctx,
		`SELECT count(*) FROM notifications
		 WHERE user_id = $1 AND type = $2 AND related_entity_id = $3`,
		userID, string(typ), relatedEntityID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("storage: count notifications: %w", err)
	}
	return n, nil
}
