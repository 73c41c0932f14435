package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/devblocker/devblocker/internal/model"
)

// CreateComment inserts a new comment inside tx.
func (db *DB) CreateComment(ctx context.Context, tx pgx.Tx, c model.Comment) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO comments (comment_id, blocker_id, user_id, content, parent_comment_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.BlockerID, c.UserID, c.Content, c.ParentID, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("storage: create comment: %w", err)
	}
	return nil
}

// GetComment retrieves a comment by ID.
func (db *DB) GetComment(ctx context.Context, id uuid.UUID) (model.Comment, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT comment_id, blocker_id, user_id, content, parent_comment_id, created_at
		 FROM comments WHERE comment_id = $1`, id)
	return scanComment(row)
}

// ListCommentsByBlocker returns a blocker's comments oldest first.
func (db *DB) ListCommentsByBlocker(ctx context.Context, blockerID uuid.UUID, limit, offset int) ([]model.Comment, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.pool.Query(ctx,
		`SELECT comment_id, blocker_id, user_id, content, parent_comment_id, created_at
		 FROM comments WHERE blocker_id = $1
		 ORDER BY created_at ASC LIMIT $2 OFFSET $3`,
		blockerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("storage: list comments: %w", err)
	}
	defer rows.Close()

	var out []model.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanComment(row pgx.Row) (model.Comment, error) {
	var c model.Comment
	err := row.Scan(&c.ID, &c.BlockerID, &c.UserID, &c.Content, &c.ParentID, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Comment{}, ErrNotFound
		}
		return model.Comment{}, fmt.Errorf("storage: scan comment: %w", err)
	}
	return c, nil
}
