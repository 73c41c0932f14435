// Package comment provides the comment service: threaded comments on
// blockers, published as comment.added events.
package comment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/devblocker/devblocker/internal/client"
	"github.com/devblocker/devblocker/internal/event"
	"github.com/devblocker/devblocker/internal/model"
	"github.com/devblocker/devblocker/internal/publish"
	"github.com/devblocker/devblocker/internal/storage"
)

// ErrBlockerNotFound is returned when the target blocker cannot be
// confirmed to exist.
var ErrBlockerNotFound = fmt.Errorf("comment: blocker not found")

// ErrParentMismatch is returned when a reply's parent comment belongs to
// a different blocker.
var ErrParentMismatch = fmt.Errorf("comment: parent belongs to a different blocker")

// Service encapsulates comment business logic.
type Service struct {
	db       *storage.DB
	gate     *publish.Gate
	blockers *client.BlockerClient
	logger   *slog.Logger
}

// New creates a comment Service.
func New(db *storage.DB, gate *publish.Gate, blockers *client.BlockerClient, logger *slog.Logger) *Service {
	return &Service{db: db, gate: gate, blockers: blockers, logger: logger}
}

// CreateInput contains the data needed to post a comment. ParentID makes
// the comment a reply.
type CreateInput struct {
	BlockerID uuid.UUID
	UserID    uuid.UUID
	ParentID  *uuid.UUID
	Content   string
}

// Create posts a comment, publishing comment.added after the insert
// commits. The blocker existence check is fail-closed. A reply's parent
// must exist and belong to the same blocker.
func (s *Service) Create(ctx context.Context, input CreateInput) (model.Comment, error) {
	if input.Content == "" {
		return model.Comment{}, fmt.Errorf("comment: content is required")
	}
	if s.blockers == nil {
		return model.Comment{}, fmt.Errorf("comment: blocker service not configured")
	}

	exists, err := s.blockers.Exists(ctx, input.BlockerID)
	if err != nil {
		return model.Comment{}, fmt.Errorf("comment: verify blocker: %w", err)
	}
	if !exists {
		return model.Comment{}, fmt.Errorf("%w: %s", ErrBlockerNotFound, input.BlockerID)
	}

	if input.ParentID != nil {
		parent, err := s.db.GetComment(ctx, *input.ParentID)
		if err != nil {
			return model.Comment{}, fmt.Errorf("comment: parent: %w", err)
		}
		if parent.BlockerID != input.BlockerID {
			return model.Comment{}, ErrParentMismatch
		}
	}

	now := time.Now().UTC()
	c := model.Comment{
		ID:        uuid.New(),
		BlockerID: input.BlockerID,
		UserID:    input.UserID,
		ParentID:  input.ParentID,
		Content:   input.Content,
		CreatedAt: now,
	}

	err = s.db.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.db.CreateComment(ctx, tx, c); err != nil {
			return err
		}
		payload := event.CommentAddedPayload{
			CommentID: c.ID.String(),
			BlockerID: c.BlockerID.String(),
			UserID:    c.UserID.String(),
			CreatedAt: c.CreatedAt,
		}
		if c.ParentID != nil {
			payload.ParentCommentID = c.ParentID.String()
		}
		s.gate.Stage(ctx, event.NewCommentAdded(payload))
		return nil
	})
	if err != nil {
		return model.Comment{}, err
	}

	s.logger.Info("comment created", "comment_id", c.ID, "blocker_id", c.BlockerID)
	return c, nil
}

// Get retrieves a comment by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (model.Comment, error) {
	return s.db.GetComment(ctx, id)
}

// ListByBlocker returns a blocker's comments, oldest first.
func (s *Service) ListByBlocker(ctx context.Context, blockerID uuid.UUID, limit, offset int) ([]model.Comment, error) {
	return s.db.ListCommentsByBlocker(ctx, blockerID, limit, offset)
}
