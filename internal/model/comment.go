package model

import (
	"time"

	"github.com/google/uuid"
)

// Comment is a discussion entry on a blocker. A comment with a non-nil
// ParentID is a reply.
type Comment struct {
	ID        uuid.UUID  `json:"comment_id"`
	BlockerID uuid.UUID  `json:"blocker_id"`
	UserID    uuid.UUID  `json:"user_id"`
	Content   string     `json:"content"`
	ParentID  *uuid.UUID `json:"parent_comment_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
