package model

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType categorizes a notification.
type NotificationType string

const (
	NotifyBlockerCreated     NotificationType = "BLOCKER_CREATED"
	NotifyTeamBlockerCreated NotificationType = "TEAM_BLOCKER_CREATED"
	NotifyBlockerResolved    NotificationType = "BLOCKER_RESOLVED"
	NotifyCommentAdded       NotificationType = "COMMENT_ADDED"
	NotifySolutionAdded      NotificationType = "SOLUTION_ADDED"
	NotifySolutionUpvoted    NotificationType = "SOLUTION_UPVOTED"
	NotifySolutionAccepted   NotificationType = "SOLUTION_ACCEPTED"
)

// Notification is a message shown to a single user. All fields except Read
// are immutable after creation; Read only transitions false to true.
// Notifications are never deleted by the core.
type Notification struct {
	ID                uuid.UUID        `json:"notification_id"`
	UserID            uuid.UUID        `json:"user_id"`
	Type              NotificationType `json:"type"`
	Title             string           `json:"title"`
	Message           string           `json:"message"`
	RelatedEntityID   string           `json:"related_entity_id,omitempty"`
	RelatedEntityType string           `json:"related_entity_type,omitempty"`
	Read              bool             `json:"read"`
	CreatedAt         time.Time        `json:"created_at"`
}
