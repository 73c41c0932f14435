package event

import "time"

// Payloads carry all IDs as strings, matching the wire schema.

// UserRegisteredPayload announces a new account. Consumed by the user
// service itself to bootstrap a profile.
type UserRegisteredPayload struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// UserUpdatedPayload announces a profile change. Nothing in-repo consumes
// it; it exists for external subscribers.
type UserUpdatedPayload struct {
	UserID string `json:"user_id"`
}

type BlockerCreatedPayload struct {
	BlockerID  string    `json:"blocker_id"`
	Title      string    `json:"title"`
	CreatedBy  string    `json:"created_by"`
	AssignedTo string    `json:"assigned_to,omitempty"`
	TeamCode   string    `json:"team_code,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type BlockerUpdatedPayload struct {
	BlockerID      string `json:"blocker_id"`
	BestSolutionID string `json:"best_solution_id,omitempty"`
	Status         string `json:"status"`
}

type BlockerResolvedPayload struct {
	BlockerID      string    `json:"blocker_id"`
	BestSolutionID string    `json:"best_solution_id,omitempty"`
	ResolvedBy     string    `json:"resolved_by,omitempty"`
	ResolvedAt     time.Time `json:"resolved_at"`
}

type CommentAddedPayload struct {
	CommentID       string    `json:"comment_id"`
	BlockerID       string    `json:"blocker_id"`
	UserID          string    `json:"user_id"`
	ParentCommentID string    `json:"parent_comment_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type SolutionAddedPayload struct {
	SolutionID string    `json:"solution_id"`
	BlockerID  string    `json:"blocker_id"`
	UserID     string    `json:"user_id"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

type SolutionUpvotedPayload struct {
	SolutionID string    `json:"solution_id"`
	BlockerID  string    `json:"blocker_id"`
	UserID     string    `json:"user_id"`
	Upvotes    int       `json:"upvotes"`
	UpvotedAt  time.Time `json:"upvoted_at"`
}

// SolutionAcceptedPayload announces acceptance. UserID is the solution
// author; AcceptedBy is the actor who accepted it.
type SolutionAcceptedPayload struct {
	SolutionID string    `json:"solution_id"`
	BlockerID  string    `json:"blocker_id"`
	UserID     string    `json:"user_id"`
	AcceptedBy string    `json:"accepted_by"`
	AcceptedAt time.Time `json:"accepted_at"`
}
