package model

import (
	"time"

	"github.com/google/uuid"
)

// Solution is a proposed fix for a blocker.
//
// Upvotes is a materialized counter guarded by the solution_upvotes ledger:
// it must equal the number of ledger rows for the solution at all times.
// At most one solution per blocker may have Accepted=true.
type Solution struct {
	ID        uuid.UUID `json:"solution_id"`
	BlockerID uuid.UUID `json:"blocker_id"`
	UserID    uuid.UUID `json:"user_id"`
	Content   string    `json:"content"`
	Upvotes   int       `json:"upvotes"`
	Accepted  bool      `json:"accepted"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SolutionUpvote is one row of the upvote idempotency ledger.
// Rows are inserted once per (solution_id, user_id) and never mutated.
type SolutionUpvote struct {
	SolutionID uuid.UUID `json:"solution_id"`
	UserID     uuid.UUID `json:"user_id"`
	CreatedAt  time.Time `json:"created_at"`
}
