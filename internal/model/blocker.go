// Package model defines the domain types shared by all devblocker services.
package model

import (
	"time"

	"github.com/google/uuid"
)

// BlockerStatus is the lifecycle state of a blocker.
// Transitions are one-way: OPEN may move to RESOLVED or CLOSED, and
// neither RESOLVED nor CLOSED ever transitions back.
type BlockerStatus string

const (
	BlockerOpen     BlockerStatus = "OPEN"
	BlockerResolved BlockerStatus = "RESOLVED"
	BlockerClosed   BlockerStatus = "CLOSED"
)

// Terminal reports whether a blocker in this status accepts no further
// status transitions.
func (s BlockerStatus) Terminal() bool {
	return s == BlockerResolved || s == BlockerClosed
}

// Blocker is an issue raised by a user that blocks their work.
type Blocker struct {
	ID             uuid.UUID     `json:"blocker_id"`
	Title          string        `json:"title"`
	Description    string        `json:"description"`
	Status         BlockerStatus `json:"status"`
	Severity       string        `json:"severity,omitempty"`
	CreatedBy      uuid.UUID     `json:"created_by"`
	AssignedTo     *uuid.UUID    `json:"assigned_to,omitempty"`
	TeamCode       string        `json:"team_code,omitempty"`
	BestSolutionID *uuid.UUID    `json:"best_solution_id,omitempty"`
	Tags           []string      `json:"tags,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
	ResolvedAt     *time.Time    `json:"resolved_at,omitempty"`
}
