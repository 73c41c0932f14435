package model

import (
	"time"

	"github.com/google/uuid"
)

// Account is an authenticated principal managed by the auth service.
type Account struct {
	ID           uuid.UUID `json:"user_id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Profile is the user-service projection of an account, bootstrapped by
// the user.registered listener.
type Profile struct {
	UserID      uuid.UUID `json:"user_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name,omitempty"`
	Bio         string    `json:"bio,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Team groups users under a shared join code.
type Team struct {
	ID        uuid.UUID `json:"team_id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	CreatedBy uuid.UUID `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// Reputation is the materialized running total of a user's reputation
// transactions. Points must always equal the sum of the user's
// ReputationTransaction rows.
type Reputation struct {
	UserID    uuid.UUID `json:"user_id"`
	Points    int       `json:"points"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ReputationTransaction is one append-only entry in the reputation ledger.
type ReputationTransaction struct {
	ID        uuid.UUID `json:"transaction_id"`
	UserID    uuid.UUID `json:"user_id"`
	Points    int       `json:"points"`
	Reason    string    `json:"reason"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// Badge is an award definition. A nil ReputationThreshold means the badge
// is only awarded manually.
type Badge struct {
	ID                  uuid.UUID `json:"badge_id"`
	Name                string    `json:"name"`
	Description         string    `json:"description,omitempty"`
	ReputationThreshold *int      `json:"reputation_threshold,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// UserBadge records that a user holds a badge. Awarding is idempotent via
// the (user_id, badge_id) unique constraint.
type UserBadge struct {
	UserID   uuid.UUID `json:"user_id"`
	BadgeID  uuid.UUID `json:"badge_id"`
	EarnedAt time.Time `json:"earned_at"`
}
