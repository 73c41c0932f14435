package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/devblocker/devblocker/internal/model"
)

// CreateAccount inserts a new auth account inside tx. Returns
// ErrDuplicateEmail when the email is taken.
func (db *DB) CreateAccount(ctx context.Context, tx pgx.Tx, a model.Account) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO accounts (user_id, email, password_hash, created_at)
		 VALUES ($1, $2, $3, $4)`,
		a.ID, a.Email, a.PasswordHash, a.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "accounts_email_key") {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("storage: create account: %w", err)
	}
	return nil
}

// GetAccountByEmail retrieves an account for login.
func (db *DB) GetAccountByEmail(ctx context.Context, email string) (model.Account, error) {
	var a model.Account
	err := db.pool.QueryRow(ctx,
		`SELECT user_id, email, password_hash, created_at
		 FROM accounts WHERE email = $1`, email,
	).Scan(&a.ID, &a.Email, &a.PasswordHash, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Account{}, ErrNotFound
		}
		return model.Account{}, fmt.Errorf("storage: get account: %w", err)
	}
	return a, nil
}

// CreateProfile bootstraps a profile and its zero-point reputation row.
// Both inserts are ON CONFLICT DO NOTHING so the user.registered listener
// stays idempotent under redelivery. Returns true when the profile row
// was created by this call.
func (db *DB) CreateProfile(ctx context.Context, userID uuid.UUID, email string) (bool, error) {
	var created bool
	err := db.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`INSERT INTO profiles (user_id, email) VALUES ($1, $2)
			 ON CONFLICT (user_id) DO NOTHING`, userID, email)
		if err != nil {
			return fmt.Errorf("storage: create profile: %w", err)
		}
		created = tag.RowsAffected() == 1

		if _, err := tx.Exec(ctx,
			`INSERT INTO reputation (user_id, points) VALUES ($1, 0)
			 ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
			return fmt.Errorf("storage: create reputation row: %w", err)
		}
		return nil
	})
	return created, err
}

// GetProfile retrieves a profile by user ID.
func (db *DB) GetProfile(ctx context.Context, userID uuid.UUID) (model.Profile, error) {
	var p model.Profile
	err := db.pool.QueryRow(ctx,
		`SELECT user_id, email, COALESCE(display_name, ''), COALESCE(bio, ''), created_at, updated_at
		 FROM profiles WHERE user_id = $1`, userID,
	).Scan(&p.UserID, &p.Email, &p.DisplayName, &p.Bio, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Profile{}, ErrNotFound
		}
		return model.Profile{}, fmt.Errorf("storage: get profile: %w", err)
	}
	return p, nil
}

// UpdateProfile sets the mutable profile fields.
func (db *DB) UpdateProfile(ctx context.Context, userID uuid.UUID, displayName, bio string) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE profiles SET display_name = $2, bio = $3, updated_at = now()
		 WHERE user_id = $1`, userID, displayName, bio)
	if err != nil {
		return fmt.Errorf("storage: update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateTeam inserts a team and enrolls its creator as the first member.
func (db *DB) CreateTeam(ctx context.Context, t model.Team) error {
	return db.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO teams (team_id, name, code, created_by, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			t.ID, t.Name, t.Code, t.CreatedBy, t.CreatedAt); err != nil {
			return fmt.Errorf("storage: create team: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO team_members (team_id, user_id) VALUES ($1, $2)`,
			t.ID, t.CreatedBy); err != nil {
			return fmt.Errorf("storage: enroll team creator: %w", err)
		}
		return nil
	})
}

// JoinTeamByCode enrolls userID in the team with the given join code.
// Joining twice is a no-op.
func (db *DB) JoinTeamByCode(ctx context.Context, code string, userID uuid.UUID) (model.Team, error) {
	var t model.Team
	err := db.pool.QueryRow(ctx,
		`SELECT team_id, name, code, created_by, created_at FROM teams WHERE code = $1`, code,
	).Scan(&t.ID, &t.Name, &t.Code, &t.CreatedBy, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Team{}, ErrNotFound
		}
		return model.Team{}, fmt.Errorf("storage: find team by code: %w", err)
	}

	if _, err := db.pool.Exec(ctx,
		`INSERT INTO team_members (team_id, user_id) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`, t.ID, userID); err != nil {
		return model.Team{}, fmt.Errorf("storage: join team: %w", err)
	}
	return t, nil
}

// GetTeamMembersByCode returns the roster of the team with the given code.
func (db *DB) GetTeamMembersByCode(ctx context.Context, code string) ([]uuid.UUID, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT tm.user_id FROM team_members tm
		 JOIN teams t ON t.team_id = tm.team_id
		 WHERE t.code = $1`, code)
	if err != nil {
		return nil, fmt.Errorf("storage: team roster: %w", err)
	}
	defer rows.Close()

	var members []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("storage: scan roster: %w", err)
		}
		members = append(members, id)
	}
	return members, rows.Err()
}

// GetUserTeams returns the teams userID belongs to.
func (db *DB) GetUserTeams(ctx context.Context, userID uuid.UUID) ([]model.Team, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT t.team_id, t.name, t.code, t.created_by, t.created_at
		 FROM teams t JOIN team_members tm ON tm.team_id = t.team_id
		 WHERE tm.user_id = $1 ORDER BY t.created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("storage: user teams: %w", err)
	}
	defer rows.Close()

	var teams []model.Team
	for rows.Next() {
		var t model.Team
		if err := rows.Scan(&t.ID, &t.Name, &t.Code, &t.CreatedBy, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan team: %w", err)
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}
