package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/devblocker/devblocker/internal/model"
)

// CreateBlocker inserts a new blocker inside tx.
func (db *DB) CreateBlocker(ctx context.Context, tx pgx.Tx, b model.Blocker) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO blockers (blocker_id, title, description, status, severity, created_by, assigned_to, team_code, tags, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`,
		b.ID, b.Title, b.Description, string(b.Status), b.Severity,
		b.CreatedBy, b.AssignedTo, nullIfEmpty(b.TeamCode), b.Tags, b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("storage: create blocker: %w", err)
	}
	return nil
}

// GetBlocker retrieves a blocker by ID.
func (db *DB) GetBlocker(ctx context.Context, id uuid.UUID) (model.Blocker, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT blocker_id, title, description, status, severity, created_by,
		        assigned_to, COALESCE(team_code, ''), best_solution_id, tags,
		        created_at, updated_at, resolved_at
		 FROM blockers WHERE blocker_id = $1`, id)
	return scanBlocker(row)
}

// ListBlockers returns blockers ordered newest first.
func (db *DB) ListBlockers(ctx context.Context, limit, offset int) ([]model.Blocker, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.pool.Query(ctx,
		`SELECT blocker_id, title, description, status, severity, created_by,
		        assigned_to, COALESCE(team_code, ''), best_solution_id, tags,
		        created_at, updated_at, resolved_at
		 FROM blockers ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("storage: list blockers: %w", err)
	}
	defer rows.Close()

	var out []model.Blocker
	for rows.Next() {
		b, err := scanBlocker(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// SetBestSolution unconditionally points the blocker at solutionID without
// touching its status. This is the synchronous acceptance-propagation
// path; acceptance and resolution are decoupled on purpose.
func (db *DB) SetBestSolution(ctx context.Context, blockerID, solutionID uuid.UUID) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE blockers SET best_solution_id = $2, updated_at = now()
		 WHERE blocker_id = $1`, blockerID, solutionID)
	if err != nil {
		return fmt.Errorf("storage: set best solution: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetBestSolutionIfUnset points the blocker at solutionID only when no
// best solution is recorded yet. The WHERE guard makes redelivered
// solution.added events no-ops. Returns true when the update happened.
func (db *DB) SetBestSolutionIfUnset(ctx context.Context, blockerID, solutionID uuid.UUID) (bool, error) {
	tag, err := db.pool.Exec(ctx,
		`UPDATE blockers SET best_solution_id = $2, updated_at = now()
		 WHERE blocker_id = $1 AND best_solution_id IS NULL`,
		blockerID, solutionID)
	if err != nil {
		return false, fmt.Errorf("storage: set best solution if unset: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// CloseWithBestSolution closes an open blocker in reaction to an observed
// acceptance and re-asserts the best solution pointer. The status guard
// keeps the transition monotonic; the pointer write is guarded on the
// pointer differing so this asynchronous path repairs a failed synchronous
// SetBestSolution without touching an already-converged row on
// redelivery. Returns true when the status transitioned.
func (db *DB) CloseWithBestSolution(ctx context.Context, blockerID, solutionID uuid.UUID) (bool, error) {
	var closed bool
	err := db.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE blockers SET status = $2, resolved_at = now(), updated_at = now()
			 WHERE blocker_id = $1 AND status = $3`,
			blockerID, string(model.BlockerClosed), string(model.BlockerOpen))
		if err != nil {
			return fmt.Errorf("storage: close blocker: %w", err)
		}
		closed = tag.RowsAffected() == 1

		tag, err = tx.Exec(ctx,
			`UPDATE blockers SET best_solution_id = $2, updated_at = now()
			 WHERE blocker_id = $1 AND best_solution_id IS DISTINCT FROM $2`,
			blockerID, solutionID)
		if err != nil {
			return fmt.Errorf("storage: assert best solution: %w", err)
		}
		if !closed && tag.RowsAffected() == 0 {
			// Neither update matched: either the row already converged or
			// the blocker does not exist.
			var exists bool
			err := tx.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM blockers WHERE blocker_id = $1)`,
				blockerID).Scan(&exists)
			if err != nil {
				return fmt.Errorf("storage: check blocker exists: %w", err)
			}
			if !exists {
				return ErrNotFound
			}
		}
		return nil
	})
	return closed, err
}

// ResolveBlocker transitions an OPEN blocker to RESOLVED inside tx.
// Returns ErrTerminalStatus if the blocker is already RESOLVED or CLOSED.
func (db *DB) ResolveBlocker(ctx context.Context, tx pgx.Tx, blockerID uuid.UUID, bestSolutionID *uuid.UUID) (model.Blocker, error) {
	row := tx.QueryRow(ctx,
		`UPDATE blockers
		 SET status = $2, best_solution_id = COALESCE($3, best_solution_id),
		     resolved_at = now(), updated_at = now()
		 WHERE blocker_id = $1 AND status = $4
		 RETURNING blocker_id, title, description, status, severity, created_by,
		           assigned_to, COALESCE(team_code, ''), best_solution_id, tags,
		           created_at, updated_at, resolved_at`,
		blockerID, string(model.BlockerResolved), bestSolutionID, string(model.BlockerOpen))

	b, err := scanBlocker(row)
	if errors.Is(err, ErrNotFound) {
		// Distinguish a missing blocker from one in a terminal status.
		if _, getErr := db.GetBlocker(ctx, blockerID); getErr == nil {
			return model.Blocker{}, ErrTerminalStatus
		}
		return model.Blocker{}, ErrNotFound
	}
	return b, err
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func scanBlocker(row pgx.Row) (model.Blocker, error) {
	var (
		b          model.Blocker
		status     string
		resolvedAt *time.Time
	)
	err := row.Scan(&b.ID, &b.Title, &b.Description, &status, &b.Severity,
		&b.CreatedBy, &b.AssignedTo, &b.TeamCode, &b.BestSolutionID, &b.Tags,
		&b.CreatedAt, &b.UpdatedAt, &resolvedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Blocker{}, ErrNotFound
		}
		return model.Blocker{}, fmt.Errorf("storage: scan blocker: %w", err)
	}
	b.Status = model.BlockerStatus(status)
	b.ResolvedAt = resolvedAt
	return b, nil
}
