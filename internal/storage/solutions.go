package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/devblocker/devblocker/internal/model"
)

// CreateSolution inserts a new solution inside tx.
func (db *DB) CreateSolution(ctx context.Context, tx pgx.Tx, s model.Solution) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO solutions (solution_id, blocker_id, user_id, content, upvotes, accepted, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
		s.ID, s.BlockerID, s.UserID, s.Content, s.Upvotes, s.Accepted, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("storage: create solution: %w", err)
	}
	return nil
}

// GetSolution retrieves a solution by ID.
func (db *DB) GetSolution(ctx context.Context, id uuid.UUID) (model.Solution, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT solution_id, blocker_id, user_id, content, upvotes, accepted, created_at, updated_at
		 FROM solutions WHERE solution_id = $1`, id)
	return scanSolution(row)
}

// ListSolutionsByBlocker returns a blocker's solutions best-first:
// most upvoted, then oldest.
func (db *DB) ListSolutionsByBlocker(ctx context.Context, blockerID uuid.UUID) ([]model.Solution, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT solution_id, blocker_id, user_id, content, upvotes, accepted, created_at, updated_at
		 FROM solutions WHERE blocker_id = $1
		 ORDER BY upvotes DESC, created_at ASC`, blockerID)
	if err != nil {
		return nil, fmt.Errorf("storage: list solutions: %w", err)
	}
	defer rows.Close()

	var out []model.Solution
	for rows.Next() {
		s, err := scanSolution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpvoteSolution records an upvote from userID. The upvote ledger row and
// the counter increment happen in one transaction; the unique constraint
// on (solution_id, user_id) is the serialization point, so a duplicate
// delivery — sequential or from two concurrent workers — inserts nothing
// and leaves the counter untouched. Deadlocks against concurrent voters
// are retried. Returns the solution as of this call and whether this call
// performed the increment.
func (db *DB) UpvoteSolution(ctx context.Context, solutionID, userID uuid.UUID) (model.Solution, bool, error) {
	var (
		sol      model.Solution
		inserted bool
	)
	txFn := func(ctx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`INSERT INTO solution_upvotes (solution_id, user_id)
			 VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`,
			solutionID, userID)
		if err != nil {
			return fmt.Errorf("storage: insert upvote: %w", err)
		}
		inserted = tag.RowsAffected() == 1

		if !inserted {
			row := tx.QueryRow(ctx,
				`SELECT solution_id, blocker_id, user_id, content, upvotes, accepted, created_at, updated_at
				 FROM solutions WHERE solution_id = $1`, solutionID)
			sol, err = scanSolution(row)
			return err
		}

		row := tx.QueryRow(ctx,
			`UPDATE solutions SET upvotes = upvotes + 1, updated_at = now()
			 WHERE solution_id = $1
			 RETURNING solution_id, blocker_id, user_id, content, upvotes, accepted, created_at, updated_at`,
			solutionID)
		sol, err = scanSolution(row)
		return err
	}
	err := WithRetry(ctx, txMaxRetries, txBaseDelay, func() error {
		return db.WithTx(ctx, txFn)
	})
	if err != nil {
		return model.Solution{}, false, err
	}
	return sol, inserted, nil
}

// AcceptSolution marks a solution accepted, enforcing the
// single-acceptance guard: the target must not be accepted and no sibling
// solution for the same blocker may be accepted. First acceptance wins;
// there is no override path. The partial unique index on
// (blocker_id) WHERE accepted backstops the guard under concurrency;
// serialization failures from racing accepts are retried.
func (db *DB) AcceptSolution(ctx context.Context, solutionID uuid.UUID) (model.Solution, error) {
	var sol model.Solution
	txFn := func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`SELECT solution_id, blocker_id, user_id, content, upvotes, accepted, created_at, updated_at
			 FROM solutions WHERE solution_id = $1 FOR UPDATE`, solutionID)
		cur, err := scanSolution(row)
		if err != nil {
			return err
		}
		if cur.Accepted {
			return ErrAlreadyAccepted
		}

		var siblingAccepted bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (
			   SELECT 1 FROM solutions WHERE blocker_id = $1 AND accepted
			 )`, cur.BlockerID,
		).Scan(&siblingAccepted); err != nil {
			return fmt.Errorf("storage: check accepted sibling: %w", err)
		}
		if siblingAccepted {
			return ErrAlreadyAccepted
		}

		row = tx.QueryRow(ctx,
			`UPDATE solutions SET accepted = TRUE, updated_at = now()
			 WHERE solution_id = $1
			 RETURNING solution_id, blocker_id, user_id, content, upvotes, accepted, created_at, updated_at`,
			solutionID)
		sol, err = scanSolution(row)
		if isUniqueViolation(err, "solutions_one_accepted_per_blocker") {
			return ErrAlreadyAccepted
		}
		return err
	}
	err := WithRetry(ctx, txMaxRetries, txBaseDelay, func() error {
		return db.WithTx(ctx, txFn)
	})
	if err != nil {
		if isUniqueViolation(err, "solutions_one_accepted_per_blocker") {
			return model.Solution{}, ErrAlreadyAccepted
		}
		return model.Solution{}, err
	}
	return sol, nil
}

// CountUpvotes returns the number of ledger rows for a solution. The
// solutions.upvotes counter must always equal this value.
func (db *DB) CountUpvotes(ctx context.Context, solutionID uuid.UUID) (int, error) {
	var n int
	err := db.pool.QueryRow(ctx,
		`SELECT count(*) FROM solution_upvotes WHERE solution_id = $1`, solutionID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("storage: count upvotes: %w", err)
	}
	return n, nil
}

// CountSolutionsByUser returns total and accepted solution counts for a
// user, used for stats and badge checks.
func (db *DB) CountSolutionsByUser(ctx context.Context, userID uuid.UUID) (total, accepted int, err error) {
	err = db.pool.QueryRow(ctx,
		`SELECT count(*), count(*) FILTER (WHERE accepted)
		 FROM solutions WHERE user_id = $1`, userID,
	).Scan(&total, &accepted)
	if err != nil {
		return 0, 0, fmt.Errorf("storage: count solutions by user: %w", err)
	}
	return total, accepted, nil
}

func scanSolution(row pgx.Row) (model.Solution, error) {
	var s model.Solution
	err := row.Scan(&s.ID, &s.BlockerID, &s.UserID, &s.Content,
		&s.Upvotes, &s.Accepted, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Solution{}, ErrNotFound
		}
		return model.Solution{}, fmt.Errorf("storage: scan solution: %w", err)
	}
	return s, nil
}
