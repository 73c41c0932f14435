package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/devblocker/devblocker/internal/model"
)

// ApplyReputation appends a ledger entry and adjusts the user's running
// total in the same transaction, so the total can never drift from the
// sum of the ledger. Deadlocks from concurrent awards to the same user
// are retried. Returns the new total.
func (db *DB) ApplyReputation(ctx context.Context, t model.ReputationTransaction) (int, error) {
	var total int
	txFn := func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO reputation_transactions (transaction_id, user_id, points, reason, source, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			t.ID, t.UserID, t.Points, t.Reason, t.Source, t.CreatedAt); err != nil {
			return fmt.Errorf("storage: insert reputation transaction: %w", err)
		}
		err := tx.QueryRow(ctx,
			`INSERT INTO reputation (user_id, points) VALUES ($1, $2)
			 ON CONFLICT (user_id) DO UPDATE
			 SET points = reputation.points + EXCLUDED.points, updated_at = now()
			 RETURNING points`,
			t.UserID, t.Points).Scan(&total)
		if err != nil {
			return fmt.Errorf("storage: apply reputation total: %w", err)
		}
		return nil
	}
	err := WithRetry(ctx, txMaxRetries, txBaseDelay, func() error {
		return db.WithTx(ctx, txFn)
	})
	return total, err
}

// GetReputation returns a user's running reputation total. A user with no
// reputation row has zero points.
func (db *DB) GetReputation(ctx context.Context, userID uuid.UUID) (model.Reputation, error) {
	var r model.Reputation
	err := db.pool.QueryRow(ctx,
		`SELECT user_id, points, created_at, updated_at FROM reputation WHERE user_id = $1`,
		userID,
	).Scan(&r.UserID, &r.Points, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Reputation{UserID: userID}, nil
		}
		return model.Reputation{}, fmt.Errorf("storage: get reputation: %w", err)
	}
	return r, nil
}

// ListReputationTransactions returns a user's ledger, newest first.
func (db *DB) ListReputationTransactions(ctx context.Context, userID uuid.UUID) ([]model.ReputationTransaction, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT transaction_id, user_id, points, reason, source, created_at
		 FROM reputation_transactions
		 WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("storage: list reputation transactions: %w", err)
	}
	defer rows.Close()

	var txs []model.ReputationTransaction
	for rows.Next() {
		var t model.ReputationTransaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Points, &t.Reason, &t.Source, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan reputation transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// SumReputationTransactions recomputes a user's total from the ledger.
func (db *DB) SumReputationTransactions(ctx context.Context, userID uuid.UUID) (int, error) {
	var sum int
	err := db.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(points), 0) FROM reputation_transactions WHERE user_id = $1`,
		userID,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("storage: sum reputation transactions: %w", err)
	}
	return sum, nil
}
