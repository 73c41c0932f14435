package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

type txHookKey struct{}

// txHooks collects callbacks to run after the surrounding transaction
// commits. The slice is only touched from the goroutine executing the
// transaction function, so no locking is needed.
type txHooks struct {
	fns []func(context.Context)
}

// OnCommit registers fn to run after the transaction in ctx commits. If
// the transaction rolls back, fn never runs. Outside a transaction scope
// fn runs immediately: there is nothing to gate on.
//
// Hooks run after the commit has durably succeeded; anything they do can
// no longer affect the transaction, so hook failures must be handled (or
// swallowed) by the hook itself.
func OnCommit(ctx context.Context, fn func(context.Context)) {
	if hooks, ok := ctx.Value(txHookKey{}).(*txHooks); ok {
		hooks.fns = append(hooks.fns, fn)
		return
	}
	fn(ctx)
}

// WithTx runs fn inside a transaction and commits when fn returns nil.
// The ctx passed to fn carries a commit-hook scope for OnCommit. On any
// error the transaction rolls back and registered hooks are discarded.
func (db *DB) WithTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	hooks := &txHooks{}
	ctx = context.WithValue(ctx, txHookKey{}, hooks)

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("storage: commit tx: %w", err)
	}

	for _, hook := range hooks.fns {
		hook(ctx)
	}
	return nil
}
