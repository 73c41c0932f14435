package storage_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devblocker/devblocker/internal/model"
	"github.com/devblocker/devblocker/internal/storage"
	"github.com/devblocker/devblocker/internal/testutil"
)

var testDB *storage.DB

func TestMain(m *testing.M) {
	ctx := context.Background()

	tc := testutil.MustStartPostgres()
	defer tc.Terminate()

	var err error
	testDB, err = tc.NewTestDB(ctx, testutil.TestLogger())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create test DB: %v\n", err)
		tc.Terminate()
		os.Exit(1)
	}

	code := m.Run()
	testDB.Close(ctx)
	tc.Terminate()
	os.Exit(code)
}

func seedBlocker(t *testing.T, createdBy uuid.UUID) model.Blocker {
	t.Helper()
	b := model.Blocker{
		ID:          uuid.New(),
		Title:       "cannot deploy to staging",
		Description: "pipeline fails at the migration step",
		Status:      model.BlockerOpen,
		CreatedBy:   createdBy,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	err := testDB.WithTx(context.Background(), func(ctx context.Context, tx pgx.Tx) error {
		return testDB.CreateBlocker(ctx, tx, b)
	})
	require.NoError(t, err)
	return b
}

func seedSolution(t *testing.T, blockerID, userID uuid.UUID) model.Solution {
	t.Helper()
	s := model.Solution{
		ID:        uuid.New(),
		BlockerID: blockerID,
		UserID:    userID,
		Content:   "bump the migration timeout",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	err := testDB.WithTx(context.Background(), func(ctx context.Context, tx pgx.Tx) error {
		return testDB.CreateSolution(ctx, tx, s)
	})
	require.NoError(t, err)
	return s
}

func TestUpvoteSolution_RepeatIsNoOp(t *testing.T) {
	ctx := context.Background()
	b := seedBlocker(t, uuid.New())
	sol := seedSolution(t, b.ID, uuid.New())
	voter := uuid.New()

	first, inserted, err := testDB.UpvoteSolution(ctx, sol.ID, voter)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, 1, first.Upvotes)

	second, inserted, err := testDB.UpvoteSolution(ctx, sol.ID, voter)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, 1, second.Upvotes)

	ledger, err := testDB.CountUpvotes(ctx, sol.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, ledger)
}

func TestUpvoteSolution_ConcurrentSameUser(t *testing.T) {
	ctx := context.Background()
	b := seedBlocker(t, uuid.New())
	sol := seedSolution(t, b.ID, uuid.New())
	voter := uuid.New()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := testDB.UpvoteSolution(ctx, sol.ID, voter)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := testDB.GetSolution(ctx, sol.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Upvotes)

	ledger, err := testDB.CountUpvotes(ctx, sol.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, ledger)
}

func TestUpvoteSolution_CounterMatchesLedger(t *testing.T) {
	ctx := context.Background()
	b := seedBlocker(t, uuid.New())
	sol := seedSolution(t, b.ID, uuid.New())

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := testDB.UpvoteSolution(ctx, sol.ID, uuid.New())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := testDB.GetSolution(ctx, sol.ID)
	require.NoError(t, err)
	ledger, err := testDB.CountUpvotes(ctx, sol.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, got.Upvotes)
	assert.Equal(t, ledger, got.Upvotes)
}

func TestAcceptSolution_FirstAcceptanceWins(t *testing.T) {
	ctx := context.Background()
	b := seedBlocker(t, uuid.New())
	first := seedSolution(t, b.ID, uuid.New())
	second := seedSolution(t, b.ID, uuid.New())

	accepted, err := testDB.AcceptSolution(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, accepted.Accepted)

	// The same solution cannot be accepted twice.
	_, err = testDB.AcceptSolution(ctx, first.ID)
	assert.ErrorIs(t, err, storage.ErrAlreadyAccepted)

	// A sibling cannot be accepted either.
	_, err = testDB.AcceptSolution(ctx, second.ID)
	assert.ErrorIs(t, err, storage.ErrAlreadyAccepted)
}

func TestAcceptSolution_ConcurrentAcceptsOnlyOneWins(t *testing.T) {
	ctx := context.Background()
	b := seedBlocker(t, uuid.New())

	solutions := make([]model.Solution, 5)
	for i := range solutions {
		solutions[i] = seedSolution(t, b.ID, uuid.New())
	}

	var wg sync.WaitGroup
	results := make([]error, len(solutions))
	for i := range solutions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, results[i] = testDB.AcceptSolution(ctx, solutions[i].ID)
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, storage.ErrAlreadyAccepted)
		}
	}
	assert.Equal(t, 1, succeeded)

	var acceptedCount int
	err := testDB.Pool().QueryRow(ctx,
		`SELECT count(*) FROM solutions WHERE blocker_id = $1 AND accepted`, b.ID,
	).Scan(&acceptedCount)
	require.NoError(t, err)
	assert.Equal(t, 1, acceptedCount)
}

func TestSetBestSolutionIfUnset_OnlyFirstApplies(t *testing.T) {
	ctx := context.Background()
	b := seedBlocker(t, uuid.New())
	first := uuid.New()
	second := uuid.New()

	set, err := testDB.SetBestSolutionIfUnset(ctx, b.ID, first)
	require.NoError(t, err)
	assert.True(t, set)

	set, err = testDB.SetBestSolutionIfUnset(ctx, b.ID, second)
	require.NoError(t, err)
	assert.False(t, set)

	got, err := testDB.GetBlocker(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, got.BestSolutionID)
	assert.Equal(t, first, *got.BestSolutionID)
}

func TestCloseWithBestSolution_RedeliverySafe(t *testing.T) {
	ctx := context.Background()
	b := seedBlocker(t, uuid.New())
	solID := uuid.New()

	closed, err := testDB.CloseWithBestSolution(ctx, b.ID, solID)
	require.NoError(t, err)
	assert.True(t, closed)

	first, err := testDB.GetBlocker(ctx, b.ID)
	require.NoError(t, err)

	// A redelivered event finds the blocker already closed and must not
	// touch the row again.
	closed, err = testDB.CloseWithBestSolution(ctx, b.ID, solID)
	require.NoError(t, err)
	assert.False(t, closed)

	got, err := testDB.GetBlocker(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BlockerClosed, got.Status)
	require.NotNil(t, got.BestSolutionID)
	assert.Equal(t, solID, *got.BestSolutionID)
	assert.Equal(t, first.UpdatedAt, got.UpdatedAt)
	assert.Equal(t, first.ResolvedAt, got.ResolvedAt)
}

func TestCloseWithBestSolution_RepairsDivergedPointer(t *testing.T) {
	ctx := context.Background()
	b := seedBlocker(t, uuid.New())
	solID := uuid.New()

	closed, err := testDB.CloseWithBestSolution(ctx, b.ID, solID)
	require.NoError(t, err)
	assert.True(t, closed)

	// A later event carrying a different solution still rewrites the
	// pointer: the guard is on the value, not on the status.
	otherID := uuid.New()
	closed, err = testDB.CloseWithBestSolution(ctx, b.ID, otherID)
	require.NoError(t, err)
	assert.False(t, closed)

	got, err := testDB.GetBlocker(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, got.BestSolutionID)
	assert.Equal(t, otherID, *got.BestSolutionID)
}

func TestCloseWithBestSolution_MissingBlocker(t *testing.T) {
	ctx := context.Background()

	_, err := testDB.CloseWithBestSolution(ctx, uuid.New(), uuid.New())
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestResolveBlocker_TerminalStatusRejected(t *testing.T) {
	ctx := context.Background()
	b := seedBlocker(t, uuid.New())

	var resolved model.Blocker
	err := testDB.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		resolved, err = testDB.ResolveBlocker(ctx, tx, b.ID, nil)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, model.BlockerResolved, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)

	err = testDB.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		_, err := testDB.ResolveBlocker(ctx, tx, b.ID, nil)
		return err
	})
	assert.ErrorIs(t, err, storage.ErrTerminalStatus)
}

func TestApplyReputation_TotalMatchesLedger(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	for _, points := range []int{10, 25, -5} {
		_, err := testDB.ApplyReputation(ctx, model.ReputationTransaction{
			ID:        uuid.New(),
			UserID:    userID,
			Points:    points,
			Reason:    "test adjustment",
			Source:    "TEST",
			CreatedAt: time.Now().UTC(),
		})
		require.NoError(t, err)
	}

	rep, err := testDB.GetReputation(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 30, rep.Points)

	sum, err := testDB.SumReputationTransactions(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, rep.Points, sum)

	history, err := testDB.ListReputationTransactions(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

func TestApplyReputation_ConcurrentAwards(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := testDB.ApplyReputation(ctx, model.ReputationTransaction{
				ID:        uuid.New(),
				UserID:    userID,
				Points:    5,
				Reason:    "concurrent award",
				Source:    "TEST",
				CreatedAt: time.Now().UTC(),
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	rep, err := testDB.GetReputation(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 50, rep.Points)

	sum, err := testDB.SumReputationTransactions(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 50, sum)
}

func TestGetReputation_UnknownUserIsZero(t *testing.T) {
	rep, err := testDB.GetReputation(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Points)
}

func TestCreateAccount_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	email := fmt.Sprintf("%s@example.com", uuid.NewString()[:8])

	err := testDB.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return testDB.CreateAccount(ctx, tx, model.Account{
			ID:           uuid.New(),
			Email:        email,
			PasswordHash: "hash",
			CreatedAt:    time.Now().UTC(),
		})
	})
	require.NoError(t, err)

	err = testDB.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return testDB.CreateAccount(ctx, tx, model.Account{
			ID:           uuid.New(),
			Email:        email,
			PasswordHash: "hash",
			CreatedAt:    time.Now().UTC(),
		})
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateEmail)
}

func TestCreateProfile_RedeliveryIsNoOp(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	email := fmt.Sprintf("%s@example.com", uuid.NewString()[:8])

	created, err := testDB.CreateProfile(ctx, userID, email)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = testDB.CreateProfile(ctx, userID, email)
	require.NoError(t, err)
	assert.False(t, created)

	// Bootstrap also opens the reputation row at zero.
	rep, err := testDB.GetReputation(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Points)
}

func TestAwardBadge_Idempotent(t *testing.T) {
	ctx := context.Background()
	threshold := 100
	badge := model.Badge{
		ID:                  uuid.New(),
		Name:                "centurion-" + uuid.NewString()[:8],
		Description:         "Reach 100 reputation",
		ReputationThreshold: &threshold,
		CreatedAt:           time.Now().UTC(),
	}
	require.NoError(t, testDB.CreateBadge(ctx, badge))

	userID := uuid.New()
	awarded, err := testDB.AwardBadge(ctx, userID, badge.ID)
	require.NoError(t, err)
	assert.True(t, awarded)

	awarded, err = testDB.AwardBadge(ctx, userID, badge.ID)
	require.NoError(t, err)
	assert.False(t, awarded)

	badges, err := testDB.ListUserBadges(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, badges, 1)
}

func TestTeams_CreateJoinAndRoster(t *testing.T) {
	ctx := context.Background()
	creator := uuid.New()
	code := "team-" + uuid.NewString()[:8]

	team := model.Team{
		ID:        uuid.New(),
		Name:      "platform",
		Code:      code,
		CreatedBy: creator,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, testDB.CreateTeam(ctx, team))

	joiner := uuid.New()
	_, err := testDB.JoinTeamByCode(ctx, code, joiner)
	require.NoError(t, err)

	// Joining twice is a no-op.
	_, err = testDB.JoinTeamByCode(ctx, code, joiner)
	require.NoError(t, err)

	members, err := testDB.GetTeamMembersByCode(ctx, code)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{creator, joiner}, members)
}

func TestNotifications_UnreadCountAndMarkRead(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	var first uuid.UUID
	for i := range 3 {
		n := model.Notification{
			ID:        uuid.New(),
			UserID:    userID,
			Type:      model.NotifyCommentAdded,
			Title:     "New Comment",
			Message:   "Someone commented on your blocker",
			CreatedAt: time.Now().UTC().Add(time.Duration(i) * time.Millisecond),
		}
		if i == 0 {
			first = n.ID
		}
		require.NoError(t, testDB.CreateNotification(ctx, n))
	}

	count, err := testDB.CountUnreadNotifications(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	require.NoError(t, testDB.MarkNotificationRead(ctx, first, userID))

	count, err = testDB.CountUnreadNotifications(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	unread, err := testDB.ListNotifications(ctx, userID, true, 10, 0)
	require.NoError(t, err)
	assert.Len(t, unread, 2)

	all, err := testDB.ListNotifications(ctx, userID, false, 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestWithTx_CommitRunsHooksRollbackDiscardsThem(t *testing.T) {
	ctx := context.Background()

	var ran int
	err := testDB.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		storage.OnCommit(ctx, func(context.Context) { ran++ })
		_, err := tx.Exec(ctx, "SELECT 1")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, ran, "hook must run exactly once after commit")

	boom := errors.New("boom")
	err = testDB.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		storage.OnCommit(ctx, func(context.Context) { ran++ })
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, ran, "rolled-back transaction must not run hooks")
}

func TestWithRetry_RetriesTransientConflicts(t *testing.T) {
	attempts := 0
	err := storage.WithRetry(context.Background(), 3, time.Millisecond, func() error {
		attempts++
		if attempts < 3 {
			return &pgconn.PgError{Code: "40001"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithRetry_NonRetriableFailsImmediately(t *testing.T) {
	attempts := 0
	err := storage.WithRetry(context.Background(), 3, time.Millisecond, func() error {
		attempts++
		return &pgconn.PgError{Code: "23505"}
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestWithRetry_ExhaustionReturnsLastError(t *testing.T) {
	attempts := 0
	err := storage.WithRetry(context.Background(), 2, time.Millisecond, func() error {
		attempts++
		return &pgconn.PgError{Code: "40P01"}
	})
	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	assert.Equal(t, "40P01", pgErr.Code)
	assert.Equal(t, 3, attempts, "maxRetries retries after the first attempt")
}
