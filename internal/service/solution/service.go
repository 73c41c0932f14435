// Package solution provides the solution service: proposing solutions,
// the upvote ledger, and the acceptance coordinator.
package solution

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/metric"

	"github.com/devblocker/devblocker/internal/client"
	"github.com/devblocker/devblocker/internal/event"
	"github.com/devblocker/devblocker/internal/model"
	"github.com/devblocker/devblocker/internal/publish"
	"github.com/devblocker/devblocker/internal/storage"
	"github.com/devblocker/devblocker/internal/telemetry"
)

// ErrBlockerNotFound is returned when the target blocker cannot be
// confirmed to exist.
var ErrBlockerNotFound = fmt.Errorf("solution: blocker not found")

// Service encapsulates solution business logic.
type Service struct {
	db       *storage.DB
	gate     *publish.Gate
	blockers *client.BlockerClient
	logger   *slog.Logger

	acceptCounter metric.Int64Counter
}

// New creates a solution Service. blockers may be nil in tests; input
// validation that needs the blocker service then rejects the write.
func New(db *storage.DB, gate *publish.Gate, blockers *client.BlockerClient, logger *slog.Logger) *Service {
	meter := telemetry.Meter("devblocker/solution")
	accepts, _ := meter.Int64Counter("devblocker.solutions.accepted",
		metric.WithDescription("Solutions accepted as best answer"),
	)
	return &Service{
		db:            db,
		gate:          gate,
		blockers:      blockers,
		logger:        logger,
		acceptCounter: accepts,
	}
}

// CreateInput contains the data needed to propose a solution.
type CreateInput struct {
	BlockerID uuid.UUID
	UserID    uuid.UUID
	Content   string
}

// Create proposes a solution for a blocker, publishing solution.added
// after the insert commits. The blocker existence check is fail-closed:
// if the blocker service cannot confirm the blocker exists, the write is
// rejected rather than risking an orphaned solution.
func (s *Service) Create(ctx context.Context, input CreateInput) (model.Solution, error) {
	if input.Content == "" {
		return model.Solution{}, fmt.Errorf("solution: content is required")
	}
	if s.blockers == nil {
		return model.Solution{}, fmt.Errorf("solution: blocker service not configured")
	}

	exists, err := s.blockers.Exists(ctx, input.BlockerID)
	if err != nil {
		return model.Solution{}, fmt.Errorf("solution: verify blocker: %w", err)
	}
	if !exists {
		return model.Solution{}, fmt.Errorf("%w: %s", ErrBlockerNotFound, input.BlockerID)
	}

	now := time.Now().UTC()
	sol := model.Solution{
		ID:        uuid.New(),
		BlockerID: input.BlockerID,
		UserID:    input.UserID,
		Content:   input.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.db.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.db.CreateSolution(ctx, tx, sol); err != nil {
			return err
		}
		s.gate.Stage(ctx, event.NewSolutionAdded(event.SolutionAddedPayload{
			SolutionID: sol.ID.String(),
			BlockerID:  sol.BlockerID.String(),
			UserID:     sol.UserID.String(),
			Content:    sol.Content,
			CreatedAt:  sol.CreatedAt,
		}))
		return nil
	})
	if err != nil {
		return model.Solution{}, err
	}

	s.logger.Info("solution created", "solution_id", sol.ID, "blocker_id", sol.BlockerID)
	return sol, nil
}

// Get retrieves a solution by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (model.Solution, error) {
	return s.db.GetSolution(ctx, id)
}

// ListByBlocker returns a blocker's solutions, most upvoted first.
func (s *Service) ListByBlocker(ctx context.Context, blockerID uuid.UUID) ([]model.Solution, error) {
	return s.db.ListSolutionsByBlocker(ctx, blockerID)
}

// Upvote records one upvote per (solution, user). A repeat upvote is a
// no-op returning the current count; the ledger insert and counter
// increment share a transaction, so the counter always equals the ledger
// row count. solution.upvoted is only published for a first-time vote.
func (s *Service) Upvote(ctx context.Context, solutionID, userID uuid.UUID) (model.Solution, error) {
	sol, inserted, err := s.db.UpvoteSolution(ctx, solutionID, userID)
	if err != nil {
		return model.Solution{}, err
	}
	if !inserted {
		s.logger.Debug("duplicate upvote ignored", "solution_id", solutionID, "user_id", userID)
		return sol, nil
	}

	s.gate.Stage(ctx, event.NewSolutionUpvoted(event.SolutionUpvotedPayload{
		SolutionID: sol.ID.String(),
		BlockerID:  sol.BlockerID.String(),
		UserID:     userID.String(),
		Upvotes:    sol.Upvotes,
		UpvotedAt:  time.Now().UTC(),
	}))
	return sol, nil
}

// Accept marks a solution as the accepted answer for its blocker. The
// acceptance proceeds in three steps:
//
//  1. The local transaction flips accepted under two guards (not already
//     accepted, no accepted sibling) backed by a partial unique index.
//  2. A synchronous call tells the blocker service to record the best
//     solution. A failure here is logged and the acceptance stands; the
//     async path repairs the blocker state.
//  3. solution.accepted is published, which closes the blocker and
//     awards reputation downstream.
//
// First acceptance wins; there is no override or un-accept.
func (s *Service) Accept(ctx context.Context, solutionID, acceptedBy uuid.UUID) (model.Solution, error) {
	sol, err := s.db.AcceptSolution(ctx, solutionID)
	if err != nil {
		return model.Solution{}, err
	}
	s.acceptCounter.Add(ctx, 1)

	if s.blockers != nil {
		if err := s.blockers.UpdateBestSolution(ctx, sol.BlockerID, sol.ID); err != nil {
			s.logger.Error("best-solution sync call failed, async path will repair",
				"blocker_id", sol.BlockerID, "solution_id", sol.ID, "error", err)
		}
	}

	s.gate.Stage(ctx, event.NewSolutionAccepted(event.SolutionAcceptedPayload{
		SolutionID: sol.ID.String(),
		BlockerID:  sol.BlockerID.String(),
		UserID:     sol.UserID.String(),
		AcceptedBy: acceptedBy.String(),
		AcceptedAt: time.Now().UTC(),
	}))

	s.logger.Info("solution accepted",
		"solution_id", sol.ID, "blocker_id", sol.BlockerID, "accepted_by", acceptedBy)
	return sol, nil
}

// UserStats summarizes a user's solution activity.
type UserStats struct {
	UserID   uuid.UUID `json:"user_id"`
	Total    int       `json:"total_solutions"`
	Accepted int       `json:"accepted_solutions"`
}

// StatsByUser returns solution counts for a user.
func (s *Service) StatsByUser(ctx context.Context, userID uuid.UUID) (UserStats, error) {
	total, accepted, err := s.db.CountSolutionsByUser(ctx, userID)
	if err != nil {
		return UserStats{}, err
	}
	return UserStats{UserID: userID, Total: total, Accepted: accepted}, nil
}
