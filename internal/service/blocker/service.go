// Package blocker provides the blocker service: CRUD over blockers, the
// best-solution endpoint, and the listeners that react to solution
// events from other services.
package blocker

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

// AcceptedSolutionPoints is the reputation awarded to a solution author
// when their solution is accepted.
const AcceptedSolutionPoints = 50

// Service encapsulates blocker business logic shared by HTTP handlers
// and event listeners.
type Service struct {
	db     *storage.DB
	gate   *publish.Gate
	users  *client.UserClient
	logger *slog.Logger

	closedCounter metric.Int64Counter
}

// New creates a blocker Service. users may be nil when the user service
// is not reachable; reputation awards are then skipped with a warning.
func New(db *storage.DB, gate *publish.Gate, users *client.UserClient, logger *slog.Logger) *Service {
	meter := telemetry.Meter("devblocker/blocker")
	closed, _ := meter.Int64Counter("devblocker.blockers.closed",
		metric.WithDescription("Blockers closed via accepted solutions"),
	)
	return &Service{
		db:            db,
		gate:          gate,
		users:         users,
		logger:        logger,
		closedCounter: closed,
	}
}

// CreateInput contains the data needed to open a blocker.
type CreateInput struct {
	Title       string
	Description string
	Severity    string
	CreatedBy   uuid.UUID
	AssignedTo  *uuid.UUID
	TeamCode    string
	Tags        []string
}

// Create opens a blocker in OPEN status and publishes blocker.created
// after the insert commits.
func (s *Service) Create(ctx context.Context, input CreateInput) (model.Blocker, error) {
	if input.Title == "" {
		return model.Blocker{}, fmt.Errorf("blocker: title is required")
	}

	now := time.Now().UTC()
	b := model.Blocker{
		ID:          uuid.New(),
		Title:       input.Title,
		Description: input.Description,
		Status:      model.BlockerOpen,
		Severity:    input.Severity,
		CreatedBy:   input.CreatedBy,
		AssignedTo:  input.AssignedTo,
		TeamCode:    input.TeamCode,
		Tags:        input.Tags,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.db.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.db.CreateBlocker(ctx, tx, b); err != nil {
			return err
		}
		payload := event.BlockerCreatedPayload{
			BlockerID: b.ID.String(),
			Title:     b.Title,
			CreatedBy: b.CreatedBy.String(),
			TeamCode:  b.TeamCode,
			CreatedAt: b.CreatedAt,
		}
		if b.AssignedTo != nil {
			payload.AssignedTo = b.AssignedTo.String()
		}
		s.gate.Stage(ctx, event.NewBlockerCreated(payload))
		return nil
	})
	if err != nil {
		return model.Blocker{}, err
	}

	s.logger.Info("blocker created", "blocker_id", b.ID, "created_by", b.CreatedBy)
	return b, nil
}

// Get retrieves a blocker by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (model.Blocker, error) {
	return s.db.GetBlocker(ctx, id)
}

// List returns blockers, newest first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]model.Blocker, error) {
	return s.db.ListBlockers(ctx, limit, offset)
}

// Resolve moves an OPEN blocker to RESOLVED and publishes
// blocker.resolved. Resolving a terminal blocker fails with
// storage.ErrTerminalStatus; statuses never move backwards.
func (s *Service) Resolve(ctx context.Context, blockerID uuid.UUID, bestSolutionID *uuid.UUID, resolvedBy uuid.UUID) (model.Blocker, error) {
	var resolved model.Blocker
	err := s.db.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		resolved, err = s.db.ResolveBlocker(ctx, tx, blockerID, bestSolutionID)
		if err != nil {
			return err
		}
		payload := event.BlockerResolvedPayload{
			BlockerID:  blockerID.String(),
			ResolvedBy: resolvedBy.String(),
			ResolvedAt: time.Now().UTC(),
		}
		if resolved.BestSolutionID != nil {
			payload.BestSolutionID = resolved.BestSolutionID.String()
		}
		s.gate.Stage(ctx, event.NewBlockerResolved(payload))
		return nil
	})
	if err != nil {
		return model.Blocker{}, err
	}

	s.logger.Info("blocker resolved", "blocker_id", blockerID, "resolved_by", resolvedBy)
	return resolved, nil
}

// UpdateBestSolution sets the blocker's best solution unconditionally.
// This is the synchronous endpoint called by the solution service during
// acceptance; it does not change the blocker status.
func (s *Service) UpdateBestSolution(ctx context.Context, blockerID, solutionID uuid.UUID) error {
	if err := s.db.SetBestSolution(ctx, blockerID, solutionID); err != nil {
		return err
	}

	b, err := s.db.GetBlocker(ctx, blockerID)
	if err != nil {
		return err
	}
	s.gate.Stage(ctx, event.NewBlockerUpdated(event.BlockerUpdatedPayload{
		BlockerID:      blockerID.String(),
		BestSolutionID: solutionID.String(),
		Status:         string(b.Status),
	}))
	return nil
}
