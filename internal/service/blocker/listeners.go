package blocker

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/devblocker/devblocker/internal/bus"
	"github.com/devblocker/devblocker/internal/event"
)

// Consumers returns the queue bindings for the blocker service.
func (s *Service) Consumers() []bus.Consumer {
	return []bus.Consumer{
		{Queue: event.SolutionAddedQueue, Workers: 2, Handle: s.handleSolutionAdded},
		{Queue: event.SolutionAcceptedQueue, Workers: 2, Handle: s.handleSolutionAccepted},
	}
}

// handleSolutionAdded sets the new solution as the blocker's best solution
// only when none is set yet. The guard is a conditional UPDATE, so a
// redelivered or late event cannot displace an existing best solution.
func (s *Service) handleSolutionAdded(ctx context.Context, env event.Envelope) error {
	p, ok := env.Body.(event.SolutionAddedPayload)
	if !ok {
		return fmt.Errorf("blocker: unexpected payload %T for %s", env.Body, env.Kind)
	}
	blockerID, solutionID, err := parseIDs(p.BlockerID, p.SolutionID)
	if err != nil {
		return err
	}

	set, err := s.db.SetBestSolutionIfUnset(ctx, blockerID, solutionID)
	if err != nil {
		return err
	}
	if set {
		s.logger.Info("set first solution as best solution",
			"blocker_id", blockerID, "solution_id", solutionID)
	} else {
		s.logger.Debug("blocker already has a best solution", "blocker_id", blockerID)
	}
	return nil
}

// handleSolutionAccepted closes the blocker (unless already closed) and
// awards reputation to the solution author. The award rides on the close
// transition, so a redelivered event neither reopens nor double-awards.
func (s *Service) handleSolutionAccepted(ctx context.Context, env event.Envelope) error {
	p, ok := env.Body.(event.SolutionAcceptedPayload)
	if !ok {
		return fmt.Errorf("blocker: unexpected payload %T for %s", env.Body, env.Kind)
	}
	blockerID, solutionID, err := parseIDs(p.BlockerID, p.SolutionID)
	if err != nil {
		return err
	}
	authorID, err := uuid.Parse(p.UserID)
	if err != nil {
		return fmt.Errorf("blocker: parse author id: %w", err)
	}

	closed, err := s.db.CloseWithBestSolution(ctx, blockerID, solutionID)
	if err != nil {
		return err
	}
	if !closed {
		// Redelivery: the close and the award already happened.
		s.logger.Debug("blocker already closed", "blocker_id", blockerID)
		return nil
	}
	s.closedCounter.Add(ctx, 1)
	s.logger.Info("closed blocker with accepted solution",
		"blocker_id", blockerID, "solution_id", solutionID)

	// Fail-open: a lost award is logged, never blocks consumption.
	if s.users == nil {
		s.logger.Warn("user service not configured, skipping reputation award",
			"user_id", authorID)
		return nil
	}
	if err := s.users.IncrementReputation(ctx, authorID, AcceptedSolutionPoints, "Solution accepted as best answer"); err != nil {
		s.logger.Error("failed to award reputation for accepted solution",
			"user_id", authorID, "points", AcceptedSolutionPoints, "error", err)
		return nil
	}
	s.logger.Info("awarded reputation for accepted solution",
		"user_id", authorID, "points", AcceptedSolutionPoints)
	return nil
}

func parseIDs(blockerID, solutionID string) (uuid.UUID, uuid.UUID, error) {
	b, err := uuid.Parse(blockerID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("blocker: parse blocker id: %w", err)
	}
	sol, err := uuid.Parse(solutionID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("blocker: parse solution id: %w", err)
	}
	return b, sol, nil
}
