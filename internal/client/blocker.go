package client

import (
	"context"

	"github.com/google/uuid"

	"github.com/devblocker/devblocker/internal/model"
)

// BlockerClient calls the blocker service.
type BlockerClient struct {
	*Client
}

// NewBlockerClient creates a client for the blocker service.
func NewBlockerClient(cfg Config) (*BlockerClient, error) {
	c, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return &BlockerClient{Client: c}, nil
}

// Exists reports whether the blocker exists. Callers validating input
// before a write treat any error as "does not exist" (fail-closed).
func (c *BlockerClient) Exists(ctx context.Context, blockerID uuid.UUID) (bool, error) {
	var b model.Blocker
	err := c.get(ctx, "/api/blockers/"+blockerID.String(), &b)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Get retrieves a blocker. Callers enriching a notification treat an
// error as "no extra detail" (fail-open).
func (c *BlockerClient) Get(ctx context.Context, blockerID uuid.UUID) (model.Blocker, error) {
	var b model.Blocker
	if err := c.get(ctx, "/api/blockers/"+blockerID.String(), &b); err != nil {
		return model.Blocker{}, err
	}
	return b, nil
}

// UpdateBestSolution marks solutionID as the blocker's best solution.
// This is the synchronous leg of solution acceptance; the caller decides
// whether a failure aborts the acceptance.
func (c *BlockerClient) UpdateBestSolution(ctx context.Context, blockerID, solutionID uuid.UUID) error {
	body := map[string]string{"solution_id": solutionID.String()}
	return c.put(ctx, "/api/blockers/"+blockerID.String()+"/best-solution", body, nil)
}
