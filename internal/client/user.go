package client

import (
	"context"

	"github.com/google/uuid"
)

// UserClient calls the user service.
type UserClient struct {
	*Client
}

// NewUserClient creates a client for the user service.
func NewUserClient(cfg Config) (*UserClient, error) {
	c, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return &UserClient{Client: c}, nil
}

type teamMembersResponse struct {
	Members []uuid.UUID `json:"members"`
}

// TeamMembersByCode returns the roster of the team with the given join
// code. A failed lookup is fail-open for notification fan-out: the caller
// notifies nobody extra rather than failing the whole fan-out.
func (c *UserClient) TeamMembersByCode(ctx context.Context, code string) ([]uuid.UUID, error) {
	var resp teamMembersResponse
	if err := c.get(ctx, "/api/teams/"+code+"/members", &resp); err != nil {
		return nil, err
	}
	return resp.Members, nil
}

// IncrementReputation awards points to a user.
func (c *UserClient) IncrementReputation(ctx context.Context, userID uuid.UUID, points int, reason string) error {
	body := map[string]any{"points": points, "reason": reason}
	return c.post(ctx, "/api/users/"+userID.String()+"/reputation", body, nil)
}
