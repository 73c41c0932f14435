// Package user provides the user service: accounts and login, profiles
// bootstrapped from user.registered events, teams, the reputation
// ledger, and badge awards.
package user

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/devblocker/devblocker/internal/auth"
	"github.com/devblocker/devblocker/internal/event"
	"github.com/devblocker/devblocker/internal/model"
	"github.com/devblocker/devblocker/internal/publish"
	"github.com/devblocker/devblocker/internal/storage"
)

// ErrInvalidCredentials is returned on login failure. Unknown email and
// wrong password are indistinguishable to the caller.
var ErrInvalidCredentials = fmt.Errorf("user: invalid credentials")

// Service encapsulates account, profile, team, reputation, and badge
// logic.
type Service struct {
	db     *storage.DB
	jwt    *auth.JWTManager
	gate   *publish.Gate
	logger *slog.Logger
}

// New creates a user Service.
func New(db *storage.DB, jwt *auth.JWTManager, gate *publish.Gate, logger *slog.Logger) *Service {
	return &Service{db: db, jwt: jwt, gate: gate, logger: logger}
}

// Register creates an account and publishes user.registered after the
// insert commits. The profile is not created here; the service's own
// listener bootstraps it from the event.
func (s *Service) Register(ctx context.Context, email, password string) (model.Account, error) {
	if email == "" || password == "" {
		return model.Account{}, fmt.Errorf("user: email and password are required")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return model.Account{}, err
	}

	account := model.Account{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}

	err = s.db.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.db.CreateAccount(ctx, tx, account); err != nil {
			return err
		}
		s.gate.Stage(ctx, event.NewUserRegistered(event.UserRegisteredPayload{
			UserID: account.ID.String(),
			Email:  account.Email,
		}))
		return nil
	})
	if err != nil {
		return model.Account{}, err
	}

	s.logger.Info("account registered", "user_id", account.ID)
	return account, nil
}

// Login verifies credentials and issues a JWT.
func (s *Service) Login(ctx context.Context, email, password string) (string, time.Time, error) {
	account, err := s.db.GetAccountByEmail(ctx, email)
	if err != nil {
		// Burn the same hashing cost as a real check so timing does not
		// reveal whether the email is registered.
		auth.DummyVerify()
		return "", time.Time{}, ErrInvalidCredentials
	}

	valid, err := auth.VerifyPassword(password, account.PasswordHash)
	if err != nil {
		return "", time.Time{}, err
	}
	if !valid {
		return "", time.Time{}, ErrInvalidCredentials
	}

	return s.jwt.IssueToken(account.ID, account.Email)
}

// Profile retrieves a user's profile.
func (s *Service) Profile(ctx context.Context, userID uuid.UUID) (model.Profile, error) {
	return s.db.GetProfile(ctx, userID)
}

// UpdateProfile sets the mutable profile fields and publishes
// user.updated.
func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, displayName, bio string) error {
	if err := s.db.UpdateProfile(ctx, userID, displayName, bio); err != nil {
		return err
	}
	s.gate.Stage(ctx, event.NewUserUpdated(event.UserUpdatedPayload{UserID: userID.String()}))
	return nil
}

// CreateTeam creates a team with a join code, enrolling the creator.
func (s *Service) CreateTeam(ctx context.Context, name, code string, createdBy uuid.UUID) (model.Team, error) {
	if name == "" || code == "" {
		return model.Team{}, fmt.Errorf("user: team name and code are required")
	}
	t := model.Team{
		ID:        uuid.New(),
		Name:      name,
		Code:      code,
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.CreateTeam(ctx, t); err != nil {
		return model.Team{}, err
	}
	s.logger.Info("team created", "team_id", t.ID, "code", t.Code)
	return t, nil
}

// JoinTeam enrolls a user in the team with the given join code.
func (s *Service) JoinTeam(ctx context.Context, code string, userID uuid.UUID) (model.Team, error) {
	return s.db.JoinTeamByCode(ctx, code, userID)
}

// TeamMembers returns the roster of the team with the given join code.
// This backs the endpoint the notification service calls during
// team-scoped fan-out.
func (s *Service) TeamMembers(ctx context.Context, code string) ([]uuid.UUID, error) {
	return s.db.GetTeamMembersByCode(ctx, code)
}

// Teams returns the teams a user belongs to.
func (s *Service) Teams(ctx context.Context, userID uuid.UUID) ([]model.Team, error) {
	return s.db.GetUserTeams(ctx, userID)
}
