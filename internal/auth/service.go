package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/gramy/gramy/internal/action"
	"github.com/gramy/gramy/internal/authctx"
	"github.com/gramy/gramy/internal/invalidate"
	"github.com/gramy/gramy/internal/profiles"
	"github.com/gramy/gramy/internal/shared"
)

// Enqueuer schedules follow-up work for a new account.
type Enqueuer interface {
	EnqueueInitStatusCollections(ctx context.Context, userID string) error
}

// Service wraps authentication business rules.
type Service struct {
	repo     Repository
	runner   *action.Runner
	enqueuer Enqueuer
	logger   *slog.Logger
	cost     int
}

// NewService constructs a new Service. enqueuer may be nil.
func NewService(repo Repository, runner *action.Runner, enqueuer Enqueuer, logger *slog.Logger) *Service {
	return &Service{repo: repo, runner: runner, enqueuer: enqueuer, logger: logger, cost: bcrypt.DefaultCost}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Account, error) {
	account, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Account{}, shared.ErrInvalidCredentials
		}
		return Account{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return Account{}, shared.ErrInvalidCredentials
	}
	return account, nil
}

// Register creates an account and profile and schedules creation of the
// status collections.
func (s *Service) Register(ctx context.Context, in RegisterInput) action.Result[Account] {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	return action.Run(ctx, s.runner, action.Spec[RegisterInput, Account]{
		Name: "auth.register",
		Auth: action.AuthNone,
		Validate: func(ctx context.Context, in RegisterInput) error {
			if in.Username == "" {
				return nil
			}
			if err := profiles.ValidateUsername(in.Username); err != nil {
				return err
			}
			taken, err := s.repo.UsernameTaken(ctx, in.Username)
			if err != nil {
				return shared.Remote(err, "Failed to create account")
			}
			if taken {
				return shared.Invalid("username", "Username is already taken")
			}
			return nil
		},
		Write: func(ctx context.Context, _ authctx.Context, in RegisterInput) (Account, error) {
			hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
			if err != nil {
				return Account{}, err
			}
			account, err := s.repo.CreateAccount(ctx, in.Username, in.Email, string(hash))
			if err != nil {
				return Account{}, err
			}
			if s.enqueuer != nil {
				if err := s.enqueuer.EnqueueInitStatusCollections(ctx, account.ID); err != nil {
					s.logger.Warn("enqueue status collections", slog.String("user_id", account.ID), slog.Any("error", err))
				}
			}
			return account, nil
		},
		// The admin user list includes every account.
		Invalidate: func(authctx.Context, RegisterInput, Account) []invalidate.Path {
			return []invalidate.Path{invalidate.Admin()}
		},
		FailureMessage:  "Failed to create account",
		ConflictMessage: "An account with this email or username already exists",
	}, in)
}
