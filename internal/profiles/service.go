package profiles

import (
	"context"
	"regexp"
	"strings"

	"github.com/gramy/gramy/internal/action"
	"github.com/gramy/gramy/internal/authctx"
	"github.com/gramy/gramy/internal/invalidate"
	"github.com/gramy/gramy/internal/shared"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_]{3,30}$`)

// ValidateUsername applies the username format rule.
func ValidateUsername(username string) error {
	if strings.TrimSpace(username) == "" {
		return shared.Invalid("username", "Username is required")
	}
	if !usernamePattern.MatchString(username) {
		return shared.Invalid("username", "Username must be 3-30 characters of lowercase letters, numbers or underscores")
	}
	return nil
}

// Service wraps profile reads and the settings action.
type Service struct {
	repo   Repository
	runner *action.Runner
}

// NewService constructs a Service.
func NewService(repo Repository, runner *action.Runner) *Service {
	return &Service{repo: repo, runner: runner}
}

// UpdateSettings changes the caller's username, full name and bio.
func (s *Service) UpdateSettings(ctx context.Context, in SettingsInput) action.Result[Profile] {
	in.Username = strings.TrimSpace(in.Username)
	in.FullName = strings.TrimSpace(in.FullName)
	in.Bio = strings.TrimSpace(in.Bio)
	return action.Run(ctx, s.runner, action.Spec[SettingsInput, Profile]{
		Name: "profiles.update_settings",
		Auth: action.AuthRequired,
		Validate: func(_ context.Context, in SettingsInput) error {
			return ValidateUsername(in.Username)
		},
		Write: func(ctx context.Context, ac authctx.Context, in SettingsInput) (Profile, error) {
			return s.repo.UpdateProfile(ctx, ac.Principal.ID, in)
		},
		Invalidate: func(ac authctx.Context, _ SettingsInput, out Profile) []invalidate.Path {
			paths := []invalidate.Path{invalidate.Profile(ac.Principal.Username), invalidate.Profile(out.Username)}
			if ac.Principal.Username != out.Username {
				paths = append(paths, invalidate.ProfilePages())
			}
			return paths
		},
		FailureMessage:  "Failed to update profile",
		ConflictMessage: "Username is already taken",
	}, in)
}

// GetByUsername loads a profile by username.
func (s *Service) GetByUsername(ctx context.Context, username string) (Profile, error) {
	return s.repo.GetByUsername(ctx, username)
}

// GetByID loads a profile by id.
func (s *Service) GetByID(ctx context.Context, id string) (Profile, error) {
	return s.repo.GetByID(ctx, id)
}

// Stats returns activity aggregates for a user.
func (s *Service) Stats(ctx context.Context, userID string) (Stats, error) {
	return s.repo.UserStats(ctx, userID)
}

// RatingDistribution returns the per-star review counts for a user.
func (s *Service) RatingDistribution(ctx context.Context, userID string) ([]RatingBucket, error) {
	return s.repo.RatingDistribution(ctx, userID)
}

// RecentReviews returns up to limit of the user's latest reviews.
func (s *Service) RecentReviews(ctx context.Context, userID string, limit int) ([]RecentReview, error) {
	if limit <= 0 {
		limit = 5
	}
	return s.repo.RecentReviews(ctx, userID, limit)
}
