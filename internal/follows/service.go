package follows

import (
	"context"

	"github.com/gramy/gramy/internal/access"
	"github.com/gramy/gramy/internal/action"
	"github.com/gramy/gramy/internal/authctx"
	"github.com/gramy/gramy/internal/invalidate"
)

// MaxListSize caps follower and following lists.
const MaxListSize = 100

// Service implements follow actions and queries.
type Service struct {
	repo   Repository
	runner *action.Runner
}

// NewService constructs a Service.
func NewService(repo Repository, runner *action.Runner) *Service {
	return &Service{repo: repo, runner: runner}
}

func (s *Service) relationSpec(name string, write func(context.Context, string, string) (int, error), following bool) action.Spec[*relationInput, State] {
	return action.Spec[*relationInput, State]{
		Name: name,
		Auth: action.AuthRequired,
		Authorize: func(ctx context.Context, ac authctx.Context, in *relationInput) error {
			if err := access.RejectSelf(access.RelationFollow, ac.PrincipalID(), in.TargetID); err != nil {
				return err
			}
			username, err := s.repo.Username(ctx, in.TargetID)
			if err != nil {
				return err
			}
			in.targetUsername = username
			return nil
		},
		Write: func(ctx context.Context, ac authctx.Context, in *relationInput) (State, error) {
			count, err := write(ctx, ac.PrincipalID(), in.TargetID)
			if err != nil {
				return State{}, err
			}
			return State{Following: following, Followers: count}, nil
		},
		Invalidate: func(ac authctx.Context, in *relationInput, _ State) []invalidate.Path {
			return []invalidate.Path{
				invalidate.Profile(in.targetUsername),
				invalidate.Followers(in.targetUsername),
				invalidate.Profile(ac.Principal.Username),
				invalidate.Followers(ac.Principal.Username),
			}
		},
		FailureMessage: "Failed to update follow",
	}
}

// Follow makes the caller follow targetID. Following twice is a no-op success.
func (s *Service) Follow(ctx context.Context, targetID string) action.Result[State] {
	return action.Run(ctx, s.runner, s.relationSpec("follows.follow", s.repo.Follow, true), &relationInput{TargetID: targetID})
}

// Unfollow removes the caller's follow of targetID.
func (s *Service) Unfollow(ctx context.Context, targetID string) action.Result[State] {
	return action.Run(ctx, s.runner, s.relationSpec("follows.unfollow", s.repo.Unfollow, false), &relationInput{TargetID: targetID})
}

// IsFollowing reports whether the caller follows targetID; anonymous callers never do.
func (s *Service) IsFollowing(ctx context.Context, targetID string) action.Result[bool] {
	return action.RunQuery(ctx, s.runner, action.Query[string, bool]{
		Name: "follows.is_following",
		Auth: action.AuthOptional,
		Read: func(ctx context.Context, ac authctx.Context, target string) (bool, error) {
			if !ac.Authenticated || ac.PrincipalID() == target {
				return false, nil
			}
			return s.repo.IsFollowing(ctx, ac.PrincipalID(), target)
		},
	}, targetID)
}

// Followers lists accounts following userID.
func (s *Service) Followers(ctx context.Context, userID string, limit int) ([]User, error) {
	return s.repo.Followers(ctx, userID, clampLimit(limit))
}

// Following lists accounts userID follows.
func (s *Service) Following(ctx context.Context, userID string, limit int) ([]User, error) {
	return s.repo.Following(ctx, userID, clampLimit(limit))
}

// Stats counts followers and following for userID.
func (s *Service) Stats(ctx context.Context, userID string) (Stats, error) {
	return s.repo.Stats(ctx, userID)
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > MaxListSize {
		return MaxListSize
	}
	return limit
}
