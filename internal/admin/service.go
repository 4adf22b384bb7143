package admin

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/gramy/gramy/internal/access"
	"github.com/gramy/gramy/internal/action"
	"github.com/gramy/gramy/internal/authctx"
	"github.com/gramy/gramy/internal/invalidate"
)

// Service implements admin-only actions.
type Service struct {
	repo   Repository
	runner *action.Runner
}

// NewService constructs a Service.
func NewService(repo Repository, runner *action.Runner) *Service {
	return &Service{repo: repo, runner: runner}
}

// ToggleBan flips userID's ban flag. Admins cannot ban themselves.
func (s *Service) ToggleBan(ctx context.Context, userID string) action.Result[BanState] {
	return action.Run(ctx, s.runner, action.Spec[banInput, BanState]{
		Name: "admin.toggle_ban",
		Auth: action.AuthAdmin,
		Authorize: func(_ context.Context, ac authctx.Context, in banInput) error {
			return access.RejectSelf(access.RelationBan, ac.PrincipalID(), in.UserID)
		},
		Write: func(ctx context.Context, ac authctx.Context, in banInput) (BanState, error) {
			banned, err := s.repo.ToggleBan(ctx, ac.PrincipalID(), in.UserID)
			if err != nil {
				return BanState{}, err
			}
			return BanState{UserID: in.UserID, Banned: banned}, nil
		},
		Invalidate: func(authctx.Context, banInput, BanState) []invalidate.Path {
			return []invalidate.Path{invalidate.Admin()}
		},
		FailureMessage: "Failed to update ban status",
	}, banInput{UserID: userID})
}

// ListUsers searches users by username.
func (s *Service) ListUsers(ctx context.Context, query string) action.Result[[]User] {
	return action.RunQuery(ctx, s.runner, action.Query[searchInput, []User]{
		Name: "admin.list_users",
		Auth: action.AuthAdmin,
		Read: func(ctx context.Context, _ authctx.Context, in searchInput) ([]User, error) {
			return s.repo.ListUsers(ctx, in.Query, UserListLimit)
		},
		FailureMessage: "Failed to load users",
	}, searchInput{Query: strings.TrimSpace(query)})
}

// ActivityLogs returns the newest audit entries.
func (s *Service) ActivityLogs(ctx context.Context) action.Result[[]Activity] {
	return action.RunQuery(ctx, s.runner, action.Query[struct{}, []Activity]{
		Name: "admin.activity_logs",
		Auth: action.AuthAdmin,
		Read: func(ctx context.Context, _ authctx.Context, _ struct{}) ([]Activity, error) {
			return s.repo.ActivityLogs(ctx, ActivityLimit)
		},
		FailureMessage: "Failed to load activity",
	}, struct{}{})
}

// Dashboard loads users and activity concurrently. Callers check admin
// rights first; the result is shared by every admin.
func (s *Service) Dashboard(ctx context.Context, query string) (Dashboard, error) {
	query = strings.TrimSpace(query)
	d := Dashboard{Query: query}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		users, err := s.repo.ListUsers(gctx, query, UserListLimit)
		d.Users = users
		return err
	})
	g.Go(func() error {
		logs, err := s.repo.ActivityLogs(gctx, ActivityLimit)
		d.Activity = logs
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	return d, nil
}
