package profiles

import (
	"context"
	"errors"

	"github.com/gramy/gramy/internal/access"
	"github.com/gramy/gramy/internal/action"
	"github.com/gramy/gramy/internal/authctx"
	"github.com/gramy/gramy/internal/invalidate"
	"github.com/gramy/gramy/internal/shared"
)

// Favorites lists a user's favorite games, top favorites included.
func (s *Service) Favorites(ctx context.Context, userID string) ([]Favorite, error) {
	return s.repo.Favorites(ctx, userID)
}

// TopFavorites keeps the top favorites of list, in list order.
func TopFavorites(list []Favorite) []Favorite {
	var out []Favorite
	for _, f := range list {
		if f.Top && len(out) < MaxTopFavorites {
			out = append(out, f)
		}
	}
	return out
}

// guardFavorite lets only the owner change a favorite. Favorites show on
// public profiles, so a stranger's attempt is "Access denied".
func (s *Service) guardFavorite(ctx context.Context, ac authctx.Context, favoriteID string, op access.Operation) error {
	owner, err := s.repo.FavoriteOwner(ctx, favoriteID)
	var res *access.Resource
	switch {
	case err == nil:
		res = &access.Resource{Kind: access.KindFavorite, ID: favoriteID, OwnerID: owner, Public: true}
	case errors.Is(err, shared.ErrNotFound):
	default:
		return err
	}
	return access.Enforce(access.KindFavorite, res, op, ac.PrincipalID())
}

func ownProfile(ac authctx.Context) []invalidate.Path {
	return []invalidate.Path{invalidate.Profile(ac.Principal.Username)}
}

// AddFavorite adds a game to the caller's favorites.
func (s *Service) AddFavorite(ctx context.Context, in FavoriteInput) action.Result[FavoriteState] {
	return action.Run(ctx, s.runner, action.Spec[FavoriteInput, FavoriteState]{
		Name: "profiles.add_favorite",
		Auth: action.AuthRequired,
		Write: func(ctx context.Context, ac authctx.Context, in FavoriteInput) (FavoriteState, error) {
			return s.repo.AddFavorite(ctx, ac.PrincipalID(), in)
		},
		Invalidate: func(ac authctx.Context, _ FavoriteInput, _ FavoriteState) []invalidate.Path {
			return ownProfile(ac)
		},
		FailureMessage: "Failed to favorite game",
	}, in)
}

// RemoveFavorite deletes one of the caller's favorites.
func (s *Service) RemoveFavorite(ctx context.Context, favoriteID string) action.Result[struct{}] {
	return action.Run(ctx, s.runner, action.Spec[favoriteRef, struct{}]{
		Name: "profiles.remove_favorite",
		Auth: action.AuthRequired,
		Authorize: func(ctx context.Context, ac authctx.Context, in favoriteRef) error {
			return s.guardFavorite(ctx, ac, in.FavoriteID, access.OpDelete)
		},
		Write: func(ctx context.Context, ac authctx.Context, in favoriteRef) (struct{}, error) {
			return struct{}{}, s.repo.RemoveFavorite(ctx, ac.PrincipalID(), in.FavoriteID)
		},
		Invalidate: func(ac authctx.Context, _ favoriteRef, _ struct{}) []invalidate.Path {
			return ownProfile(ac)
		},
		FailureMessage: "Failed to remove favorite",
	}, favoriteRef{FavoriteID: favoriteID})
}

// ToggleTopFavorite pins or unpins one of the caller's favorites.
func (s *Service) ToggleTopFavorite(ctx context.Context, favoriteID string) action.Result[FavoriteState] {
	return action.Run(ctx, s.runner, action.Spec[favoriteRef, FavoriteState]{
		Name: "profiles.toggle_top_favorite",
		Auth: action.AuthRequired,
		Authorize: func(ctx context.Context, ac authctx.Context, in favoriteRef) error {
			return s.guardFavorite(ctx, ac, in.FavoriteID, access.OpEdit)
		},
		Write: func(ctx context.Context, ac authctx.Context, in favoriteRef) (FavoriteState, error) {
			top, err := s.repo.ToggleTopFavorite(ctx, ac.PrincipalID(), in.FavoriteID)
			return FavoriteState{ID: in.FavoriteID, Top: top}, err
		},
		Invalidate: func(ac authctx.Context, _ favoriteRef, _ FavoriteState) []invalidate.Path {
			return ownProfile(ac)
		},
		FailureMessage: "Error updating favorites",
	}, favoriteRef{FavoriteID: favoriteID})
}
