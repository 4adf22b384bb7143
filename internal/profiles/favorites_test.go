package profiles

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gramy/gramy/internal/authctx"
	"github.com/gramy/gramy/internal/invalidate"
	"github.com/gramy/gramy/internal/shared"
)

// favoriteRow mirrors a user_favorite_games row.
type favoriteRow struct {
	Favorite
	UserID string
}

// favoriteStore applies the same top limit as favorite_game and
// toggle_top_favorite.
type favoriteStore struct {
	rows   []*favoriteRow
	writes int
}

func (s *favoriteStore) topCount(userID string) int {
	n := 0
	for _, row := range s.rows {
		if row.UserID == userID && row.Top {
			n++
		}
	}
	return n
}

func (s *favoriteStore) find(id string) *favoriteRow {
	for _, row := range s.rows {
		if row.ID == id {
			return row
		}
	}
	return nil
}

func (s *favoriteStore) seed(userID string, gameID int64, top bool) string {
	id := fmt.Sprintf("00000000-0000-4000-8000-%012d", len(s.rows)+1)
	s.rows = append(s.rows, &favoriteRow{Favorite: Favorite{ID: id, GameID: gameID, Top: top}, UserID: userID})
	return id
}

func (r *stubRepo) Favorites(_ context.Context, userID string) ([]Favorite, error) {
	var out []Favorite
	for _, row := range r.favs.rows {
		if row.UserID == userID {
			out = append(out, row.Favorite)
		}
	}
	return out, nil
}

func (r *stubRepo) FavoriteOwner(_ context.Context, id string) (string, error) {
	if row := r.favs.find(id); row != nil {
		return row.UserID, nil
	}
	return "", shared.ErrNotFound
}

func (r *stubRepo) AddFavorite(_ context.Context, userID string, in FavoriteInput) (FavoriteState, error) {
	for _, row := range r.favs.rows {
		if row.UserID == userID && row.GameID == in.GameID {
			if in.Top && !row.Top {
				if r.favs.topCount(userID) >= MaxTopFavorites {
					return FavoriteState{}, topLimitError()
				}
				row.Top = true
				r.favs.writes++
			}
			return FavoriteState{ID: row.ID, Top: row.Top}, nil
		}
	}
	if in.Top && r.favs.topCount(userID) >= MaxTopFavorites {
		return FavoriteState{}, topLimitError()
	}
	r.favs.writes++
	id := r.favs.seed(userID, in.GameID, in.Top)
	return FavoriteState{ID: id, Top: in.Top}, nil
}

func (r *stubRepo) RemoveFavorite(_ context.Context, userID, id string) error {
	for i, row := range r.favs.rows {
		if row.ID == id && row.UserID == userID {
			r.favs.rows = append(r.favs.rows[:i], r.favs.rows[i+1:]...)
			r.favs.writes++
			return nil
		}
	}
	return shared.NotFound("Favorite not found")
}

func (r *stubRepo) ToggleTopFavorite(_ context.Context, userID, id string) (bool, error) {
	row := r.favs.find(id)
	if row == nil || row.UserID != userID {
		return false, shared.NotFound("Favorite not found")
	}
	if !row.Top && r.favs.topCount(userID) >= MaxTopFavorites {
		return false, topLimitError()
	}
	row.Top = !row.Top
	r.favs.writes++
	return row.Top, nil
}

func favoriteRepo() *stubRepo {
	return &stubRepo{favs: &favoriteStore{}}
}

func TestAddFavorite(t *testing.T) {
	repo := favoriteRepo()
	svc, rec := newService(alice(), repo)

	res := svc.AddFavorite(context.Background(), FavoriteInput{GameID: 42, Top: true})

	require.True(t, res.Success, res.Error)
	assert.True(t, res.Data.Top)
	assert.Equal(t, []invalidate.Path{"/profile/alice"}, rec.paths)
	list, _ := svc.Favorites(context.Background(), "u1")
	require.Len(t, list, 1)
	assert.Equal(t, int64(42), list[0].GameID)

	again := svc.AddFavorite(context.Background(), FavoriteInput{GameID: 42})
	require.True(t, again.Success)
	assert.Equal(t, res.Data.ID, again.Data.ID)
	assert.Equal(t, 1, repo.favs.writes)
}

func TestAddFavoriteValidation(t *testing.T) {
	repo := favoriteRepo()
	svc, rec := newService(alice(), repo)

	res := svc.AddFavorite(context.Background(), FavoriteInput{GameID: 0})

	assert.False(t, res.Success)
	assert.Equal(t, shared.KindValidation, res.Kind)
	assert.Zero(t, repo.favs.writes)
	assert.Empty(t, rec.paths)
}

func TestTopFavoritesLimit(t *testing.T) {
	repo := favoriteRepo()
	for i := 1; i <= MaxTopFavorites; i++ {
		repo.favs.seed("u1", int64(i), true)
	}
	spare := repo.favs.seed("u1", 99, false)
	svc, rec := newService(alice(), repo)

	t.Run("add as top", func(t *testing.T) {
		res := svc.AddFavorite(context.Background(), FavoriteInput{GameID: 100, Top: true})
		assert.False(t, res.Success)
		assert.Equal(t, shared.KindValidation, res.Kind)
		assert.Equal(t, "Maximum 5 top favorites allowed", res.Error)
	})
	t.Run("promote existing", func(t *testing.T) {
		res := svc.ToggleTopFavorite(context.Background(), spare)
		assert.False(t, res.Success)
		assert.Equal(t, shared.KindValidation, res.Kind)
		assert.Equal(t, "Maximum 5 top favorites allowed", res.Error)
	})

	assert.Zero(t, repo.favs.writes)
	assert.Empty(t, rec.paths)
	assert.Equal(t, MaxTopFavorites, repo.favs.topCount("u1"))

	unpinned := svc.ToggleTopFavorite(context.Background(), repo.favs.rows[0].ID)
	require.True(t, unpinned.Success, unpinned.Error)
	assert.False(t, unpinned.Data.Top)
	pinned := svc.ToggleTopFavorite(context.Background(), spare)
	require.True(t, pinned.Success, pinned.Error)
	assert.True(t, pinned.Data.Top)
	assert.Equal(t, []invalidate.Path{"/profile/alice", "/profile/alice"}, rec.paths)
}

func TestFavoritesOwnerOnly(t *testing.T) {
	repo := favoriteRepo()
	bobs := repo.favs.seed("u2", 7, false)
	svc, rec := newService(alice(), repo)

	toggled := svc.ToggleTopFavorite(context.Background(), bobs)
	assert.Equal(t, shared.KindAuthorization, toggled.Kind)
	assert.Equal(t, "Access denied", toggled.Error)

	removed := svc.RemoveFavorite(context.Background(), bobs)
	assert.Equal(t, shared.KindAuthorization, removed.Kind)
	assert.Equal(t, "Access denied", removed.Error)

	assert.Zero(t, repo.favs.writes)
	assert.Len(t, repo.favs.rows, 1)
	assert.False(t, repo.favs.rows[0].Top)
	assert.Empty(t, rec.paths)
}

func TestRemoveFavorite(t *testing.T) {
	repo := favoriteRepo()
	mine := repo.favs.seed("u1", 7, true)
	svc, rec := newService(alice(), repo)

	res := svc.RemoveFavorite(context.Background(), mine)

	require.True(t, res.Success, res.Error)
	assert.Empty(t, repo.favs.rows)
	assert.Equal(t, []invalidate.Path{"/profile/alice"}, rec.paths)

	missing := svc.RemoveFavorite(context.Background(), mine)
	assert.Equal(t, shared.KindNotFound, missing.Kind)
	assert.Equal(t, "Favorite not found", missing.Error)
}

func TestFavoriteActionsRejections(t *testing.T) {
	repo := favoriteRepo()
	mine := repo.favs.seed("u1", 7, false)

	anon, _ := newService(authctx.Context{}, repo)
	assert.Equal(t, "Authentication required.", anon.AddFavorite(context.Background(), FavoriteInput{GameID: 7}).Error)
	assert.Equal(t, "Authentication required.", anon.ToggleTopFavorite(context.Background(), mine).Error)
	assert.Equal(t, "Authentication required.", anon.RemoveFavorite(context.Background(), mine).Error)

	svc, _ := newService(alice(), repo)
	bad := svc.ToggleTopFavorite(context.Background(), "not-a-uuid")
	assert.Equal(t, shared.KindValidation, bad.Kind)
	assert.Zero(t, repo.favs.writes)
}

func TestTopFavorites(t *testing.T) {
	var list []Favorite
	for i := 0; i < 8; i++ {
		list = append(list, Favorite{GameID: int64(i), Top: i%4 != 3})
	}
	top := TopFavorites(list)
	require.Len(t, top, MaxTopFavorites)
	for _, f := range top {
		assert.True(t, f.Top)
	}
	assert.Equal(t, int64(5), top[4].GameID)
}
