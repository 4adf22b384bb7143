package profiles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/gramy/gramy/internal/authctx"
	"github.com/gramy/gramy/internal/platform/db"
	"github.com/gramy/gramy/internal/shared"
)

// Repository defines persistence operations for profiles.
type Repository interface {
	FindPrincipal(ctx context.Context, id string) (authctx.Principal, error)
	GetByUsername(ctx context.Context, username string) (Profile, error)
	GetByID(ctx context.Context, id string) (Profile, error)
	UpdateProfile(ctx context.Context, id string, in SettingsInput) (Profile, error)
	UserStats(ctx context.Context, userID string) (Stats, error)
	RatingDistribution(ctx context.Context, userID string) ([]RatingBucket, error)
	RecentReviews(ctx context.Context, userID string, limit int) ([]RecentReview, error)
	Favorites(ctx context.Context, userID string) ([]Favorite, error)
	FavoriteOwner(ctx context.Context, favoriteID string) (string, error)
	AddFavorite(ctx context.Context, userID string, in FavoriteInput) (FavoriteState, error)
	RemoveFavorite(ctx context.Context, userID, favoriteID string) error
	ToggleTopFavorite(ctx context.Context, userID, favoriteID string) (bool, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const profileColumns = `id, username, COALESCE(full_name, ''), COALESCE(bio, ''), COALESCE(avatar_url, ''), role, banned, created_at`

func scanProfile(row interface{ Scan(dest ...any) error }) (Profile, error) {
	var p Profile
	var role string
	if err := row.Scan(&p.ID, &p.Username, &p.FullName, &p.Bio, &p.AvatarURL, &role, &p.Banned, &p.CreatedAt); err != nil {
		return Profile{}, err
	}
	p.Role = authctx.Role(role)
	return p, nil
}

// FindPrincipal loads the auth projection of a profile.
func (r *PGRepository) FindPrincipal(ctx context.Context, id string) (authctx.Principal, error) {
	var p authctx.Principal
	var role string
	err := r.pool.QueryRow(ctx, `SELECT id, username, role, banned FROM profiles WHERE id = $1`, id).
		Scan(&p.ID, &p.Username, &role, &p.Banned)
	if err != nil {
		if db.IsNoRows(err) {
			return authctx.Principal{}, shared.ErrNotFound
		}
		return authctx.Principal{}, fmt.Errorf("profiles: find principal: %w", err)
	}
	p.Role = authctx.Role(role)
	return p, nil
}

// GetByUsername resolves a profile by its case-insensitive username.
func (r *PGRepository) GetByUsername(ctx context.Context, username string) (Profile, error) {
	p, err := scanProfile(r.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE username_folded = $1`, Fold(username)))
	if err != nil {
		if db.IsNoRows(err) {
			return Profile{}, shared.NotFound("User not found")
		}
		return Profile{}, fmt.Errorf("profiles: get by username: %w", err)
	}
	return p, nil
}

// GetByID loads a profile by id.
func (r *PGRepository) GetByID(ctx context.Context, id string) (Profile, error) {
	p, err := scanProfile(r.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id))
	if err != nil {
		if db.IsNoRows(err) {
			return Profile{}, shared.NotFound("User not found")
		}
		return Profile{}, fmt.Errorf("profiles: get by id: %w", err)
	}
	return p, nil
}

// UpdateProfile writes the settings fields in one statement.
func (r *PGRepository) UpdateProfile(ctx context.Context, id string, in SettingsInput) (Profile, error) {
	p, err := scanProfile(r.pool.QueryRow(ctx, `
		UPDATE profiles
		SET username = $2, username_folded = $3, full_name = NULLIF($4, ''), bio = NULLIF($5, ''), updated_at = now()
		WHERE id = $1
		RETURNING `+profileColumns, id, in.Username, Fold(in.Username), in.FullName, in.Bio))
	if err != nil {
		if db.IsNoRows(err) {
			return Profile{}, shared.NotFound("User not found")
		}
		return Profile{}, fmt.Errorf("profiles: update: %w", err)
	}
	return p, nil
}

// UserStats loads collection, log and status aggregates concurrently.
func (r *PGRepository) UserStats(ctx context.Context, userID string) (Stats, error) {
	stats := Stats{StatusCounts: make(map[string]int)}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.pool.QueryRow(ctx,
			`SELECT count(*) FROM collections WHERE user_id = $1 AND NOT is_system`, userID).
			Scan(&stats.TotalCollections)
	})
	g.Go(func() error {
		return r.pool.QueryRow(ctx, `
			SELECT COALESCE(sum(play_count), 0), COALESCE(sum(hours_played), 0)::float8, count(*) FILTER (WHERE completed)
			FROM game_logs WHERE user_id = $1`, userID).
			Scan(&stats.TotalPlayCount, &stats.TotalHours, &stats.CompletedGames)
	})
	statusCounts := make(map[string]int)
	g.Go(func() error {
		rows, err := r.pool.Query(ctx, `SELECT status, count(*) FROM game_status WHERE user_id = $1 GROUP BY status`, userID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var status string
			var count int
			if err := rows.Scan(&status, &count); err != nil {
				return err
			}
			statusCounts[status] = count
		}
		return rows.Err()
	})
	if err := g.Wait(); err != nil {
		return Stats{}, fmt.Errorf("profiles: user stats: %w", err)
	}
	stats.StatusCounts = statusCounts
	return stats, nil
}

// RatingDistribution counts the user's reviews per star rating, 1 through 5.
func (r *PGRepository) RatingDistribution(ctx context.Context, userID string) ([]RatingBucket, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.rating, count(rv.id)
		FROM generate_series(1, 5) AS s(rating)
		LEFT JOIN reviews rv ON rv.rating = s.rating AND rv.user_id = $1
		GROUP BY s.rating ORDER BY s.rating`, userID)
	if err != nil {
		return nil, fmt.Errorf("profiles: rating distribution: %w", err)
	}
	defer rows.Close()
	var out []RatingBucket
	for rows.Next() {
		var b RatingBucket
		if err := rows.Scan(&b.Rating, &b.Count); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// RecentReviews lists the user's latest reviews with game info.
func (r *PGRepository) RecentReviews(ctx context.Context, userID string, limit int) ([]RecentReview, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT rv.id, rv.game_id, g.name, COALESCE(g.cover_url, ''), rv.rating, rv.review_text, rv.likes, rv.created_at
		FROM reviews rv JOIN games g ON g.igdb_id = rv.game_id
		WHERE rv.user_id = $1
		ORDER BY rv.created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("profiles: recent reviews: %w", err)
	}
	defer rows.Close()
	var out []RecentReview
	for rows.Next() {
		var rv RecentReview
		if err := rows.Scan(&rv.ID, &rv.GameID, &rv.GameName, &rv.GameCoverURL, &rv.Rating, &rv.Text, &rv.Likes, &rv.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

// Favorites lists every favorite of the user, newest first.
func (r *PGRepository) Favorites(ctx context.Context, userID string) ([]Favorite, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT f.id, f.game_id, g.name, COALESCE(g.cover_url, ''), f.is_top_favorite, f.created_at
		FROM user_favorite_games f JOIN games g ON g.igdb_id = f.game_id
		WHERE f.user_id = $1
		ORDER BY f.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("profiles: favorites: %w", err)
	}
	defer rows.Close()
	var out []Favorite
	for rows.Next() {
		var f Favorite
		if err := rows.Scan(&f.ID, &f.GameID, &f.GameName, &f.GameCoverURL, &f.Top, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// FavoriteOwner returns the user id a favorite belongs to.
func (r *PGRepository) FavoriteOwner(ctx context.Context, favoriteID string) (string, error) {
	var owner string
	err := r.pool.QueryRow(ctx, `SELECT user_id FROM user_favorite_games WHERE id = $1`, favoriteID).Scan(&owner)
	if err != nil {
		if db.IsNoRows(err) {
			return "", shared.ErrNotFound
		}
		return "", fmt.Errorf("profiles: favorite owner: %w", err)
	}
	return owner, nil
}

func topLimitError() error {
	return shared.Invalid("favorite", fmt.Sprintf("Maximum %d top favorites allowed", MaxTopFavorites))
}

// AddFavorite favorites a game. Favoriting it again is a no-op unless it
// promotes the favorite to the top list.
func (r *PGRepository) AddFavorite(ctx context.Context, userID string, in FavoriteInput) (FavoriteState, error) {
	var st FavoriteState
	err := r.pool.QueryRow(ctx, `SELECT favorite_id, is_top FROM favorite_game($1, $2, $3)`, userID, in.GameID, in.Top).
		Scan(&st.ID, &st.Top)
	if err != nil {
		if db.IsCheckViolation(err) {
			return FavoriteState{}, topLimitError()
		}
		return FavoriteState{}, fmt.Errorf("profiles: add favorite: %w", err)
	}
	return st, nil
}

// RemoveFavorite deletes one of the user's favorites.
func (r *PGRepository) RemoveFavorite(ctx context.Context, userID, favoriteID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM user_favorite_games WHERE id = $1 AND user_id = $2`, favoriteID, userID)
	if err != nil {
		return fmt.Errorf("profiles: remove favorite: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("Favorite not found")
	}
	return nil
}

// ToggleTopFavorite flips the top flag and reports the new value.
func (r *PGRepository) ToggleTopFavorite(ctx context.Context, userID, favoriteID string) (bool, error) {
	var top bool
	err := r.pool.QueryRow(ctx, `SELECT toggle_top_favorite($1, $2)`, userID, favoriteID).Scan(&top)
	if err != nil {
		switch {
		case db.IsCheckViolation(err):
			return false, topLimitError()
		case db.IsNoDataFound(err):
			return false, shared.NotFound("Favorite not found")
		}
		return false, fmt.Errorf("profiles: toggle top favorite: %w", err)
	}
	return top, nil
}

var _ Repository = (*PGRepository)(nil)
