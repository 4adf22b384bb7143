package reviews

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/gramy/gramy/internal/platform/db"
	"github.com/gramy/gramy/internal/shared"
)

// Repository defines persistence for reviews and likes.
type Repository interface {
	Guard(ctx context.Context, reviewID string) (guardRow, error)
	Insert(ctx context.Context, userID string, in SubmitInput) (Review, error)
	Update(ctx context.Context, reviewID string, in SubmitInput) (Review, error)
	Delete(ctx context.Context, reviewID string) error
	ToggleLike(ctx context.Context, reviewID, userID string) (LikeState, error)
	GameReviews(ctx context.Context, gameID int64, sort Sort, offset, limit int) ([]Review, int, error)
	LikedBy(ctx context.Context, userID string, reviewIDs []string) (map[string]bool, error)
	UserReview(ctx context.Context, userID string, gameID int64) (Review, error)
	UserReviews(ctx context.Context, userID string, offset, limit int) ([]Review, int, error)
	AverageScore(ctx context.Context, gameID int64) (Score, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const reviewColumns = `r.id, r.user_id, p.username, COALESCE(p.avatar_url, ''), r.game_id, r.rating, r.review_text, r.likes, r.created_at, r.updated_at`

func scanReview(row pgx.Row, extra ...any) (Review, error) {
	var rv Review
	dest := append([]any{&rv.ID, &rv.UserID, &rv.Username, &rv.AvatarURL, &rv.GameID, &rv.Rating, &rv.Text, &rv.Likes, &rv.CreatedAt, &rv.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return Review{}, err
	}
	return rv, nil
}

// Guard loads the owner projection of a review.
func (r *PGRepository) Guard(ctx context.Context, reviewID string) (guardRow, error) {
	var g guardRow
	err := r.pool.QueryRow(ctx, `
		SELECT r.user_id, p.username, r.game_id
		FROM reviews r
		JOIN profiles p ON p.id = r.user_id
		WHERE r.id = $1`, reviewID).Scan(&g.UserID, &g.AuthorUsername, &g.GameID)
	if err != nil {
		if db.IsNoRows(err) {
			return guardRow{}, shared.ErrNotFound
		}
		return guardRow{}, fmt.Errorf("reviews: guard: %w", err)
	}
	return g, nil
}

// Insert creates a review; a second review of the same game violates the
// user and game unique key.
func (r *PGRepository) Insert(ctx context.Context, userID string, in SubmitInput) (Review, error) {
	rv, err := scanReview(r.pool.QueryRow(ctx, `
		WITH inserted AS (
			INSERT INTO reviews (user_id, game_id, rating, review_text)
			VALUES ($1, $2, $3, $4)
			RETURNING *
		)
		SELECT `+reviewColumns+` FROM inserted r JOIN profiles p ON p.id = r.user_id`,
		userID, in.GameID, in.Rating, in.Text))
	if err != nil {
		return Review{}, fmt.Errorf("reviews: insert: %w", err)
	}
	return rv, nil
}

// Update rewrites rating and text.
func (r *PGRepository) Update(ctx context.Context, reviewID string, in SubmitInput) (Review, error) {
	rv, err := scanReview(r.pool.QueryRow(ctx, `
		WITH updated AS (
			UPDATE reviews SET rating = $2, review_text = $3, updated_at = now()
			WHERE id = $1
			RETURNING *
		)
		SELECT `+reviewColumns+` FROM updated r JOIN profiles p ON p.id = r.user_id`,
		reviewID, in.Rating, in.Text))
	if err != nil {
		if db.IsNoRows(err) {
			return Review{}, shared.NotFound("Review not found")
		}
		return Review{}, fmt.Errorf("reviews: update: %w", err)
	}
	return rv, nil
}

// Delete removes a review and, by cascade, its likes.
func (r *PGRepository) Delete(ctx context.Context, reviewID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM reviews WHERE id = $1`, reviewID)
	if err != nil {
		return fmt.Errorf("reviews: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("Review not found")
	}
	return nil
}

// ToggleLike calls toggle_review_like.
func (r *PGRepository) ToggleLike(ctx context.Context, reviewID, userID string) (LikeState, error) {
	state := LikeState{ReviewID: reviewID}
	err := r.pool.QueryRow(ctx, `SELECT like_count, is_liked FROM toggle_review_like($1, $2)`, reviewID, userID).
		Scan(&state.Likes, &state.Liked)
	if err != nil {
		if db.IsNoDataFound(err) || db.IsNoRows(err) {
			return LikeState{}, shared.NotFound("Review not found")
		}
		return LikeState{}, fmt.Errorf("reviews: toggle like: %w", err)
	}
	return state, nil
}

var sortColumns = map[Sort]string{
	SortCreated: "r.created_at DESC",
	SortLikes:   "r.likes DESC, r.created_at DESC",
}

// GameReviews pages through a game's reviews and counts them concurrently.
func (r *PGRepository) GameReviews(ctx context.Context, gameID int64, sort Sort, offset, limit int) ([]Review, int, error) {
	order, ok := sortColumns[sort]
	if !ok {
		order = sortColumns[SortCreated]
	}
	var (
		out   []Review
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := r.pool.Query(gctx, `
			SELECT `+reviewColumns+`
			FROM reviews r JOIN profiles p ON p.id = r.user_id
			WHERE r.game_id = $1
			ORDER BY `+order+`
			OFFSET $2 LIMIT $3`, gameID, offset, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			rv, err := scanReview(rows)
			if err != nil {
				return err
			}
			out = append(out, rv)
		}
		return rows.Err()
	})
	g.Go(func() error {
		return r.pool.QueryRow(gctx, `SELECT count(*) FROM reviews WHERE game_id = $1`, gameID).Scan(&total)
	})
	if err := g.Wait(); err != nil {
		return nil, 0, fmt.Errorf("reviews: game reviews: %w", err)
	}
	return out, total, nil
}

// LikedBy reports which of reviewIDs userID has liked.
func (r *PGRepository) LikedBy(ctx context.Context, userID string, reviewIDs []string) (map[string]bool, error) {
	liked := make(map[string]bool, len(reviewIDs))
	if userID == "" || len(reviewIDs) == 0 {
		return liked, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT review_id::text FROM review_likes WHERE user_id = $1 AND review_id = ANY($2::uuid[])`, userID, reviewIDs)
	if err != nil {
		return nil, fmt.Errorf("reviews: liked by: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		liked[id] = true
	}
	return liked, rows.Err()
}

// UserReview loads userID's review of gameID.
func (r *PGRepository) UserReview(ctx context.Context, userID string, gameID int64) (Review, error) {
	rv, err := scanReview(r.pool.QueryRow(ctx, `
		SELECT `+reviewColumns+`
		FROM reviews r JOIN profiles p ON p.id = r.user_id
		WHERE r.user_id = $1 AND r.game_id = $2`, userID, gameID))
	if err != nil {
		if db.IsNoRows(err) {
			return Review{}, shared.NotFound("Review not found")
		}
		return Review{}, fmt.Errorf("reviews: user review: %w", err)
	}
	return rv, nil
}

// UserReviews pages through a user's reviews with game names.
func (r *PGRepository) UserReviews(ctx context.Context, userID string, offset, limit int) ([]Review, int, error) {
	var (
		out   []Review
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := r.pool.Query(gctx, `
			SELECT `+reviewColumns+`, gm.name
			FROM reviews r
			JOIN profiles p ON p.id = r.user_id
			JOIN games gm ON gm.igdb_id = r.game_id
			WHERE r.user_id = $1
			ORDER BY r.created_at DESC
			OFFSET $2 LIMIT $3`, userID, offset, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var name string
			rv, err := scanReview(rows, &name)
			if err != nil {
				return err
			}
			rv.GameName = name
			out = append(out, rv)
		}
		return rows.Err()
	})
	g.Go(func() error {
		return r.pool.QueryRow(gctx, `SELECT count(*) FROM reviews WHERE user_id = $1`, userID).Scan(&total)
	})
	if err := g.Wait(); err != nil {
		return nil, 0, fmt.Errorf("reviews: user reviews: %w", err)
	}
	return out, total, nil
}

// AverageScore reads game_average_scores; an unrated game has Total 0.
func (r *PGRepository) AverageScore(ctx context.Context, gameID int64) (Score, error) {
	var s Score
	err := r.pool.QueryRow(ctx, `SELECT average_rating, total_reviews FROM game_average_scores WHERE game_id = $1`, gameID).
		Scan(&s.Average, &s.Total)
	if err != nil {
		if db.IsNoRows(err) {
			return Score{}, nil
		}
		return Score{}, fmt.Errorf("reviews: average: %w", err)
	}
	return s, nil
}

var _ Repository = (*PGRepository)(nil)
