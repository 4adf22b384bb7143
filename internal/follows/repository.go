package follows

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/gramy/gramy/internal/platform/db"
	"github.com/gramy/gramy/internal/shared"
)

// Repository defines persistence for the follow graph.
type Repository interface {
	Username(ctx context.Context, userID string) (string, error)
	Follow(ctx context.Context, followerID, followingID string) (int, error)
	Unfollow(ctx context.Context, followerID, followingID string) (int, error)
	IsFollowing(ctx context.Context, followerID, followingID string) (bool, error)
	Followers(ctx context.Context, userID string, limit int) ([]User, error)
	Following(ctx context.Context, userID string, limit int) ([]User, error)
	Stats(ctx context.Context, userID string) (Stats, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Username returns the username of userID.
func (r *PGRepository) Username(ctx context.Context, userID string) (string, error) {
	var username string
	err := r.pool.QueryRow(ctx, `SELECT username FROM profiles WHERE id = $1`, userID).Scan(&username)
	if err != nil {
		if db.IsNoRows(err) {
			return "", shared.NotFound("User not found")
		}
		return "", fmt.Errorf("follows: username: %w", err)
	}
	return username, nil
}

// Follow inserts the edge if absent and returns the target's follower count.
func (r *PGRepository) Follow(ctx context.Context, followerID, followingID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		WITH ins AS (
			INSERT INTO follows (follower_id, following_id) VALUES ($1, $2)
			ON CONFLICT (follower_id, following_id) DO NOTHING
			RETURNING 1
		)
		SELECT (SELECT count(*) FROM follows WHERE following_id = $2) + (SELECT count(*) FROM ins)`,
		followerID, followingID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("follows: follow: %w", err)
	}
	return count, nil
}

// Unfollow removes the edge and returns the target's follower count.
func (r *PGRepository) Unfollow(ctx context.Context, followerID, followingID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		WITH del AS (
			DELETE FROM follows WHERE follower_id = $1 AND following_id = $2
			RETURNING 1
		)
		SELECT (SELECT count(*) FROM follows WHERE following_id = $2) - (SELECT count(*) FROM del)`,
		followerID, followingID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("follows: unfollow: %w", err)
	}
	return count, nil
}

// IsFollowing reports whether followerID follows followingID.
func (r *PGRepository) IsFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM follows WHERE follower_id = $1 AND following_id = $2)`,
		followerID, followingID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("follows: is following: %w", err)
	}
	return exists, nil
}

// Followers lists accounts following userID, newest first.
func (r *PGRepository) Followers(ctx context.Context, userID string, limit int) ([]User, error) {
	return r.list(ctx, `
		SELECT p.id, p.username, COALESCE(p.full_name, ''), COALESCE(p.avatar_url, ''), f.created_at
		FROM follows f JOIN profiles p ON p.id = f.follower_id
		WHERE f.following_id = $1
		ORDER BY f.created_at DESC
		LIMIT $2`, userID, limit)
}

// Following lists accounts userID follows, newest first.
func (r *PGRepository) Following(ctx context.Context, userID string, limit int) ([]User, error) {
	return r.list(ctx, `
		SELECT p.id, p.username, COALESCE(p.full_name, ''), COALESCE(p.avatar_url, ''), f.created_at
		FROM follows f JOIN profiles p ON p.id = f.following_id
		WHERE f.follower_id = $1
		ORDER BY f.created_at DESC
		LIMIT $2`, userID, limit)
}

func (r *PGRepository) list(ctx context.Context, query, userID string, limit int) ([]User, error) {
	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("follows: list: %w", err)
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.FullName, &u.AvatarURL, &u.FollowedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Stats counts both directions concurrently.
func (r *PGRepository) Stats(ctx context.Context, userID string) (Stats, error) {
	var stats Stats
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.pool.QueryRow(ctx, `SELECT count(*) FROM follows WHERE following_id = $1`, userID).Scan(&stats.Followers)
	})
	g.Go(func() error {
		return r.pool.QueryRow(ctx, `SELECT count(*) FROM follows WHERE follower_id = $1`, userID).Scan(&stats.Following)
	})
	if err := g.Wait(); err != nil {
		return Stats{}, fmt.Errorf("follows: stats: %w", err)
	}
	return stats, nil
}

var _ Repository = (*PGRepository)(nil)
