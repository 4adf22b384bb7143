package admin

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gramy/gramy/internal/authctx"
	"github.com/gramy/gramy/internal/platform/db"
	"github.com/gramy/gramy/internal/shared"
)

// Repository defines persistence for the admin console.
type Repository interface {
	ListUsers(ctx context.Context, query string, limit int) ([]User, error)
	ToggleBan(ctx context.Context, actorID, userID string) (bool, error)
	ActivityLogs(ctx context.Context, limit int) ([]Activity, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// ListUsers returns users ordered by username, filtered by a substring.
func (r *PGRepository) ListUsers(ctx context.Context, query string, limit int) ([]User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.username, a.email, p.role, p.banned, p.created_at
		FROM profiles p
		JOIN accounts a ON a.id = p.id
		WHERE $1 = '' OR p.username ILIKE '%' || $1 || '%'
		ORDER BY p.username
		LIMIT $2`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("admin: list users: %w", err)
	}
	defer rows.Close()
	out := make([]User, 0)
	for rows.Next() {
		var u User
		var role string
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &role, &u.Banned, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.Role = authctx.Role(role)
		out = append(out, u)
	}
	return out, rows.Err()
}

// ToggleBan calls toggle_user_ban, which also writes the activity row.
func (r *PGRepository) ToggleBan(ctx context.Context, actorID, userID string) (bool, error) {
	var banned bool
	if err := r.pool.QueryRow(ctx, `SELECT toggle_user_ban($1, $2)`, actorID, userID).Scan(&banned); err != nil {
		if db.IsNoDataFound(err) {
			return false, shared.NotFound("User not found")
		}
		return false, fmt.Errorf("admin: toggle ban: %w", err)
	}
	return banned, nil
}

// ActivityLogs returns the newest audit entries.
func (r *PGRepository) ActivityLogs(ctx context.Context, limit int) ([]Activity, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT l.id, COALESCE(l.user_id::text, ''), COALESCE(l.performed_by::text, ''), COALESCE(p.username, ''), l.action, l.created_at
		FROM activity_logs l
		LEFT JOIN profiles p ON p.id = l.performed_by
		ORDER BY l.created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("admin: activity logs: %w", err)
	}
	defer rows.Close()
	out := make([]Activity, 0)
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.ID, &a.UserID, &a.PerformedBy, &a.ActorName, &a.Action, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

var _ Repository = (*PGRepository)(nil)
