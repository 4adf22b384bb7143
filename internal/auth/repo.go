package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gramy/gramy/internal/platform/db"
	"github.com/gramy/gramy/internal/profiles"
	"github.com/gramy/gramy/internal/shared"
)

// Repository defines persistence operations for the auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (Account, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)
	CreateAccount(ctx context.Context, username, email, passwordHash string) (Account, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByEmail fetches an account with its username.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (Account, error) {
	var a Account
	err := r.pool.QueryRow(ctx, `
		SELECT a.id, a.email, p.username, a.password_hash, a.created_at
		FROM accounts a
		JOIN profiles p ON p.id = a.id
		WHERE lower(a.email) = lower($1)`, strings.TrimSpace(email)).
		Scan(&a.ID, &a.Email, &a.Username, &a.PasswordHash, &a.CreatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return Account{}, shared.ErrNotFound
		}
		return Account{}, fmt.Errorf("auth: find by email: %w", err)
	}
	return a, nil
}

// UsernameTaken checks the folded username index.
func (r *PGRepository) UsernameTaken(ctx context.Context, username string) (bool, error) {
	var taken bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM profiles WHERE username_folded = $1)`,
		profiles.Fold(username)).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("auth: username taken: %w", err)
	}
	return taken, nil
}

// CreateAccount inserts the account and its profile in one transaction.
func (r *PGRepository) CreateAccount(ctx context.Context, username, email, passwordHash string) (Account, error) {
	var a Account
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO accounts (email, password_hash)
			VALUES ($1, $2)
			RETURNING id, email, password_hash, created_at`, strings.TrimSpace(email), passwordHash).
			Scan(&a.ID, &a.Email, &a.PasswordHash, &a.CreatedAt)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO profiles (id, username, username_folded)
			VALUES ($1, $2, $3)`, a.ID, username, profiles.Fold(username))
		return err
	})
	if err != nil {
		return Account{}, err
	}
	a.Username = username
	return a, nil
}

var _ Repository = (*PGRepository)(nil)
