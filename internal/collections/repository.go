package collections

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/gramy/gramy/internal/platform/db"
	"github.com/gramy/gramy/internal/shared"
)

// Repository defines persistence for collections and their games.
type Repository interface {
	Get(ctx context.Context, id string) (Collection, error)
	Insert(ctx context.Context, userID string, in CreateInput) (Collection, error)
	Update(ctx context.Context, in UpdateInput) (Collection, error)
	Delete(ctx context.Context, id string) error
	AddGame(ctx context.Context, collectionID string, gameID int64, userID string) error
	RemoveGame(ctx context.Context, collectionID string, gameID int64, userID string) error
	ToggleGame(ctx context.Context, collectionID string, gameID int64, userID string) (bool, error)
	ListForUser(ctx context.Context, userID string, includePrivate, includeSystem bool) ([]Collection, error)
	Games(ctx context.Context, collectionID string, offset, limit int) ([]Game, int, error)
	Contains(ctx context.Context, collectionID string, gameID int64) (bool, error)
	ForGame(ctx context.Context, userID string, gameID int64) (GameMembership, error)
	PublicIndex(ctx context.Context, offset, limit int) ([]Collection, int, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const collectionSelect = `
	SELECT c.id, c.user_id, p.username, c.name, COALESCE(c.description, ''), c.is_public, c.is_system,
	       COALESCE(c.status_key, ''), (SELECT count(*) FROM collection_games cg WHERE cg.collection_id = c.id)::int,
	       c.created_at, c.updated_at
	FROM collections c
	JOIN profiles p ON p.id = c.user_id`

func scanCollection(row pgx.Row) (Collection, error) {
	var c Collection
	err := row.Scan(&c.ID, &c.UserID, &c.Username, &c.Name, &c.Description, &c.IsPublic, &c.IsSystem,
		&c.StatusKey, &c.GameCount, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func collectCollections(rows pgx.Rows) ([]Collection, error) {
	defer rows.Close()
	out := make([]Collection, 0)
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Get loads a collection with its owner and game count.
func (r *PGRepository) Get(ctx context.Context, id string) (Collection, error) {
	c, err := scanCollection(r.pool.QueryRow(ctx, collectionSelect+` WHERE c.id = $1`, id))
	if err != nil {
		if db.IsNoRows(err) {
			return Collection{}, shared.ErrNotFound
		}
		return Collection{}, fmt.Errorf("collections: get: %w", err)
	}
	return c, nil
}

// Insert creates a user collection.
func (r *PGRepository) Insert(ctx context.Context, userID string, in CreateInput) (Collection, error) {
	public := in.IsPublic == nil || *in.IsPublic
	c, err := scanCollection(r.pool.QueryRow(ctx, `
		WITH inserted AS (
			INSERT INTO collections (user_id, name, description, is_public, is_system)
			VALUES ($1, $2, NULLIF($3, ''), $4, false)
			RETURNING *
		)
		SELECT c.id, c.user_id, p.username, c.name, COALESCE(c.description, ''), c.is_public, c.is_system,
		       COALESCE(c.status_key, ''), 0, c.created_at, c.updated_at
		FROM inserted c
		JOIN profiles p ON p.id = c.user_id`, userID, in.Name, in.Description, public))
	if err != nil {
		return Collection{}, fmt.Errorf("collections: insert: %w", err)
	}
	return c, nil
}

// Update writes the non-nil fields and returns the fresh row.
func (r *PGRepository) Update(ctx context.Context, in UpdateInput) (Collection, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE collections SET
			name        = COALESCE($2, name),
			description = COALESCE($3, description),
			is_public   = COALESCE($4, is_public),
			updated_at  = now()
		WHERE id = $1 AND NOT is_system`, in.ID, in.Name, in.Description, in.IsPublic)
	if err != nil {
		return Collection{}, fmt.Errorf("collections: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Collection{}, shared.NotFound("Collection not found")
	}
	return r.Get(ctx, in.ID)
}

// Delete removes a user collection and its entries.
func (r *PGRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM collections WHERE id = $1 AND NOT is_system`, id)
	if err != nil {
		return fmt.Errorf("collections: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("Collection not found")
	}
	return nil
}

func mapMembershipErr(op string, err error) error {
	if db.IsNoDataFound(err) {
		return shared.NotFound("Collection not found")
	}
	return fmt.Errorf("collections: %s: %w", op, err)
}

// AddGame calls add_game_to_collection; a duplicate entry is a unique violation.
func (r *PGRepository) AddGame(ctx context.Context, collectionID string, gameID int64, userID string) error {
	if _, err := r.pool.Exec(ctx, `SELECT add_game_to_collection($1, $2, $3)`, collectionID, gameID, userID); err != nil {
		return mapMembershipErr("add game", err)
	}
	return nil
}

// RemoveGame calls remove_game_from_collection.
func (r *PGRepository) RemoveGame(ctx context.Context, collectionID string, gameID int64, userID string) error {
	if _, err := r.pool.Exec(ctx, `SELECT remove_game_from_collection($1, $2, $3)`, collectionID, gameID, userID); err != nil {
		return mapMembershipErr("remove game", err)
	}
	return nil
}

// ToggleGame calls toggle_collection_game and returns the new membership.
func (r *PGRepository) ToggleGame(ctx context.Context, collectionID string, gameID int64, userID string) (bool, error) {
	var member bool
	if err := r.pool.QueryRow(ctx, `SELECT toggle_collection_game($1, $2, $3)`, collectionID, gameID, userID).Scan(&member); err != nil {
		return false, mapMembershipErr("toggle game", err)
	}
	return member, nil
}

// ListForUser lists userID's collections, newest first.
func (r *PGRepository) ListForUser(ctx context.Context, userID string, includePrivate, includeSystem bool) ([]Collection, error) {
	rows, err := r.pool.Query(ctx, collectionSelect+`
		WHERE c.user_id = $1 AND ($2 OR c.is_public) AND ($3 OR NOT c.is_system)
		ORDER BY c.is_system DESC, c.created_at DESC`, userID, includePrivate, includeSystem)
	if err != nil {
		return nil, fmt.Errorf("collections: list for user: %w", err)
	}
	return collectCollections(rows)
}

// Games pages through a collection's games, most recently added first.
func (r *PGRepository) Games(ctx context.Context, collectionID string, offset, limit int) ([]Game, int, error) {
	var (
		out   []Game
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := r.pool.Query(gctx, `
			SELECT cg.game_id, g.name, COALESCE(g.cover_url, ''), cg.added_at
			FROM collection_games cg
			JOIN games g ON g.igdb_id = cg.game_id
			WHERE cg.collection_id = $1
			ORDER BY cg.added_at DESC
			OFFSET $2 LIMIT $3`, collectionID, offset, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var gm Game
			if err := rows.Scan(&gm.GameID, &gm.Name, &gm.CoverURL, &gm.AddedAt); err != nil {
				return err
			}
			out = append(out, gm)
		}
		return rows.Err()
	})
	g.Go(func() error {
		return r.pool.QueryRow(gctx, `SELECT count(*) FROM collection_games WHERE collection_id = $1`, collectionID).Scan(&total)
	})
	if err := g.Wait(); err != nil {
		return nil, 0, fmt.Errorf("collections: games: %w", err)
	}
	return out, total, nil
}

// Contains reports whether gameID is in collectionID.
func (r *PGRepository) Contains(ctx context.Context, collectionID string, gameID int64) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM collection_games WHERE collection_id = $1 AND game_id = $2)`,
		collectionID, gameID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("collections: contains: %w", err)
	}
	return ok, nil
}

// ForGame lists userID's non-system collections and those holding gameID.
func (r *PGRepository) ForGame(ctx context.Context, userID string, gameID int64) (GameMembership, error) {
	list, err := r.ListForUser(ctx, userID, true, false)
	if err != nil {
		return GameMembership{}, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT cg.collection_id::text
		FROM collection_games cg
		JOIN collections c ON c.id = cg.collection_id
		WHERE c.user_id = $1 AND NOT c.is_system AND cg.game_id = $2`, userID, gameID)
	if err != nil {
		return GameMembership{}, fmt.Errorf("collections: for game: %w", err)
	}
	defer rows.Close()
	containing := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return GameMembership{}, err
		}
		containing = append(containing, id)
	}
	return GameMembership{Collections: list, Containing: containing}, rows.Err()
}

// PublicIndex pages through public user collections, recently updated first.
func (r *PGRepository) PublicIndex(ctx context.Context, offset, limit int) ([]Collection, int, error) {
	var (
		out   []Collection
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := r.pool.Query(gctx, collectionSelect+`
			WHERE c.is_public AND NOT c.is_system
			ORDER BY c.updated_at DESC
			OFFSET $1 LIMIT $2`, offset, limit)
		if err != nil {
			return err
		}
		list, err := collectCollections(rows)
		out = list
		return err
	})
	g.Go(func() error {
		return r.pool.QueryRow(gctx, `SELECT count(*) FROM collections WHERE is_public AND NOT is_system`).Scan(&total)
	})
	if err := g.Wait(); err != nil {
		return nil, 0, fmt.Errorf("collections: index: %w", err)
	}
	return out, total, nil
}

var _ Repository = (*PGRepository)(nil)
