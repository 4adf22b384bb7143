package games

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/gramy/gramy/internal/platform/db"
	"github.com/gramy/gramy/internal/shared"
)

// CatalogRepository reads the game catalog.
type CatalogRepository interface {
	GameDetails(ctx context.Context, id int64) (Game, error)
	FilteredGames(ctx context.Context, f SearchFilters, page, size int) ([]Summary, int, error)
	EntityGames(ctx context.Context, t EntityType, id int64, page, size int) ([]Summary, int, error)
	Entity(ctx context.Context, t EntityType, id int64) (Entity, error)
	ListEntities(ctx context.Context, t EntityType) ([]Entity, error)
	SearchEntities(ctx context.Context, t EntityType, query string, limit int) ([]Entity, error)
	Suggestions(ctx context.Context, query string, limit int) ([]Summary, error)
}

// TrackingRepository persists play statuses and logs.
type TrackingRepository interface {
	Status(ctx context.Context, userID string, gameID int64) (Status, error)
	SetStatus(ctx context.Context, userID string, gameID int64, status Status) error
	RemoveStatus(ctx context.Context, userID string, gameID int64) error
	InsertLog(ctx context.Context, userID string, in LogInput) (Log, error)
	LogOwner(ctx context.Context, logID string) (logOwner, error)
	UpdateLog(ctx context.Context, logID string, f LogFields) (Log, error)
	DeleteLog(ctx context.Context, logID string) error
	ListLogs(ctx context.Context, userID string, gameID int64, limit int) ([]Log, error)
	GetLog(ctx context.Context, userID, logID string) (Log, error)
	LogStats(ctx context.Context, userID string, gameID int64) (LogStats, error)
	UserLogs(ctx context.Context, userID string, limit int) ([]LogWithGame, error)
}

// PGRepository implements both repositories on PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

var entityTables = map[EntityType]string{
	EntityPlatform: "platforms",
	EntityGenre:    "genres",
	EntityCompany:  "companies",
}

func nullableIDs(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	return ids
}

// GameDetails calls get_game_details_by_id.
func (r *PGRepository) GameDetails(ctx context.Context, id int64) (Game, error) {
	var g Game
	var summary, cover, background pgtype.Text
	var release pgtype.Date
	err := r.pool.QueryRow(ctx, `
		SELECT game_igdb_id, game_name, game_summary, game_cover_url, game_release_date,
		       game_background_art_url, game_created_at, genres, platforms, companies
		FROM get_game_details_by_id($1)`, id).
		Scan(&g.ID, &g.Name, &summary, &cover, &release, &background, &g.CreatedAt, &g.Genres, &g.Platforms, &g.Companies)
	if err != nil {
		if db.IsNoRows(err) {
			return Game{}, shared.NotFound("Game not found")
		}
		return Game{}, fmt.Errorf("games: details: %w", err)
	}
	g.Summary = summary.String
	g.CoverURL = cover.String
	g.BackgroundArtURL = background.String
	if release.Valid {
		t := release.Time
		g.ReleaseDate = &t
	}
	return g, nil
}

func scanSummaries(rows pgx.Rows) ([]Summary, int, error) {
	defer rows.Close()
	var out []Summary
	total := 0
	for rows.Next() {
		var s Summary
		var cover pgtype.Text
		var count int64
		if err := rows.Scan(&s.ID, &s.Name, &cover, &count); err != nil {
			return nil, 0, err
		}
		s.CoverURL = cover.String
		total = int(count)
		out = append(out, s)
	}
	return out, total, rows.Err()
}

// FilteredGames calls get_filtered_games; the total comes from the window count.
func (r *PGRepository) FilteredGames(ctx context.Context, f SearchFilters, page, size int) ([]Summary, int, error) {
	rows, err := r.pool.Query(ctx, `SELECT igdb_id, name, cover_url, total_count FROM get_filtered_games($1, $2, $3, $4, $5)`,
		nullableIDs(f.PlatformIDs), nullableIDs(f.GenreIDs), nullableIDs(f.CompanyIDs), page, size)
	if err != nil {
		return nil, 0, fmt.Errorf("games: filter: %w", err)
	}
	games, total, err := scanSummaries(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("games: filter scan: %w", err)
	}
	return games, total, nil
}

// EntityGames calls get_entity_games_paginated.
func (r *PGRepository) EntityGames(ctx context.Context, t EntityType, id int64, page, size int) ([]Summary, int, error) {
	rows, err := r.pool.Query(ctx, `SELECT igdb_id, name, cover_url, total_count FROM get_entity_games_paginated($1, $2, $3, $4)`,
		string(t), id, page, size)
	if err != nil {
		return nil, 0, fmt.Errorf("games: entity games: %w", err)
	}
	games, total, err := scanSummaries(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("games: entity games scan: %w", err)
	}
	return games, total, nil
}

// Entity loads one genre, platform or company.
func (r *PGRepository) Entity(ctx context.Context, t EntityType, id int64) (Entity, error) {
	table, ok := entityTables[t]
	if !ok {
		return Entity{}, shared.NotFound("Not found")
	}
	var e Entity
	err := r.pool.QueryRow(ctx, `SELECT igdb_id, name, COALESCE(description, '') FROM `+table+` WHERE igdb_id = $1`, id).
		Scan(&e.ID, &e.Name, &e.Description)
	if err != nil {
		if db.IsNoRows(err) {
			return Entity{}, shared.NotFound(entityLabel(t) + " not found")
		}
		return Entity{}, fmt.Errorf("games: entity %s: %w", t, err)
	}
	return e, nil
}

// ListEntities returns every row of the entity table ordered by name.
func (r *PGRepository) ListEntities(ctx context.Context, t EntityType) ([]Entity, error) {
	table, ok := entityTables[t]
	if !ok {
		return nil, fmt.Errorf("games: unknown entity type %q", t)
	}
	rows, err := r.pool.Query(ctx, `SELECT igdb_id, name FROM `+table+` ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("games: list %s: %w", table, err)
	}
	defer rows.Close()
	var out []Entity
	for rows.Next() {
		var e Entity
		if err := rows.Scan(&e.ID, &e.Name); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SearchEntities matches entity names case-insensitively.
func (r *PGRepository) SearchEntities(ctx context.Context, t EntityType, query string, limit int) ([]Entity, error) {
	table, ok := entityTables[t]
	if !ok {
		return nil, fmt.Errorf("games: unknown entity type %q", t)
	}
	rows, err := r.pool.Query(ctx, `SELECT igdb_id, name FROM `+table+` WHERE name ILIKE '%' || $1 || '%' ORDER BY name LIMIT $2`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("games: search %s: %w", table, err)
	}
	defer rows.Close()
	var out []Entity
	for rows.Next() {
		var e Entity
		if err := rows.Scan(&e.ID, &e.Name); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Suggestions matches game names for the navbar search.
func (r *PGRepository) Suggestions(ctx context.Context, query string, limit int) ([]Summary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT igdb_id, name, cover_url, 0::bigint FROM games
		WHERE name ILIKE '%' || $1 || '%'
		ORDER BY lower(name) LIMIT $2`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("games: suggestions: %w", err)
	}
	out, _, err := scanSummaries(rows)
	return out, err
}

// Status returns the stored status or "" when none is set.
func (r *PGRepository) Status(ctx context.Context, userID string, gameID int64) (Status, error) {
	var status string
	err := r.pool.QueryRow(ctx, `SELECT status FROM game_status WHERE user_id = $1 AND game_id = $2`, userID, gameID).Scan(&status)
	if err != nil {
		if db.IsNoRows(err) {
			return "", nil
		}
		return "", fmt.Errorf("games: status: %w", err)
	}
	return Status(status), nil
}

// SetStatus calls set_game_status, which also syncs the system collections.
func (r *PGRepository) SetStatus(ctx context.Context, userID string, gameID int64, status Status) error {
	if _, err := r.pool.Exec(ctx, `SELECT set_game_status($1, $2, $3)`, userID, gameID, string(status)); err != nil {
		return fmt.Errorf("games: set status: %w", err)
	}
	return nil
}

// RemoveStatus calls remove_game_status.
func (r *PGRepository) RemoveStatus(ctx context.Context, userID string, gameID int64) error {
	if _, err := r.pool.Exec(ctx, `SELECT remove_game_status($1, $2)`, userID, gameID); err != nil {
		return fmt.Errorf("games: remove status: %w", err)
	}
	return nil
}

const logColumns = `id, user_id, game_id, play_count, hours_played::float8, platform_id, COALESCE(notes, ''), completed,
	started_at, completed_at, review_id, created_at, updated_at`

func scanLog(row pgx.Row) (Log, error) {
	var l Log
	var started, completed pgtype.Date
	if err := row.Scan(&l.ID, &l.UserID, &l.GameID, &l.PlayCount, &l.HoursPlayed, &l.PlatformID, &l.Notes, &l.Completed,
		&started, &completed, &l.ReviewID, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return Log{}, err
	}
	l.StartedAt = dateOrNil(started)
	l.CompletedAt = dateOrNil(completed)
	return l, nil
}

func dateOrNil(d pgtype.Date) *time.Time {
	if !d.Valid {
		return nil
	}
	t := d.Time
	return &t
}

// InsertLog creates a log; play count defaults to 1.
func (r *PGRepository) InsertLog(ctx context.Context, userID string, in LogInput) (Log, error) {
	started, err := ParseDate(in.StartedAt)
	if err != nil {
		return Log{}, err
	}
	finished, err := ParseDate(in.CompletedAt)
	if err != nil {
		return Log{}, err
	}
	playCount := 1
	if in.PlayCount != nil {
		playCount = *in.PlayCount
	}
	completed := in.Completed != nil && *in.Completed
	l, err := scanLog(r.pool.QueryRow(ctx, `
		INSERT INTO game_logs (user_id, game_id, play_count, hours_played, platform_id, notes, completed, started_at, completed_at, review_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+logColumns,
		userID, in.GameID, playCount, in.HoursPlayed, in.PlatformID, in.Notes, completed, started, finished, in.ReviewID))
	if err != nil {
		return Log{}, fmt.Errorf("games: insert log: %w", err)
	}
	return l, nil
}

// LogOwner loads the guard projection of a log.
func (r *PGRepository) LogOwner(ctx context.Context, logID string) (logOwner, error) {
	var o logOwner
	err := r.pool.QueryRow(ctx, `SELECT user_id, game_id FROM game_logs WHERE id = $1`, logID).Scan(&o.UserID, &o.GameID)
	if err != nil {
		if db.IsNoRows(err) {
			return logOwner{}, shared.ErrNotFound
		}
		return logOwner{}, fmt.Errorf("games: log owner: %w", err)
	}
	return o, nil
}

// UpdateLog writes the non-nil fields.
func (r *PGRepository) UpdateLog(ctx context.Context, logID string, f LogFields) (Log, error) {
	started, err := ParseDate(f.StartedAt)
	if err != nil {
		return Log{}, err
	}
	finished, err := ParseDate(f.CompletedAt)
	if err != nil {
		return Log{}, err
	}
	l, err := scanLog(r.pool.QueryRow(ctx, `
		UPDATE game_logs SET
			play_count   = COALESCE($2, play_count),
			hours_played = COALESCE($3, hours_played),
			platform_id  = COALESCE($4, platform_id),
			notes        = COALESCE($5, notes),
			completed    = COALESCE($6, completed),
			started_at   = COALESCE($7, started_at),
			completed_at = COALESCE($8, completed_at),
			review_id    = COALESCE($9, review_id),
			updated_at   = now()
		WHERE id = $1
		RETURNING `+logColumns,
		logID, f.PlayCount, f.HoursPlayed, f.PlatformID, f.Notes, f.Completed, started, finished, f.ReviewID))
	if err != nil {
		if db.IsNoRows(err) {
			return Log{}, shared.NotFound("Game log not found")
		}
		return Log{}, fmt.Errorf("games: update log: %w", err)
	}
	return l, nil
}

// DeleteLog removes a log.
func (r *PGRepository) DeleteLog(ctx context.Context, logID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM game_logs WHERE id = $1`, logID)
	if err != nil {
		return fmt.Errorf("games: delete log: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("Game log not found")
	}
	return nil
}

// ListLogs returns the newest logs of userID, optionally for one game.
func (r *PGRepository) ListLogs(ctx context.Context, userID string, gameID int64, limit int) ([]Log, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+logColumns+` FROM game_logs
		WHERE user_id = $1 AND ($2::bigint = 0 OR game_id = $2)
		ORDER BY created_at DESC
		LIMIT $3`, userID, gameID, limit)
	if err != nil {
		return nil, fmt.Errorf("games: list logs: %w", err)
	}
	defer rows.Close()
	out := make([]Log, 0)
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// GetLog loads one of userID's logs.
func (r *PGRepository) GetLog(ctx context.Context, userID, logID string) (Log, error) {
	l, err := scanLog(r.pool.QueryRow(ctx, `SELECT `+logColumns+` FROM game_logs WHERE id = $1 AND user_id = $2`, logID, userID))
	if err != nil {
		if db.IsNoRows(err) {
			return Log{}, shared.NotFound("Game log not found")
		}
		return Log{}, fmt.Errorf("games: get log: %w", err)
	}
	return l, nil
}

// LogStats aggregates logs; the average only counts logs with hours recorded.
func (r *PGRepository) LogStats(ctx context.Context, userID string, gameID int64) (LogStats, error) {
	var s LogStats
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(sum(play_count), 0)::int,
		       COALESCE(sum(hours_played), 0)::float8,
		       count(*) FILTER (WHERE completed)::int,
		       COALESCE(sum(hours_played) / NULLIF(count(*) FILTER (WHERE hours_played > 0), 0), 0)::float8
		FROM game_logs
		WHERE user_id = $1 AND ($2::bigint = 0 OR game_id = $2)`, userID, gameID).
		Scan(&s.TotalPlayCount, &s.TotalHours, &s.CompletedCount, &s.AverageHours)
	if err != nil {
		return LogStats{}, fmt.Errorf("games: log stats: %w", err)
	}
	return s, nil
}

// UserLogs lists logs with game and platform names, newest first.
func (r *PGRepository) UserLogs(ctx context.Context, userID string, limit int) ([]LogWithGame, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT l.id, l.user_id, l.game_id, l.play_count, l.hours_played::float8, l.platform_id, COALESCE(l.notes, ''), l.completed,
		       l.started_at, l.completed_at, l.review_id, l.created_at, l.updated_at,
		       g.name, COALESCE(g.cover_url, ''), COALESCE(p.name, '')
		FROM game_logs l
		JOIN games g ON g.igdb_id = l.game_id
		LEFT JOIN platforms p ON p.igdb_id = l.platform_id
		WHERE l.user_id = $1
		ORDER BY l.created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("games: user logs: %w", err)
	}
	defer rows.Close()
	var out []LogWithGame
	for rows.Next() {
		var lg LogWithGame
		var started, completed pgtype.Date
		if err := rows.Scan(&lg.ID, &lg.UserID, &lg.GameID, &lg.PlayCount, &lg.HoursPlayed, &lg.PlatformID, &lg.Notes, &lg.Completed,
			&started, &completed, &lg.ReviewID, &lg.CreatedAt, &lg.UpdatedAt, &lg.GameName, &lg.GameCoverURL, &lg.PlatformName); err != nil {
			return nil, err
		}
		lg.StartedAt = dateOrNil(started)
		lg.CompletedAt = dateOrNil(completed)
		out = append(out, lg)
	}
	return out, rows.Err()
}

func entityLabel(t EntityType) string {
	switch t {
	case EntityPlatform:
		return "Platform"
	case EntityGenre:
		return "Genre"
	case EntityCompany:
		return "Company"
	}
	return "Entity"
}

var (
	_ CatalogRepository  = (*PGRepository)(nil)
	_ TrackingRepository = (*PGRepository)(nil)
)
