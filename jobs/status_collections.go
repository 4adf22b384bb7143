package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gramy/gramy/internal/invalidate"
	jobmetrics "github.com/gramy/gramy/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// StatusUser is a user owning at least one game status.
type StatusUser struct {
	ID       string
	Username string
}

// StatusStore runs the status collection RPCs.
type StatusStore interface {
	InitializeStatusCollections(ctx context.Context, userID string) error
	UsersWithStatuses(ctx context.Context, userID string) ([]StatusUser, error)
	CleanupStatusCollections(ctx context.Context, userID string) (int, error)
}

// PGStatusStore implements StatusStore using PostgreSQL.
type PGStatusStore struct {
	pool *pgxpool.Pool
}

// NewStatusStore constructs a PGStatusStore.
func NewStatusStore(pool *pgxpool.Pool) *PGStatusStore {
	return &PGStatusStore{pool: pool}
}

// InitializeStatusCollections calls initialize_status_collections.
func (s *PGStatusStore) InitializeStatusCollections(ctx context.Context, userID string) error {
	if _, err := s.pool.Exec(ctx, `SELECT initialize_status_collections($1)`, userID); err != nil {
		return fmt.Errorf("jobs: init status collections: %w", err)
	}
	return nil
}

// UsersWithStatuses lists users with game statuses, or only userID when set.
func (s *PGStatusStore) UsersWithStatuses(ctx context.Context, userID string) ([]StatusUser, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT p.id, p.username
		FROM game_status gs
		JOIN profiles p ON p.id = gs.user_id
		WHERE $1::uuid IS NULL OR p.id = $1::uuid
		ORDER BY p.username`, nullable(userID))
	if err != nil {
		return nil, fmt.Errorf("jobs: users with statuses: %w", err)
	}
	defer rows.Close()
	var out []StatusUser
	for rows.Next() {
		var u StatusUser
		if err := rows.Scan(&u.ID, &u.Username); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// CleanupStatusCollections calls cleanup_status_collections and returns the
// number of removed entries.
func (s *PGStatusStore) CleanupStatusCollections(ctx context.Context, userID string) (int, error) {
	var removed int
	if err := s.pool.QueryRow(ctx, `SELECT cleanup_status_collections($1)`, userID).Scan(&removed); err != nil {
		return 0, fmt.Errorf("jobs: cleanup status collections: %w", err)
	}
	return removed, nil
}

func nullable(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// Invalidator marks cached pages stale.
type Invalidator interface {
	Invalidate(ctx context.Context, paths ...invalidate.Path)
}

// StatusCollectionsJob handles the status collection tasks.
type StatusCollectionsJob struct {
	Store       StatusStore
	Invalidator Invalidator
	Logger      *slog.Logger
	Metrics     *jobmetrics.Metrics
}

// NewStatusCollectionsJob wires dependencies for the status collection handlers.
func NewStatusCollectionsJob(store StatusStore, invalidator Invalidator, logger *slog.Logger, metrics *jobmetrics.Metrics) *StatusCollectionsJob {
	return &StatusCollectionsJob{Store: store, Invalidator: invalidator, Logger: logger, Metrics: metrics}
}

// HandleInit processes TaskInitStatusCollections.
func (j *StatusCollectionsJob) HandleInit(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Store == nil {
		return errors.New("status collections: handler not configured")
	}
	var payload InitStatusPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.UserID == "" {
		return fmt.Errorf("status collections: bad payload: %w", asynq.SkipRetry)
	}
	tracker := j.metrics().Track(TaskInitStatusCollections)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	if err := j.Store.InitializeStatusCollections(ctx, payload.UserID); err != nil {
		j.logger().Error("initialize status collections", slog.String("user_id", payload.UserID), slog.Any("error", err))
		return err
	}
	j.logger().Info("initialized status collections", slog.String("user_id", payload.UserID))
	return nil
}

// HandleCleanup processes TaskCleanupStatusCollections. Profiles whose
// collections changed are invalidated; one failing user does not stop the run.
func (j *StatusCollectionsJob) HandleCleanup(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Store == nil {
		return errors.New("status collections: handler not configured")
	}
	var payload CleanupStatusPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("status collections: bad payload: %w", asynq.SkipRetry)
		}
	}
	tracker := j.metrics().Track(TaskCleanupStatusCollections)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	users, err := j.Store.UsersWithStatuses(ctx, payload.UserID)
	if err != nil {
		j.logger().Error("list users with statuses", slog.Any("error", err))
		return err
	}
	changed := invalidate.NewSet()
	var failures []error
	for _, u := range users {
		removed, err := j.Store.CleanupStatusCollections(ctx, u.ID)
		if err != nil {
			j.logger().Warn("cleanup status collections", slog.String("user_id", u.ID), slog.Any("error", err))
			failures = append(failures, err)
			continue
		}
		if removed > 0 {
			changed.Add(invalidate.Profile(u.Username))
		}
	}
	if changed.Len() > 0 && j.Invalidator != nil {
		j.Invalidator.Invalidate(ctx, changed.Paths()...)
	}
	j.metrics().AddCleaned(changed.Len())
	j.logger().Info("cleaned status collections", slog.Int("users", len(users)), slog.Int("changed", changed.Len()), slog.Int("failed", len(failures)))
	return errors.Join(failures...)
}

func (j *StatusCollectionsJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *StatusCollectionsJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
