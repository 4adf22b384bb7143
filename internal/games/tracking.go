package games

import (
	"context"
	"errors"

	"github.com/gramy/gramy/internal/access"
	"github.com/gramy/gramy/internal/action"
	"github.com/gramy/gramy/internal/authctx"
	"github.com/gramy/gramy/internal/invalidate"
	"github.com/gramy/gramy/internal/shared"
)

const (
	// DefaultLogLimit is the page size of log listings.
	DefaultLogLimit = 20
	// MaxLogLimit caps log listings.
	MaxLogLimit = 100

	maxHoursPlayed = 9999
	maxPlayCount   = 999
)

// Tracker implements play status and log actions for the signed-in user.
type Tracker struct {
	repo   TrackingRepository
	runner *action.Runner
}

// NewTracker constructs a Tracker.
func NewTracker(repo TrackingRepository, runner *action.Runner) *Tracker {
	return &Tracker{repo: repo, runner: runner}
}

// Authenticate reports whether the caller may track games at all.
func (t *Tracker) Authenticate(ctx context.Context) action.Result[struct{}] {
	return t.runner.Authenticate(ctx)
}

func gamePaths(ac authctx.Context, gameID int64) []invalidate.Path {
	return invalidate.ForGame(ac.Principal.Username, gameID)
}

// GetStatus returns the caller's status for gameID.
func (t *Tracker) GetStatus(ctx context.Context, gameID int64) action.Result[StatusState] {
	return action.RunQuery(ctx, t.runner, action.Query[statusInput, StatusState]{
		Name: "games.get_status",
		Auth: action.AuthRequired,
		Read: func(ctx context.Context, ac authctx.Context, in statusInput) (StatusState, error) {
			status, err := t.repo.Status(ctx, ac.PrincipalID(), in.GameID)
			if err != nil {
				return StatusState{}, err
			}
			return StatusState{GameID: in.GameID, Status: status}, nil
		},
		FailureMessage: "Failed to get game status",
	}, statusInput{GameID: gameID})
}

// SetStatus records status for gameID and moves the game into the matching
// system collection.
func (t *Tracker) SetStatus(ctx context.Context, gameID int64, status Status) action.Result[StatusState] {
	return action.Run(ctx, t.runner, action.Spec[statusInput, StatusState]{
		Name: "games.set_status",
		Auth: action.AuthRequired,
		Validate: func(_ context.Context, in statusInput) error {
			if !in.Status.Valid() {
				return shared.Invalid("status", "Invalid game status")
			}
			return nil
		},
		Write: func(ctx context.Context, ac authctx.Context, in statusInput) (StatusState, error) {
			if err := t.repo.SetStatus(ctx, ac.PrincipalID(), in.GameID, in.Status); err != nil {
				return StatusState{}, err
			}
			return StatusState{GameID: in.GameID, Status: in.Status}, nil
		},
		Invalidate: func(ac authctx.Context, in statusInput, _ StatusState) []invalidate.Path {
			return gamePaths(ac, in.GameID)
		},
		FailureMessage: "Failed to set game status",
	}, statusInput{GameID: gameID, Status: status})
}

// RemoveStatus clears the caller's status for gameID.
func (t *Tracker) RemoveStatus(ctx context.Context, gameID int64) action.Result[StatusState] {
	return action.Run(ctx, t.runner, action.Spec[statusInput, StatusState]{
		Name: "games.remove_status",
		Auth: action.AuthRequired,
		Write: func(ctx context.Context, ac authctx.Context, in statusInput) (StatusState, error) {
			if err := t.repo.RemoveStatus(ctx, ac.PrincipalID(), in.GameID); err != nil {
				return StatusState{}, err
			}
			return StatusState{GameID: in.GameID}, nil
		},
		Invalidate: func(ac authctx.Context, in statusInput, _ StatusState) []invalidate.Path {
			return gamePaths(ac, in.GameID)
		},
		FailureMessage: "Failed to remove game status",
	}, statusInput{GameID: gameID})
}

// validateLogFields enforces the play count and hours ranges.
func validateLogFields(f LogFields) error {
	if f.HoursPlayed != nil {
		if *f.HoursPlayed < 0 {
			return shared.Invalid("hours_played", "Hours played cannot be negative")
		}
		if *f.HoursPlayed > maxHoursPlayed {
			return shared.Invalid("hours_played", "Hours played cannot exceed 9999")
		}
	}
	if f.PlayCount != nil {
		if *f.PlayCount < 1 {
			return shared.Invalid("play_count", "Play count must be at least 1")
		}
		if *f.PlayCount > maxPlayCount {
			return shared.Invalid("play_count", "Play count cannot exceed 999")
		}
	}
	return nil
}

// CreateLog records a play session.
func (t *Tracker) CreateLog(ctx context.Context, in LogInput) action.Result[Log] {
	return action.Run(ctx, t.runner, action.Spec[LogInput, Log]{
		Name: "games.create_log",
		Auth: action.AuthRequired,
		Validate: func(_ context.Context, in LogInput) error {
			return validateLogFields(in.LogFields)
		},
		Write: func(ctx context.Context, ac authctx.Context, in LogInput) (Log, error) {
			return t.repo.InsertLog(ctx, ac.PrincipalID(), in)
		},
		Invalidate: func(ac authctx.Context, in LogInput, _ Log) []invalidate.Path {
			return gamePaths(ac, in.GameID)
		},
		FailureMessage: "Failed to create game log",
	}, in)
}

func (t *Tracker) authorizeLog(ctx context.Context, ac authctx.Context, logID string, op access.Operation) (*logOwner, error) {
	owner, err := t.repo.LogOwner(ctx, logID)
	var res *access.Resource
	switch {
	case err == nil:
		res = &access.Resource{Kind: access.KindGameLog, ID: logID, OwnerID: owner.UserID}
	case errors.Is(err, shared.ErrNotFound):
	default:
		return nil, err
	}
	if err := access.Enforce(access.KindGameLog, res, op, ac.PrincipalID()); err != nil {
		return nil, err
	}
	return &owner, nil
}

// UpdateLog changes the non-nil fields of one of the caller's logs.
func (t *Tracker) UpdateLog(ctx context.Context, in LogUpdate) action.Result[Log] {
	return action.Run(ctx, t.runner, action.Spec[*LogUpdate, Log]{
		Name: "games.update_log",
		Auth: action.AuthRequired,
		Validate: func(_ context.Context, in *LogUpdate) error {
			return validateLogFields(in.LogFields)
		},
		Authorize: func(ctx context.Context, ac authctx.Context, in *LogUpdate) error {
			owner, err := t.authorizeLog(ctx, ac, in.LogID, access.OpEdit)
			if err != nil {
				return err
			}
			in.owner = owner
			return nil
		},
		Write: func(ctx context.Context, _ authctx.Context, in *LogUpdate) (Log, error) {
			return t.repo.UpdateLog(ctx, in.LogID, in.LogFields)
		},
		Invalidate: func(ac authctx.Context, in *LogUpdate, _ Log) []invalidate.Path {
			return gamePaths(ac, in.owner.GameID)
		},
		FailureMessage: "Failed to update game log",
	}, &in)
}

// DeleteLog removes one of the caller's logs.
func (t *Tracker) DeleteLog(ctx context.Context, logID string) action.Result[struct{}] {
	return action.Run(ctx, t.runner, action.Spec[*logRef, struct{}]{
		Name: "games.delete_log",
		Auth: action.AuthRequired,
		Authorize: func(ctx context.Context, ac authctx.Context, in *logRef) error {
			owner, err := t.authorizeLog(ctx, ac, in.LogID, access.OpDelete)
			if err != nil {
				return err
			}
			in.owner = owner
			return nil
		},
		Write: func(ctx context.Context, _ authctx.Context, in *logRef) (struct{}, error) {
			return struct{}{}, t.repo.DeleteLog(ctx, in.LogID)
		},
		Invalidate: func(ac authctx.Context, in *logRef, _ struct{}) []invalidate.Path {
			return gamePaths(ac, in.owner.GameID)
		},
		FailureMessage: "Failed to delete game log",
	}, &logRef{LogID: logID})
}

type listLogsInput struct {
	GameID int64 `json:"game_id" validate:"gte=0"`
	Limit  int   `json:"limit"`
}

// ListLogs returns the caller's newest logs, for one game when gameID > 0.
func (t *Tracker) ListLogs(ctx context.Context, gameID int64, limit int) action.Result[[]Log] {
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	if limit > MaxLogLimit {
		limit = MaxLogLimit
	}
	return action.RunQuery(ctx, t.runner, action.Query[listLogsInput, []Log]{
		Name: "games.list_logs",
		Auth: action.AuthRequired,
		Read: func(ctx context.Context, ac authctx.Context, in listLogsInput) ([]Log, error) {
			return t.repo.ListLogs(ctx, ac.PrincipalID(), in.GameID, in.Limit)
		},
		FailureMessage: "Failed to get game logs",
	}, listLogsInput{GameID: gameID, Limit: limit})
}

// GetLog loads one of the caller's logs.
func (t *Tracker) GetLog(ctx context.Context, logID string) action.Result[Log] {
	return action.RunQuery(ctx, t.runner, action.Query[logRef, Log]{
		Name: "games.get_log",
		Auth: action.AuthRequired,
		Read: func(ctx context.Context, ac authctx.Context, in logRef) (Log, error) {
			return t.repo.GetLog(ctx, ac.PrincipalID(), in.LogID)
		},
		FailureMessage: "Failed to get game log",
	}, logRef{LogID: logID})
}

// LogStats aggregates the caller's logs, for one game when gameID > 0.
func (t *Tracker) LogStats(ctx context.Context, gameID int64) action.Result[LogStats] {
	return action.RunQuery(ctx, t.runner, action.Query[listLogsInput, LogStats]{
		Name: "games.log_stats",
		Auth: action.AuthRequired,
		Read: func(ctx context.Context, ac authctx.Context, in listLogsInput) (LogStats, error) {
			return t.repo.LogStats(ctx, ac.PrincipalID(), in.GameID)
		},
		FailureMessage: "Failed to get stats",
	}, listLogsInput{GameID: gameID})
}

// UserLogs lists any user's logs with game details for profile pages.
func (t *Tracker) UserLogs(ctx context.Context, userID string, limit int) ([]LogWithGame, error) {
	if limit <= 0 || limit > MaxLogLimit {
		limit = DefaultLogLimit
	}
	return t.repo.UserLogs(ctx, userID, limit)
}
