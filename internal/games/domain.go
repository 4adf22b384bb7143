package games

import (
	"time"

	"github.com/gramy/gramy/internal/shared"
)

// Entity is a genre, platform or company reference.
type Entity struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// EntityType selects the join table of an entity page.
type EntityType string

const (
	EntityPlatform EntityType = "platform"
	EntityGenre    EntityType = "genre"
	EntityCompany  EntityType = "company"
)

// Valid reports whether t is a known entity type.
func (t EntityType) Valid() bool {
	switch t {
	case EntityPlatform, EntityGenre, EntityCompany:
		return true
	}
	return false
}

// Game is the detail projection of one catalog entry.
type Game struct {
	ID               int64      `json:"id"`
	Name             string     `json:"name"`
	Summary          string     `json:"summary"`
	CoverURL         string     `json:"cover_url"`
	ReleaseDate      *time.Time `json:"release_date,omitempty"`
	BackgroundArtURL string     `json:"background_art_url"`
	CreatedAt        time.Time  `json:"created_at"`
	Genres           []Entity   `json:"genres"`
	Platforms        []Entity   `json:"platforms"`
	Companies        []Entity   `json:"companies"`
}

// Summary is a game in a result list.
type Summary struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	CoverURL string `json:"cover_url"`
}

// SearchFilters narrows the catalog. Empty slices do not filter.
type SearchFilters struct {
	PlatformIDs []int64
	GenreIDs    []int64
	CompanyIDs  []int64
}

// Empty reports whether no filter is set.
func (f SearchFilters) Empty() bool {
	return len(f.PlatformIDs) == 0 && len(f.GenreIDs) == 0 && len(f.CompanyIDs) == 0
}

// ResultPage is one page of games plus pagination metadata.
type ResultPage struct {
	Games      []Summary         `json:"games"`
	Pagination shared.Pagination `json:"pagination"`
}

// Status is a user's play status for a game.
type Status string

const (
	StatusWantToPlay Status = "want_to_play"
	StatusPlaying    Status = "playing"
	StatusCompleted  Status = "completed"
	StatusDropped    Status = "dropped"
	StatusOnHold     Status = "on_hold"
)

// Statuses lists play statuses in display order.
var Statuses = []Status{StatusWantToPlay, StatusPlaying, StatusCompleted, StatusDropped, StatusOnHold}

var statusLabels = map[Status]string{
	StatusWantToPlay: "Want to Play",
	StatusPlaying:    "Currently Playing",
	StatusCompleted:  "Completed",
	StatusDropped:    "Dropped",
	StatusOnHold:     "On Hold",
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Label is the display name; it matches the system collection name.
func (s Status) Label() string { return statusLabels[s] }

// StatusLabels returns a copy of the status to label mapping.
func StatusLabels() map[Status]string {
	out := make(map[Status]string, len(statusLabels))
	for k, v := range statusLabels {
		out[k] = v
	}
	return out
}

// StatusState is the caller's status for a game; Status is empty when unset.
type StatusState struct {
	GameID int64  `json:"game_id"`
	Status Status `json:"status"`
}

type statusInput struct {
	GameID int64  `json:"game_id" validate:"required,gt=0"`
	Status Status `json:"status"`
}

// Log is one play session record.
type Log struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	GameID      int64      `json:"game_id"`
	PlayCount   int        `json:"play_count"`
	HoursPlayed *float64   `json:"hours_played"`
	PlatformID  *int64     `json:"platform_id"`
	Notes       string     `json:"notes"`
	Completed   bool       `json:"completed"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	ReviewID    *string    `json:"review_id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// LogWithGame is a log joined with its game for profile listings.
type LogWithGame struct {
	Log
	GameName     string `json:"game_name"`
	GameCoverURL string `json:"game_cover_url"`
	PlatformName string `json:"platform_name"`
}

// LogFields are the mutable fields of a log. Nil fields keep their defaults
// on create and their stored value on update.
type LogFields struct {
	PlayCount   *int     `json:"play_count"`
	HoursPlayed *float64 `json:"hours_played"`
	PlatformID  *int64   `json:"platform_id" validate:"omitempty,gt=0"`
	Notes       *string  `json:"notes" validate:"omitempty,max=2000"`
	Completed   *bool    `json:"completed"`
	StartedAt   *string  `json:"started_at" validate:"omitempty,datetime=2006-01-02"`
	CompletedAt *string  `json:"completed_at" validate:"omitempty,datetime=2006-01-02"`
	ReviewID    *string  `json:"review_id" validate:"omitempty,uuid"`
}

// LogInput creates a log for a game.
type LogInput struct {
	GameID int64 `json:"game_id" validate:"required,gt=0"`
	LogFields
}

// LogUpdate targets an existing log.
type LogUpdate struct {
	LogID string `json:"log_id" validate:"required,uuid"`
	LogFields

	owner *logOwner
}

type logRef struct {
	LogID string `json:"log_id" validate:"required,uuid"`

	owner *logOwner
}

type logOwner struct {
	UserID string
	GameID int64
}

// LogStats aggregates a user's logs.
type LogStats struct {
	TotalPlayCount int     `json:"total_play_count"`
	TotalHours     float64 `json:"total_hours"`
	CompletedCount int     `json:"completed_count"`
	AverageHours   float64 `json:"average_hours"`
}

// ParseDate parses an optional YYYY-MM-DD value.
func ParseDate(v *string) (*time.Time, error) {
	if v == nil || *v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, *v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
