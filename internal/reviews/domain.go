package reviews

import (
	"strconv"
	"time"

	"github.com/gramy/gramy/internal/shared"
)

// Review is a rating with optional text, joined with its author.
type Review struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatar_url"`
	GameID    int64     `json:"game_id"`
	GameName  string    `json:"game_name,omitempty"`
	Rating    int       `json:"rating"`
	Text      string    `json:"review_text"`
	Likes     int       `json:"likes"`
	Liked     bool      `json:"liked"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Sort orders a game's reviews, newest or most liked first.
type Sort string

const (
	SortCreated Sort = "created_at"
	SortLikes   Sort = "likes"
)

// ParseSort falls back to SortCreated for unknown values.
func ParseSort(v string) Sort {
	if Sort(v) == SortLikes {
		return SortLikes
	}
	return SortCreated
}

// Page is one page of reviews.
type Page struct {
	Reviews    []Review          `json:"reviews"`
	Sort       Sort              `json:"sort"`
	Pagination shared.Pagination `json:"pagination"`
}

// Score is the average rating of a game.
type Score struct {
	Average float64 `json:"average"`
	Total   int     `json:"total"`
}

// Formatted renders the average with one decimal, empty when unrated.
func (s Score) Formatted() string {
	if s.Total == 0 {
		return ""
	}
	return strconv.FormatFloat(s.Average, 'f', 1, 64)
}

// SubmitInput creates a review or, with ReviewID, updates the caller's review.
type SubmitInput struct {
	ReviewID string `json:"review_id" validate:"omitempty,uuid"`
	GameID   int64  `json:"game_id" validate:"required,gt=0"`
	Rating   int    `json:"rating" validate:"gte=1,lte=5"`
	Text     string `json:"review_text" validate:"max=5000"`

	gameID int64
}

// LikeState is the like counter as seen by the caller.
type LikeState struct {
	ReviewID string `json:"review_id"`
	Likes    int    `json:"likes"`
	Liked    bool   `json:"liked"`
}

type reviewRef struct {
	ReviewID string `json:"review_id" validate:"required,uuid"`

	gameID int64
	author string
}

type guardRow struct {
	UserID         string
	AuthorUsername string
	GameID         int64
}
