package profiles

import (
	"time"

	"github.com/gramy/gramy/internal/authctx"
)

// Profile is the public face of a user account.
type Profile struct {
	ID        string       `json:"id"`
	Username  string       `json:"username"`
	FullName  string       `json:"full_name"`
	Bio       string       `json:"bio"`
	AvatarURL string       `json:"avatar_url"`
	Role      authctx.Role `json:"role"`
	Banned    bool         `json:"banned"`
	CreatedAt time.Time    `json:"created_at"`
}

// Stats aggregates a user's activity for the profile header.
type Stats struct {
	TotalCollections int            `json:"total_collections"`
	TotalPlayCount   int            `json:"total_play_count"`
	TotalHours       float64        `json:"total_hours"`
	CompletedGames   int            `json:"completed_games"`
	StatusCounts     map[string]int `json:"status_counts"`
}

// RatingBucket counts reviews with one star rating.
type RatingBucket struct {
	Rating int `json:"rating"`
	Count  int `json:"count"`
}

// RecentReview is a review summary shown on a profile.
type RecentReview struct {
	ID           string    `json:"id"`
	GameID       int64     `json:"game_id"`
	GameName     string    `json:"game_name"`
	GameCoverURL string    `json:"game_cover_url"`
	Rating       int       `json:"rating"`
	Text         string    `json:"text"`
	Likes        int       `json:"likes"`
	CreatedAt    time.Time `json:"created_at"`
}

// SettingsInput updates the editable profile fields.
type SettingsInput struct {
	Username string `json:"username" validate:"required,min=3,max=30"`
	FullName string `json:"full_name" validate:"max=100"`
	Bio      string `json:"bio" validate:"max=500"`
}

// MaxTopFavorites caps the games a user can pin to the top of their profile.
const MaxTopFavorites = 5

// Favorite is a game on a user's favorites list.
type Favorite struct {
	ID           string    `json:"id"`
	GameID       int64     `json:"game_id"`
	GameName     string    `json:"game_name"`
	GameCoverURL string    `json:"game_cover_url"`
	Top          bool      `json:"is_top_favorite"`
	CreatedAt    time.Time `json:"created_at"`
}

// FavoriteState is the outcome of a favorites mutation.
type FavoriteState struct {
	ID  string `json:"id"`
	Top bool   `json:"is_top_favorite"`
}

// FavoriteInput adds a game to the caller's favorites, optionally as a top favorite.
type FavoriteInput struct {
	GameID int64 `json:"game_id" validate:"required,gt=0"`
	Top    bool  `json:"top"`
}

type favoriteRef struct {
	FavoriteID string `json:"favorite_id" validate:"required,uuid"`
}
