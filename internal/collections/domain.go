package collections

import (
	"time"

	"github.com/gramy/gramy/internal/access"
	"github.com/gramy/gramy/internal/shared"
)

const (
	// MaxNameLength bounds a trimmed collection name.
	MaxNameLength = 100
	// MaxDescriptionLength bounds a description.
	MaxDescriptionLength = 500
)

// Collection is a named list of games. System collections mirror play
// statuses and are managed by the status RPCs only.
type Collection struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsPublic    bool      `json:"is_public"`
	IsSystem    bool      `json:"is_system"`
	StatusKey   string    `json:"status_key,omitempty"`
	GameCount   int       `json:"game_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (c Collection) resource() *access.Resource {
	return &access.Resource{Kind: access.KindCollection, ID: c.ID, OwnerID: c.UserID, Public: c.IsPublic, System: c.IsSystem}
}

// Game is a collection entry.
type Game struct {
	GameID   int64     `json:"game_id"`
	Name     string    `json:"name"`
	CoverURL string    `json:"cover_url"`
	AddedAt  time.Time `json:"added_at"`
}

// GamesPage is one page of a collection's games.
type GamesPage struct {
	Collection Collection        `json:"collection"`
	Games      []Game            `json:"games"`
	Pagination shared.Pagination `json:"pagination"`
}

// IndexPage is one page of public collections.
type IndexPage struct {
	Collections []Collection      `json:"collections"`
	Pagination  shared.Pagination `json:"pagination"`
}

// CreateInput describes a new collection. IsPublic defaults to true.
type CreateInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsPublic    *bool  `json:"is_public"`
}

// UpdateInput changes the non-nil fields of a collection.
type UpdateInput struct {
	ID          string  `json:"id" validate:"required,uuid"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsPublic    *bool   `json:"is_public"`

	owner string
}

// Membership is whether a game is in a collection after a change.
type Membership struct {
	CollectionID string `json:"collection_id"`
	GameID       int64  `json:"game_id"`
	InCollection bool   `json:"in_collection"`
}

// GameMembership lists the caller's collections and which contain a game.
type GameMembership struct {
	Collections []Collection `json:"collections"`
	Containing  []string     `json:"containing"`
}

// Contains reports whether collectionID holds the game.
func (m GameMembership) Contains(collectionID string) bool {
	for _, id := range m.Containing {
		if id == collectionID {
			return true
		}
	}
	return false
}

type collectionRef struct {
	ID string `json:"id" validate:"required,uuid"`

	owner string
}

type membershipInput struct {
	CollectionID string `json:"collection_id" validate:"required,uuid"`
	GameID       int64  `json:"game_id" validate:"required,gt=0"`

	owner string
}

type listInput struct {
	UserID        string `json:"user_id" validate:"omitempty,uuid"`
	IncludeSystem bool   `json:"include_system"`
}
