package admin

import (
	"time"

	"github.com/gramy/gramy/internal/authctx"
)

const (
	// UserListLimit caps the user table.
	UserListLimit = 50
	// ActivityLimit caps the activity feed.
	ActivityLimit = 100
)

// User is a row of the admin user table.
type User struct {
	ID        string       `json:"id"`
	Username  string       `json:"username"`
	Email     string       `json:"email"`
	Role      authctx.Role `json:"role"`
	Banned    bool         `json:"banned"`
	CreatedAt time.Time    `json:"created_at"`
}

// Activity is an audit entry written by admin actions.
type Activity struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	PerformedBy string    `json:"performed_by"`
	ActorName   string    `json:"actor_name"`
	Action      string    `json:"action"`
	CreatedAt   time.Time `json:"created_at"`
}

// BanState is a user's ban flag after a toggle.
type BanState struct {
	UserID string `json:"user_id"`
	Banned bool   `json:"banned"`
}

// Dashboard is the shared data of the admin console.
type Dashboard struct {
	Query    string     `json:"query"`
	Users    []User     `json:"users"`
	Activity []Activity `json:"activity"`
}

type banInput struct {
	UserID string `json:"user_id" validate:"required,uuid"`
}

type searchInput struct {
	Query string `json:"query" validate:"max=100"`
}
