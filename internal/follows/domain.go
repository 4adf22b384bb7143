package follows

import "time"

// User is a follower or followed account in a list.
type User struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	FullName   string    `json:"full_name"`
	AvatarURL  string    `json:"avatar_url"`
	FollowedAt time.Time `json:"followed_at"`
}

// Stats counts followers and followed accounts.
type Stats struct {
	Followers int `json:"followers"`
	Following int `json:"following"`
}

// State is the follow relation as seen by the acting user.
type State struct {
	Following bool `json:"following"`
	Followers int  `json:"followers"`
}

type relationInput struct {
	TargetID string `json:"target_id" validate:"required,uuid"`

	targetUsername string
}
