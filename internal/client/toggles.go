package client

import (
	"context"

	"github.com/gramy/gramy/internal/follows"
	"github.com/gramy/gramy/internal/games"
	"github.com/gramy/gramy/internal/optimistic"
	"github.com/gramy/gramy/internal/reviews"
)

// Likes toggles review likes optimistically.
type Likes struct {
	client *Client
	rec    *optimistic.Reconciler[string, reviews.LikeState]
}

// NewLikes constructs a Likes toggler.
func NewLikes(c *Client) *Likes {
	return &Likes{client: c, rec: optimistic.New[string, reviews.LikeState]()}
}

// Seed records the server-known like state of a review.
func (l *Likes) Seed(state reviews.LikeState) { l.rec.Seed(state.ReviewID, state) }

// State returns the displayed like state.
func (l *Likes) State(reviewID string) (reviews.LikeState, optimistic.Phase) {
	return l.rec.State(reviewID)
}

// Toggle flips liked and adjusts the count before the server answers.
func (l *Likes) Toggle(ctx context.Context, reviewID string) (reviews.LikeState, error) {
	return l.rec.Do(ctx, reviewID, func(s reviews.LikeState) reviews.LikeState {
		s.ReviewID = reviewID
		s.Liked = !s.Liked
		if s.Liked {
			s.Likes++
		} else if s.Likes > 0 {
			s.Likes--
		}
		return s
	}, func(ctx context.Context, _ reviews.LikeState) (reviews.LikeState, error) {
		return l.client.ToggleLike(ctx, reviewID)
	})
}

// Follows follows and unfollows users optimistically.
type Follows struct {
	client *Client
	rec    *optimistic.Reconciler[string, follows.State]
}

// NewFollows constructs a Follows toggler.
func NewFollows(c *Client) *Follows {
	return &Follows{client: c, rec: optimistic.New[string, follows.State]()}
}

// Seed records the server-known relation to userID.
func (f *Follows) Seed(userID string, state follows.State) { f.rec.Seed(userID, state) }

// State returns the displayed relation to userID.
func (f *Follows) State(userID string) (follows.State, optimistic.Phase) { return f.rec.State(userID) }

// Set moves the relation to following, adjusting the follower count.
func (f *Follows) Set(ctx context.Context, userID string, following bool) (follows.State, error) {
	return f.rec.Do(ctx, userID, func(s follows.State) follows.State {
		switch {
		case following && !s.Following:
			s.Followers++
		case !following && s.Following && s.Followers > 0:
			s.Followers--
		}
		s.Following = following
		return s
	}, func(ctx context.Context, predicted follows.State) (follows.State, error) {
		if predicted.Following {
			return f.client.Follow(ctx, userID)
		}
		return f.client.Unfollow(ctx, userID)
	})
}

// Toggle flips the displayed relation.
func (f *Follows) Toggle(ctx context.Context, userID string) (follows.State, error) {
	current, _ := f.rec.State(userID)
	return f.Set(ctx, userID, !current.Following)
}

// Statuses changes game statuses optimistically.
type Statuses struct {
	client *Client
	rec    *optimistic.Reconciler[int64, games.StatusState]
}

// NewStatuses constructs a Statuses setter.
func NewStatuses(c *Client) *Statuses {
	return &Statuses{client: c, rec: optimistic.New[int64, games.StatusState]()}
}

// Seed records the server-known status of a game.
func (s *Statuses) Seed(state games.StatusState) { s.rec.Seed(state.GameID, state) }

// State returns the displayed status of a game.
func (s *Statuses) State(gameID int64) (games.StatusState, optimistic.Phase) {
	return s.rec.State(gameID)
}

// Set shows status immediately. An empty status removes it.
func (s *Statuses) Set(ctx context.Context, gameID int64, status games.Status) (games.StatusState, error) {
	return s.rec.Do(ctx, gameID, func(games.StatusState) games.StatusState {
		return games.StatusState{GameID: gameID, Status: status}
	}, func(ctx context.Context, predicted games.StatusState) (games.StatusState, error) {
		if predicted.Status == "" {
			return s.client.RemoveStatus(ctx, gameID)
		}
		return s.client.SetStatus(ctx, gameID, predicted.Status)
	})
}

// MembershipKey identifies a game within a collection.
type MembershipKey struct {
	CollectionID string
	GameID       int64
}

// MembershipState is the displayed membership and the collection size.
type MembershipState struct {
	InCollection bool
	GameCount    int
}

// Memberships toggles collection membership optimistically.
type Memberships struct {
	client *Client
	rec    *optimistic.Reconciler[MembershipKey, MembershipState]
}

// NewMemberships constructs a Memberships toggler.
func NewMemberships(c *Client) *Memberships {
	return &Memberships{client: c, rec: optimistic.New[MembershipKey, MembershipState]()}
}

// Seed records the server-known membership.
func (m *Memberships) Seed(key MembershipKey, state MembershipState) { m.rec.Seed(key, state) }

// State returns the displayed membership.
func (m *Memberships) State(key MembershipKey) (MembershipState, optimistic.Phase) {
	return m.rec.State(key)
}

// Toggle flips membership and adjusts the count. The server reports only
// membership, so the count is corrected when it disagrees with the prediction.
func (m *Memberships) Toggle(ctx context.Context, key MembershipKey) (MembershipState, error) {
	return m.rec.Do(ctx, key, func(s MembershipState) MembershipState {
		s.InCollection = !s.InCollection
		if s.InCollection {
			s.GameCount++
		} else if s.GameCount > 0 {
			s.GameCount--
		}
		return s
	}, func(ctx context.Context, predicted MembershipState) (MembershipState, error) {
		res, err := m.client.ToggleCollectionGame(ctx, key.CollectionID, key.GameID)
		if err != nil {
			return MembershipState{}, err
		}
		state := MembershipState{InCollection: res.InCollection, GameCount: predicted.GameCount}
		switch {
		case res.InCollection && !predicted.InCollection:
			state.GameCount++
		case !res.InCollection && predicted.InCollection && state.GameCount > 0:
			state.GameCount--
		}
		return state, nil
	})
}
