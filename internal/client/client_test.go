package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gramy/gramy/internal/collections"
	"github.com/gramy/gramy/internal/follows"
	"github.com/gramy/gramy/internal/games"
	"github.com/gramy/gramy/internal/optimistic"
	"github.com/gramy/gramy/internal/reviews"
	"github.com/gramy/gramy/internal/shared"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// fakeAPI mimics the session and CSRF handshake of the server.
type fakeAPI struct {
	router chi.Router
	token  atomic.Value
}

func newFakeAPI(t *testing.T) (*fakeAPI, *Client) {
	t.Helper()
	api := &fakeAPI{router: chi.NewRouter()}
	api.token.Store("anon-token")
	api.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet && r.Header.Get(shared.CSRFHeader) != api.token.Load().(string) {
				writeJSON(w, http.StatusForbidden, map[string]string{"error": "Forbidden"})
				return
			}
			next.ServeHTTP(w, r)
		})
	})
	api.router.Get("/api/auth/session", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "gramy_session", Value: "s1", Path: "/"})
		writeJSON(w, http.StatusOK, SessionInfo{CSRFToken: api.token.Load().(string)})
	})
	api.router.Post("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("gramy_session"); err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "no session"})
			return
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "correct horse" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid email or password"})
			return
		}
		api.token.Store("user-token")
		writeJSON(w, http.StatusOK, SessionInfo{CSRFToken: "user-token", UserID: "u1"})
	})

	srv := httptest.NewServer(api.router)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, srv.Client())
	require.NoError(t, err)
	return api, c
}

func login(t *testing.T, c *Client) {
	t.Helper()
	info, err := c.Login(context.Background(), "alice@example.com", "correct horse")
	require.NoError(t, err)
	require.Equal(t, "u1", info.UserID)
}

func TestLoginBootstrapsSessionAndRotatesToken(t *testing.T) {
	api, c := newFakeAPI(t)
	var seen string
	api.router.Post("/api/reviews/{id}/like", func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get(shared.CSRFHeader)
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": reviews.LikeState{ReviewID: chi.URLParam(r, "id"), Likes: 1, Liked: true}})
	})

	login(t, c)
	state, err := c.ToggleLike(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "user-token", seen)
	assert.Equal(t, reviews.LikeState{ReviewID: "r1", Likes: 1, Liked: true}, state)
}

func TestLoginInvalidCredentials(t *testing.T) {
	_, c := newFakeAPI(t)
	_, err := c.Login(context.Background(), "alice@example.com", "nope")
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusUnauthorized))
	assert.EqualError(t, err, "gramy api: 401 Invalid email or password")
}

func TestStatusesPlayingToCompleted(t *testing.T) {
	api, c := newFakeAPI(t)
	api.router.Put("/api/games/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Status games.Status `json:"status"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": games.StatusState{GameID: 42, Status: body.Status}})
	})
	login(t, c)

	statuses := NewStatuses(c)
	statuses.Seed(games.StatusState{GameID: 42, Status: games.StatusPlaying})
	state, err := statuses.Set(context.Background(), 42, games.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, games.StatusCompleted, state.Status)

	shown, phase := statuses.State(42)
	assert.Equal(t, games.StatusCompleted, shown.Status)
	assert.Equal(t, optimistic.Reconciled, phase)
}

func TestStatusesRevertOnFailure(t *testing.T) {
	api, c := newFakeAPI(t)
	api.router.Put("/api/games/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "Failed to update game status"})
	})
	login(t, c)

	statuses := NewStatuses(c)
	statuses.Seed(games.StatusState{GameID: 42, Status: games.StatusPlaying})
	state, err := statuses.Set(context.Background(), 42, games.StatusCompleted)
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusInternalServerError))
	assert.Equal(t, games.StatusPlaying, state.Status)

	_, phase := statuses.State(42)
	assert.Equal(t, optimistic.RolledBack, phase)
}

func TestStatusesEmptyRemoves(t *testing.T) {
	api, c := newFakeAPI(t)
	var removed bool
	api.router.Delete("/api/games/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		removed = true
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": games.StatusState{GameID: 42}})
	})
	login(t, c)

	statuses := NewStatuses(c)
	statuses.Seed(games.StatusState{GameID: 42, Status: games.StatusDropped})
	state, err := statuses.Set(context.Background(), 42, "")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Empty(t, state.Status)
}

func TestLikesToggleReconcilesWithServerCount(t *testing.T) {
	api, c := newFakeAPI(t)
	api.router.Post("/api/reviews/{id}/like", func(w http.ResponseWriter, r *http.Request) {
		// Another user liked in the meantime.
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": reviews.LikeState{ReviewID: "r1", Likes: 5, Liked: true}})
	})
	login(t, c)

	likes := NewLikes(c)
	likes.Seed(reviews.LikeState{ReviewID: "r1", Likes: 3})
	state, err := likes.Toggle(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, 5, state.Likes)
	assert.True(t, state.Liked)
}

func TestLikesToggleRevertsWhenSignedOut(t *testing.T) {
	api, c := newFakeAPI(t)
	api.router.Post("/api/reviews/{id}/like", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "Authentication required."})
	})
	_, err := c.Session(context.Background())
	require.NoError(t, err)

	likes := NewLikes(c)
	likes.Seed(reviews.LikeState{ReviewID: "r1", Likes: 3})
	state, err := likes.Toggle(context.Background(), "r1")
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusUnauthorized))
	assert.Equal(t, reviews.LikeState{ReviewID: "r1", Likes: 3}, state)
}

func TestFollowsToggleUsesMethodPerDirection(t *testing.T) {
	api, c := newFakeAPI(t)
	var methods []string
	handler := func(following bool) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			methods = append(methods, r.Method)
			followers := 10
			if following {
				followers = 11
			}
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": follows.State{Following: following, Followers: followers}})
		}
	}
	api.router.Post("/api/users/{id}/follow", handler(true))
	api.router.Delete("/api/users/{id}/follow", handler(false))
	login(t, c)

	f := NewFollows(c)
	f.Seed("bob", follows.State{Followers: 10})
	state, err := f.Toggle(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, follows.State{Following: true, Followers: 11}, state)

	state, err = f.Toggle(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, follows.State{Following: false, Followers: 10}, state)
	assert.Equal(t, []string{http.MethodPost, http.MethodDelete}, methods)
}

func TestMembershipsCorrectCountFromServer(t *testing.T) {
	api, c := newFakeAPI(t)
	api.router.Post("/api/collections/{id}/games/{gameID}/toggle", func(w http.ResponseWriter, r *http.Request) {
		// The game was already added elsewhere, so this toggle removed it.
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": collections.Membership{CollectionID: "c1", GameID: 7, InCollection: false}})
	})
	login(t, c)

	m := NewMemberships(c)
	key := MembershipKey{CollectionID: "c1", GameID: 7}
	m.Seed(key, MembershipState{GameCount: 4})
	state, err := m.Toggle(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, MembershipState{InCollection: false, GameCount: 4}, state)
}

func TestGameLogs(t *testing.T) {
	api, c := newFakeAPI(t)
	api.router.Get("/api/game-logs", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "42", r.URL.Query().Get("gameId"))
		writeJSON(w, http.StatusOK, map[string]any{"logs": []games.Log{}})
	})
	api.router.Post("/api/game-logs", func(w http.ResponseWriter, r *http.Request) {
		var body GameLog
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body.GameID == 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Game ID is required"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "log": games.Log{ID: "l1", GameID: body.GameID, PlayCount: 1}})
	})
	login(t, c)
	ctx := context.Background()

	logs, err := c.ListGameLogs(ctx, 42, 0)
	require.NoError(t, err)
	assert.Empty(t, logs)

	_, err = c.CreateGameLog(ctx, GameLog{})
	assert.EqualError(t, err, "gramy api: 400 Game ID is required")

	log, err := c.CreateGameLog(ctx, GameLog{GameID: 42})
	require.NoError(t, err)
	assert.Equal(t, "l1", log.ID)
}

func TestMutationWithoutTokenIsForbidden(t *testing.T) {
	api, c := newFakeAPI(t)
	api.router.Post("/api/users/{id}/follow", func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})
	_, err := c.Follow(context.Background(), "bob")
	assert.True(t, IsStatus(err, http.StatusForbidden))
}
