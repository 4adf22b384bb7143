package reviews

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gramy/gramy/internal/action"
	"github.com/gramy/gramy/internal/authctx"
	"github.com/gramy/gramy/internal/invalidate"
	"github.com/gramy/gramy/internal/shared"
)

const (
	aliceID  = "6f1c2a7e-8d3b-4b61-9a51-0c2f5e7d9a10"
	bobID    = "a2b9f0c4-1e57-4d2a-8c3b-7e6d5f4a3b21"
	reviewID = "0d5f3b8a-2c41-4e6f-9a7b-1c2d3e4f5a6b"
)

type stubRepo struct {
	Repository
	guards  map[string]guardRow
	writes  int
	likes   map[string]LikeState
	list    []Review
	liked   map[string]bool
	insertE error
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		guards: map[string]guardRow{reviewID: {UserID: aliceID, AuthorUsername: "alice", GameID: 42}},
		likes:  make(map[string]LikeState),
	}
}

func (s *stubRepo) Guard(_ context.Context, id string) (guardRow, error) {
	g, ok := s.guards[id]
	if !ok {
		return guardRow{}, shared.ErrNotFound
	}
	return g, nil
}

func (s *stubRepo) Insert(_ context.Context, userID string, in SubmitInput) (Review, error) {
	s.writes++
	if s.insertE != nil {
		return Review{}, s.insertE
	}
	return Review{ID: reviewID, UserID: userID, GameID: in.GameID, Rating: in.Rating, Text: in.Text, CreatedAt: time.Now()}, nil
}

func (s *stubRepo) Update(_ context.Context, id string, in SubmitInput) (Review, error) {
	s.writes++
	return Review{ID: id, UserID: aliceID, GameID: s.guards[id].GameID, Rating: in.Rating, Text: in.Text}, nil
}

func (s *stubRepo) Delete(context.Context, string) error {
	s.writes++
	return nil
}

func (s *stubRepo) ToggleLike(_ context.Context, id, _ string) (LikeState, error) {
	s.writes++
	st := s.likes[id]
	st.ReviewID = id
	st.Liked = !st.Liked
	if st.Liked {
		st.Likes++
	} else {
		st.Likes--
	}
	s.likes[id] = st
	return st, nil
}

func (s *stubRepo) GameReviews(context.Context, int64, Sort, int, int) ([]Review, int, error) {
	out := make([]Review, len(s.list))
	copy(out, s.list)
	return out, len(out), nil
}

func (s *stubRepo) LikedBy(context.Context, string, []string) (map[string]bool, error) {
	return s.liked, nil
}

type fixedResolver authctx.Context

func (f fixedResolver) Resolve(context.Context) (authctx.Context, error) { return authctx.Context(f), nil }

type pathRecorder struct{ paths []invalidate.Path }

func (p *pathRecorder) Invalidate(_ context.Context, paths ...invalidate.Path) {
	p.paths = append(p.paths, paths...)
}

func signedIn(id, username string) authctx.Context {
	return authctx.Context{Authenticated: true, Principal: authctx.Principal{ID: id, Username: username}}
}

func newService(ac authctx.Context, repo Repository) (*Service, *pathRecorder) {
	rec := &pathRecorder{}
	runner := action.NewRunner(fixedResolver(ac), rec, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return NewService(repo, runner), rec
}

func TestSubmitInsertsAndInvalidates(t *testing.T) {
	repo := newStubRepo()
	svc, rec := newService(signedIn(bobID, "bob"), repo)

	res := svc.Submit(context.Background(), SubmitInput{GameID: 7, Rating: 4, Text: "  solid  "})

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "solid", res.Data.Text)
	assert.Equal(t, []invalidate.Path{"/profile/bob", "/game/7"}, rec.paths)
}

func TestSubmitValidation(t *testing.T) {
	cases := []struct {
		name string
		in   SubmitInput
		want string
	}{
		{"rating low", SubmitInput{GameID: 1, Rating: 0}, "Rating must be at least 1"},
		{"rating high", SubmitInput{GameID: 1, Rating: 6}, "Rating cannot exceed 5"},
		{"text long", SubmitInput{GameID: 1, Rating: 3, Text: strings.Repeat("a", 5001)}, "Review text must be at most 5000 characters"},
		{"no game", SubmitInput{Rating: 3}, "Game id is required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newStubRepo()
			svc, _ := newService(signedIn(bobID, "bob"), repo)
			res := svc.Submit(context.Background(), tc.in)
			assert.False(t, res.Success)
			assert.Equal(t, tc.want, res.Error)
			assert.Zero(t, repo.writes)
		})
	}
}

func TestSubmitUpdateRequiresOwner(t *testing.T) {
	repo := newStubRepo()
	svc, _ := newService(signedIn(bobID, "bob"), repo)
	res := svc.Submit(context.Background(), SubmitInput{ReviewID: reviewID, GameID: 42, Rating: 1})
	assert.Equal(t, "Access denied", res.Error)
	assert.Equal(t, shared.KindAuthorization, res.Kind)
	assert.Zero(t, repo.writes)

	svc, rec := newService(signedIn(aliceID, "alice"), repo)
	res = svc.Submit(context.Background(), SubmitInput{ReviewID: reviewID, GameID: 42, Rating: 2})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 2, res.Data.Rating)
	assert.Contains(t, rec.paths, invalidate.Path("/game/42"))
}

func TestSubmitDuplicateMapsConflict(t *testing.T) {
	repo := newStubRepo()
	repo.insertE = fmt.Errorf("reviews: insert: %w", &pgconn.PgError{Code: "23505"})
	svc, rec := newService(signedIn(bobID, "bob"), repo)
	res := svc.Submit(context.Background(), SubmitInput{GameID: 42, Rating: 5})
	assert.Equal(t, "You have already reviewed this game", res.Error)
	assert.Empty(t, rec.paths)
}

func TestDeleteGuard(t *testing.T) {
	repo := newStubRepo()
	svc, _ := newService(signedIn(bobID, "bob"), repo)
	assert.Equal(t, "Access denied", svc.Delete(context.Background(), reviewID).Error)
	assert.Equal(t, "Review not found", svc.Delete(context.Background(), bobID).Error)
	assert.Zero(t, repo.writes)

	svc, rec := newService(signedIn(aliceID, "alice"), repo)
	require.True(t, svc.Delete(context.Background(), reviewID).Success)
	assert.Equal(t, []invalidate.Path{"/profile/alice", "/game/42"}, rec.paths)
}

func TestToggleLike(t *testing.T) {
	repo := newStubRepo()
	svc, rec := newService(signedIn(bobID, "bob"), repo)

	first := svc.ToggleLike(context.Background(), reviewID)
	require.True(t, first.Success)
	assert.Equal(t, LikeState{ReviewID: reviewID, Likes: 1, Liked: true}, first.Data)

	second := svc.ToggleLike(context.Background(), reviewID)
	assert.Equal(t, LikeState{ReviewID: reviewID, Likes: 0, Liked: false}, second.Data)
	assert.Equal(t, []invalidate.Path{"/profile/alice", "/game/42", "/profile/alice", "/game/42"}, rec.paths)
	assert.NotContains(t, rec.paths, invalidate.Profile("bob"))

	anon, _ := newService(authctx.Context{}, repo)
	assert.Equal(t, "Authentication required.", anon.ToggleLike(context.Background(), reviewID).Error)
}

func TestGameReviewsLikedFlags(t *testing.T) {
	repo := newStubRepo()
	repo.list = []Review{{ID: "r1"}, {ID: "r2"}}
	repo.liked = map[string]bool{"r2": true}

	svc, _ := newService(signedIn(bobID, "bob"), repo)
	res := svc.GameReviews(context.Background(), 42, 1, 10, SortLikes)
	require.True(t, res.Success, res.Error)
	assert.False(t, res.Data.Reviews[0].Liked)
	assert.True(t, res.Data.Reviews[1].Liked)
	assert.Equal(t, SortLikes, res.Data.Sort)

	anon, _ := newService(authctx.Context{}, repo)
	res = anon.GameReviews(context.Background(), 42, 1, 10, "bogus")
	require.True(t, res.Success, res.Error)
	assert.False(t, res.Data.Reviews[1].Liked)
	assert.Equal(t, SortCreated, res.Data.Sort)
}

func TestScoreFormatted(t *testing.T) {
	assert.Equal(t, "", Score{}.Formatted())
	assert.Equal(t, "3.7", Score{Average: 3.666, Total: 3}.Formatted())
	assert.Equal(t, "5.0", Score{Average: 5, Total: 1}.Formatted())
}
