package collections

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gramy/gramy/internal/action"
	"github.com/gramy/gramy/internal/authctx"
	"github.com/gramy/gramy/internal/invalidate"
	"github.com/gramy/gramy/internal/shared"
)

const (
	aliceID   = "6f1c2a7e-8d3b-4b61-9a51-0c2f5e7d9a10"
	bobID     = "a2b9f0c4-1e57-4d2a-8c3b-7e6d5f4a3b21"
	privateID = "11111111-1111-4111-8111-111111111111"
	publicID  = "22222222-2222-4222-8222-222222222222"
	systemID  = "33333333-3333-4333-8333-333333333333"
	missingID = "44444444-4444-4444-8444-444444444444"
)

type stubRepo struct {
	Repository
	rows    map[string]Collection
	members map[string]map[int64]bool
	writes  int
	addErr  error
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		rows: map[string]Collection{
			privateID: {ID: privateID, UserID: aliceID, Username: "alice", Name: "Backlog"},
			publicID:  {ID: publicID, UserID: aliceID, Username: "alice", Name: "Favorites", IsPublic: true},
			systemID:  {ID: systemID, UserID: aliceID, Username: "alice", Name: "Completed", IsPublic: true, IsSystem: true, StatusKey: "completed"},
		},
		members: make(map[string]map[int64]bool),
	}
}

func (s *stubRepo) Get(_ context.Context, id string) (Collection, error) {
	c, ok := s.rows[id]
	if !ok {
		return Collection{}, shared.ErrNotFound
	}
	return c, nil
}

func (s *stubRepo) Insert(_ context.Context, userID string, in CreateInput) (Collection, error) {
	s.writes++
	return Collection{ID: missingID, UserID: userID, Name: in.Name, Description: in.Description, IsPublic: in.IsPublic == nil || *in.IsPublic}, nil
}

func (s *stubRepo) Update(_ context.Context, in UpdateInput) (Collection, error) {
	s.writes++
	c := s.rows[in.ID]
	if in.Name != nil {
		c.Name = *in.Name
	}
	s.rows[in.ID] = c
	return c, nil
}

func (s *stubRepo) Delete(_ context.Context, id string) error {
	s.writes++
	delete(s.rows, id)
	return nil
}

func (s *stubRepo) AddGame(_ context.Context, id string, gameID int64, _ string) error {
	s.writes++
	return s.addErr
}

func (s *stubRepo) ToggleGame(_ context.Context, id string, gameID int64, _ string) (bool, error) {
	s.writes++
	if s.members[id] == nil {
		s.members[id] = make(map[int64]bool)
	}
	s.members[id][gameID] = !s.members[id][gameID]
	return s.members[id][gameID], nil
}

func (s *stubRepo) ListForUser(_ context.Context, userID string, includePrivate, includeSystem bool) ([]Collection, error) {
	var out []Collection
	for _, id := range []string{privateID, publicID, systemID} {
		c := s.rows[id]
		if c.UserID != userID || (!includePrivate && !c.IsPublic) || (!includeSystem && c.IsSystem) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *stubRepo) Games(context.Context, string, int, int) ([]Game, int, error) {
	return []Game{{GameID: 7, Name: "Outer Wilds"}}, 1, nil
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

func TestAnonymousPrivateViewIsNotFound(t *testing.T) {
	repo := newStubRepo()
	svc, _ := newService(authctx.Context{}, repo)

	private := svc.Get(context.Background(), privateID)
	missing := svc.Get(context.Background(), missingID)

	assert.False(t, private.Success)
	assert.Equal(t, "Collection not found", private.Error)
	assert.Equal(t, shared.KindNotFound, private.Kind)
	assert.Equal(t, missing.Error, private.Error)

	public := svc.Get(context.Background(), publicID)
	require.True(t, public.Success)
	assert.Equal(t, "Favorites", public.Data.Name)
}

func TestOwnerSeesPrivateCollection(t *testing.T) {
	svc, _ := newService(signedIn(aliceID, "alice"), newStubRepo())
	res := svc.Games(context.Background(), privateID, 1, 10)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "Backlog", res.Data.Collection.Name)
	assert.Len(t, res.Data.Games, 1)
}

func TestCreateRejectsEmptyNameWithoutWrite(t *testing.T) {
	repo := newStubRepo()
	svc, rec := newService(signedIn(aliceID, "alice"), repo)

	res := svc.Create(context.Background(), CreateInput{Name: "   "})

	assert.False(t, res.Success)
	assert.Equal(t, "Name cannot be empty", res.Error)
	assert.Equal(t, shared.KindValidation, res.Kind)
	assert.Zero(t, repo.writes)
	assert.Empty(t, rec.paths)
}

func TestCreateValidationLimits(t *testing.T) {
	repo := newStubRepo()
	svc, _ := newService(signedIn(aliceID, "alice"), repo)
	assert.Equal(t, "Name too long", svc.Create(context.Background(), CreateInput{Name: strings.Repeat("n", 101)}).Error)
	assert.Equal(t, "Description too long", svc.Create(context.Background(), CreateInput{Name: "ok", Description: strings.Repeat("d", 501)}).Error)
	assert.Zero(t, repo.writes)
}

func TestCreateDefaultsPublicAndInvalidates(t *testing.T) {
	svc, rec := newService(signedIn(aliceID, "alice"), newStubRepo())
	res := svc.Create(context.Background(), CreateInput{Name: " Couch co-op "})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "Couch co-op", res.Data.Name)
	assert.True(t, res.Data.IsPublic)
	assert.Equal(t, []invalidate.Path{"/profile/alice", invalidate.Collection(missingID), "/collections"}, rec.paths)
}

func TestNonOwnerDeleteDenied(t *testing.T) {
	repo := newStubRepo()
	svc, rec := newService(signedIn(bobID, "bob"), repo)

	public := svc.Delete(context.Background(), publicID)
	assert.Equal(t, "Access denied", public.Error)
	assert.Equal(t, shared.KindAuthorization, public.Kind)

	private := svc.Delete(context.Background(), privateID)
	assert.Equal(t, "Collection not found", private.Error)

	assert.Zero(t, repo.writes)
	assert.Empty(t, rec.paths)
	assert.Contains(t, repo.rows, publicID)
}

func TestSystemCollectionImmutable(t *testing.T) {
	repo := newStubRepo()
	svc, _ := newService(signedIn(aliceID, "alice"), repo)
	name := "Renamed"

	assert.Equal(t, "System collections cannot be modified", svc.Update(context.Background(), UpdateInput{ID: systemID, Name: &name}).Error)
	assert.Equal(t, "System collections cannot be modified", svc.Delete(context.Background(), systemID).Error)
	assert.Equal(t, "System collections cannot be modified", svc.ToggleGame(context.Background(), systemID, 7).Error)
	assert.Zero(t, repo.writes)
}

func TestUpdateInvalidatesOwnerPaths(t *testing.T) {
	repo := newStubRepo()
	svc, rec := newService(signedIn(aliceID, "alice"), repo)
	name := "  Shelf "
	res := svc.Update(context.Background(), UpdateInput{ID: publicID, Name: &name})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "Shelf", res.Data.Name)
	assert.Equal(t, invalidate.ForCollection("alice", publicID), rec.paths)
}

func TestAddGameDuplicateMessage(t *testing.T) {
	repo := newStubRepo()
	repo.addErr = fmt.Errorf("collections: add game: %w", &pgconn.PgError{Code: "23505"})
	svc, _ := newService(signedIn(aliceID, "alice"), repo)
	res := svc.AddGame(context.Background(), publicID, 7)
	assert.Equal(t, "Game already in collection", res.Error)
}

func TestToggleGameFlipsMembership(t *testing.T) {
	repo := newStubRepo()
	svc, _ := newService(signedIn(aliceID, "alice"), repo)

	first := svc.ToggleGame(context.Background(), publicID, 7)
	second := svc.ToggleGame(context.Background(), publicID, 7)

	require.True(t, first.Success)
	assert.True(t, first.Data.InCollection)
	assert.False(t, second.Data.InCollection)
}

func TestListForUserHidesPrivateFromOthers(t *testing.T) {
	repo := newStubRepo()
	bob, _ := newService(signedIn(bobID, "bob"), repo)
	res := bob.ListForUser(context.Background(), aliceID, true)
	require.True(t, res.Success)
	require.Len(t, res.Data, 2)
	for _, c := range res.Data {
		assert.True(t, c.IsPublic)
	}

	alice, _ := newService(signedIn(aliceID, "alice"), repo)
	res = alice.ListForUser(context.Background(), "", false)
	require.True(t, res.Success)
	assert.Len(t, res.Data, 2)

	anon, _ := newService(authctx.Context{}, repo)
	assert.Equal(t, "Authentication required.", anon.ListForUser(context.Background(), "", false).Error)
}

func TestForGameAnonymousIsEmpty(t *testing.T) {
	svc, _ := newService(authctx.Context{}, newStubRepo())
	res := svc.ForGame(context.Background(), 7)
	require.True(t, res.Success)
	assert.Empty(t, res.Data.Collections)
	assert.False(t, res.Data.Contains(publicID))
}
