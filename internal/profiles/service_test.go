package profiles

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gramy/gramy/internal/action"
	"github.com/gramy/gramy/internal/authctx"
	"github.com/gramy/gramy/internal/invalidate"
	"github.com/gramy/gramy/internal/shared"
)

type stubRepo struct {
	Repository
	updated   *SettingsInput
	updateErr error
	favs      *favoriteStore
}

func (s *stubRepo) UpdateProfile(_ context.Context, id string, in SettingsInput) (Profile, error) {
	if s.updateErr != nil {
		return Profile{}, s.updateErr
	}
	s.updated = &in
	return Profile{ID: id, Username: in.Username, FullName: in.FullName, Bio: in.Bio}, nil
}

type fixedResolver authctx.Context

func (f fixedResolver) Resolve(context.Context) (authctx.Context, error) { return authctx.Context(f), nil }

type pathRecorder struct{ paths []invalidate.Path }

func (p *pathRecorder) Invalidate(_ context.Context, paths ...invalidate.Path) {
	p.paths = append(p.paths, invalidate.NewSet(paths...).Paths()...)
}

func newService(ac authctx.Context, repo *stubRepo) (*Service, *pathRecorder) {
	rec := &pathRecorder{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	runner := action.NewRunner(fixedResolver(ac), rec, nil, logger)
	return NewService(repo, runner), rec
}

func alice() authctx.Context {
	return authctx.Context{Authenticated: true, Principal: authctx.Principal{ID: "u1", Username: "alice"}}
}

func TestUpdateSettingsRenameInvalidatesOldAndNew(t *testing.T) {
	repo := &stubRepo{}
	svc, rec := newService(alice(), repo)

	res := svc.UpdateSettings(context.Background(), SettingsInput{Username: " alice_2 ", FullName: " Alice ", Bio: "hi"})

	require.True(t, res.Success, res.Error)
	require.NotNil(t, repo.updated)
	assert.Equal(t, "alice_2", repo.updated.Username)
	assert.Equal(t, "Alice", repo.updated.FullName)
	assert.Equal(t, []invalidate.Path{"/profile/alice", "/profile/alice_2", "/profile/[username]"}, rec.paths)
}

func TestUpdateSettingsSameUsername(t *testing.T) {
	svc, rec := newService(alice(), &stubRepo{})
	res := svc.UpdateSettings(context.Background(), SettingsInput{Username: "alice"})
	require.True(t, res.Success)
	assert.Equal(t, []invalidate.Path{"/profile/alice"}, rec.paths)
}

func TestUpdateSettingsValidation(t *testing.T) {
	repo := &stubRepo{}
	svc, rec := newService(alice(), repo)

	for _, name := range []string{"", "ab", "Alice", "has space", "way_too_long_username_for_gramy_x"} {
		res := svc.UpdateSettings(context.Background(), SettingsInput{Username: name})
		assert.False(t, res.Success, name)
		assert.Equal(t, shared.KindValidation, res.Kind, name)
	}
	res := svc.UpdateSettings(context.Background(), SettingsInput{Username: "alice", Bio: string(make([]byte, 501))})
	assert.Equal(t, "Bio must be at most 500 characters", res.Error)

	assert.Nil(t, repo.updated)
	assert.Empty(t, rec.paths)
}

func TestUpdateSettingsTakenUsername(t *testing.T) {
	svc, _ := newService(alice(), &stubRepo{updateErr: &pgconn.PgError{Code: "23505"}})
	res := svc.UpdateSettings(context.Background(), SettingsInput{Username: "bob"})
	assert.Equal(t, "Username is already taken", res.Error)
}

func TestUpdateSettingsRequiresLogin(t *testing.T) {
	svc, _ := newService(authctx.Context{}, &stubRepo{})
	res := svc.UpdateSettings(context.Background(), SettingsInput{Username: "bob"})
	assert.Equal(t, "Authentication required.", res.Error)
}

func TestFold(t *testing.T) {
	assert.Equal(t, Fold("Alice"), Fold(" aLiCe "))
}
