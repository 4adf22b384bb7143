package action

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gramy/gramy/internal/access"
	"github.com/gramy/gramy/internal/authctx"
	"github.com/gramy/gramy/internal/invalidate"
	"github.com/gramy/gramy/internal/observability"
	"github.com/gramy/gramy/internal/shared"
)

type fixedResolver struct {
	ac  authctx.Context
	err error
}

func (f fixedResolver) Resolve(context.Context) (authctx.Context, error) { return f.ac, f.err }

type recordingInvalidator struct {
	paths []invalidate.Path
}

func (r *recordingInvalidator) Invalidate(_ context.Context, paths ...invalidate.Path) {
	r.paths = append(r.paths, invalidate.NewSet(paths...).Paths()...)
}

func signedIn(id string) authctx.Context {
	return authctx.Context{Authenticated: true, Principal: authctx.Principal{ID: id, Username: id, Role: authctx.RoleUser}}
}

func newRunner(ac authctx.Context) (*Runner, *recordingInvalidator) {
	inv := &recordingInvalidator{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRunner(fixedResolver{ac: ac}, inv, observability.NewMetrics(), logger), inv
}

type renameInput struct {
	CollectionID string `json:"collection_id" validate:"required"`
	Name         string `json:"name" validate:"max=100"`
}

func renameSpec(writes *int, owner string) Spec[renameInput, string] {
	return Spec[renameInput, string]{
		Name: "collections.rename",
		Auth: AuthRequired,
		Validate: func(_ context.Context, in renameInput) error {
			if strings.TrimSpace(in.Name) == "" {
				return shared.Invalid("name", "Name cannot be empty")
			}
			return nil
		},
		Authorize: func(_ context.Context, ac authctx.Context, in renameInput) error {
			res := &access.Resource{Kind: access.KindCollection, ID: in.CollectionID, OwnerID: owner, Public: true}
			return access.Enforce(access.KindCollection, res, access.OpEdit, ac.PrincipalID())
		},
		Write: func(context.Context, authctx.Context, renameInput) (string, error) {
			*writes++
			return "ok", nil
		},
		Invalidate: func(ac authctx.Context, in renameInput, _ string) []invalidate.Path {
			return invalidate.ForCollection(ac.Principal.Username, in.CollectionID)
		},
	}
}

func TestRunSuccessInvalidates(t *testing.T) {
	runner, inv := newRunner(signedIn("alice"))
	writes := 0

	res := Run(context.Background(), runner, renameSpec(&writes, "alice"), renameInput{CollectionID: "c1", Name: "Faves"})

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "ok", res.Data)
	assert.Equal(t, 1, writes)
	assert.Equal(t, []invalidate.Path{"/profile/alice", "/collection/c1", "/collections"}, inv.paths)
	assert.NoError(t, res.Err())
}

func TestRunRequiresAuthentication(t *testing.T) {
	runner, inv := newRunner(authctx.Context{})
	writes := 0

	res := Run(context.Background(), runner, renameSpec(&writes, "alice"), renameInput{CollectionID: "c1", Name: "x"})

	assert.False(t, res.Success)
	assert.Equal(t, "Authentication required.", res.Error)
	assert.Equal(t, shared.KindAuthentication, res.Kind)
	assert.Zero(t, writes)
	assert.Empty(t, inv.paths)
}

func TestRunEmptyNameRejectedWithoutWrite(t *testing.T) {
	runner, inv := newRunner(signedIn("alice"))
	writes := 0

	res := Run(context.Background(), runner, renameSpec(&writes, "alice"), renameInput{CollectionID: "c1", Name: "   "})

	assert.False(t, res.Success)
	assert.Equal(t, "Name cannot be empty", res.Error)
	assert.Equal(t, shared.KindValidation, res.Kind)
	assert.Zero(t, writes)
	assert.Empty(t, inv.paths)
}

func TestRunStructTagMessages(t *testing.T) {
	runner, _ := newRunner(signedIn("alice"))
	writes := 0

	res := Run(context.Background(), runner, renameSpec(&writes, "alice"), renameInput{CollectionID: "c1", Name: strings.Repeat("a", 101)})
	assert.Equal(t, "Name must be at most 100 characters", res.Error)

	res = Run(context.Background(), runner, renameSpec(&writes, "alice"), renameInput{Name: "ok"})
	assert.Equal(t, "Collection id is required", res.Error)
	assert.Zero(t, writes)
}

func TestRunAuthorizationDenied(t *testing.T) {
	runner, inv := newRunner(signedIn("mallory"))
	writes := 0

	res := Run(context.Background(), runner, renameSpec(&writes, "alice"), renameInput{CollectionID: "c1", Name: "mine"})

	assert.Equal(t, "Access denied", res.Error)
	assert.Equal(t, shared.KindAuthorization, res.Kind)
	assert.Zero(t, writes)
	assert.Empty(t, inv.paths)
}

func TestRunBannedPrincipalRejected(t *testing.T) {
	ac := signedIn("alice")
	ac.Principal.Banned = true
	runner, _ := newRunner(ac)
	writes := 0

	res := Run(context.Background(), runner, renameSpec(&writes, "alice"), renameInput{CollectionID: "c1", Name: "x"})
	assert.Equal(t, "Your account has been suspended.", res.Error)
	assert.Zero(t, writes)
}

func TestRunAdminMode(t *testing.T) {
	runner, _ := newRunner(signedIn("alice"))
	spec := Spec[struct{}, bool]{
		Name:  "admin.noop",
		Auth:  AuthAdmin,
		Write: func(context.Context, authctx.Context, struct{}) (bool, error) { return true, nil },
	}
	res := Run(context.Background(), runner, spec, struct{}{})
	assert.Equal(t, "Admin access required.", res.Error)
}

func TestRunMapsRemoteErrors(t *testing.T) {
	runner, inv := newRunner(signedIn("alice"))
	spec := Spec[int, bool]{
		Name:            "collections.add_game",
		Auth:            AuthRequired,
		ConflictMessage: "Game already in collection",
		FailureMessage:  "Failed to add game to collection",
		Write: func(_ context.Context, _ authctx.Context, n int) (bool, error) {
			if n == 1 {
				return false, fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
			}
			return false, errors.New("connection reset")
		},
		Invalidate: func(authctx.Context, int, bool) []invalidate.Path { return []invalidate.Path{invalidate.Admin()} },
	}

	res := Run(context.Background(), runner, spec, 1)
	assert.Equal(t, "Game already in collection", res.Error)
	assert.Equal(t, shared.KindRemote, res.Kind)

	res = Run(context.Background(), runner, spec, 2)
	assert.Equal(t, "Failed to add game to collection", res.Error)
	assert.Empty(t, inv.paths)
}

func TestRunKeepsTypedWriteErrors(t *testing.T) {
	runner, _ := newRunner(signedIn("alice"))
	spec := Spec[struct{}, bool]{
		Name: "reviews.like",
		Auth: AuthRequired,
		Write: func(context.Context, authctx.Context, struct{}) (bool, error) {
			return false, shared.NotFound("Review not found")
		},
	}
	res := Run(context.Background(), runner, spec, struct{}{})
	assert.Equal(t, "Review not found", res.Error)
	assert.Equal(t, shared.KindNotFound, res.Kind)
}

func TestRunRecoversPanics(t *testing.T) {
	runner, inv := newRunner(signedIn("alice"))
	spec := Spec[struct{}, bool]{
		Name:       "explode",
		Auth:       AuthRequired,
		Write:      func(context.Context, authctx.Context, struct{}) (bool, error) { panic("nil map") },
		Invalidate: func(authctx.Context, struct{}, bool) []invalidate.Path { return []invalidate.Path{"/x"} },
	}

	var res Result[bool]
	require.NotPanics(t, func() { res = Run(context.Background(), runner, spec, struct{}{}) })
	assert.False(t, res.Success)
	assert.Equal(t, DefaultFailure, res.Error)
	assert.Empty(t, inv.paths)
}

func TestRunResolverFailure(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	runner := NewRunner(fixedResolver{err: errors.New("db down")}, nil, nil, logger)
	spec := Spec[struct{}, bool]{
		Name:  "x",
		Auth:  AuthOptional,
		Write: func(context.Context, authctx.Context, struct{}) (bool, error) { return true, nil },
	}
	res := Run(context.Background(), runner, spec, struct{}{})
	assert.Equal(t, DefaultFailure, res.Error)
}

func TestAuthenticate(t *testing.T) {
	r, _ := newRunner(authctx.Context{})
	res := r.Authenticate(context.Background())
	assert.False(t, res.Success)
	assert.Equal(t, 401, res.Status())
	assert.Equal(t, "Authentication required.", res.Error)

	banned := signedIn("u1")
	banned.Principal.Banned = true
	r, _ = newRunner(banned)
	assert.Equal(t, 403, r.Authenticate(context.Background()).Status())

	r, _ = newRunner(signedIn("u1"))
	assert.True(t, r.Authenticate(context.Background()).Success)
}

func TestRunQueryOptionalAuth(t *testing.T) {
	runner, inv := newRunner(authctx.Context{})
	q := Query[string, string]{
		Name: "profiles.get",
		Auth: AuthOptional,
		Read: func(_ context.Context, ac authctx.Context, username string) (string, error) {
			if ac.Authenticated {
				return "", errors.New("unexpected principal")
			}
			return "profile:" + username, nil
		},
	}
	res := RunQuery(context.Background(), runner, q, "alice")
	require.True(t, res.Success)
	assert.Equal(t, "profile:alice", res.Data)
	assert.Empty(t, inv.paths)
}

func TestHumanize(t *testing.T) {
	assert.Equal(t, "Hours played", humanize("hours_played"))
	assert.Equal(t, "Value", humanize(""))
}

func TestResultStatus(t *testing.T) {
	assert.Equal(t, 200, Ok(1).Status())
	assert.Equal(t, 401, Fail[int](shared.Unauthenticated("x")).Status())
	assert.Equal(t, 403, Fail[int](shared.Forbidden("x")).Status())
	assert.Equal(t, 404, Fail[int](shared.NotFound("x")).Status())
	assert.Equal(t, 400, Fail[int](shared.Invalid("f", "x")).Status())
	assert.Equal(t, 500, Fail[int](errors.New("x")).Status())
}
