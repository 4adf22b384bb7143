package auth_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/gramy/gramy/internal/action"
	"github.com/gramy/gramy/internal/auth"
	"github.com/gramy/gramy/internal/authctx"
	"github.com/gramy/gramy/internal/invalidate"
	"github.com/gramy/gramy/internal/shared"
	_ "github.com/gramy/gramy/internal/testing/guard"
	"github.com/gramy/gramy/internal/view"
)

const accountID = "6f1c2a7e-8d3b-4b61-9a51-0c2f5e7d9a10"

type stubRepo struct {
	account   *auth.Account
	taken     map[string]bool
	created   []string
	createErr error
}

func (s *stubRepo) FindByEmail(_ context.Context, email string) (auth.Account, error) {
	if s.account == nil || s.account.Email != email {
		return auth.Account{}, shared.ErrNotFound
	}
	return *s.account, nil
}

func (s *stubRepo) UsernameTaken(_ context.Context, username string) (bool, error) {
	return s.taken[strings.ToLower(username)], nil
}

func (s *stubRepo) CreateAccount(_ context.Context, username, email, hash string) (auth.Account, error) {
	if s.createErr != nil {
		return auth.Account{}, s.createErr
	}
	s.created = append(s.created, username)
	return auth.Account{ID: accountID, Email: email, Username: username, PasswordHash: hash}, nil
}

type stubEnqueuer struct {
	ids []string
	err error
}

func (s *stubEnqueuer) EnqueueInitStatusCollections(_ context.Context, id string) error {
	s.ids = append(s.ids, id)
	return s.err
}

type anonymous struct{}

func (anonymous) Resolve(context.Context) (authctx.Context, error) { return authctx.Context{}, nil }

type pathRecorder struct{ paths []invalidate.Path }

func (p *pathRecorder) Invalidate(_ context.Context, paths ...invalidate.Path) {
	p.paths = append(p.paths, paths...)
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newService(repo auth.Repository, enq auth.Enqueuer) *auth.Service {
	svc, _ := newRecordedService(repo, enq)
	return svc
}

func newRecordedService(repo auth.Repository, enq auth.Enqueuer) (*auth.Service, *pathRecorder) {
	rec := &pathRecorder{}
	runner := action.NewRunner(anonymous{}, rec, nil, discard())
	return auth.NewService(repo, runner, enq, discard()), rec
}

func newAuthHandler(t *testing.T, repo auth.Repository) (*auth.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	engine, err := view.NewEngine()
	require.NoError(t, err)
	renderer := view.NewRenderer(engine, csrfManager, nil, discard())
	handler := auth.NewHandler(discard(), newService(repo, nil), renderer, sessionManager, csrfManager)
	return handler, sessionManager
}

// serve runs one request through the handler with a loaded and committed session.
func serve(t *testing.T, sm *shared.SessionManager, h http.HandlerFunc, req *http.Request) (*httptest.ResponseRecorder, *shared.Session) {
	t.Helper()
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	ctx := shared.ContextWithSession(req.Context(), sess)
	res := httptest.NewRecorder()
	h(res, req.WithContext(ctx))
	require.NoError(t, sm.Commit(ctx, res, sess))
	return res, sess
}

func loginRequest(email, password string) *http.Request {
	form := url.Values{}
	form.Set("email", email)
	form.Set("password", password)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func routes(h *auth.Handler) http.HandlerFunc {
	r := chi.NewRouter()
	r.Route("/auth", h.MountRoutes)
	return r.ServeHTTP
}

func TestLoginPage(t *testing.T) {
	handler, sm := newAuthHandler(t, &stubRepo{})
	res, _ := serve(t, sm, routes(handler), httptest.NewRequest(http.MethodGet, "/auth/login", nil))

	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "<form")
}

func TestLoginInvalidCredentials(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &stubRepo{account: &auth.Account{ID: accountID, Email: "user@test.local", Username: "alice", PasswordHash: string(hashed)}}
	handler, sm := newAuthHandler(t, repo)

	res, sess := serve(t, sm, routes(handler), loginRequest("user@test.local", "wrongpass"))

	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "Invalid email or password")
	assert.Empty(t, sess.User())
}

func TestLoginRenewsSession(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &stubRepo{account: &auth.Account{ID: accountID, Email: "user@test.local", Username: "alice", PasswordHash: string(hashed)}}
	handler, sm := newAuthHandler(t, repo)

	req := loginRequest("user@test.local", "correctpass")
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	before := sess.ID
	ctx := shared.ContextWithSession(req.Context(), sess)
	res := httptest.NewRecorder()
	routes(handler)(res, req.WithContext(ctx))
	require.NoError(t, sm.Commit(ctx, res, sess))

	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/", res.Header().Get("Location"))
	assert.Equal(t, accountID, sess.User())
	assert.NotEqual(t, before, sess.ID)

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	next.AddCookie(&http.Cookie{Name: sm.CookieName(), Value: sess.ID})
	reloaded, err := sm.Load(context.Background(), next)
	require.NoError(t, err)
	assert.Equal(t, accountID, reloaded.User())
}

func TestRegisterCreatesAccountAndEnqueues(t *testing.T) {
	repo := &stubRepo{}
	enq := &stubEnqueuer{}
	svc, rec := newRecordedService(repo, enq)

	res := svc.Register(context.Background(), auth.RegisterInput{Username: " alice ", Email: "a@test.local", Password: "longenough"})

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "alice", res.Data.Username)
	assert.Equal(t, []string{"alice"}, repo.created)
	assert.Equal(t, []string{accountID}, enq.ids)
	assert.Equal(t, []invalidate.Path{invalidate.Admin()}, rec.paths)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(res.Data.PasswordHash), []byte("longenough")))
}

func TestRegisterSurvivesEnqueueFailure(t *testing.T) {
	svc := newService(&stubRepo{}, &stubEnqueuer{err: errors.New("redis down")})
	res := svc.Register(context.Background(), auth.RegisterInput{Username: "alice", Email: "a@test.local", Password: "longenough"})
	assert.True(t, res.Success, res.Error)
}

func TestRegisterValidation(t *testing.T) {
	cases := []struct {
		name string
		in   auth.RegisterInput
		want string
	}{
		{"missing username", auth.RegisterInput{Email: "a@test.local", Password: "longenough"}, "Username is required"},
		{"bad username", auth.RegisterInput{Username: "Al!ce", Email: "a@test.local", Password: "longenough"}, "Username must be 3-30 characters of lowercase letters, numbers or underscores"},
		{"taken username", auth.RegisterInput{Username: "bob", Email: "a@test.local", Password: "longenough"}, "Username is already taken"},
		{"short password", auth.RegisterInput{Username: "alice", Email: "a@test.local", Password: "short"}, "Password must be at least 8 characters"},
		{"bad email", auth.RegisterInput{Username: "alice", Email: "nope", Password: "longenough"}, "Email must be a valid email address"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &stubRepo{taken: map[string]bool{"bob": true}}
			res := newService(repo, nil).Register(context.Background(), tc.in)
			assert.False(t, res.Success)
			assert.Equal(t, tc.want, res.Error)
			assert.Empty(t, repo.created)
		})
	}
}

func TestRegisterConflict(t *testing.T) {
	repo := &stubRepo{createErr: &pgconn.PgError{Code: "23505"}}
	svc, rec := newRecordedService(repo, nil)
	res := svc.Register(context.Background(), auth.RegisterInput{Username: "alice", Email: "a@test.local", Password: "longenough"})
	assert.Equal(t, "An account with this email or username already exists", res.Error)
	assert.Empty(t, rec.paths)
}
