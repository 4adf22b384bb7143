// Package authctx resolves the identity behind the current request.
package authctx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/gramy/gramy/internal/shared"
)

// Role distinguishes normal users from administrators.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Principal is the acting user. It is loaded per request and never mutated here.
type Principal struct {
	ID       string
	Username string
	Role     Role
	Banned   bool
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// Context is the resolved auth state of a request.
type Context struct {
	Authenticated bool
	Principal     Principal
}

// PrincipalID returns the principal id or "" for anonymous requests.
func (c Context) PrincipalID() string {
	if !c.Authenticated {
		return ""
	}
	return c.Principal.ID
}

// PrincipalStore loads principals by id. Unknown ids yield shared.ErrNotFound.
type PrincipalStore interface {
	FindPrincipal(ctx context.Context, id string) (Principal, error)
}

// Resolver derives the auth Context from session state.
type Resolver struct {
	store  PrincipalStore
	logger *slog.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(store PrincipalStore, logger *slog.Logger) *Resolver {
	return &Resolver{store: store, logger: logger}
}

type memoKey struct{}

type memo struct {
	once sync.Once
	val  Context
	err  error
}

// Resolve returns the auth Context of the request. A missing or stale session
// is reported as unauthenticated, never as an error.
func (r *Resolver) Resolve(ctx context.Context) (Context, error) {
	m, ok := ctx.Value(memoKey{}).(*memo)
	if !ok {
		return r.load(ctx)
	}
	m.once.Do(func() {
		m.val, m.err = r.load(ctx)
	})
	return m.val, m.err
}

func (r *Resolver) load(ctx context.Context) (Context, error) {
	userID := shared.SessionFromContext(ctx).User()
	if userID == "" {
		return Context{}, nil
	}
	principal, err := r.store.FindPrincipal(ctx, userID)
	if errors.Is(err, shared.ErrNotFound) {
		return Context{}, nil
	}
	if err != nil {
		return Context{}, fmt.Errorf("authctx: load principal: %w", err)
	}
	return Context{Authenticated: true, Principal: principal}, nil
}

// WithResolved stores an already resolved Context so Resolve skips the store.
func WithResolved(ctx context.Context, c Context) context.Context {
	m := &memo{val: c}
	m.once.Do(func() {})
	return context.WithValue(ctx, memoKey{}, m)
}

// Middleware installs the per-request memo so the principal loads at most once.
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ctx := context.WithValue(req.Context(), memoKey{}, &memo{})
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

// Authenticated checks c for an active, non-banned principal.
func Authenticated(c Context) error {
	if !c.Authenticated {
		return shared.Unauthenticated("Authentication required.")
	}
	if c.Principal.Banned {
		return shared.Forbidden("Your account has been suspended.")
	}
	return nil
}

// Admin checks c for an active administrator.
func Admin(c Context) error {
	if err := Authenticated(c); err != nil {
		return err
	}
	if !c.Principal.IsAdmin() {
		return shared.Forbidden("Admin access required.")
	}
	return nil
}

// RequireAuthenticated resolves the request and demands a principal.
func (r *Resolver) RequireAuthenticated(ctx context.Context) (Principal, error) {
	c, err := r.Resolve(ctx)
	if err != nil {
		return Principal{}, err
	}
	if err := Authenticated(c); err != nil {
		return Principal{}, err
	}
	return c.Principal, nil
}

// RequireAdmin resolves the request and demands an administrator.
func (r *Resolver) RequireAdmin(ctx context.Context) (Principal, error) {
	c, err := r.Resolve(ctx)
	if err != nil {
		return Principal{}, err
	}
	if err := Admin(c); err != nil {
		return Principal{}, err
	}
	return c.Principal, nil
}

// BannedPath is where suspended accounts are sent.
const BannedPath = "/banned"

// BannedGate redirects banned principals to BannedPath and everyone else away from it.
func (r *Resolver) BannedGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		path := req.URL.Path
		if strings.HasPrefix(path, "/static/") || path == "/auth/logout" || path == "/healthz" {
			next.ServeHTTP(w, req)
			return
		}
		c, err := r.Resolve(req.Context())
		if err != nil {
			r.logger.Error("resolve principal", slog.Any("error", err))
			next.ServeHTTP(w, req)
			return
		}
		banned := c.Authenticated && c.Principal.Banned
		switch {
		case banned && path != BannedPath:
			http.Redirect(w, req, BannedPath, http.StatusSeeOther)
		case !banned && path == BannedPath:
			http.Redirect(w, req, "/", http.StatusSeeOther)
		default:
			next.ServeHTTP(w, req)
		}
	})
}
