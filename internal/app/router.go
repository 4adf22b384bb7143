package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/gramy/gramy/internal/admin"
	"github.com/gramy/gramy/internal/auth"
	"github.com/gramy/gramy/internal/authctx"
	"github.com/gramy/gramy/internal/collections"
	"github.com/gramy/gramy/internal/follows"
	"github.com/gramy/gramy/internal/games"
	"github.com/gramy/gramy/internal/observability"
	"github.com/gramy/gramy/internal/platform/httpx"
	"github.com/gramy/gramy/internal/profiles"
	"github.com/gramy/gramy/internal/reviews"
	"github.com/gramy/gramy/internal/shared"
	"github.com/gramy/gramy/internal/view"
	"github.com/gramy/gramy/jobs"
	"github.com/gramy/gramy/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Renderer       *view.Renderer
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Resolver       *authctx.Resolver
	Home           HomeSource

	AuthHandler        *auth.Handler
	GamesHandler       *games.Handler
	ReviewsHandler     *reviews.Handler
	CollectionsHandler *collections.Handler
	FollowsHandler     *follows.Handler
	ProfilesHandler    *profiles.Handler
	AdminHandler       *admin.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with Gramy defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Resolver:       params.Resolver,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	home := &homeHandler{logger: params.Logger, renderer: params.Renderer, source: params.Home}
	r.Get("/", home.index)
	r.Get(authctx.BannedPath, home.banned)

	r.Route("/auth", params.AuthHandler.MountRoutes)
	r.Group(params.GamesHandler.MountRoutes)
	r.Route("/reviews", params.ReviewsHandler.MountRoutes)
	r.Group(params.CollectionsHandler.MountRoutes)
	r.Route("/users", params.FollowsHandler.MountRoutes)
	r.Group(params.ProfilesHandler.MountRoutes)
	r.Route("/admin", params.AdminHandler.MountRoutes)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", params.AuthHandler.MountAPI)
		r.Route("/games", params.GamesHandler.MountAPI)
		r.Route("/game-logs", params.GamesHandler.MountLogAPI)
		r.Route("/reviews", params.ReviewsHandler.MountAPI)
		r.Route("/collections", params.CollectionsHandler.MountAPI)
		r.Route("/users", params.FollowsHandler.MountAPI)
		r.Route("/admin", params.AdminHandler.MountAPI)
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		params.Renderer.NotFound(w, r, "Page not found")
	})

	return r
}

// staticCacheHandler wraps a file server with Cache-Control headers.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
