package profiles

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/gramy/gramy/internal/action"
	"github.com/gramy/gramy/internal/authctx"
	"github.com/gramy/gramy/internal/collections"
	"github.com/gramy/gramy/internal/follows"
	"github.com/gramy/gramy/internal/games"
	"github.com/gramy/gramy/internal/invalidate"
	"github.com/gramy/gramy/internal/platform/httpx"
	"github.com/gramy/gramy/internal/reviews"
	"github.com/gramy/gramy/internal/shared"
	"github.com/gramy/gramy/internal/view"
)

const (
	recentReviewLimit = 5
	recentLogLimit    = 10
	followListLimit   = 100
)

// Guard demands a signed-in principal.
type Guard interface {
	RequireAuthenticated(ctx context.Context) (authctx.Principal, error)
}

// FollowReader is the part of the follows service profile pages read.
type FollowReader interface {
	IsFollowing(ctx context.Context, targetID string) action.Result[bool]
	Followers(ctx context.Context, userID string, limit int) ([]follows.User, error)
	Following(ctx context.Context, userID string, limit int) ([]follows.User, error)
	Stats(ctx context.Context, userID string) (follows.Stats, error)
}

// ReviewReader pages through a user's reviews.
type ReviewReader interface {
	UserReviews(ctx context.Context, userID string, page, size int) (reviews.Page, error)
}

// CollectionReader lists a user's collections as seen by the caller.
type CollectionReader interface {
	ListForUser(ctx context.Context, userID string, includeSystem bool) action.Result[[]collections.Collection]
}

// LogReader lists a user's play logs.
type LogReader interface {
	UserLogs(ctx context.Context, userID string, limit int) ([]games.LogWithGame, error)
}

// Handler serves profile pages and the settings form.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	guard       Guard
	follows     FollowReader
	reviews     ReviewReader
	collections CollectionReader
	logs        LogReader
	renderer    *view.Renderer
	cache       *invalidate.ViewCache
}

// HandlerDeps groups the readers a profile page draws from.
type HandlerDeps struct {
	Guard       Guard
	Follows     FollowReader
	Reviews     ReviewReader
	Collections CollectionReader
	Logs        LogReader
	Renderer    *view.Renderer
	Cache       *invalidate.ViewCache
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, deps HandlerDeps) *Handler {
	return &Handler{
		logger:      logger,
		service:     service,
		guard:       deps.Guard,
		follows:     deps.Follows,
		reviews:     deps.Reviews,
		collections: deps.Collections,
		logs:        deps.Logs,
		renderer:    deps.Renderer,
		cache:       deps.Cache,
	}
}

// MountRoutes registers /profile/{username} pages and /settings.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/profile/{username}", func(r chi.Router) {
		r.Get("/", h.overview)
		r.Get("/reviews", h.reviewsTab)
		r.Get("/followers", h.followers)
	})
	r.Get("/settings", h.settings)
	r.Post("/settings", h.saveSettings)
	r.Route("/favorites", func(r chi.Router) {
		r.Post("/", h.addFavorite)
		r.Post("/{favoriteID}/top", h.toggleTopFavorite)
		r.Post("/{favoriteID}/delete", h.removeFavorite)
	})
}

// Overview is the viewer independent part of a profile page.
type Overview struct {
	Profile      Profile             `json:"profile"`
	Stats        Stats               `json:"stats"`
	Follows      follows.Stats       `json:"follows"`
	Ratings      []RatingBucket      `json:"ratings"`
	RecentReview []RecentReview      `json:"recent_reviews"`
	Logs         []games.LogWithGame `json:"logs"`
	Favorites    []Favorite          `json:"favorites"`
}

// TopFavorites returns the pinned favorites shown to every visitor.
func (o Overview) TopFavorites() []Favorite { return TopFavorites(o.Favorites) }

type overviewPage struct {
	Overview
	Collections []collections.Collection
	Following   bool
	Own         bool
}

func (h *Handler) loadProfile(w http.ResponseWriter, r *http.Request) (Profile, bool) {
	profile, err := h.service.GetByUsername(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		if shared.KindOf(err) == shared.KindNotFound {
			h.renderer.NotFound(w, r, "User not found")
			return Profile{}, false
		}
		h.logger.Error("load profile", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return Profile{}, false
	}
	return profile, true
}

// loadOverview fans out the shared profile reads.
func (h *Handler) loadOverview(ctx context.Context, profile Profile) (Overview, error) {
	out := Overview{Profile: profile}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		stats, err := h.service.Stats(gctx, profile.ID)
		out.Stats = stats
		return err
	})
	g.Go(func() error {
		stats, err := h.follows.Stats(gctx, profile.ID)
		out.Follows = stats
		return err
	})
	g.Go(func() error {
		ratings, err := h.service.RatingDistribution(gctx, profile.ID)
		out.Ratings = ratings
		return err
	})
	g.Go(func() error {
		recent, err := h.service.RecentReviews(gctx, profile.ID, recentReviewLimit)
		out.RecentReview = recent
		return err
	})
	g.Go(func() error {
		logs, err := h.logs.UserLogs(gctx, profile.ID, recentLogLimit)
		out.Logs = logs
		return err
	})
	g.Go(func() error {
		favorites, err := h.service.Favorites(gctx, profile.ID)
		out.Favorites = favorites
		return err
	})
	if err := g.Wait(); err != nil {
		return Overview{}, err
	}
	return out, nil
}

func (h *Handler) overview(w http.ResponseWriter, r *http.Request) {
	profile, ok := h.loadProfile(w, r)
	if !ok {
		return
	}
	data, err := invalidate.Fetch(r.Context(), h.cache, invalidate.Profile(profile.Username), "overview", func(ctx context.Context) (Overview, error) {
		return h.loadOverview(ctx, profile)
	})
	if err != nil {
		h.logger.Error("load profile overview", slog.String("username", profile.Username), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	page := overviewPage{Overview: data}
	if res := h.collections.ListForUser(r.Context(), profile.ID, true); res.Success {
		page.Collections = res.Data
	}
	if res := h.follows.IsFollowing(r.Context(), profile.ID); res.Success {
		page.Following = res.Data
	}
	if viewer, err := h.guard.RequireAuthenticated(r.Context()); err == nil {
		page.Own = viewer.ID == profile.ID
	}
	h.renderer.Page(w, r, http.StatusOK, "pages/profile.html", profile.Username, page)
}

type reviewsPage struct {
	Profile Profile
	Reviews reviews.Page
}

func (h *Handler) reviewsTab(w http.ResponseWriter, r *http.Request) {
	profile, ok := h.loadProfile(w, r)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	data, err := invalidate.Fetch(r.Context(), h.cache, invalidate.Profile(profile.Username), "reviews:"+strconv.Itoa(page), func(ctx context.Context) (reviewsPage, error) {
		list, err := h.reviews.UserReviews(ctx, profile.ID, page, 0)
		return reviewsPage{Profile: profile, Reviews: list}, err
	})
	if err != nil {
		h.logger.Error("load profile reviews", slog.String("username", profile.Username), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.renderer.Page(w, r, http.StatusOK, "pages/profile_reviews.html", profile.Username+" reviews", data)
}

// FollowLists is the shared data of the followers page.
type FollowLists struct {
	Profile   Profile        `json:"profile"`
	Followers []follows.User `json:"followers"`
	Following []follows.User `json:"following"`
}

func (h *Handler) followers(w http.ResponseWriter, r *http.Request) {
	profile, ok := h.loadProfile(w, r)
	if !ok {
		return
	}
	data, err := invalidate.Fetch(r.Context(), h.cache, invalidate.Followers(profile.Username), "lists", func(ctx context.Context) (FollowLists, error) {
		out := FollowLists{Profile: profile}
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			list, err := h.follows.Followers(gctx, profile.ID, followListLimit)
			out.Followers = list
			return err
		})
		g.Go(func() error {
			list, err := h.follows.Following(gctx, profile.ID, followListLimit)
			out.Following = list
			return err
		})
		return out, g.Wait()
	})
	if err != nil {
		h.logger.Error("load follow lists", slog.String("username", profile.Username), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.renderer.Page(w, r, http.StatusOK, "pages/followers.html", profile.Username+" followers", data)
}

func (h *Handler) settings(w http.ResponseWriter, r *http.Request) {
	viewer, err := h.guard.RequireAuthenticated(r.Context())
	if err != nil {
		http.Redirect(w, r, "/auth/login?next=/settings", http.StatusSeeOther)
		return
	}
	profile, err := h.service.GetByID(r.Context(), viewer.ID)
	if err != nil {
		h.logger.Error("load settings", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.renderer.Page(w, r, http.StatusOK, "pages/settings.html", "Settings", profile)
}

func (h *Handler) saveSettings(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	res := h.service.UpdateSettings(r.Context(), SettingsInput{
		Username: r.PostFormValue("username"),
		FullName: r.PostFormValue("full_name"),
		Bio:      r.PostFormValue("bio"),
	})
	if !res.Success {
		if res.Status() == http.StatusUnauthorized {
			http.Redirect(w, r, "/auth/login?next=/settings", http.StatusSeeOther)
			return
		}
		view.RedirectWithFlash(w, r, "/settings", "error", res.Error)
		return
	}
	view.RedirectWithFlash(w, r, "/profile/"+res.Data.Username, "success", "Profile updated")
}

// favoriteDone redirects back after a favorites form, flashing any failure.
func favoriteDone[T any](w http.ResponseWriter, r *http.Request, res action.Result[T], success string) {
	next := httpx.LocalPath(r.PostFormValue("next"), "/")
	if !res.Success {
		if res.Status() == http.StatusUnauthorized {
			http.Redirect(w, r, "/auth/login?next="+url.QueryEscape(next), http.StatusSeeOther)
			return
		}
		view.RedirectWithFlash(w, r, next, "error", res.Error)
		return
	}
	view.RedirectWithFlash(w, r, next, "success", success)
}

func (h *Handler) addFavorite(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	gameID, _ := strconv.ParseInt(r.PostFormValue("game_id"), 10, 64)
	res := h.service.AddFavorite(r.Context(), FavoriteInput{
		GameID: gameID,
		Top:    r.PostFormValue("top") == "1",
	})
	favoriteDone(w, r, res, "Added to favorites")
}

func (h *Handler) toggleTopFavorite(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	res := h.service.ToggleTopFavorite(r.Context(), chi.URLParam(r, "favoriteID"))
	message := "Removed from top favorites"
	if res.Data.Top {
		message = "Added to top favorites"
	}
	favoriteDone(w, r, res, message)
}

func (h *Handler) removeFavorite(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	res := h.service.RemoveFavorite(r.Context(), chi.URLParam(r, "favoriteID"))
	favoriteDone(w, r, res, "Removed from favorites")
}
