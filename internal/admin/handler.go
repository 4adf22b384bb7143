package admin

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gramy/gramy/internal/authctx"
	"github.com/gramy/gramy/internal/invalidate"
	"github.com/gramy/gramy/internal/platform/httpx"
	"github.com/gramy/gramy/internal/shared"
	"github.com/gramy/gramy/internal/view"
)

// Guard resolves the request principal and demands admin rights.
type Guard interface {
	RequireAdmin(ctx context.Context) (authctx.Principal, error)
}

// Handler serves the admin console.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	guard    Guard
	renderer *view.Renderer
	cache    *invalidate.ViewCache
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, guard Guard, renderer *view.Renderer, cache *invalidate.ViewCache) *Handler {
	return &Handler{logger: logger, service: service, guard: guard, renderer: renderer, cache: cache}
}

// MountRoutes registers pages under /admin.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.dashboard)
	r.Post("/users/{id}/ban", h.banForm)
}

// MountAPI registers JSON endpoints under /api/admin.
func (h *Handler) MountAPI(r chi.Router) {
	r.Get("/users", h.usersAPI)
	r.Get("/activity", h.activityAPI)
	r.Post("/users/{id}/ban", h.banAPI)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	if _, err := h.guard.RequireAdmin(r.Context()); err != nil {
		if shared.KindOf(err) == shared.KindAuthentication {
			http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
			return
		}
		view.RedirectWithFlash(w, r, "/", "error", shared.UserSafeMessage(err))
		return
	}
	query := r.URL.Query().Get("q")
	data, err := invalidate.Fetch(r.Context(), h.cache, invalidate.Admin(), "q:"+query, func(ctx context.Context) (Dashboard, error) {
		return h.service.Dashboard(ctx, query)
	})
	if err != nil {
		h.logger.Error("load admin dashboard", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.renderer.Page(w, r, http.StatusOK, "pages/admin.html", "Admin", data)
}

func (h *Handler) banForm(w http.ResponseWriter, r *http.Request) {
	res := h.service.ToggleBan(r.Context(), chi.URLParam(r, "id"))
	if !res.Success {
		view.RedirectWithFlash(w, r, "/admin", "error", res.Error)
		return
	}
	msg := "User unbanned"
	if res.Data.Banned {
		msg = "User banned"
	}
	view.RedirectWithFlash(w, r, "/admin", "success", msg)
}

func (h *Handler) usersAPI(w http.ResponseWriter, r *http.Request) {
	res := h.service.ListUsers(r.Context(), r.URL.Query().Get("q"))
	httpx.JSON(w, res.Status(), res)
}

func (h *Handler) activityAPI(w http.ResponseWriter, r *http.Request) {
	res := h.service.ActivityLogs(r.Context())
	httpx.JSON(w, res.Status(), res)
}

func (h *Handler) banAPI(w http.ResponseWriter, r *http.Request) {
	res := h.service.ToggleBan(r.Context(), chi.URLParam(r, "id"))
	httpx.JSON(w, res.Status(), res)
}
