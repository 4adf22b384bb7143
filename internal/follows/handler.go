package follows

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gramy/gramy/internal/platform/httpx"
	"github.com/gramy/gramy/internal/view"
)

// Handler exposes follow endpoints for forms and the JSON API.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers form endpoints under /users.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/{id}/follow", h.followForm)
	r.Post("/{id}/unfollow", h.unfollowForm)
}

// MountAPI registers JSON endpoints under /api/users.
func (h *Handler) MountAPI(r chi.Router) {
	r.Post("/{id}/follow", h.followAPI)
	r.Delete("/{id}/follow", h.unfollowAPI)
}

func (h *Handler) followAPI(w http.ResponseWriter, r *http.Request) {
	res := h.service.Follow(r.Context(), chi.URLParam(r, "id"))
	httpx.JSON(w, res.Status(), res)
}

func (h *Handler) unfollowAPI(w http.ResponseWriter, r *http.Request) {
	res := h.service.Unfollow(r.Context(), chi.URLParam(r, "id"))
	httpx.JSON(w, res.Status(), res)
}

func (h *Handler) followForm(w http.ResponseWriter, r *http.Request) {
	res := h.service.Follow(r.Context(), chi.URLParam(r, "id"))
	next := httpx.LocalPath(r.PostFormValue("next"), "/")
	if !res.Success {
		view.RedirectWithFlash(w, r, next, "error", res.Error)
		return
	}
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (h *Handler) unfollowForm(w http.ResponseWriter, r *http.Request) {
	res := h.service.Unfollow(r.Context(), chi.URLParam(r, "id"))
	next := httpx.LocalPath(r.PostFormValue("next"), "/")
	if !res.Success {
		view.RedirectWithFlash(w, r, next, "error", res.Error)
		return
	}
	http.Redirect(w, r, next, http.StatusSeeOther)
}
