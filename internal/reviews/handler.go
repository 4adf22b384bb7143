package reviews

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gramy/gramy/internal/platform/httpx"
	"github.com/gramy/gramy/internal/view"
)

// Handler wires review endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers form endpoints under /reviews.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.submitForm)
	r.Post("/{id}/delete", h.deleteForm)
	r.Post("/{id}/like", h.likeForm)
}

// MountAPI registers JSON endpoints under /api/reviews.
func (h *Handler) MountAPI(r chi.Router) {
	r.Get("/", h.listAPI)
	r.Post("/", h.submitAPI)
	r.Delete("/{id}", h.deleteAPI)
	r.Post("/{id}/like", h.likeAPI)
}

func gamePath(id int64) string {
	return "/game/" + strconv.FormatInt(id, 10)
}

func (h *Handler) submitForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	gameID, _ := strconv.ParseInt(r.PostFormValue("game_id"), 10, 64)
	rating, _ := strconv.Atoi(r.PostFormValue("rating"))
	res := h.service.Submit(r.Context(), SubmitInput{
		ReviewID: r.PostFormValue("review_id"),
		GameID:   gameID,
		Rating:   rating,
		Text:     r.PostFormValue("review_text"),
	})
	next := httpx.LocalPath(r.PostFormValue("next"), gamePath(gameID))
	if !res.Success {
		view.RedirectWithFlash(w, r, next, "error", res.Error)
		return
	}
	view.RedirectWithFlash(w, r, next, "success", "Review saved")
}

func (h *Handler) deleteForm(w http.ResponseWriter, r *http.Request) {
	res := h.service.Delete(r.Context(), chi.URLParam(r, "id"))
	next := httpx.LocalPath(r.PostFormValue("next"), "/")
	if !res.Success {
		view.RedirectWithFlash(w, r, next, "error", res.Error)
		return
	}
	view.RedirectWithFlash(w, r, next, "success", "Review deleted")
}

func (h *Handler) likeForm(w http.ResponseWriter, r *http.Request) {
	res := h.service.ToggleLike(r.Context(), chi.URLParam(r, "id"))
	next := httpx.LocalPath(r.PostFormValue("next"), "/")
	if !res.Success {
		view.RedirectWithFlash(w, r, next, "error", res.Error)
		return
	}
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (h *Handler) listAPI(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	gameID, _ := strconv.ParseInt(q.Get("game_id"), 10, 64)
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("size"))
	res := h.service.GameReviews(r.Context(), gameID, page, size, ParseSort(q.Get("sort")))
	httpx.JSON(w, res.Status(), res)
}

func (h *Handler) submitAPI(w http.ResponseWriter, r *http.Request) {
	if res := h.service.Authenticate(r.Context()); !res.Success {
		httpx.JSON(w, res.Status(), res)
		return
	}
	var in SubmitInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	res := h.service.Submit(r.Context(), in)
	httpx.JSON(w, res.Status(), res)
}

func (h *Handler) deleteAPI(w http.ResponseWriter, r *http.Request) {
	res := h.service.Delete(r.Context(), chi.URLParam(r, "id"))
	httpx.JSON(w, res.Status(), res)
}

func (h *Handler) likeAPI(w http.ResponseWriter, r *http.Request) {
	res := h.service.ToggleLike(r.Context(), chi.URLParam(r, "id"))
	httpx.JSON(w, res.Status(), res)
}
