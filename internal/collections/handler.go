package collections

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gramy/gramy/internal/invalidate"
	"github.com/gramy/gramy/internal/platform/httpx"
	"github.com/gramy/gramy/internal/view"
)

// Handler wires collection pages, forms and JSON endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	renderer *view.Renderer
	cache    *invalidate.ViewCache
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, renderer *view.Renderer, cache *invalidate.ViewCache) *Handler {
	return &Handler{logger: logger, service: service, renderer: renderer, cache: cache}
}

// MountRoutes registers /collections and /collection/{id} pages and forms.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/collections", h.index)
	r.Post("/collections", h.create)
	r.Route("/collection/{id}", func(r chi.Router) {
		r.Get("/", h.show)
		r.Post("/edit", h.update)
		r.Post("/delete", h.remove)
		r.Post("/games", h.addGame)
		r.Post("/games/{gameID}/remove", h.removeGame)
		r.Post("/games/{gameID}/toggle", h.toggleForm)
	})
}

// MountAPI registers JSON endpoints under /api/collections.
func (h *Handler) MountAPI(r chi.Router) {
	r.Get("/", h.listAPI)
	r.Post("/", h.createAPI)
	r.Get("/for-game/{gameID}", h.forGameAPI)
	r.Get("/{id}", h.getAPI)
	r.Patch("/{id}", h.updateAPI)
	r.Delete("/{id}", h.deleteAPI)
	r.Post("/{id}/games/{gameID}/toggle", h.toggleAPI)
}

func pageParam(r *http.Request) int {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	return page
}

func gameIDParam(r *http.Request) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, "gameID"), 10, 64)
	return id
}

func collectionPath(id string) string { return "/collection/" + id }

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	page := pageParam(r)
	data, err := invalidate.Fetch(r.Context(), h.cache, invalidate.CollectionsIndex(), "page:"+strconv.Itoa(page),
		func(ctx context.Context) (IndexPage, error) {
			return h.service.Index(ctx, page, 0)
		})
	if err != nil {
		h.logger.Error("load collections index", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.renderer.Page(w, r, http.StatusOK, "pages/collections.html", "Collections", data)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res := h.service.Get(r.Context(), id)
	if !res.Success {
		if res.Status() == http.StatusInternalServerError {
			h.logger.Error("load collection", slog.String("id", id), slog.String("error", res.Error))
		}
		h.renderer.NotFound(w, r, res.Error)
		return
	}
	page := pageParam(r)
	load := func(ctx context.Context) (GamesPage, error) {
		return h.service.gamesPage(ctx, res.Data, page, 0)
	}
	var (
		data GamesPage
		err  error
	)
	// Status changes rewrite system collections without naming their path.
	if res.Data.IsSystem {
		data, err = load(r.Context())
	} else {
		data, err = invalidate.Fetch(r.Context(), h.cache, invalidate.Collection(id), "page:"+strconv.Itoa(page), load)
	}
	if err != nil {
		h.logger.Error("load collection games", slog.String("id", id), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.renderer.Page(w, r, http.StatusOK, "pages/collection.html", res.Data.Name, data)
}

func formBool(r *http.Request, key string) *bool {
	v := r.PostFormValue(key) == "on" || r.PostFormValue(key) == "true"
	return &v
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	res := h.service.Create(r.Context(), CreateInput{
		Name:        r.PostFormValue("name"),
		Description: r.PostFormValue("description"),
		IsPublic:    formBool(r, "is_public"),
	})
	if !res.Success {
		view.RedirectWithFlash(w, r, httpx.LocalPath(r.PostFormValue("next"), "/collections"), "error", res.Error)
		return
	}
	view.RedirectWithFlash(w, r, collectionPath(res.Data.ID), "success", "Collection created")
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	id := chi.URLParam(r, "id")
	name := r.PostFormValue("name")
	desc := r.PostFormValue("description")
	res := h.service.Update(r.Context(), UpdateInput{ID: id, Name: &name, Description: &desc, IsPublic: formBool(r, "is_public")})
	if !res.Success {
		view.RedirectWithFlash(w, r, collectionPath(id), "error", res.Error)
		return
	}
	view.RedirectWithFlash(w, r, collectionPath(id), "success", "Collection updated")
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res := h.service.Delete(r.Context(), id)
	if !res.Success {
		view.RedirectWithFlash(w, r, collectionPath(id), "error", res.Error)
		return
	}
	view.RedirectWithFlash(w, r, "/collections", "success", "Collection deleted")
}

func (h *Handler) addGame(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	gameID, _ := strconv.ParseInt(r.PostFormValue("game_id"), 10, 64)
	res := h.service.AddGame(r.Context(), id, gameID)
	next := httpx.LocalPath(r.PostFormValue("next"), collectionPath(id))
	if !res.Success {
		view.RedirectWithFlash(w, r, next, "error", res.Error)
		return
	}
	view.RedirectWithFlash(w, r, next, "success", "Game added")
}

func (h *Handler) removeGame(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res := h.service.RemoveGame(r.Context(), id, gameIDParam(r))
	next := httpx.LocalPath(r.PostFormValue("next"), collectionPath(id))
	if !res.Success {
		view.RedirectWithFlash(w, r, next, "error", res.Error)
		return
	}
	view.RedirectWithFlash(w, r, next, "success", "Game removed")
}

func (h *Handler) toggleForm(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res := h.service.ToggleGame(r.Context(), id, gameIDParam(r))
	next := httpx.LocalPath(r.PostFormValue("next"), collectionPath(id))
	if !res.Success {
		view.RedirectWithFlash(w, r, next, "error", res.Error)
		return
	}
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (h *Handler) listAPI(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res := h.service.ListForUser(r.Context(), q.Get("user_id"), q.Get("include_system") == "true")
	httpx.JSON(w, res.Status(), res)
}

func (h *Handler) createAPI(w http.ResponseWriter, r *http.Request) {
	if res := h.service.Authenticate(r.Context()); !res.Success {
		httpx.JSON(w, res.Status(), res)
		return
	}
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	res := h.service.Create(r.Context(), in)
	httpx.JSON(w, res.Status(), res)
}

func (h *Handler) getAPI(w http.ResponseWriter, r *http.Request) {
	res := h.service.Games(r.Context(), chi.URLParam(r, "id"), pageParam(r), 0)
	httpx.JSON(w, res.Status(), res)
}

func (h *Handler) updateAPI(w http.ResponseWriter, r *http.Request) {
	if res := h.service.Authenticate(r.Context()); !res.Success {
		httpx.JSON(w, res.Status(), res)
		return
	}
	var in UpdateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	in.ID = chi.URLParam(r, "id")
	res := h.service.Update(r.Context(), in)
	httpx.JSON(w, res.Status(), res)
}

func (h *Handler) deleteAPI(w http.ResponseWriter, r *http.Request) {
	res := h.service.Delete(r.Context(), chi.URLParam(r, "id"))
	httpx.JSON(w, res.Status(), res)
}

func (h *Handler) toggleAPI(w http.ResponseWriter, r *http.Request) {
	res := h.service.ToggleGame(r.Context(), chi.URLParam(r, "id"), gameIDParam(r))
	httpx.JSON(w, res.Status(), res)
}

func (h *Handler) forGameAPI(w http.ResponseWriter, r *http.Request) {
	res := h.service.ForGame(r.Context(), gameIDParam(r))
	httpx.JSON(w, res.Status(), res)
}
