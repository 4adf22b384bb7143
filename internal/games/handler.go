package games

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/gramy/gramy/internal/action"
	"github.com/gramy/gramy/internal/collections"
	"github.com/gramy/gramy/internal/invalidate"
	"github.com/gramy/gramy/internal/platform/httpx"
	"github.com/gramy/gramy/internal/reviews"
	"github.com/gramy/gramy/internal/shared"
	"github.com/gramy/gramy/internal/view"
)

// ReviewReader is the part of the reviews service the game page reads.
type ReviewReader interface {
	GameReviews(ctx context.Context, gameID int64, page, size int, sort reviews.Sort) action.Result[reviews.Page]
	AverageScore(ctx context.Context, gameID int64) (reviews.Score, error)
	ViewerReview(ctx context.Context, gameID int64) action.Result[*reviews.Review]
}

// MembershipReader lists the viewer's collections for a game.
type MembershipReader interface {
	ForGame(ctx context.Context, gameID int64) action.Result[collections.GameMembership]
}

// Handler wires catalog pages, status forms and the game log API.
type Handler struct {
	logger      *slog.Logger
	catalog     *Catalog
	tracker     *Tracker
	reviews     ReviewReader
	collections MembershipReader
	renderer    *view.Renderer
	cache       *invalidate.ViewCache
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, catalog *Catalog, tracker *Tracker, reviews ReviewReader, collections MembershipReader, renderer *view.Renderer, cache *invalidate.ViewCache) *Handler {
	return &Handler{
		logger:      logger,
		catalog:     catalog,
		tracker:     tracker,
		reviews:     reviews,
		collections: collections,
		renderer:    renderer,
		cache:       cache,
	}
}

// MountRoutes registers the catalog pages and status forms.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/search", h.search)
	r.Route("/game/{id}", func(r chi.Router) {
		r.Get("/", h.game)
		r.Post("/status", h.statusForm)
	})
	r.Get("/platform/{id}", h.entity(EntityPlatform))
	r.Get("/genre/{id}", h.entity(EntityGenre))
	r.Get("/company/{id}", h.entity(EntityCompany))
}

// MountAPI registers JSON catalog and status endpoints under /api/games.
func (h *Handler) MountAPI(r chi.Router) {
	r.Get("/suggestions", h.suggestionsAPI)
	r.Get("/companies", h.entitySearchAPI(h.catalog.SearchCompanies))
	r.Get("/platforms", h.entitySearchAPI(h.catalog.SearchPlatforms))
	r.Get("/{id}/status", h.getStatusAPI)
	r.Put("/{id}/status", h.setStatusAPI)
	r.Delete("/{id}/status", h.removeStatusAPI)
}

// MountLogAPI registers the game log endpoints under /api/game-logs.
func (h *Handler) MountLogAPI(r chi.Router) {
	r.Get("/", h.listLogsAPI)
	r.Post("/", h.createLogAPI)
	r.Get("/stats", h.logStatsAPI)
	r.Get("/{id}", h.getLogAPI)
	r.Patch("/{id}", h.updateLogAPI)
	r.Delete("/{id}", h.deleteLogAPI)
}

func idParam(r *http.Request) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id
}

func intQuery(r *http.Request, key string) int {
	v, _ := strconv.Atoi(r.URL.Query().Get(key))
	return v
}

// parseIDs accepts repeated keys and comma separated lists.
func parseIDs(values []string) []int64 {
	var out []int64
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err == nil && id > 0 {
				out = append(out, id)
			}
		}
	}
	return out
}

func gameURL(id int64) string { return "/game/" + strconv.FormatInt(id, 10) }

// gameShared is the viewer independent part of the game page.
type gameShared struct {
	Game  Game          `json:"game"`
	Score reviews.Score `json:"score"`
}

type gamePage struct {
	Game         Game
	Score        reviews.Score
	Reviews      reviews.Page
	ViewerReview *reviews.Review
	Status       Status
	StatusLabels map[Status]string
	Statuses     []Status
	Collections  collections.GameMembership
	Stats        *LogStats
}

func (h *Handler) game(w http.ResponseWriter, r *http.Request) {
	id := idParam(r)
	details, err := invalidate.Fetch(r.Context(), h.cache, invalidate.Game(id), "details", func(ctx context.Context) (gameShared, error) {
		var out gameShared
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			game, err := h.catalog.GetGame(gctx, id)
			out.Game = game
			return err
		})
		g.Go(func() error {
			score, err := h.reviews.AverageScore(gctx, id)
			out.Score = score
			return err
		})
		return out, g.Wait()
	})
	if err != nil {
		h.notFoundOrFail(w, r, "load game", err)
		return
	}

	page := gamePage{Game: details.Game, Score: details.Score, StatusLabels: StatusLabels(), Statuses: Statuses}
	ctx := r.Context()
	var g errgroup.Group
	g.Go(func() error {
		if res := h.reviews.GameReviews(ctx, id, intQuery(r, "page"), 0, reviews.ParseSort(r.URL.Query().Get("sort"))); res.Success {
			page.Reviews = res.Data
		}
		return nil
	})
	g.Go(func() error {
		if res := h.reviews.ViewerReview(ctx, id); res.Success {
			page.ViewerReview = res.Data
		}
		return nil
	})
	g.Go(func() error {
		if res := h.tracker.GetStatus(ctx, id); res.Success {
			page.Status = res.Data.Status
		}
		return nil
	})
	g.Go(func() error {
		if res := h.collections.ForGame(ctx, id); res.Success {
			page.Collections = res.Data
		}
		return nil
	})
	g.Go(func() error {
		if res := h.tracker.LogStats(ctx, id); res.Success {
			stats := res.Data
			page.Stats = &stats
		}
		return nil
	})
	_ = g.Wait()
	h.renderer.Page(w, r, http.StatusOK, "pages/game.html", details.Game.Name, page)
}

func (h *Handler) notFoundOrFail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if shared.KindOf(err) == shared.KindNotFound {
		h.renderer.NotFound(w, r, shared.UserSafeMessage(err))
		return
	}
	h.logger.Error(msg, slog.Any("error", err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

type searchPage struct {
	Filters   SearchFilters
	Results   ResultPage
	Genres    []Entity
	Platforms []Entity
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := SearchFilters{
		PlatformIDs: parseIDs(q["platform"]),
		GenreIDs:    parseIDs(q["genre"]),
		CompanyIDs:  parseIDs(q["company"]),
	}
	var data searchPage
	data.Filters = filters
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		res, err := h.catalog.Search(ctx, filters, intQuery(r, "page"), intQuery(r, "size"))
		data.Results = res
		return err
	})
	g.Go(func() error {
		genres, err := h.catalog.Genres(ctx)
		data.Genres = genres
		return err
	})
	g.Go(func() error {
		platforms, err := h.catalog.Platforms(ctx)
		data.Platforms = platforms
		return err
	})
	if err := g.Wait(); err != nil {
		h.notFoundOrFail(w, r, "search games", err)
		return
	}
	h.renderer.Page(w, r, http.StatusOK, "pages/search.html", "Search", data)
}

type entityPage struct {
	Type    EntityType
	Entity  Entity
	Results ResultPage
}

func (h *Handler) entity(t EntityType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := idParam(r)
		data := entityPage{Type: t}
		g, ctx := errgroup.WithContext(r.Context())
		g.Go(func() error {
			e, err := h.catalog.Entity(ctx, t, id)
			data.Entity = e
			return err
		})
		g.Go(func() error {
			res, err := h.catalog.EntityGames(ctx, t, id, intQuery(r, "page"), 0)
			data.Results = res
			return err
		})
		if err := g.Wait(); err != nil {
			h.notFoundOrFail(w, r, "load entity", err)
			return
		}
		h.renderer.Page(w, r, http.StatusOK, "pages/entity.html", data.Entity.Name, data)
	}
}

func (h *Handler) statusForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	id := idParam(r)
	next := httpx.LocalPath(r.PostFormValue("next"), gameURL(id))
	status := Status(r.PostFormValue("status"))
	var res action.Result[StatusState]
	if status == "" {
		res = h.tracker.RemoveStatus(r.Context(), id)
	} else {
		res = h.tracker.SetStatus(r.Context(), id, status)
	}
	if !res.Success {
		view.RedirectWithFlash(w, r, next, "error", res.Error)
		return
	}
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (h *Handler) suggestionsAPI(w http.ResponseWriter, r *http.Request) {
	list, err := h.catalog.Suggestions(r.Context(), r.URL.Query().Get("q"), intQuery(r, "limit"))
	if err != nil {
		h.logger.Error("game suggestions", slog.Any("error", err))
		httpx.Error(w, http.StatusInternalServerError, "Failed to load suggestions")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"games": list})
}

func (h *Handler) entitySearchAPI(find func(context.Context, string) ([]Entity, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := find(r.Context(), r.URL.Query().Get("q"))
		if err != nil {
			h.logger.Error("entity search", slog.Any("error", err))
			httpx.Error(w, http.StatusInternalServerError, "Failed to search")
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"results": list})
	}
}

func (h *Handler) getStatusAPI(w http.ResponseWriter, r *http.Request) {
	res := h.tracker.GetStatus(r.Context(), idParam(r))
	httpx.JSON(w, res.Status(), res)
}

func (h *Handler) setStatusAPI(w http.ResponseWriter, r *http.Request) {
	if res := h.tracker.Authenticate(r.Context()); !res.Success {
		httpx.JSON(w, res.Status(), res)
		return
	}
	var body struct {
		Status Status `json:"status"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	res := h.tracker.SetStatus(r.Context(), idParam(r), body.Status)
	httpx.JSON(w, res.Status(), res)
}

func (h *Handler) removeStatusAPI(w http.ResponseWriter, r *http.Request) {
	res := h.tracker.RemoveStatus(r.Context(), idParam(r))
	httpx.JSON(w, res.Status(), res)
}

// logRequest is the camelCase body accepted by the game log API.
type logRequest struct {
	GameID      int64    `json:"gameId"`
	PlayCount   *int     `json:"playCount"`
	HoursPlayed *float64 `json:"hoursPlayed"`
	PlatformID  *int64   `json:"platformId"`
	Notes       *string  `json:"notes"`
	Completed   *bool    `json:"completed"`
	StartedAt   *string  `json:"startedAt"`
	CompletedAt *string  `json:"completedAt"`
	ReviewID    *string  `json:"reviewId"`
}

func (b logRequest) fields() LogFields {
	return LogFields{
		PlayCount:   b.PlayCount,
		HoursPlayed: b.HoursPlayed,
		PlatformID:  b.PlatformID,
		Notes:       b.Notes,
		Completed:   b.Completed,
		StartedAt:   b.StartedAt,
		CompletedAt: b.CompletedAt,
		ReviewID:    b.ReviewID,
	}
}

// logError writes the {error} body of the game log API.
func logError[T any](w http.ResponseWriter, res action.Result[T]) {
	status := res.Status()
	msg := res.Error
	if status == http.StatusUnauthorized {
		msg = "Unauthorized"
	}
	httpx.Error(w, status, msg)
}

func (h *Handler) createLogAPI(w http.ResponseWriter, r *http.Request) {
	if res := h.tracker.Authenticate(r.Context()); !res.Success {
		logError(w, res)
		return
	}
	var body logRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	res := h.tracker.CreateLog(r.Context(), LogInput{GameID: body.GameID, LogFields: body.fields()})
	if !res.Success {
		if body.GameID == 0 && res.Status() == http.StatusBadRequest {
			res.Error = "Game ID is required"
		}
		logError(w, res)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "log": res.Data})
}

func (h *Handler) listLogsAPI(w http.ResponseWriter, r *http.Request) {
	gameID, _ := strconv.ParseInt(r.URL.Query().Get("gameId"), 10, 64)
	res := h.tracker.ListLogs(r.Context(), gameID, intQuery(r, "limit"))
	if !res.Success {
		logError(w, res)
		return
	}
	logs := res.Data
	if logs == nil {
		logs = []Log{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func (h *Handler) logStatsAPI(w http.ResponseWriter, r *http.Request) {
	gameID, _ := strconv.ParseInt(r.URL.Query().Get("gameId"), 10, 64)
	res := h.tracker.LogStats(r.Context(), gameID)
	if !res.Success {
		logError(w, res)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"stats": res.Data})
}

func (h *Handler) getLogAPI(w http.ResponseWriter, r *http.Request) {
	res := h.tracker.GetLog(r.Context(), chi.URLParam(r, "id"))
	if !res.Success {
		logError(w, res)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"log": res.Data})
}

func (h *Handler) updateLogAPI(w http.ResponseWriter, r *http.Request) {
	if res := h.tracker.Authenticate(r.Context()); !res.Success {
		logError(w, res)
		return
	}
	var body logRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	res := h.tracker.UpdateLog(r.Context(), LogUpdate{LogID: chi.URLParam(r, "id"), LogFields: body.fields()})
	if !res.Success {
		logError(w, res)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "log": res.Data})
}

func (h *Handler) deleteLogAPI(w http.ResponseWriter, r *http.Request) {
	res := h.tracker.DeleteLog(r.Context(), chi.URLParam(r, "id"))
	if !res.Success {
		logError(w, res)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true})
}
