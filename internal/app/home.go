package app

import (
	"context"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/gramy/gramy/internal/collections"
	"github.com/gramy/gramy/internal/games"
	"github.com/gramy/gramy/internal/view"
)

// HomeSource supplies the landing page lists.
type HomeSource struct {
	Catalog interface {
		Genres(ctx context.Context) ([]games.Entity, error)
		Platforms(ctx context.Context) ([]games.Entity, error)
	}
	Collections interface {
		Index(ctx context.Context, page, size int) (collections.IndexPage, error)
	}
}

type homePage struct {
	Genres      []games.Entity
	Platforms   []games.Entity
	Collections []collections.Collection
}

const homeCollectionCount = 6

type homeHandler struct {
	logger   *slog.Logger
	renderer *view.Renderer
	source   HomeSource
}

func (h *homeHandler) index(w http.ResponseWriter, r *http.Request) {
	var page homePage
	g, ctx := errgroup.WithContext(r.Context())
	if h.source.Catalog != nil {
		g.Go(func() (err error) {
			page.Genres, err = h.source.Catalog.Genres(ctx)
			return err
		})
		g.Go(func() (err error) {
			page.Platforms, err = h.source.Catalog.Platforms(ctx)
			return err
		})
	}
	if h.source.Collections != nil {
		g.Go(func() error {
			idx, err := h.source.Collections.Index(ctx, 1, homeCollectionCount)
			page.Collections = idx.Collections
			return err
		})
	}
	if err := g.Wait(); err != nil {
		// The landing page still renders with whatever loaded.
		h.logger.Warn("load home page", slog.Any("error", err))
	}
	h.renderer.Page(w, r, http.StatusOK, "pages/home.html", "Home", page)
}

func (h *homeHandler) banned(w http.ResponseWriter, r *http.Request) {
	h.renderer.Page(w, r, http.StatusForbidden, "pages/banned.html", "Account suspended", nil)
}
