package games

import (
	"context"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/gramy/gramy/internal/shared"
)

const (
	// SuggestionLimit is the default number of name suggestions.
	SuggestionLimit = 5
	// EntitySearchLimit caps company and platform lookups.
	EntitySearchLimit = 5
)

// Catalog serves read-only catalog queries. Filter option lists are kept in
// process because they only change with catalog imports.
type Catalog struct {
	repo    CatalogRepository
	options *lru.LRU[EntityType, []Entity]
}

// NewCatalog constructs a Catalog whose option lists live for ttl.
func NewCatalog(repo CatalogRepository, ttl time.Duration) *Catalog {
	return &Catalog{
		repo:    repo,
		options: lru.NewLRU[EntityType, []Entity](len(entityTables), nil, ttl),
	}
}

// GetGame loads the game detail record.
func (c *Catalog) GetGame(ctx context.Context, id int64) (Game, error) {
	if id <= 0 {
		return Game{}, shared.NotFound("Game not found")
	}
	return c.repo.GameDetails(ctx, id)
}

// Search pages through games matching every non-empty filter.
func (c *Catalog) Search(ctx context.Context, f SearchFilters, page, size int) (ResultPage, error) {
	page, size = shared.ClampPage(page, size)
	games, total, err := c.repo.FilteredGames(ctx, f, page, size)
	if err != nil {
		return ResultPage{}, err
	}
	return ResultPage{Games: games, Pagination: shared.NewPagination(page, size, total)}, nil
}

// Genres lists every genre by name.
func (c *Catalog) Genres(ctx context.Context) ([]Entity, error) {
	return c.optionList(ctx, EntityGenre)
}

// Platforms lists every platform by name.
func (c *Catalog) Platforms(ctx context.Context) ([]Entity, error) {
	return c.optionList(ctx, EntityPlatform)
}

func (c *Catalog) optionList(ctx context.Context, t EntityType) ([]Entity, error) {
	if cached, ok := c.options.Get(t); ok {
		return cached, nil
	}
	list, err := c.repo.ListEntities(ctx, t)
	if err != nil {
		return nil, err
	}
	c.options.Add(t, list)
	return list, nil
}

// SearchCompanies matches company names; a blank query matches nothing.
func (c *Catalog) SearchCompanies(ctx context.Context, query string) ([]Entity, error) {
	return c.searchEntities(ctx, EntityCompany, query)
}

// SearchPlatforms matches platform names; a blank query matches nothing.
func (c *Catalog) SearchPlatforms(ctx context.Context, query string) ([]Entity, error) {
	return c.searchEntities(ctx, EntityPlatform, query)
}

func (c *Catalog) searchEntities(ctx context.Context, t EntityType, query string) ([]Entity, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Entity{}, nil
	}
	return c.repo.SearchEntities(ctx, t, query, EntitySearchLimit)
}

// Suggestions returns games whose name contains query.
func (c *Catalog) Suggestions(ctx context.Context, query string, limit int) ([]Summary, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Summary{}, nil
	}
	if limit <= 0 || limit > shared.MaxPageSize {
		limit = SuggestionLimit
	}
	return c.repo.Suggestions(ctx, query, limit)
}

// Entity loads a genre, platform or company.
func (c *Catalog) Entity(ctx context.Context, t EntityType, id int64) (Entity, error) {
	if !t.Valid() || id <= 0 {
		return Entity{}, shared.NotFound("Not found")
	}
	return c.repo.Entity(ctx, t, id)
}

// EntityGames pages through the games of an entity.
func (c *Catalog) EntityGames(ctx context.Context, t EntityType, id int64, page, size int) (ResultPage, error) {
	if !t.Valid() {
		return ResultPage{}, shared.NotFound("Not found")
	}
	page, size = shared.ClampPage(page, size)
	games, total, err := c.repo.EntityGames(ctx, t, id, page, size)
	if err != nil {
		return ResultPage{}, err
	}
	return ResultPage{Games: games, Pagination: shared.NewPagination(page, size, total)}, nil
}
