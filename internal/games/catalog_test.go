package games

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCatalog struct {
	CatalogRepository

	listCalls   map[EntityType]int
	searches    int
	lastFilters SearchFilters
	lastPage    [2]int
}

func (s *stubCatalog) ListEntities(_ context.Context, t EntityType) ([]Entity, error) {
	s.listCalls[t]++
	return []Entity{{ID: 1, Name: string(t) + "-1"}}, nil
}

func (s *stubCatalog) SearchEntities(context.Context, EntityType, string, int) ([]Entity, error) {
	s.searches++
	return []Entity{{ID: 9, Name: "Nintendo"}}, nil
}

func (s *stubCatalog) FilteredGames(_ context.Context, f SearchFilters, page, size int) ([]Summary, int, error) {
	s.lastFilters = f
	s.lastPage = [2]int{page, size}
	return []Summary{{ID: 1, Name: "Celeste"}}, 41, nil
}

func TestCatalogCachesOptionLists(t *testing.T) {
	repo := &stubCatalog{listCalls: make(map[EntityType]int)}
	catalog := NewCatalog(repo, time.Minute)

	for i := 0; i < 3; i++ {
		genres, err := catalog.Genres(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "genre-1", genres[0].Name)
	}
	_, err := catalog.Platforms(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, repo.listCalls[EntityGenre])
	assert.Equal(t, 1, repo.listCalls[EntityPlatform])
}

func TestCatalogBlankEntitySearch(t *testing.T) {
	repo := &stubCatalog{listCalls: make(map[EntityType]int)}
	catalog := NewCatalog(repo, time.Minute)

	got, err := catalog.SearchCompanies(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, repo.searches)

	got, err = catalog.SearchPlatforms(context.Background(), "nin")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestCatalogSearchPagination(t *testing.T) {
	repo := &stubCatalog{listCalls: make(map[EntityType]int)}
	catalog := NewCatalog(repo, time.Minute)

	res, err := catalog.Search(context.Background(), SearchFilters{GenreIDs: []int64{3}}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, repo.lastFilters.GenreIDs)
	assert.Equal(t, 1, repo.lastPage[0])
	assert.Equal(t, 41, res.Pagination.Total)
}

func TestCatalogUnknownGame(t *testing.T) {
	catalog := NewCatalog(&stubCatalog{}, time.Minute)
	_, err := catalog.GetGame(context.Background(), 0)
	assert.EqualError(t, err, "not_found: Game not found: not found")
}

func TestParseIDs(t *testing.T) {
	assert.Equal(t, []int64{1, 2, 5}, parseIDs([]string{"1,2", "x", "5", "-3"}))
	assert.Nil(t, parseIDs(nil))
}

func TestSearchFiltersEmpty(t *testing.T) {
	assert.True(t, SearchFilters{}.Empty())
	assert.False(t, SearchFilters{CompanyIDs: []int64{1}}.Empty())
}
