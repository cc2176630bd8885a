package catalogsvc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/library"
	logsvc "github.com/trezcool/darasa/services/logger"
)

const searchBody = `{
	"numFound": 3,
	"docs": [
		{"key": "/works/OL1W", "title": "Things Fall Apart", "author_name": ["Chinua Achebe"], "cover_i": 42, "number_of_pages_median": 209, "first_publish_year": 1958},
		{"key": "", "title": "no key"},
		{"key": "/works/OL2W", "title": "Arrow of God", "author_name": ["Chinua Achebe", "Someone"]}
	]
}`

func newTestCatalog(t *testing.T, handler http.HandlerFunc, cache Cache) *OpenLibrary {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	conf := core.NewTestConfig()
	conf.Catalog.BaseURL = srv.URL
	conf.Catalog.Timeout = 2 * time.Second
	return NewOpenLibrary(conf, cache, logsvc.NewNopLogger())
}

func TestOpenLibrary_Search(t *testing.T) {
	var calls int
	mr := miniredis.RunT(t)
	cache := NewRedisCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	ol := newTestCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, searchPath, r.URL.Path)
		assert.Equal(t, "achebe", r.URL.Query().Get("q"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		assert.Equal(t, searchFields, r.URL.Query().Get("fields"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(searchBody))
	}, cache)

	results, err := ol.Search(context.Background(), "achebe", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, library.CatalogResult{
		ExternalKey:      "/works/OL1W",
		Title:            "Things Fall Apart",
		Author:           "Chinua Achebe",
		CoverURL:         "https://covers.openlibrary.org/b/id/42-M.jpg",
		Pages:            209,
		FirstPublishYear: 1958,
	}, results[0])
	assert.Equal(t, "Chinua Achebe, Someone", results[1].Author)
	assert.Empty(t, results[1].CoverURL)

	// served from cache
	again, err := ol.Search(context.Background(), "Achebe ", 5)
	require.NoError(t, err)
	assert.Equal(t, results, again)
	assert.Equal(t, 1, calls)
	assert.True(t, mr.Exists(cacheKey("achebe", 5)))

	// expired entries hit the catalog again
	mr.FastForward(ol.ttl + time.Second)
	_, err = ol.Search(context.Background(), "achebe", 5)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestOpenLibrary_SearchLimit(t *testing.T) {
	ol := newTestCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(searchBody))
	}, new(NoopCache))

	results, err := ol.Search(context.Background(), "achebe", 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestOpenLibrary_SearchUnavailable(t *testing.T) {
	ol := newTestCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}, new(NoopCache))

	_, err := ol.Search(context.Background(), "achebe", 5)
	assert.Error(t, err)
}

func TestOpenLibrary_SearchCacheDown(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := NewRedisCache(redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1}))
	mr.Close()

	ol := newTestCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(searchBody))
	}, cache)

	results, err := ol.Search(context.Background(), "achebe", 5)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}
