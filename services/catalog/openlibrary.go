// Package catalogsvc searches the Open Library catalog, caching results.
package catalogsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/library"
)

const (
	searchPath   = "/search.json"
	searchFields = "key,title,author_name,cover_i,number_of_pages_median,first_publish_year"
	coverURLFmt  = "https://covers.openlibrary.org/b/id/%d-M.jpg"
)

type (
	searchResponse struct {
		NumFound int         `json:"numFound"`
		Docs     []searchDoc `json:"docs"`
	}

	searchDoc struct {
		Key              string   `json:"key"`
		Title            string   `json:"title"`
		AuthorName       []string `json:"author_name"`
		CoverID          int      `json:"cover_i"`
		Pages            int      `json:"number_of_pages_median"`
		FirstPublishYear int      `json:"first_publish_year"`
	}
)

func (doc searchDoc) result() library.CatalogResult {
	res := library.CatalogResult{
		ExternalKey:      doc.Key,
		Title:            doc.Title,
		Author:           strings.Join(doc.AuthorName, ", "),
		Pages:            doc.Pages,
		FirstPublishYear: doc.FirstPublishYear,
	}
	if doc.CoverID > 0 {
		res.CoverURL = fmt.Sprintf(coverURLFmt, doc.CoverID)
	}
	return res
}

// OpenLibrary is a library.Catalog backed by the Open Library search API.
type OpenLibrary struct {
	client  *http.Client
	baseURL string
	cache   Cache
	ttl     time.Duration
	logger  core.Logger
}

var _ library.Catalog = (*OpenLibrary)(nil)

func NewOpenLibrary(conf *core.Config, cache Cache, logger core.Logger) *OpenLibrary {
	vala.BeginValidation().Validate(
		vala.IsNotNil(conf, "conf"),
		vala.IsNotNil(cache, "cache"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &OpenLibrary{
		client:  &http.Client{Timeout: conf.Catalog.Timeout},
		baseURL: strings.TrimRight(conf.Catalog.BaseURL, "/"),
		cache:   cache,
		ttl:     conf.Redis.SearchTTL,
		logger:  logger,
	}
}

func cacheKey(query string, limit int) string {
	return "catalog:search:" + strconv.Itoa(limit) + ":" + strings.ToLower(strings.TrimSpace(query))
}

// Search returns at most `limit` books matching `query`. Cache failures are logged, never returned.
func (ol *OpenLibrary) Search(ctx context.Context, query string, limit int) ([]library.CatalogResult, error) {
	key := cacheKey(query, limit)
	if results, found, err := ol.cache.Get(ctx, key); err != nil {
		ol.logger.Warn(fmt.Sprintf("catalog cache get: %v", err), err)
	} else if found {
		return results, nil
	}

	results, err := ol.search(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	if err = ol.cache.Set(ctx, key, results, ol.ttl); err != nil {
		ol.logger.Warn(fmt.Sprintf("catalog cache set: %v", err), err)
	}
	return results, nil
}

func (ol *OpenLibrary) search(ctx context.Context, query string, limit int) ([]library.CatalogResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("fields", searchFields)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ol.baseURL+searchPath+"?"+params.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "building catalog request")
	}
	req.Header.Set("Accept", "application/json")

	res, err := ol.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "querying catalog")
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		return nil, errors.Errorf("catalog responded with status %d", res.StatusCode)
	}

	var body searchResponse
	if err = json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, errors.Wrap(err, "decoding catalog response")
	}

	results := make([]library.CatalogResult, 0, len(body.Docs))
	for _, doc := range body.Docs {
		if doc.Key == "" || doc.Title == "" {
			continue
		}
		results = append(results, doc.result())
		if len(results) == limit {
			break
		}
	}
	return results, nil
}
