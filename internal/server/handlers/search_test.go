package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchbeam/searchbeam/internal/core"
	"github.com/searchbeam/searchbeam/internal/core/engine"
)

type stubPageCache struct {
	pages map[string]*core.SearchPage
}

func (c *stubPageCache) GetCachedPage(ctx context.Context, query string, page int) (*core.SearchPage, error) {
	if c.pages == nil {
		return nil, nil
	}
	return c.pages[cacheKey(query, page)], nil
}

func cacheKey(query string, page int) string {
	return fmt.Sprintf("%s#%d", query, page)
}

func newGateway(exec engine.SearchFunc, dedupTTL time.Duration) *SearchGateway {
	return &SearchGateway{
		NewCoordinator: func() *engine.Coordinator {
			return &engine.Coordinator{
				State:    &engine.SearchState{},
				DedupTTL: dedupTTL,
			}
		},
		Exec: exec,
	}
}

func searchRequest(target, session string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if session != "" {
		req.Header.Set("X-Session-ID", session)
	}
	return req
}

func TestSearchHandlerReturnsResults(t *testing.T) {
	gateway := newGateway(func(ctx context.Context, query string, page int) (*core.SearchPage, error) {
		return &core.SearchPage{Query: query, Page: page, Total: 1,
			Results: []*core.SearchResult{{ID: "a", Title: "Result A"}}}, nil
	}, 0)

	rec := httptest.NewRecorder()
	gateway.Handle(rec, searchRequest("/api/search?q=cats", "s1"))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp SearchResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "completed", resp.Disposition)
	require.NotNil(t, resp.Page)
	assert.Equal(t, "cats", resp.Page.Query)
	require.Len(t, resp.Page.Results, 1)
	assert.Equal(t, "Result A", resp.Page.Results[0].Title)
}

func TestSearchHandlerRequiresQuery(t *testing.T) {
	gateway := newGateway(nil, 0)

	rec := httptest.NewRecorder()
	gateway.Handle(rec, searchRequest("/api/search", "s1"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchHandlerRejectsBadPage(t *testing.T) {
	gateway := newGateway(nil, 0)

	rec := httptest.NewRecorder()
	gateway.Handle(rec, searchRequest("/api/search?q=cats&page=zero", "s1"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchHandlerSuppressesDuplicates(t *testing.T) {
	calls := 0
	gateway := newGateway(func(ctx context.Context, query string, page int) (*core.SearchPage, error) {
		calls++
		return &core.SearchPage{Query: query, Page: page}, nil
	}, time.Minute)

	rec := httptest.NewRecorder()
	gateway.Handle(rec, searchRequest("/api/search?q=cats", "s1"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	gateway.Handle(rec, searchRequest("/api/search?q=cats", "s1"))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SearchResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "duplicate_suppressed", resp.Disposition)
	assert.Equal(t, 1, calls, "duplicate must not reach the upstream")
}

func TestSearchHandlerForceBypassesDedup(t *testing.T) {
	calls := 0
	gateway := newGateway(func(ctx context.Context, query string, page int) (*core.SearchPage, error) {
		calls++
		return &core.SearchPage{Query: query, Page: page}, nil
	}, time.Minute)

	rec := httptest.NewRecorder()
	gateway.Handle(rec, searchRequest("/api/search?q=cats", "s1"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	gateway.Handle(rec, searchRequest("/api/search?q=cats&force=true", "s1"))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SearchResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "completed", resp.Disposition)
	assert.Equal(t, 2, calls)
}

func TestSearchHandlerSessionsAreIndependent(t *testing.T) {
	calls := 0
	gateway := newGateway(func(ctx context.Context, query string, page int) (*core.SearchPage, error) {
		calls++
		return &core.SearchPage{Query: query, Page: page}, nil
	}, time.Minute)

	rec := httptest.NewRecorder()
	gateway.Handle(rec, searchRequest("/api/search?q=cats", "s1"))
	require.Equal(t, http.StatusOK, rec.Code)

	// Same query from another session is not a duplicate.
	rec = httptest.NewRecorder()
	gateway.Handle(rec, searchRequest("/api/search?q=cats", "s2"))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SearchResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "completed", resp.Disposition)
	assert.Equal(t, 2, calls)
}

func TestSearchHandlerMapsUpstreamFailure(t *testing.T) {
	gateway := newGateway(func(ctx context.Context, query string, page int) (*core.SearchPage, error) {
		return nil, &engine.UpstreamError{Status: http.StatusBadGateway, Err: errors.New("boom")}
	}, 0)

	rec := httptest.NewRecorder()
	gateway.Handle(rec, searchRequest("/api/search?q=cats", "s1"))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestSearchHandlerMapsUpstreamRejection(t *testing.T) {
	gateway := newGateway(func(ctx context.Context, query string, page int) (*core.SearchPage, error) {
		return nil, &engine.UpstreamError{Status: http.StatusBadRequest}
	}, 0)

	rec := httptest.NewRecorder()
	gateway.Handle(rec, searchRequest("/api/search?q=cats", "s1"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchHandlerServesLaterPagesFromCache(t *testing.T) {
	cache := &stubPageCache{pages: map[string]*core.SearchPage{
		cacheKey("cats", 2): {Query: "cats", Page: 2, Total: 40},
	}}
	gateway := newGateway(func(ctx context.Context, query string, page int) (*core.SearchPage, error) {
		t.Fatal("cached page fetch must not reach the upstream")
		return nil, nil
	}, 0)
	gateway.Cache = cache

	rec := httptest.NewRecorder()
	gateway.Handle(rec, searchRequest("/api/search?q=cats&page=2", "s1"))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp SearchResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Page)
	assert.Equal(t, 2, resp.Page.Page)
	assert.Equal(t, 40, resp.Page.Total)
}

func TestSearchHandlerFetchesUncachedLaterPages(t *testing.T) {
	gateway := newGateway(func(ctx context.Context, query string, page int) (*core.SearchPage, error) {
		return &core.SearchPage{Query: query, Page: page}, nil
	}, 0)
	gateway.Cache = &stubPageCache{}

	rec := httptest.NewRecorder()
	gateway.Handle(rec, searchRequest("/api/search?q=cats&page=3", "s1"))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp SearchResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Page)
	assert.Equal(t, 3, resp.Page.Page)
}

func TestSearchHandlerWithoutExecutor(t *testing.T) {
	gateway := &SearchGateway{}

	rec := httptest.NewRecorder()
	gateway.Handle(rec, searchRequest("/api/search?q=cats", "s1"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
