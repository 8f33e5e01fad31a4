package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	apperrors "github.com/searchbeam/searchbeam/internal/errors"
	"github.com/searchbeam/searchbeam/internal/metrics"

	"github.com/searchbeam/searchbeam/internal/core"
	"github.com/searchbeam/searchbeam/internal/core/engine"
	"github.com/searchbeam/searchbeam/internal/server/middleware"
)

// maxSessions bounds the per-session coordinator map. Coordinator state is
// volatile, so dropping it under pressure only costs dedup/staleness
// tracking for callers that were already idle.
const maxSessions = 1024

// PageCache reads cached result pages. The store satisfies it.
type PageCache interface {
	GetCachedPage(ctx context.Context, query string, page int) (*core.SearchPage, error)
}

// SearchResponse is the /api/search response body.
type SearchResponse struct {
	Disposition string           `json:"disposition"`
	Page        *core.SearchPage `json:"page,omitempty"`
}

// SearchGateway adapts search coordination to HTTP. Each caller session
// gets its own coordinator so one caller's rapid-fire queries supersede
// each other without disturbing anyone else's.
type SearchGateway struct {
	// NewCoordinator builds a coordinator for a fresh session.
	NewCoordinator func() *engine.Coordinator

	// Exec runs one page of a search against the upstream.
	Exec engine.SearchFunc

	// Cache serves duplicate-suppressed calls and direct page fetches.
	Cache PageCache

	mu       sync.Mutex
	sessions map[string]*engine.Coordinator
}

// Handle serves GET /api/search.
func (g *SearchGateway) Handle(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		respondWithError(w, r, apperrors.NewInvalidInputError("query parameter 'q' is required"))
		return
	}

	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respondWithError(w, r, apperrors.NewInvalidInputError("query parameter 'page' must be a positive integer"))
			return
		}
		page = parsed
	}

	force := false
	if raw := r.URL.Query().Get("force"); raw != "" {
		force = raw == "1" || strings.EqualFold(raw, "true")
	}

	if page > 1 {
		g.handlePageFetch(w, r, query, page)
		return
	}

	g.handleCoordinated(w, r, query, force)
}

// handleCoordinated runs a first-page search through the caller's
// coordinator, so duplicates are suppressed and superseded responses never
// reach the wire.
func (g *SearchGateway) handleCoordinated(w http.ResponseWriter, r *http.Request, query string, force bool) {
	coordinator := g.coordinator(middleware.ClientKey(r))
	if coordinator == nil || g.Exec == nil {
		respondWithError(w, r, apperrors.NewInternalError("search executor not configured"))
		return
	}

	start := time.Now()

	// Capture the page and error from this call's own execution; the
	// coordinator only reports the disposition.
	var (
		resolved *core.SearchPage
		execErr  error
	)
	exec := func(ctx context.Context, q string, p int) (*core.SearchPage, error) {
		page, err := g.Exec(ctx, q, p)
		resolved, execErr = page, err
		return page, err
	}

	disposition := coordinator.PerformSearch(r.Context(), query, force, exec)
	metrics.RecordSearch(string(disposition), time.Since(start))

	switch disposition {
	case engine.DispositionCompleted:
		writeJSON(w, http.StatusOK, SearchResponse{
			Disposition: string(disposition),
			Page:        resolved,
		})

	case engine.DispositionDuplicate:
		// The identical query just ran; serve its cached page when we have
		// one rather than hammering the upstream.
		writeJSON(w, http.StatusOK, SearchResponse{
			Disposition: string(disposition),
			Page:        g.cachedPage(r.Context(), query, 1),
		})

	case engine.DispositionStale:
		writeJSON(w, http.StatusOK, SearchResponse{
			Disposition: string(disposition),
		})

	case engine.DispositionFailed:
		respondWithError(w, r, classifySearchError(r.Context(), execErr))

	default:
		respondWithError(w, r, apperrors.NewInternalError("search executor not configured"))
	}
}

// handlePageFetch serves pages beyond the first directly: pagination fills
// are not competing searches, so they bypass the coordinator.
func (g *SearchGateway) handlePageFetch(w http.ResponseWriter, r *http.Request, query string, page int) {
	if cached := g.cachedPage(r.Context(), query, page); cached != nil {
		writeJSON(w, http.StatusOK, SearchResponse{
			Disposition: string(engine.DispositionCompleted),
			Page:        cached,
		})
		return
	}

	if g.Exec == nil {
		respondWithError(w, r, apperrors.NewInternalError("search executor not configured"))
		return
	}

	resolved, err := g.Exec(r.Context(), query, page)
	if err != nil {
		respondWithError(w, r, classifySearchError(r.Context(), err))
		return
	}

	writeJSON(w, http.StatusOK, SearchResponse{
		Disposition: string(engine.DispositionCompleted),
		Page:        resolved,
	})
}

func (g *SearchGateway) cachedPage(ctx context.Context, query string, page int) *core.SearchPage {
	if g.Cache == nil {
		return nil
	}
	cached, err := g.Cache.GetCachedPage(ctx, query, page)
	if err != nil {
		return nil
	}
	metrics.RecordCacheLookup(cached != nil)
	return cached
}

// coordinator returns the session's coordinator, creating it on first use.
func (g *SearchGateway) coordinator(session string) *engine.Coordinator {
	if g.NewCoordinator == nil {
		return nil
	}
	if session == "" {
		session = engine.AnonymousKey
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.sessions == nil {
		g.sessions = make(map[string]*engine.Coordinator)
	}
	if coordinator, ok := g.sessions[session]; ok {
		return coordinator
	}

	if len(g.sessions) >= maxSessions {
		g.sessions = make(map[string]*engine.Coordinator)
	}

	coordinator := g.NewCoordinator()
	g.sessions[session] = coordinator
	return coordinator
}

func classifySearchError(ctx context.Context, err error) error {
	if err == nil {
		return apperrors.NewInternalError("search failed")
	}

	var upstream *engine.UpstreamError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.WrapTimeout(ctx, err, "upstream search timed out")
	case errors.Is(err, context.Canceled):
		return apperrors.WrapTimeout(ctx, err, "search canceled")
	case errors.As(err, &upstream) && upstream.Status >= 400 && upstream.Status < 500 && upstream.Status != http.StatusTooManyRequests:
		return apperrors.WrapInvalidInput(ctx, err, "upstream rejected the query")
	default:
		return apperrors.WrapExternalService(ctx, err, "upstream search failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
