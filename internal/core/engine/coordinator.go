package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fulmenhq/gofulmen/logging"

	"github.com/searchbeam/searchbeam/internal/core"
)

// SearchFunc executes one page of a search against the upstream. It may
// take arbitrary time and may fail; the coordinator never aborts it.
type SearchFunc func(ctx context.Context, query string, page int) (*core.SearchPage, error)

// QueryCache clears cached entries scoped to a query before a fresh search.
type QueryCache interface {
	ClearQuery(ctx context.Context, query string) error
}

// Paginator tracks result ids seen across pages of one search so deferred
// fills do not re-append duplicates. State must never leak across searches.
type Paginator interface {
	ClearSeenIDs()
}

// Hooks are the coordinator's outward effects. All of them are optional;
// nil hooks are skipped.
type Hooks struct {
	// ProcessResults applies a current (non-stale) page to the result
	// surface and cache.
	ProcessResults func(ctx context.Context, page *core.SearchPage, query string)

	// ScheduleFill schedules deferred pagination fill after a successful
	// first page.
	ScheduleFill func(query string, requestID int64)

	// HandleError owns failure recovery. It is expected to consult a
	// RetryStrategy for its own retry loop; the coordinator itself never
	// retries.
	HandleError func(ctx context.Context, err error, requestID int64, query string)

	// Finalize runs bookkeeping keyed by requestID on every path.
	Finalize func(requestID int64)

	// SetLoading toggles the caller's loading indicator.
	SetLoading func(loading bool)

	// ClearDisplay clears the visible result surface before a fresh search.
	ClearDisplay func()
}

// Disposition reports how a PerformSearch call resolved. PerformSearch
// never returns an error: failures are routed to the error hook and the
// event stream, and the disposition tells the caller what happened.
type Disposition string

const (
	// DispositionCompleted means the page was current and applied.
	DispositionCompleted Disposition = "completed"

	// DispositionDuplicate means the search was suppressed by the dedup TTL.
	DispositionDuplicate Disposition = "duplicate_suppressed"

	// DispositionStale means the page resolved after being superseded and
	// was silently discarded.
	DispositionStale Disposition = "stale_discarded"

	// DispositionFailed means execution failed and the error hook ran.
	DispositionFailed Disposition = "failed"

	// DispositionNoExecutor means no execution collaborator was available.
	DispositionNoExecutor Disposition = "no_executor"
)

// Coordinator runs one logical search end-to-end: admission, execution,
// staleness-checked result application, and lifecycle eventing. Overlapping
// searches never corrupt displayed state; correctness rests entirely on the
// generation-counter comparison, never on locking around the network call.
// Superseded requests run to completion and are discarded on resolution
// (detect-and-discard, no abort plumbing).
type Coordinator struct {
	State    *SearchState
	Cache    QueryCache
	Pager    Paginator
	Events   Emitter
	Hooks    Hooks
	DedupTTL time.Duration
	Logger   *logging.Logger
}

// PerformSearch runs one logical search. Multiple calls may be outstanding
// simultaneously; only the most recently issued request's results ever
// reach the result surface.
func (c *Coordinator) PerformSearch(ctx context.Context, query string, forceRefresh bool, exec SearchFunc) Disposition {
	if c == nil || c.State == nil {
		return DispositionNoExecutor
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if exec == nil {
		c.logDebug("search skipped: no execution collaborator", zap.String("query", query))
		return DispositionNoExecutor
	}

	if !forceRefresh && c.State.IsDuplicateSearch(query, c.DedupTTL) {
		c.logDebug("search suppressed: duplicate within ttl", zap.String("query", query))
		return DispositionDuplicate
	}

	c.State.UpdateLastSearch(query)
	requestID := c.State.InitializeSearch(query)

	// Fresh search: stale pagination and cache entries must never leak in.
	if c.Pager != nil {
		c.Pager.ClearSeenIDs()
	}
	if c.Cache != nil {
		if err := c.Cache.ClearQuery(ctx, query); err != nil {
			c.logWarn("clearing query cache failed",
				zap.String("query", query),
				zap.Int64("request_id", requestID),
				zap.Error(err))
		}
	}
	c.setLoading(true)
	if c.Hooks.ClearDisplay != nil {
		c.Hooks.ClearDisplay()
	}

	c.emit(Event{Type: EventSearchStart, Query: query, RequestID: requestID, Snapshot: c.State})

	page, err := exec(ctx, query, 1)

	disposition := c.resolve(ctx, query, requestID, page, err)

	if c.Hooks.Finalize != nil {
		c.Hooks.Finalize(requestID)
	}
	c.setLoading(false)
	c.emit(Event{Type: EventSearchEnd, Query: query, RequestID: requestID, Snapshot: c.State})

	return disposition
}

func (c *Coordinator) resolve(ctx context.Context, query string, requestID int64, page *core.SearchPage, err error) Disposition {
	if err != nil {
		c.emit(Event{
			Type:      EventSearchError,
			Query:     query,
			RequestID: requestID,
			Error:     err.Error(),
			Snapshot:  c.State,
		})
		if c.Hooks.HandleError != nil {
			c.Hooks.HandleError(ctx, err, requestID, query)
		}
		return DispositionFailed
	}

	if c.State.IsStaleResponse(requestID) {
		// A newer search started while this one was in flight. Silently
		// discard: no cache write, no display update, no complete/error
		// event attributable to this call.
		c.logDebug("stale response discarded",
			zap.String("query", query),
			zap.Int64("request_id", requestID),
			zap.Int64("current_id", c.State.CurrentID()))
		return DispositionStale
	}

	if c.Hooks.ProcessResults != nil {
		c.Hooks.ProcessResults(ctx, page, query)
	}
	if c.Hooks.ScheduleFill != nil {
		c.Hooks.ScheduleFill(query, requestID)
	}

	total, pageNum := 0, 1
	if page != nil {
		total = page.Total
		pageNum = page.Page
	}
	c.emit(Event{
		Type:         EventSearchComplete,
		Query:        query,
		RequestID:    requestID,
		TotalResults: total,
		Page:         pageNum,
		Snapshot:     c.State,
	})
	return DispositionCompleted
}

func (c *Coordinator) emit(event Event) {
	if c.Events != nil {
		c.Events.Emit(event)
	}
}

func (c *Coordinator) setLoading(loading bool) {
	if c.Hooks.SetLoading != nil {
		c.Hooks.SetLoading(loading)
	}
}

func (c *Coordinator) logDebug(msg string, fields ...zap.Field) {
	if c != nil && c.Logger != nil {
		c.Logger.Debug(msg, fields...)
	}
}

func (c *Coordinator) logWarn(msg string, fields ...zap.Field) {
	if c != nil && c.Logger != nil {
		c.Logger.Warn(msg, fields...)
	}
}
