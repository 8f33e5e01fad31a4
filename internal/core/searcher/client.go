// Package searcher implements the production execution collaborator for the
// search coordinator: an HTTP client for the upstream search API with a
// retry loop driven by the engine's retry strategy.
package searcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/fulmenhq/gofulmen/logging"

	"github.com/searchbeam/searchbeam/internal/core"
	"github.com/searchbeam/searchbeam/internal/core/engine"
	"github.com/searchbeam/searchbeam/internal/metrics"
)

const upstreamSource = "upstream"

// Client queries the upstream search API. The retry policy lives here, not
// in the coordinator: the coordinator orchestrates one logical search while
// the client decides whether a failed attempt is worth repeating.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Retry      *engine.RetryStrategy
	Clock      func() time.Time
	Logger     *logging.Logger

	// PageSize is sent as the page_size query parameter when positive;
	// zero leaves the upstream's default in effect.
	PageSize int
}

// upstreamResponse is the wire shape of the upstream search endpoint.
type upstreamResponse struct {
	Total int                  `json:"total"`
	Page  int                  `json:"page"`
	Items []*core.SearchResult `json:"items"`
}

// Search fetches one page of results, retrying transient failures with
// jittered backoff and honoring Retry-After hints. Terminal failures and
// exhausted retries surface the last upstream error.
func (c *Client) Search(ctx context.Context, query string, page int) (*core.SearchPage, error) {
	if c == nil || c.BaseURL == "" {
		return nil, errors.New("search client is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	requestedAt := c.now()

	var lastErr error
	attempts := 1
	if c.Retry != nil && c.Retry.Config.MaxAttempts > 0 {
		attempts = c.Retry.Config.MaxAttempts
	}

	for attempt := 0; attempt < attempts; attempt++ {
		result, err := c.fetch(ctx, query, page, requestedAt)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if c.Retry == nil || c.Retry.ShouldNotRetry(err, attempt) {
			break
		}

		c.logDebug("upstream search failed, will retry",
			zap.String("query", query),
			zap.Int("attempt", attempt),
			zap.Error(err))
		metrics.RecordRetry(retryReason(err))

		if waitErr := c.Retry.DelayRetry(ctx, attempt, err); waitErr != nil {
			return nil, waitErr
		}
	}

	if errors.Is(lastErr, context.Canceled) {
		return nil, lastErr
	}

	var upstream *engine.UpstreamError
	if errors.As(lastErr, &upstream) && upstream.Status >= 400 && upstream.Status < 500 && upstream.Status != http.StatusTooManyRequests {
		// Terminal client errors are not "exhausted retries".
		return nil, lastErr
	}

	return nil, fmt.Errorf("%w: %w", engine.ErrRetriesExhausted, lastErr)
}

func (c *Client) fetch(ctx context.Context, query string, page int, requestedAt time.Time) (*core.SearchPage, error) {
	endpoint, err := c.searchURL(query, page)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &engine.UpstreamError{Err: err}
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

		upstream := &engine.UpstreamError{Status: resp.StatusCode}
		if resp.StatusCode == http.StatusTooManyRequests && c.Retry != nil {
			upstream.RetryAfter = c.Retry.ParseRetryAfter(resp.Header.Get("Retry-After"))
		}
		return nil, upstream
	}

	var decoded upstreamResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &engine.UpstreamError{Status: resp.StatusCode, Err: fmt.Errorf("decode search response: %w", err)}
	}

	pageNum := decoded.Page
	if pageNum == 0 {
		pageNum = page
	}

	return &core.SearchPage{
		Query:   query,
		Page:    pageNum,
		Total:   decoded.Total,
		Results: decoded.Items,
		Provenance: core.Provenance{
			RequestedAt: requestedAt,
			ResolvedAt:  c.now(),
			Source:      upstreamSource,
		},
	}, nil
}

func (c *Client) searchURL(query string, page int) (string, error) {
	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid upstream url: %w", err)
	}

	values := base.Query()
	values.Set("q", query)
	if page > 1 {
		values.Set("page", strconv.Itoa(page))
	}
	if c.PageSize > 0 {
		values.Set("page_size", strconv.Itoa(c.PageSize))
	}
	base.RawQuery = values.Encode()

	return base.String(), nil
}

// retryReason labels a retried failure for the retry counter.
func retryReason(err error) string {
	var upstream *engine.UpstreamError
	if errors.As(err, &upstream) {
		switch {
		case upstream.Status == http.StatusTooManyRequests:
			return "rate_limited"
		case upstream.Status >= 500:
			return "server_error"
		case upstream.Status == 0:
			return "transport"
		}
	}
	return "other"
}

func (c *Client) httpClient() *http.Client {
	if c != nil && c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) now() time.Time {
	if c != nil && c.Clock != nil {
		return c.Clock()
	}
	return time.Now().UTC()
}

func (c *Client) logDebug(msg string, fields ...zap.Field) {
	if c != nil && c.Logger != nil {
		c.Logger.Debug(msg, fields...)
	}
}
