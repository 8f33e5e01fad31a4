package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/searchbeam/searchbeam/internal/core"
)

// GetCachedPage returns a cached search page if it is still valid.
func (s *Store) GetCachedPage(ctx context.Context, query string, page int) (*core.SearchPage, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("cache query is required")
	}
	if page < 1 {
		page = 1
	}

	var (
		total      int
		resultJSON string
		cachedAt   int64
		expiresAt  int64
	)

	row := s.DB.QueryRowContext(ctx, `
		SELECT total, results, cached_at, expires_at
		FROM search_cache
		WHERE query = ? AND page = ? AND expires_at > ?
	`, query, page, time.Now().UTC().Unix())

	if err := row.Scan(&total, &resultJSON, &cachedAt, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch cached page: %w", err)
	}

	var results []*core.SearchResult
	if resultJSON != "" {
		if err := json.Unmarshal([]byte(resultJSON), &results); err != nil {
			return nil, fmt.Errorf("decode cached page: %w", err)
		}
	}

	expires := time.Unix(expiresAt, 0).UTC()

	return &core.SearchPage{
		Query:   query,
		Page:    page,
		Total:   total,
		Results: results,
		Provenance: core.Provenance{
			ResolvedAt:  time.Unix(cachedAt, 0).UTC(),
			Source:      "cache",
			FromCache:   true,
			CacheExpiry: &expires,
		},
	}, nil
}

// SetCachedPage stores a search page with a TTL.
func (s *Store) SetCachedPage(ctx context.Context, page *core.SearchPage, ttl time.Duration) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if ttl <= 0 || page == nil {
		return nil
	}

	query := strings.TrimSpace(page.Query)
	if query == "" {
		return errors.New("cache query is required")
	}

	pageNum := page.Page
	if pageNum < 1 {
		pageNum = 1
	}

	resultJSON, err := json.Marshal(page.Results)
	if err != nil {
		return fmt.Errorf("encode cached page: %w", err)
	}

	now := time.Now().UTC()

	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO search_cache (query, page, total, results, cached_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(query, page) DO UPDATE SET
			total = excluded.total,
			results = excluded.results,
			cached_at = excluded.cached_at,
			expires_at = excluded.expires_at
	`, query, pageNum, page.Total, string(resultJSON), now.Unix(), now.Add(ttl).Unix())
	if err != nil {
		return fmt.Errorf("store cached page: %w", err)
	}

	return nil
}

// ClearQuery removes every cached page for a query. A fresh search must
// never observe pages cached by an earlier one.
func (s *Store) ClearQuery(ctx context.Context, query string) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	if _, err := s.DB.ExecContext(ctx, `DELETE FROM search_cache WHERE query = ?`, query); err != nil {
		return fmt.Errorf("clear query cache: %w", err)
	}
	return nil
}

// ClearExpired removes cache rows past their expiry. Returns rows deleted.
func (s *Store) ClearExpired(ctx context.Context) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	result, err := s.DB.ExecContext(ctx, `DELETE FROM search_cache WHERE expires_at <= ?`, time.Now().UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("clear expired cache: %w", err)
	}
	return result.RowsAffected()
}

// ClearAllCache removes every cached page. Returns rows deleted.
func (s *Store) ClearAllCache(ctx context.Context) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	result, err := s.DB.ExecContext(ctx, `DELETE FROM search_cache`)
	if err != nil {
		return 0, fmt.Errorf("clear cache: %w", err)
	}
	return result.RowsAffected()
}
