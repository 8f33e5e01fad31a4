package store

import (
	"context"
	"errors"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS search_cache (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		query TEXT NOT NULL,
		page INTEGER NOT NULL DEFAULT 1,
		total INTEGER NOT NULL DEFAULT 0,
		results TEXT NOT NULL,
		cached_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL,
		UNIQUE(query, page)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_search_cache_expires ON search_cache(expires_at);`,
	`CREATE INDEX IF NOT EXISTS idx_search_cache_query ON search_cache(query);`,
	`CREATE TABLE IF NOT EXISTS content_requests (
		id TEXT PRIMARY KEY,
		requester TEXT NOT NULL,
		query TEXT NOT NULL,
		message TEXT,
		created_at INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_content_requests_requester ON content_requests(requester);`,
	`CREATE INDEX IF NOT EXISTS idx_content_requests_created ON content_requests(created_at);`,
}

// Migrate ensures the required database tables exist.
func (s *Store) Migrate(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	for _, stmt := range schemaStatements {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store migration failed: %w", err)
		}
	}

	return nil
}
