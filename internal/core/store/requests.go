package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/searchbeam/searchbeam/internal/core"
)

// SaveContentRequest persists a content-request submission. The caller is
// responsible for admission control; the store accepts whatever passed it.
func (s *Store) SaveContentRequest(ctx context.Context, req *core.ContentRequest) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if req == nil {
		return errors.New("content request is required")
	}
	if strings.TrimSpace(req.Query) == "" {
		return errors.New("content request query is required")
	}

	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.Requester == "" {
		req.Requester = "anonymous"
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO content_requests (id, requester, query, message, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, req.ID, req.Requester, req.Query, nullableString(req.Message), req.CreatedAt.UTC().Unix())
	if err != nil {
		return fmt.Errorf("store content request: %w", err)
	}

	return nil
}

// ListContentRequests returns submissions, newest first, capped at limit.
func (s *Store) ListContentRequests(ctx context.Context, limit int) ([]*core.ContentRequest, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if limit <= 0 {
		limit = 100
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, requester, query, message, created_at
		FROM content_requests
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list content requests: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var requests []*core.ContentRequest
	for rows.Next() {
		var (
			req       core.ContentRequest
			message   sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&req.ID, &req.Requester, &req.Query, &message, &createdAt); err != nil {
			return nil, fmt.Errorf("scan content request: %w", err)
		}
		req.Message = message.String
		req.CreatedAt = time.Unix(createdAt, 0).UTC()
		requests = append(requests, &req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list content requests: %w", err)
	}

	return requests, nil
}

func nullableString(value string) sql.NullString {
	value = strings.TrimSpace(value)
	return sql.NullString{String: value, Valid: value != ""}
}
