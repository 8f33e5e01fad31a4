package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchbeam/searchbeam/internal/core"
)

type stubRequestStore struct {
	saved   []*core.ContentRequest
	saveErr error
	listErr error
}

func (s *stubRequestStore) SaveContentRequest(ctx context.Context, request *core.ContentRequest) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	request.ID = "generated-id"
	request.CreatedAt = time.Now().UTC()
	s.saved = append(s.saved, request)
	return nil
}

func (s *stubRequestStore) ListContentRequests(ctx context.Context, limit int) ([]*core.ContentRequest, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	if limit < len(s.saved) {
		return s.saved[:limit], nil
	}
	return s.saved, nil
}

func TestCreateContentRequest(t *testing.T) {
	store := &stubRequestStore{}
	handler := &RequestHandler{Store: store}

	body := strings.NewReader(`{"query": "rare cats", "message": "please index", "requester": "user1"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/requests", body)
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, store.saved, 1)
	assert.Equal(t, "rare cats", store.saved[0].Query)
	assert.Equal(t, "user1", store.saved[0].Requester)

	var resp core.ContentRequest
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "generated-id", resp.ID)
}

func TestCreateContentRequestDefaultsRequesterToClient(t *testing.T) {
	store := &stubRequestStore{}
	handler := &RequestHandler{Store: store}

	body := strings.NewReader(`{"query": "rare cats"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/requests", body)
	req.Header.Set("X-Session-ID", "session-42")
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, store.saved, 1)
	assert.Equal(t, "session-42", store.saved[0].Requester)
}

func TestCreateContentRequestRequiresQuery(t *testing.T) {
	handler := &RequestHandler{Store: &stubRequestStore{}}

	body := strings.NewReader(`{"message": "no query here"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/requests", body)
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateContentRequestRejectsBadJSON(t *testing.T) {
	handler := &RequestHandler{Store: &stubRequestStore{}}

	req := httptest.NewRequest(http.MethodPost, "/api/requests", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateContentRequestStoreFailure(t *testing.T) {
	handler := &RequestHandler{Store: &stubRequestStore{saveErr: errors.New("disk full")}}

	body := strings.NewReader(`{"query": "rare cats"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/requests", body)
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestListContentRequests(t *testing.T) {
	store := &stubRequestStore{saved: []*core.ContentRequest{
		{ID: "1", Query: "cats"},
		{ID: "2", Query: "dogs"},
	}}
	handler := &RequestHandler{Store: store}

	req := httptest.NewRequest(http.MethodGet, "/api/requests", nil)
	rec := httptest.NewRecorder()

	handler.List(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp RequestListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Requests, 2)
}

func TestListContentRequestsHonorsLimit(t *testing.T) {
	store := &stubRequestStore{saved: []*core.ContentRequest{
		{ID: "1", Query: "cats"},
		{ID: "2", Query: "dogs"},
		{ID: "3", Query: "birds"},
	}}
	handler := &RequestHandler{Store: store}

	req := httptest.NewRequest(http.MethodGet, "/api/requests?limit=2", nil)
	rec := httptest.NewRecorder()

	handler.List(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp RequestListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Requests, 2)
}

func TestListContentRequestsRejectsBadLimit(t *testing.T) {
	handler := &RequestHandler{Store: &stubRequestStore{}}

	req := httptest.NewRequest(http.MethodGet, "/api/requests?limit=-1", nil)
	rec := httptest.NewRecorder()

	handler.List(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
