package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/searchbeam/searchbeam/internal/core"
	apperrors "github.com/searchbeam/searchbeam/internal/errors"
	"github.com/searchbeam/searchbeam/internal/server/middleware"
)

const (
	defaultRequestListLimit = 50
	maxRequestListLimit     = 500
)

// RequestStore persists content requests. The store satisfies it.
type RequestStore interface {
	SaveContentRequest(ctx context.Context, request *core.ContentRequest) error
	ListContentRequests(ctx context.Context, limit int) ([]*core.ContentRequest, error)
}

// RequestHandler serves the content-request API. Submissions reach it only
// after passing the admission limiter.
type RequestHandler struct {
	Store RequestStore
}

// CreateRequestBody is the POST /api/requests payload.
type CreateRequestBody struct {
	Query     string `json:"query"`
	Message   string `json:"message,omitempty"`
	Requester string `json:"requester,omitempty"`
}

// RequestListResponse wraps the GET /api/requests response.
type RequestListResponse struct {
	Requests []*core.ContentRequest `json:"requests"`
}

// Create serves POST /api/requests.
func (h *RequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		respondWithError(w, r, apperrors.NewInternalError("request store not configured"))
		return
	}

	var body CreateRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "request body must be valid JSON"))
		return
	}

	if strings.TrimSpace(body.Query) == "" {
		respondWithError(w, r, apperrors.NewValidationError("field 'query' is required"))
		return
	}

	requester := strings.TrimSpace(body.Requester)
	if requester == "" {
		requester = middleware.ClientKey(r)
	}

	request := &core.ContentRequest{
		Requester: requester,
		Query:     strings.TrimSpace(body.Query),
		Message:   strings.TrimSpace(body.Message),
	}

	if err := h.Store.SaveContentRequest(r.Context(), request); err != nil {
		respondWithError(w, r, apperrors.WrapDatabaseError(r.Context(), err, "saving content request failed"))
		return
	}

	writeJSON(w, http.StatusCreated, request)
}

// List serves GET /api/requests.
func (h *RequestHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		respondWithError(w, r, apperrors.NewInternalError("request store not configured"))
		return
	}

	limit := defaultRequestListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respondWithError(w, r, apperrors.NewInvalidInputError("query parameter 'limit' must be a positive integer"))
			return
		}
		limit = parsed
	}
	if limit > maxRequestListLimit {
		limit = maxRequestListLimit
	}

	requests, err := h.Store.ListContentRequests(r.Context(), limit)
	if err != nil {
		respondWithError(w, r, apperrors.WrapDatabaseError(r.Context(), err, "listing content requests failed"))
		return
	}
	if requests == nil {
		requests = []*core.ContentRequest{}
	}

	writeJSON(w, http.StatusOK, RequestListResponse{Requests: requests})
}
