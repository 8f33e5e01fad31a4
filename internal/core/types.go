package core

import "time"

// SearchResult is a single hit returned by the upstream search API.
type SearchResult struct {
	ID      string         `json:"id"`
	Title   string         `json:"title"`
	Snippet string         `json:"snippet,omitempty"`
	URL     string         `json:"url,omitempty"`
	Score   float64        `json:"score,omitempty"`
	Extra   map[string]any `json:"extra,omitempty"`
}

// SearchPage is one page of results for a query.
type SearchPage struct {
	Query      string          `json:"query"`
	Page       int             `json:"page"`
	Total      int             `json:"total"`
	Results    []*SearchResult `json:"results"`
	Provenance Provenance      `json:"provenance"`
}

// Provenance captures how a page was resolved.
type Provenance struct {
	RequestedAt time.Time  `json:"requested_at"`
	ResolvedAt  time.Time  `json:"resolved_at"`
	Source      string     `json:"source"`
	FromCache   bool       `json:"from_cache"`
	CacheExpiry *time.Time `json:"cache_expires_at,omitempty"`
}

// ContentRequest is a user-submitted request for content that search could
// not satisfy. Submissions arrive through the rate-limited write endpoint.
type ContentRequest struct {
	ID        string    `json:"id"`
	Requester string    `json:"requester"`
	Query     string    `json:"query"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
