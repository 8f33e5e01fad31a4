package engine

import (
	"sync"
	"time"
)

// SearchState disambiguates overlapping logical searches without a request
// queue or lock around the network call. Each accepted search mints a fresh
// generation id; a response is applied only if its id still matches the
// most recent generation at completion time.
//
// One instance belongs to one coordinator. The id counter only ever
// increases and ids are never reused; 64-bit range outlives any realistic
// process lifetime.
type SearchState struct {
	Clock func() time.Time

	mu            sync.Mutex
	currentID     int64
	lastQuery     string
	hasLastQuery  bool
	lastQueryTime time.Time
}

// IsDuplicateSearch reports whether query matches the last accepted query
// within the dedup TTL. Suppresses accidental immediate re-submission of an
// identical query; callers with a force flag bypass this check themselves.
func (s *SearchState) IsDuplicateSearch(query string, ttl time.Duration) bool {
	if s == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasLastQuery || s.lastQuery != query {
		return false
	}
	return s.now().Sub(s.lastQueryTime) < ttl
}

// UpdateLastSearch unconditionally records query and "now" as the new dedup
// baseline. Called once a search is accepted, regardless of how it ends.
func (s *SearchState) UpdateLastSearch(query string) {
	if s == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastQuery = query
	s.hasLastQuery = true
	s.lastQueryTime = s.now()
}

// InitializeSearch increments and returns the generation counter. The
// returned id becomes the sole current outstanding id, superseding every
// earlier in-flight request.
func (s *SearchState) InitializeSearch(query string) int64 {
	if s == nil {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentID++
	return s.currentID
}

// IsStaleResponse reports whether a newer search started after the one that
// produced requestID. Stale resolutions must be discarded without touching
// cache or display state.
func (s *SearchState) IsStaleResponse(requestID int64) bool {
	if s == nil {
		return true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return requestID != s.currentID
}

// CurrentID returns the most recently issued generation id.
func (s *SearchState) CurrentID() int64 {
	if s == nil {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentID
}

// Reset clears all state. Test helper; production state is never reset.
func (s *SearchState) Reset() {
	if s == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentID = 0
	s.lastQuery = ""
	s.hasLastQuery = false
	s.lastQueryTime = time.Time{}
}

func (s *SearchState) now() time.Time {
	if s != nil && s.Clock != nil {
		return s.Clock()
	}
	return time.Now().UTC()
}
