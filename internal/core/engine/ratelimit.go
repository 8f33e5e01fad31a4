package engine

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// AnonymousKey identifies callers with no usable identity.
const AnonymousKey = "anonymous"

// RateLimitConfig configures a sliding-window limiter. Immutable after
// construction.
type RateLimitConfig struct {
	// Window is the trailing interval requests are counted in. A
	// non-positive window disables the limiter entirely: the window is
	// always empty at check time, so nothing is ever rejected. This is the
	// intended "disabled" override, not a degenerate bug.
	Window time.Duration

	// MaxRequests is the number of requests admitted per window. Zero
	// rejects every request.
	MaxRequests int

	// CleanupInterval bounds how often the full-map sweep runs.
	CleanupInterval time.Duration
}

// RateLimiter admits or rejects requests per identity key based on a
// sliding window over each key's timestamp log. Logs are append-only and
// ascending by construction (every append uses "now"), so pruning is a
// binary search rather than a scan.
//
// All state is in-memory and volatile; a restart clears every window.
type RateLimiter struct {
	Config RateLimitConfig
	Clock  func() time.Time

	mu        sync.Mutex
	entries   map[string][]time.Time
	lastSweep time.Time
}

// NewRateLimiter creates a limiter with the provided config.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		Config:  cfg,
		entries: make(map[string][]time.Time),
	}
}

// IsRateLimited reports whether the key has exhausted its window. When the
// request is admitted the attempt is recorded; rejected attempts are not
// counted against the caller. Admission opportunistically triggers the
// amortized sweep.
func (r *RateLimiter) IsRateLimited(key string) bool {
	if r == nil {
		return false
	}

	key = normalizeLimitKey(key)
	now := r.now()

	if r.Config.Window <= 0 {
		// Disabled mode: the window is empty at every check.
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entries == nil {
		r.entries = make(map[string][]time.Time)
	}

	cutoff := now.Add(-r.Config.Window)
	log := pruneLog(r.entries[key], cutoff)

	if len(log) >= r.Config.MaxRequests {
		r.entries[key] = log
		return true
	}

	r.entries[key] = append(log, now)
	r.sweepLocked(now)
	return false
}

// RequestCount returns the number of requests currently inside the key's
// window. Read-only: it never mutates limiter state.
func (r *RateLimiter) RequestCount(key string) int {
	if r == nil {
		return 0
	}

	key = normalizeLimitKey(key)

	r.mu.Lock()
	defer r.mu.Unlock()

	log := r.entries[key]
	if len(log) == 0 {
		return 0
	}
	if r.Config.Window <= 0 {
		return 0
	}

	cutoff := r.now().Add(-r.Config.Window)
	idx := sort.Search(len(log), func(i int) bool {
		return log[i].After(cutoff)
	})
	return len(log) - idx
}

// RetryAfter returns how long the key must wait before its window admits
// another request. Zero when the key is not currently limited.
func (r *RateLimiter) RetryAfter(key string) time.Duration {
	if r == nil || r.Config.Window <= 0 {
		return 0
	}

	key = normalizeLimitKey(key)
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := now.Add(-r.Config.Window)
	log := pruneLog(r.entries[key], cutoff)
	r.entries[key] = log

	if len(log) < r.Config.MaxRequests || len(log) == 0 {
		return 0
	}

	// The window reopens when the oldest in-window timestamp slides out.
	reset := log[0].Add(r.Config.Window)
	wait := reset.Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}

// Cleanup prunes every key to the window and deletes keys left empty. It
// runs at most once per CleanupInterval regardless of call volume; a
// per-call full-map scan would make every admitted request pay for the
// whole key space.
func (r *RateLimiter) Cleanup(now time.Time) {
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastSweep = time.Time{}
	r.sweepLocked(now)
}

// Reset clears state for a single key.
func (r *RateLimiter) Reset(key string) {
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, normalizeLimitKey(key))
}

// ResetAll clears state for every key.
func (r *RateLimiter) ResetAll() {
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string][]time.Time)
}

// Keys returns the identity keys with live state, for admin listing.
func (r *RateLimiter) Keys() []string {
	if r == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0, len(r.entries))
	for key := range r.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (r *RateLimiter) sweepLocked(now time.Time) {
	interval := r.Config.CleanupInterval
	if interval <= 0 {
		return
	}
	if !r.lastSweep.IsZero() && now.Sub(r.lastSweep) <= interval {
		return
	}
	r.lastSweep = now

	cutoff := now.Add(-r.Config.Window)
	for key, log := range r.entries {
		pruned := pruneLog(log, cutoff)
		if len(pruned) == 0 {
			delete(r.entries, key)
			continue
		}
		r.entries[key] = pruned
	}
}

// pruneLog drops every timestamp at or before cutoff. An entry recorded
// exactly one window ago has slid out and must not count against the key.
// The log is ascending by construction, so the boundary is found by binary
// search.
func pruneLog(log []time.Time, cutoff time.Time) []time.Time {
	if len(log) == 0 {
		return log
	}
	idx := sort.Search(len(log), func(i int) bool {
		return log[i].After(cutoff)
	})
	if idx == 0 {
		return log
	}
	return append([]time.Time(nil), log[idx:]...)
}

func normalizeLimitKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return AnonymousKey
	}
	return key
}

func (r *RateLimiter) now() time.Time {
	if r != nil && r.Clock != nil {
		return r.Clock()
	}
	return time.Now().UTC()
}
