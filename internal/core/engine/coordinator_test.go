package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/searchbeam/searchbeam/internal/core"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingEmitter) Emit(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingEmitter) byType(eventType EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []Event
	for _, e := range r.events {
		if e.Type == eventType {
			matched = append(matched, e)
		}
	}
	return matched
}

type fakeCache struct {
	mu      sync.Mutex
	cleared []string
}

func (f *fakeCache) ClearQuery(ctx context.Context, query string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, query)
	return nil
}

type fakePager struct {
	mu     sync.Mutex
	clears int
}

func (f *fakePager) ClearSeenIDs() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
}

func staticPage(query string, total int) SearchFunc {
	return func(ctx context.Context, q string, page int) (*core.SearchPage, error) {
		return &core.SearchPage{Query: query, Page: page, Total: total}, nil
	}
}

func newTestCoordinator(emitter *recordingEmitter) (*Coordinator, *fakeCache, *fakePager) {
	cache := &fakeCache{}
	pager := &fakePager{}
	coord := &Coordinator{
		State:    &SearchState{},
		Cache:    cache,
		Pager:    pager,
		Events:   emitter,
		DedupTTL: 2 * time.Second,
	}
	return coord, cache, pager
}

func TestPerformSearchSuccess(t *testing.T) {
	emitter := &recordingEmitter{}
	coord, cache, pager := newTestCoordinator(emitter)

	var processed *core.SearchPage
	var loading []bool
	var finalized []int64
	scheduled := 0
	cleared := 0

	coord.Hooks = Hooks{
		ProcessResults: func(ctx context.Context, page *core.SearchPage, query string) { processed = page },
		ScheduleFill:   func(query string, requestID int64) { scheduled++ },
		Finalize:       func(requestID int64) { finalized = append(finalized, requestID) },
		SetLoading:     func(v bool) { loading = append(loading, v) },
		ClearDisplay:   func() { cleared++ },
	}

	disposition := coord.PerformSearch(context.Background(), "cats", false, staticPage("cats", 42))
	require.Equal(t, DispositionCompleted, disposition)

	require.NotNil(t, processed)
	require.Equal(t, 42, processed.Total)
	require.Equal(t, 1, scheduled)
	require.Equal(t, 1, cleared)
	require.Equal(t, []bool{true, false}, loading)
	require.Equal(t, []int64{1}, finalized)
	require.Equal(t, []string{"cats"}, cache.cleared)
	require.Equal(t, 1, pager.clears)

	types := make([]EventType, 0, len(emitter.events))
	for _, e := range emitter.events {
		types = append(types, e.Type)
	}
	require.Equal(t, []EventType{EventSearchStart, EventSearchComplete, EventSearchEnd}, types)

	complete := emitter.byType(EventSearchComplete)[0]
	require.Equal(t, "cats", complete.Query)
	require.Equal(t, int64(1), complete.RequestID)
	require.Equal(t, 42, complete.TotalResults)
	require.Equal(t, 1, complete.Page)
}

func TestPerformSearchNoExecutor(t *testing.T) {
	emitter := &recordingEmitter{}
	coord, _, _ := newTestCoordinator(emitter)

	require.Equal(t, DispositionNoExecutor, coord.PerformSearch(context.Background(), "cats", false, nil))
	require.Empty(t, emitter.events)
}

func TestPerformSearchDuplicateSuppressed(t *testing.T) {
	emitter := &recordingEmitter{}
	coord, _, _ := newTestCoordinator(emitter)

	require.Equal(t, DispositionCompleted,
		coord.PerformSearch(context.Background(), "cats", false, staticPage("cats", 1)))
	require.Equal(t, DispositionDuplicate,
		coord.PerformSearch(context.Background(), "cats", false, staticPage("cats", 1)))

	// A force refresh bypasses the dedup TTL.
	require.Equal(t, DispositionCompleted,
		coord.PerformSearch(context.Background(), "cats", true, staticPage("cats", 1)))

	require.Len(t, emitter.byType(EventSearchStart), 2)
}

func TestPerformSearchFailure(t *testing.T) {
	emitter := &recordingEmitter{}
	coord, _, _ := newTestCoordinator(emitter)

	var handled error
	var handledID int64
	coord.Hooks = Hooks{
		HandleError: func(ctx context.Context, err error, requestID int64, query string) {
			handled = err
			handledID = requestID
		},
	}

	boom := errors.New("upstream exploded")
	failing := func(ctx context.Context, query string, page int) (*core.SearchPage, error) {
		return nil, boom
	}

	require.Equal(t, DispositionFailed, coord.PerformSearch(context.Background(), "cats", false, failing))
	require.ErrorIs(t, handled, boom)
	require.Equal(t, int64(1), handledID)

	errs := emitter.byType(EventSearchError)
	require.Len(t, errs, 1)
	require.Equal(t, "upstream exploded", errs[0].Error)
	require.Len(t, emitter.byType(EventSearchComplete), 0)
	require.Len(t, emitter.byType(EventSearchEnd), 1)
}

// Search A for "cats" starts first but its execution resolves after search B
// for "dogs". Only B's results may reach the result surface; A's resolution
// is silently discarded beyond its own start/end events.
func TestPerformSearchRaceSupersededResultDiscarded(t *testing.T) {
	emitter := &recordingEmitter{}
	coord, _, _ := newTestCoordinator(emitter)

	var mu sync.Mutex
	var applied []string
	coord.Hooks = Hooks{
		ProcessResults: func(ctx context.Context, page *core.SearchPage, query string) {
			mu.Lock()
			defer mu.Unlock()
			applied = append(applied, query)
		},
	}

	catsStarted := make(chan struct{})
	dogsDone := make(chan struct{})

	slowCats := func(ctx context.Context, query string, page int) (*core.SearchPage, error) {
		close(catsStarted)
		<-dogsDone // resolve only after dogs finished
		return &core.SearchPage{Query: query, Page: page, Total: 7}, nil
	}

	var wg sync.WaitGroup
	var catsDisposition Disposition
	wg.Add(1)
	go func() {
		defer wg.Done()
		catsDisposition = coord.PerformSearch(context.Background(), "cats", false, slowCats)
	}()

	<-catsStarted
	dogsDisposition := coord.PerformSearch(context.Background(), "dogs", false, staticPage("dogs", 3))
	close(dogsDone)
	wg.Wait()

	require.Equal(t, DispositionCompleted, dogsDisposition)
	require.Equal(t, DispositionStale, catsDisposition)
	require.Equal(t, []string{"dogs"}, applied)

	completes := emitter.byType(EventSearchComplete)
	require.Len(t, completes, 1)
	require.Equal(t, "dogs", completes[0].Query)
	require.Equal(t, int64(2), completes[0].RequestID)

	require.Empty(t, emitter.byType(EventSearchError))
	require.Len(t, emitter.byType(EventSearchStart), 2)
	require.Len(t, emitter.byType(EventSearchEnd), 2)
}

// Mirrors the production wiring, where the result cache is written from
// ProcessResults: a superseded request's page must never land in the cache.
func TestPerformSearchRaceSupersededResultNotCached(t *testing.T) {
	coord, _, _ := newTestCoordinator(&recordingEmitter{})

	var mu sync.Mutex
	cached := map[string]*core.SearchPage{}
	coord.Hooks = Hooks{
		ProcessResults: func(ctx context.Context, page *core.SearchPage, query string) {
			mu.Lock()
			defer mu.Unlock()
			cached[query] = page
		},
	}

	catsStarted := make(chan struct{})
	dogsDone := make(chan struct{})

	slowCats := func(ctx context.Context, query string, page int) (*core.SearchPage, error) {
		close(catsStarted)
		<-dogsDone
		return &core.SearchPage{Query: query, Page: page, Total: 7}, nil
	}

	var wg sync.WaitGroup
	var catsDisposition Disposition
	wg.Add(1)
	go func() {
		defer wg.Done()
		catsDisposition = coord.PerformSearch(context.Background(), "cats", false, slowCats)
	}()

	<-catsStarted
	require.Equal(t, DispositionCompleted,
		coord.PerformSearch(context.Background(), "dogs", false, staticPage("dogs", 3)))
	close(dogsDone)
	wg.Wait()

	require.Equal(t, DispositionStale, catsDisposition)
	require.Contains(t, cached, "dogs")
	require.NotContains(t, cached, "cats")
}
