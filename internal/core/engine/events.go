package engine

// EventType identifies a search lifecycle event.
type EventType string

const (
	EventSearchStart    EventType = "search:start"
	EventSearchComplete EventType = "search:complete"
	EventSearchError    EventType = "search:error"
	EventSearchEnd      EventType = "search:end"
)

// Event is a fire-and-observe lifecycle notification. Payload shapes are a
// stable contract for downstream subscribers:
//
//	search:start    {query, request_id}
//	search:complete {query, request_id, total_results, page}
//	search:error    {query, request_id, error}
//	search:end      {query, request_id}
//
// Snapshot is an opaque state reference passed through to subscribers.
type Event struct {
	Type         EventType `json:"type"`
	Query        string    `json:"query"`
	RequestID    int64     `json:"request_id"`
	TotalResults int       `json:"total_results,omitempty"`
	Page         int       `json:"page,omitempty"`
	Error        string    `json:"error,omitempty"`
	Snapshot     any       `json:"-"`
}

// Emitter receives lifecycle events. Implementations must not block; events
// are advisory and never persisted.
type Emitter interface {
	Emit(event Event)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(event Event)

// Emit implements Emitter.
func (f EmitterFunc) Emit(event Event) {
	if f != nil {
		f(event)
	}
}
