package analytics

import "time"

type EventType string

const (
	EventSearch     EventType = "search"
	EventZeroResult EventType = "zero_result"
	EventBuild      EventType = "index_build"
	EventAnnotate   EventType = "annotate"
)

// envelope is decoded first to pick the concrete event type.
type envelope struct {
	Type EventType `json:"type"`
}

type SearchEvent struct {
	EventID    string    `json:"event_id"`
	Type       EventType `json:"type"`
	Collection string    `json:"collection"`
	Scope      string    `json:"scope"`
	Term       string    `json:"term"`
	Hits       int       `json:"hits"`
	LatencyMs  int64     `json:"latency_ms"`
	UserID     string    `json:"user_id,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

type BuildEvent struct {
	EventID    string    `json:"event_id"`
	Type       EventType `json:"type"`
	Collection string    `json:"collection"`
	Status     string    `json:"status"`
	Pages      int       `json:"pages"`
	Skipped    int       `json:"skipped"`
	DurationMs int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

type AnnotateEvent struct {
	EventID    string    `json:"event_id"`
	Type       EventType `json:"type"`
	Collection string    `json:"collection"`
	PageID     string    `json:"page_id"`
	Kind       string    `json:"kind"`
	UserID     string    `json:"user_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
