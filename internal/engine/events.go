package engine

import "time"

// Event types published by the engine.
const (
	EventSessionRefreshed = "session_refreshed"
	EventCacheSwept       = "cache_swept"
	EventPrewarmCompleted = "prewarm_completed"
)

// Event is a notification about engine state changes.
type Event struct {
	Type string         `json:"type"`
	Time time.Time      `json:"time"`
	Data map[string]any `json:"data,omitempty"`
}

// Publisher receives engine events. Implementations must not block.
type Publisher interface {
	Publish(Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(Event) {}
