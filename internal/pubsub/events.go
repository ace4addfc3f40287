// Package pubsub fans typed events out to in-process subscribers. Analysis
// results reach the watch loop through it, and log entries reach log
// listeners.
package pubsub

import "time"

// EventType names what happened.
type EventType string

const (
	// AnalyzedEvent carries a freshly resolved document.
	AnalyzedEvent EventType = "analyzed"
	// RemovedEvent reports a document dropped from the workspace.
	RemovedEvent EventType = "removed"
	// FailedEvent reports a document that could not be read.
	FailedEvent EventType = "failed"
	// EntryEvent carries a formatted log entry.
	EntryEvent EventType = "entry"
)

// Event is one delivery. Timestamp is the publish time.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// typeFilter selects event types for a subscription; an empty filter
// accepts everything.
type typeFilter map[EventType]struct{}

func newTypeFilter(types []EventType) typeFilter {
	if len(types) == 0 {
		return nil
	}
	f := make(typeFilter, len(types))
	for _, t := range types {
		f[t] = struct{}{}
	}
	return f
}

func (f typeFilter) accepts(t EventType) bool {
	if f == nil {
		return true
	}
	_, ok := f[t]
	return ok
}
