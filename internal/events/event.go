// Package events is the in-process named event bus that pushes change
// notifications to connected clients.
package events

import (
	"context"
	"time"
)

// Event names published by the API.
const (
	ActivitySuggestionsUpdated = "activity.suggestions_updated"
	AnalysisStarted            = "ai_analysis.started"
	AnalysisCompleted          = "ai_analysis.completed"
	AnalysisFailed             = "ai_analysis.failed"
	QuoteItemsUpdated          = "quote.items_updated"
	PartsListItemsUpdated      = "parts_list.items_updated"
)

// Known lists every name a client may subscribe to.
var Known = []string{
	ActivitySuggestionsUpdated,
	AnalysisStarted,
	AnalysisCompleted,
	AnalysisFailed,
	QuoteItemsUpdated,
	PartsListItemsUpdated,
}

// Event is one notification. Payload values are strings so the wire form is
// flat JSON any client can read.
type Event struct {
	Name       string            `json:"name"`
	Payload    map[string]string `json:"payload"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// New builds an event stamped with the current time.
func New(name string, payload map[string]string) Event {
	if payload == nil {
		payload = map[string]string{}
	}
	return Event{Name: name, Payload: payload, OccurredAt: time.Now().UTC()}
}

// Publisher is implemented by Hub and RedisBridge. Publishing never blocks on
// slow subscribers and never fails the caller's operation.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// IsKnown reports whether name is a published event name.
func IsKnown(name string) bool {
	for _, k := range Known {
		if k == name {
			return true
		}
	}
	return false
}
