package query

import (
	"context"
	"time"
)

// QueryEventType identifies one fetch lifecycle transition.
type QueryEventType string

// Emitted event types.
const (
	QueryStart   QueryEventType = "query:start"
	QuerySuccess QueryEventType = "query:success"
	QueryFailed  QueryEventType = "query:failed"
)

// QueryEvent describes one fetch lifecycle transition.
type QueryEvent struct {
	Type      QueryEventType `json:"type"`
	Timestamp int64          `json:"timestamp"` // Unix milliseconds
	QueryID   string         `json:"queryId"`
	Resource  string         `json:"resource"`
	Params    any            `json:"params,omitempty"`
	Error     *string        `json:"error,omitempty"`
	Duration  *int64         `json:"duration,omitempty"` // milliseconds
}

// EventCallback is invoked for each query event of a subscribed type.
type EventCallback func(ctx context.Context, event QueryEvent) error

func newQueryEvent(eventType QueryEventType, queryID, resource string, parameters any, errText *string, startTime time.Time) QueryEvent {
	var duration *int64
	if !startTime.IsZero() {
		d := time.Since(startTime).Milliseconds()
		duration = &d
	}
	return QueryEvent{
		Type:      eventType,
		Timestamp: time.Now().UnixMilli(),
		QueryID:   queryID,
		Resource:  resource,
		Params:    parameters,
		Error:     errText,
		Duration:  duration,
	}
}
