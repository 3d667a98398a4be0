// Package model defines event, wire, and error types for the gateway.
package model

import (
	"strings"
	"time"
)

// Event type identifiers used on the delivery side. Wire event types from the
// remote stream (thread.run.*, thread.message.*) pass through unchanged.
const (
	EventMessageDelta     = "message_delta"
	EventToolCallDelta    = "tool_call_delta"
	EventMessageCompleted = "message_completed"
	EventRunCompleted     = "thread.run.completed"
	EventError            = "error"
	EventDone             = "done"
)

// Event is the unit delivered to channels and controller queues. It is either
// decoded from the remote stream or synthesized locally (completion/done
// markers, stream-failure errors).
type Event struct {
	Type      string         `json:"event_type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
	MessageID string         `json:"message_id,omitempty"`
	Content   []string       `json:"content,omitempty"`
	RunID     string         `json:"run_id,omitempty"`
	Status    string         `json:"status,omitempty"`
}

// NewEvent creates an event of the given type stamped with the current time.
func NewEvent(eventType string) *Event {
	return &Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      make(map[string]any),
	}
}

// Clone returns a copy whose Data map and Content slice are independent of
// the receiver, so concurrent publishers never race on one object.
func (e *Event) Clone() *Event {
	cp := *e
	if e.Data != nil {
		cp.Data = make(map[string]any, len(e.Data))
		for k, v := range e.Data {
			cp.Data[k] = v
		}
	}
	if e.Content != nil {
		cp.Content = append([]string(nil), e.Content...)
	}
	return &cp
}

// WithUser returns a clone carrying the given user id in its data payload.
func (e *Event) WithUser(userID string) *Event {
	cp := e.Clone()
	if cp.Data == nil {
		cp.Data = make(map[string]any, 1)
	}
	cp.Data["user_id"] = userID
	return cp
}

// UserID returns the user id from the data payload, if present.
func (e *Event) UserID() string {
	if e.Data == nil {
		return ""
	}
	if v, ok := e.Data["user_id"].(string); ok {
		return v
	}
	return ""
}

// Text joins the content chunks in order.
func (e *Event) Text() string {
	return strings.Join(e.Content, "")
}

// IsTerminal reports whether the event type ends a run cycle and unblocks a
// controller waiting for the next input.
func IsTerminal(eventType string) bool {
	switch eventType {
	case EventMessageCompleted, EventRunCompleted, EventDone:
		return true
	}
	return false
}
