package session

import (
	"fmt"

	"github.com/flexihub/assistant-gateway/internal/model"
)

// Hub adapts the session manager into a publisher channel: events carrying a
// user id are routed into that user's session for SSE delivery and replay.
type Hub struct {
	manager *Manager
}

// NewHub creates the SSE delivery channel over the given manager.
func NewHub(manager *Manager) *Hub {
	return &Hub{manager: manager}
}

// Name implements channel.Channel.
func (h *Hub) Name() string { return "sse" }

// PublishEvent routes the event to its user's session. Events without user
// attribution cannot be routed and are reported as delivery failures.
func (h *Hub) PublishEvent(event *model.Event) error {
	userID := event.UserID()
	if userID == "" {
		return fmt.Errorf("event %s has no user attribution", event.Type)
	}

	h.manager.GetOrCreate(userID).Deliver(event)
	return nil
}
