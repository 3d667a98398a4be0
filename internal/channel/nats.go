package channel

import (
	"encoding/json"
	"fmt"

	natsclient "github.com/flexihub/assistant-gateway/internal/nats"
	"github.com/flexihub/assistant-gateway/internal/model"
)

// NATS publishes events as JSON onto a per-user NATS subject so external
// consumers can follow a session's stream.
type NATS struct {
	client  *natsclient.Client
	subject string
}

// NewNATS creates a NATS channel publishing under the given subject prefix.
func NewNATS(client *natsclient.Client, subject string) *NATS {
	return &NATS{client: client, subject: subject}
}

// Name implements Channel.
func (n *NATS) Name() string { return "nats" }

// PublishEvent serializes the event and publishes it to
// <subject>.<user_id>, or the bare subject when no user is attached.
func (n *NATS) PublishEvent(event *model.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := n.subject
	if uid := event.UserID(); uid != "" {
		subject = subject + "." + uid
	}

	if err := n.client.Publish(subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}
