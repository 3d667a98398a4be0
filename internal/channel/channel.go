// Package channel defines delivery channels and the fan-out publisher.
package channel

import "github.com/flexihub/assistant-gateway/internal/model"

// Channel is a delivery sink for events. PublishEvent should not block for
// long and should return an error rather than panic; the publisher isolates
// failures per channel.
type Channel interface {
	Name() string
	PublishEvent(event *model.Event) error
}
