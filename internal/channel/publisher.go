package channel

import (
	"go.uber.org/zap"

	"github.com/flexihub/assistant-gateway/internal/model"
	"github.com/flexihub/assistant-gateway/pkg/logger"
	"github.com/flexihub/assistant-gateway/pkg/metrics"
)

// Publisher fans one logical event out to all configured channels. Each
// channel receives its own copy, failures are isolated and logged, and there
// is no retry or backpressure: publish is fire-and-forget per channel.
type Publisher struct {
	channels []Channel
	logger   *logger.Logger
}

// NewPublisher creates a Publisher over the given channels.
func NewPublisher(channels []Channel, log *logger.Logger) *Publisher {
	return &Publisher{
		channels: channels,
		logger:   log.Named("publisher"),
	}
}

// Publish delivers the event to every channel. A broken channel never
// prevents delivery to the others.
func (p *Publisher) Publish(event *model.Event) {
	for _, ch := range p.channels {
		if err := ch.PublishEvent(event.Clone()); err != nil {
			metrics.ChannelPublishErrors.WithLabelValues(ch.Name()).Inc()
			p.logger.Error("channel publish failed",
				zap.String("channel", ch.Name()),
				zap.String("event_type", event.Type),
				zap.Error(err),
			)
		}
	}
}
