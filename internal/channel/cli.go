package channel

import (
	"fmt"
	"io"

	"github.com/flexihub/assistant-gateway/internal/model"
)

// CLI writes event content chunks to a terminal writer as they arrive, so
// streamed assistant text renders incrementally.
type CLI struct {
	out io.Writer
}

// NewCLI creates a CLI channel writing to out.
func NewCLI(out io.Writer) *CLI {
	return &CLI{out: out}
}

// Name implements Channel.
func (c *CLI) Name() string { return "cli" }

// PublishEvent prints each delta chunk without a trailing newline. Completed
// messages repeat the full text already streamed, so only deltas render;
// completion markers are the controller's concern.
func (c *CLI) PublishEvent(event *model.Event) error {
	if event.Type != model.EventMessageDelta {
		return nil
	}
	for _, chunk := range event.Content {
		if _, err := fmt.Fprint(c.out, chunk); err != nil {
			return err
		}
	}
	return nil
}
