// Package assistant provides the client seam for the remote assistant API
// (thread/run/message model) and its OpenAI-backed implementation.
package assistant

import (
	"context"

	"github.com/flexihub/assistant-gateway/internal/model"
)

// Stream is an in-order sequence of wire events from one streaming call.
// Recv returns io.EOF when the remote stream ends cleanly.
type Stream interface {
	Recv() (model.WireEvent, error)
	Close() error
}

// Client is the interface for the remote assistant API. The gateway consumes
// it as an opaque collaborator; everything else in the repository is written
// against this interface so tests can script the stream.
type Client interface {
	// CreateThread creates a new remote conversation thread.
	CreateThread(ctx context.Context) (string, error)

	// RetrieveThread checks that a thread still exists. A non-nil error
	// means the thread is invalid or unreachable.
	RetrieveThread(ctx context.Context, threadID string) error

	// CreateMessage adds a user message to a thread, with optional
	// per-user metadata, and returns the message id.
	CreateMessage(ctx context.Context, threadID, content string, metadata map[string]any) (string, error)

	// CreateRunStream starts a streaming run of the assistant on a thread.
	CreateRunStream(ctx context.Context, threadID, assistantID string) (Stream, error)

	// SubmitToolOutputsStream resubmits tool outputs into a paused run and
	// returns the continuation stream.
	SubmitToolOutputsStream(ctx context.Context, threadID, runID string, outputs []model.ToolOutput) (Stream, error)
}
