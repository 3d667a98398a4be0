package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/flexihub/assistant-gateway/internal/model"
	"github.com/flexihub/assistant-gateway/pkg/logger"
	"github.com/flexihub/assistant-gateway/pkg/tokens"
)

// CallStatus is a lifecycle state logged per tool call.
type CallStatus string

const (
	CallPending   CallStatus = "Pending"
	CallCompleted CallStatus = "Completed"
	CallFailed    CallStatus = "Failed"
	CallSubmitted CallStatus = "Submitted"
)

// outputPayload is the envelope serialized into every tool output.
type outputPayload struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Result  any    `json:"result"`
}

// Executor looks up tools in a registry, invokes them, and formats bounded
// JSON outputs suitable for resubmission to the run.
type Executor struct {
	registry  *Registry
	truncator *tokens.Truncator
	maxTokens int
	logger    *logger.Logger
}

// NewExecutor creates an Executor. maxTokens bounds the serialized size of
// each prepared output.
func NewExecutor(registry *Registry, truncator *tokens.Truncator, maxTokens int, log *logger.Logger) *Executor {
	return &Executor{
		registry:  registry,
		truncator: truncator,
		maxTokens: maxTokens,
		logger:    log.Named("tools"),
	}
}

// Execute runs the named tool with the given arguments. Unknown names return
// ErrToolNotFound; errors from the tool itself propagate to the caller so
// the orchestrator can record per-call failure.
func (e *Executor) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	fn, ok := e.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrToolNotFound, name)
	}

	e.logger.Debug("executing tool", zap.String("tool", name))
	return fn(ctx, args)
}

// PrepareOutput wraps a tool result in the status envelope, serializes it,
// and truncates the JSON from the front to fit the token budget. Oversized
// payloads are silently cut, keeping the tail.
func (e *Executor) PrepareOutput(callID string, result any, success bool) model.ToolOutput {
	payload := outputPayload{Status: true, Message: "Success", Result: result}
	if !success {
		payload = outputPayload{Status: false, Message: fmt.Sprint(result), Result: nil}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		// Results are produced by our own tools; a marshal failure means a
		// non-serializable value leaked through. Degrade to the error text.
		e.logger.Error("tool result not serializable",
			zap.String("tool_call_id", callID), zap.Error(err))
		raw, _ = json.Marshal(outputPayload{Status: false, Message: err.Error()})
	}

	truncated := e.truncator.TruncateTail(string(raw), e.maxTokens)
	if len(truncated) < len(raw) {
		e.logger.Info("tool output truncated to token budget",
			zap.String("tool_call_id", callID),
			zap.Int("original_bytes", len(raw)),
			zap.Int("truncated_bytes", len(truncated)))
	}

	return model.ToolOutput{ToolCallID: callID, Output: truncated}
}

// TrackCall logs a lifecycle transition for a tool call.
func (e *Executor) TrackCall(callID string, status CallStatus, threadID, runID, toolName string) {
	e.logger.Info("tool call",
		zap.String("tool_call_id", callID),
		zap.String("status", string(status)),
		zap.String("tool", toolName),
		zap.String("thread_id", threadID),
		zap.String("run_id", runID),
	)
}
