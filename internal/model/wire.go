package model

import (
	"encoding/json"
	"fmt"
)

// Wire event types emitted by the remote assistant stream.
const (
	WireThreadCreated      = "thread.created"
	WireRunCreated         = "thread.run.created"
	WireRunQueued          = "thread.run.queued"
	WireRunInProgress      = "thread.run.in_progress"
	WireRunRequiresAction  = "thread.run.requires_action"
	WireRunCompleted       = "thread.run.completed"
	WireRunIncomplete      = "thread.run.incomplete"
	WireRunFailed          = "thread.run.failed"
	WireRunCancelling      = "thread.run.cancelling"
	WireRunCancelled       = "thread.run.cancelled"
	WireRunExpired         = "thread.run.expired"
	WireStepCreated        = "thread.run.step.created"
	WireStepInProgress     = "thread.run.step.in_progress"
	WireStepDelta          = "thread.run.step.delta"
	WireStepCompleted      = "thread.run.step.completed"
	WireStepFailed         = "thread.run.step.failed"
	WireStepCancelled      = "thread.run.step.cancelled"
	WireStepExpired        = "thread.run.step.expired"
	WireMessageCreated     = "thread.message.created"
	WireMessageInProgress  = "thread.message.in_progress"
	WireMessageDelta       = "thread.message.delta"
	WireMessageCompleted   = "thread.message.completed"
	WireMessageIncomplete  = "thread.message.incomplete"
	WireError              = "error"
	WireDone               = "done"
)

// WireEvent is one raw event off the remote stream: the type tag plus the
// undecoded payload. Payloads are decoded exactly once, into the typed
// structs below, by whichever handler owns the type.
type WireEvent struct {
	Type string
	Data json.RawMessage
}

// Envelope holds the identity fields common to all payloads, used for thread
// validation before dispatch.
type Envelope struct {
	ID       string `json:"id"`
	ThreadID string `json:"thread_id"`
}

// Envelope decodes just the identity fields of the payload. Missing fields
// decode to empty strings.
func (w WireEvent) Envelope() Envelope {
	var env Envelope
	if len(w.Data) > 0 {
		_ = json.Unmarshal(w.Data, &env)
	}
	return env
}

// RunPayload is the payload of thread.run.* events.
type RunPayload struct {
	ID             string          `json:"id"`
	ThreadID       string          `json:"thread_id"`
	Status         string          `json:"status"`
	RequiredAction *RequiredAction `json:"required_action,omitempty"`
}

// RequiredAction describes the tool calls a paused run is waiting on.
type RequiredAction struct {
	Type              string             `json:"type"`
	SubmitToolOutputs *SubmitToolOutputs `json:"submit_tool_outputs,omitempty"`
}

// SubmitToolOutputs lists the pending tool calls, in the order the API
// returned them.
type SubmitToolOutputs struct {
	ToolCalls []ToolCall `json:"tool_calls"`
}

// ToolCall is one requested tool invocation.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the function name and raw JSON arguments, plus any
// streamed output fragment on step delta events.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
	Output    string `json:"output,omitempty"`
}

// ToolOutput is one prepared result submitted back into the run.
type ToolOutput struct {
	ToolCallID string `json:"tool_call_id"`
	Output     string `json:"output"`
}

// ContentBlock is one block of message content. Only text blocks carry a
// value the gateway forwards.
type ContentBlock struct {
	Type string     `json:"type"`
	Text *TextValue `json:"text,omitempty"`
}

// TextValue is the text body of a content block.
type TextValue struct {
	Value string `json:"value"`
}

// MessagePayload is the payload of thread.message.created/completed events.
type MessagePayload struct {
	ID       string         `json:"id"`
	ThreadID string         `json:"thread_id"`
	Role     string         `json:"role"`
	Content  []ContentBlock `json:"content"`
}

// MessageDeltaPayload is the payload of thread.message.delta events.
type MessageDeltaPayload struct {
	ID    string `json:"id"`
	Delta struct {
		Content []ContentBlock `json:"content"`
	} `json:"delta"`
}

// Text concatenates the delta's text block values in order.
func (p MessageDeltaPayload) Text() string {
	var out string
	for _, block := range p.Delta.Content {
		if block.Type == "text" && block.Text != nil {
			out += block.Text.Value
		}
	}
	return out
}

// StepDeltaPayload is the payload of thread.run.step.delta events, carrying
// tool-call argument/output fragments.
type StepDeltaPayload struct {
	ID    string `json:"id"`
	Delta struct {
		StepDetails struct {
			Type      string     `json:"type"`
			ToolCalls []ToolCall `json:"tool_calls"`
		} `json:"step_details"`
	} `json:"delta"`
}

// DecodeRun decodes a run payload.
func (w WireEvent) DecodeRun() (RunPayload, error) {
	var p RunPayload
	if err := json.Unmarshal(w.Data, &p); err != nil {
		return p, fmt.Errorf("decode %s payload: %w", w.Type, err)
	}
	return p, nil
}

// DecodeMessage decodes a message payload.
func (w WireEvent) DecodeMessage() (MessagePayload, error) {
	var p MessagePayload
	if err := json.Unmarshal(w.Data, &p); err != nil {
		return p, fmt.Errorf("decode %s payload: %w", w.Type, err)
	}
	return p, nil
}

// DecodeMessageDelta decodes a message delta payload.
func (w WireEvent) DecodeMessageDelta() (MessageDeltaPayload, error) {
	var p MessageDeltaPayload
	if err := json.Unmarshal(w.Data, &p); err != nil {
		return p, fmt.Errorf("decode %s payload: %w", w.Type, err)
	}
	return p, nil
}

// DecodeStepDelta decodes a run step delta payload.
func (w WireEvent) DecodeStepDelta() (StepDeltaPayload, error) {
	var p StepDeltaPayload
	if err := json.Unmarshal(w.Data, &p); err != nil {
		return p, fmt.Errorf("decode %s payload: %w", w.Type, err)
	}
	return p, nil
}
