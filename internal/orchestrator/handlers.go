package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/flexihub/assistant-gateway/internal/model"
	"github.com/flexihub/assistant-gateway/internal/tool"
	"github.com/flexihub/assistant-gateway/pkg/metrics"
)

func (o *Orchestrator) handleThreadCreated(_ context.Context, run *runState, ev model.WireEvent) error {
	o.logger.Info("thread created",
		zap.String("thread_id", ev.Envelope().ID),
		zap.String("user_id", run.rc.UserID))
	return nil
}

func (o *Orchestrator) handleRunCreated(_ context.Context, run *runState, ev model.WireEvent) error {
	payload, err := ev.DecodeRun()
	if err != nil {
		o.logger.Warn("malformed run payload", zap.Error(err))
		return nil
	}
	o.logger.Info("run created",
		zap.String("run_id", payload.ID),
		zap.String("thread_id", run.rc.ThreadID))
	return nil
}

// handleRunRequiresAction executes the run's requested tool calls in order
// and resubmits their outputs as a continuation stream. Individual tool
// failures become failure-shaped outputs rather than aborting the run: the
// model decides how to react to a failed tool.
func (o *Orchestrator) handleRunRequiresAction(ctx context.Context, run *runState, ev model.WireEvent) error {
	payload, err := ev.DecodeRun()
	if err != nil {
		return err
	}
	if payload.RequiredAction == nil || payload.RequiredAction.SubmitToolOutputs == nil {
		o.logger.Warn("requires_action without tool calls",
			zap.String("run_id", payload.ID))
		return nil
	}

	run.to(StateRequiresAction, o.logger)

	calls := payload.RequiredAction.SubmitToolOutputs.ToolCalls
	outputs := make([]model.ToolOutput, 0, len(calls))

	for _, call := range calls {
		name := call.Function.Name
		o.executor.TrackCall(call.ID, tool.CallPending, run.rc.ThreadID, payload.ID, name)

		args := map[string]any{}
		if call.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
				// Malformed arguments degrade to an empty argument set so the
				// tool still runs and can report its own validation error.
				o.logger.Warn("malformed tool arguments",
					zap.String("tool", name),
					zap.String("tool_call_id", call.ID),
					zap.Error(err))
				args = map[string]any{}
			}
		}

		result, execErr := o.executor.Execute(ctx, name, args)
		if execErr != nil {
			o.executor.TrackCall(call.ID, tool.CallFailed, run.rc.ThreadID, payload.ID, name)
			metrics.RecordToolCall(name, "failed")
			outputs = append(outputs, o.executor.PrepareOutput(call.ID, execErr.Error(), false))
			continue
		}

		o.executor.TrackCall(call.ID, tool.CallCompleted, run.rc.ThreadID, payload.ID, name)
		metrics.RecordToolCall(name, "completed")
		outputs = append(outputs, o.executor.PrepareOutput(call.ID, result, true))
	}

	run.to(StateSubmitting, o.logger)

	stream, err := o.client.SubmitToolOutputsStream(ctx, run.rc.ThreadID, payload.ID, outputs)
	if err != nil {
		return fmt.Errorf("submit tool outputs for run %s: %w", payload.ID, err)
	}
	run.pending = append(run.pending, stream)

	for _, call := range calls {
		o.executor.TrackCall(call.ID, tool.CallSubmitted, run.rc.ThreadID, payload.ID, call.Function.Name)
	}

	run.to(StateStreaming, o.logger)
	return nil
}

func (o *Orchestrator) handleRunCompleted(_ context.Context, run *runState, ev model.WireEvent) error {
	payload, err := ev.DecodeRun()
	if err != nil {
		o.logger.Warn("malformed run payload", zap.Error(err))
	}

	event := model.NewEvent(model.EventRunCompleted)
	event.RunID = payload.ID
	event.Status = payload.Status
	o.emit(run, event, true)
	return nil
}

func (o *Orchestrator) handleRunFailed(_ context.Context, run *runState, ev model.WireEvent) error {
	payload, _ := ev.DecodeRun()
	o.logger.Error("remote run failed",
		zap.String("run_id", payload.ID),
		zap.String("thread_id", run.rc.ThreadID),
		zap.String("status", payload.Status))

	run.to(StateFailed, o.logger)

	event := model.NewEvent(model.EventError)
	event.RunID = payload.ID
	event.Status = payload.Status
	event.Data["message"] = "run failed"
	o.emit(run, event, true)
	return nil
}

// handleStepDelta surfaces tool-call argument fragments as tool_call_delta
// events so channels can show tool activity while it streams.
func (o *Orchestrator) handleStepDelta(_ context.Context, run *runState, ev model.WireEvent) error {
	payload, err := ev.DecodeStepDelta()
	if err != nil {
		o.logger.Warn("malformed step delta payload", zap.Error(err))
		return nil
	}
	if payload.Delta.StepDetails.Type != "tool_calls" {
		return nil
	}

	for _, call := range payload.Delta.StepDetails.ToolCalls {
		event := model.NewEvent(model.EventToolCallDelta)
		event.Data["tool_call_id"] = call.ID
		event.Data["tool"] = call.Function.Name
		if call.Function.Arguments != "" {
			event.Data["arguments"] = call.Function.Arguments
		}
		if call.Function.Output != "" {
			event.Data["output"] = call.Function.Output
		}
		o.emit(run, event, false)
	}
	return nil
}

func (o *Orchestrator) handleMessageCreated(_ context.Context, run *runState, ev model.WireEvent) error {
	payload, err := ev.DecodeMessage()
	if err != nil {
		o.logger.Warn("malformed message payload", zap.Error(err))
		return nil
	}
	o.logger.Debug("message created",
		zap.String("message_id", payload.ID),
		zap.String("thread_id", run.rc.ThreadID))
	return nil
}

// handleMessageDelta forwards each text chunk as a message_delta event,
// preserving arrival order.
func (o *Orchestrator) handleMessageDelta(_ context.Context, run *runState, ev model.WireEvent) error {
	payload, err := ev.DecodeMessageDelta()
	if err != nil {
		o.logger.Warn("malformed message delta payload", zap.Error(err))
		return nil
	}

	text := payload.Text()
	if text == "" {
		return nil
	}

	event := model.NewEvent(model.EventMessageDelta)
	event.MessageID = payload.ID
	event.Content = []string{text}
	o.emit(run, event, false)
	return nil
}

// handleMessageCompleted emits the completion-class message_completed event
// carrying the full message text.
func (o *Orchestrator) handleMessageCompleted(_ context.Context, run *runState, ev model.WireEvent) error {
	payload, err := ev.DecodeMessage()
	if err != nil {
		o.logger.Warn("malformed message payload", zap.Error(err))
		return nil
	}

	event := model.NewEvent(model.EventMessageCompleted)
	event.MessageID = payload.ID
	for _, block := range payload.Content {
		if block.Type == "text" && block.Text != nil {
			event.Content = append(event.Content, block.Text.Value)
		}
	}
	o.emit(run, event, true)

	metrics.MessagesTotal.WithLabelValues(payload.Role).Inc()
	return nil
}

func (o *Orchestrator) handleErrorEvent(_ context.Context, run *runState, ev model.WireEvent) error {
	o.logger.Error("remote stream error",
		zap.String("thread_id", run.rc.ThreadID),
		zap.ByteString("payload", ev.Data))

	event := model.NewEvent(model.EventError)
	var detail map[string]any
	if json.Unmarshal(ev.Data, &detail) == nil {
		for k, v := range detail {
			event.Data[k] = v
		}
	}
	o.emit(run, event, true)
	return nil
}

func (o *Orchestrator) handleDoneEvent(_ context.Context, run *runState, _ model.WireEvent) error {
	if !run.state.Terminal() {
		run.to(StateCompleted, o.logger)
	}
	o.emit(run, model.NewEvent(model.EventDone), true)
	return nil
}
