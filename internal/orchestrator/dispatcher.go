package orchestrator

import (
	"context"

	"go.uber.org/zap"

	"github.com/flexihub/assistant-gateway/internal/model"
	"github.com/flexihub/assistant-gateway/pkg/metrics"
)

// handlerFunc processes one wire event within a run. A returned error aborts
// the run; recoverable per-event problems are logged and swallowed inside
// the handler.
type handlerFunc func(ctx context.Context, run *runState, ev model.WireEvent) error

// buildDispatch constructs the static routing table from wire event type to
// handler. Every type the protocol can emit resolves here or falls through
// to handleUnhandled, so unknown or future event types never crash the
// pipeline.
func (o *Orchestrator) buildDispatch() map[string]handlerFunc {
	return map[string]handlerFunc{
		// Thread lifecycle
		model.WireThreadCreated: o.handleThreadCreated,

		// Run lifecycle
		model.WireRunCreated:        o.handleRunCreated,
		model.WireRunQueued:         o.logHandler("run queued"),
		model.WireRunInProgress:     o.logHandler("run in progress"),
		model.WireRunRequiresAction: o.handleRunRequiresAction,
		model.WireRunCompleted:      o.handleRunCompleted,
		model.WireRunIncomplete:     o.logHandler("run incomplete"),
		model.WireRunFailed:         o.handleRunFailed,
		model.WireRunCancelling:     o.logHandler("run cancelling"),
		model.WireRunCancelled:      o.logHandler("run cancelled"),
		model.WireRunExpired:        o.logHandler("run expired"),

		// Run step events
		model.WireStepCreated:    o.logHandler("step created"),
		model.WireStepInProgress: o.logHandler("step in progress"),
		model.WireStepDelta:      o.handleStepDelta,
		model.WireStepCompleted:  o.logHandler("step completed"),
		model.WireStepFailed:     o.logHandler("step failed"),
		model.WireStepCancelled:  o.logHandler("step cancelled"),
		model.WireStepExpired:    o.logHandler("step expired"),

		// Message events
		model.WireMessageCreated:    o.handleMessageCreated,
		model.WireMessageInProgress: o.logHandler("message in progress"),
		model.WireMessageDelta:      o.handleMessageDelta,
		model.WireMessageCompleted:  o.handleMessageCompleted,
		model.WireMessageIncomplete: o.logHandler("message incomplete"),

		// Error and done
		model.WireError: o.handleErrorEvent,
		model.WireDone:  o.handleDoneEvent,
	}
}

// runEndTypes are logged for observability when they pass through dispatch;
// the state changes happen in the handlers themselves.
var runEndTypes = map[string]bool{
	model.WireDone:             true,
	model.WireRunCompleted:     true,
	model.WireMessageCompleted: true,
}

// dispatchEvent routes one validated wire event to its handler, or to the
// unhandled fallback.
func (o *Orchestrator) dispatchEvent(ctx context.Context, run *runState, ev model.WireEvent) error {
	metrics.EventsDispatched.WithLabelValues(ev.Type).Inc()

	handler, ok := o.dispatch[ev.Type]
	if !ok {
		o.handleUnhandled(run, ev)
		return nil
	}

	if err := handler(ctx, run, ev); err != nil {
		return err
	}

	if runEndTypes[ev.Type] {
		o.logger.Debug("run-end event dispatched",
			zap.String("event_type", ev.Type),
			zap.String("thread_id", run.rc.ThreadID))
	}
	return nil
}

// logHandler returns a handler that only records the event.
func (o *Orchestrator) logHandler(msg string) handlerFunc {
	return func(_ context.Context, run *runState, ev model.WireEvent) error {
		o.logger.Debug(msg,
			zap.String("event_type", ev.Type),
			zap.String("thread_id", run.rc.ThreadID))
		return nil
	}
}

// handleUnhandled is the safe default for event types absent from the table.
func (o *Orchestrator) handleUnhandled(run *runState, ev model.WireEvent) {
	o.logger.Info("unhandled event type",
		zap.String("event_type", ev.Type),
		zap.String("thread_id", run.rc.ThreadID))
}
