// Package orchestrator drives one streaming assistant run end to end:
// consuming the event stream, validating thread identity per event,
// dispatching by wire type, executing required tool calls, and resubmitting
// their outputs as continuation streams.
package orchestrator

import (
	"context"
	"errors"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/flexihub/assistant-gateway/internal/assistant"
	"github.com/flexihub/assistant-gateway/internal/channel"
	"github.com/flexihub/assistant-gateway/internal/model"
	"github.com/flexihub/assistant-gateway/internal/registry"
	"github.com/flexihub/assistant-gateway/internal/tool"
	"github.com/flexihub/assistant-gateway/pkg/logger"
	"github.com/flexihub/assistant-gateway/pkg/metrics"
)

// RunContext carries the identity of one run. Every handler receives it
// explicitly, so one Orchestrator instance can serve concurrent runs without
// shared mutable attribution state.
type RunContext struct {
	AssistantID string
	ThreadID    string
	UserID      string

	// Queue receives completion-class and synthesized error events. May be
	// nil when the caller observes completion through a channel instead.
	Queue chan<- *model.Event
}

// runState is the per-run mutable state owned by the driver goroutine.
type runState struct {
	rc    RunContext
	state State
	// pending holds continuation streams produced by tool-output
	// resubmission. The driver loop drains it instead of recursing.
	pending []assistant.Stream
}

// to applies a lifecycle transition, logging illegal moves.
func (r *runState) to(next State, log *logger.Logger) {
	if !r.state.CanTransition(next) {
		log.Warn("illegal run state transition",
			zap.String("from", string(r.state)), zap.String("to", string(next)))
		return
	}
	r.state = next
}

// Orchestrator wires the assistant client, thread registry, tool executor,
// and multi-channel publisher into the run pipeline.
type Orchestrator struct {
	client    assistant.Client
	registry  *registry.Registry
	executor  *tool.Executor
	publisher *channel.Publisher
	dispatch  map[string]handlerFunc
	logger    *logger.Logger
}

// New creates an Orchestrator and builds its dispatch table.
func New(
	client assistant.Client,
	reg *registry.Registry,
	executor *tool.Executor,
	publisher *channel.Publisher,
	log *logger.Logger,
) *Orchestrator {
	o := &Orchestrator{
		client:    client,
		registry:  reg,
		executor:  executor,
		publisher: publisher,
		logger:    log.Named("orchestrator"),
	}
	o.dispatch = o.buildDispatch()
	return o
}

// StartRun opens a streaming run and consumes it to completion, including
// any tool-output continuation streams. Stream failures never propagate
// silence: a synthetic error event followed by done is published and queued
// so a waiting controller always unblocks.
func (o *Orchestrator) StartRun(ctx context.Context, rc RunContext) error {
	start := time.Now()
	log := o.logger.WithSession(rc.AssistantID, rc.UserID).With(zap.String("thread_id", rc.ThreadID))
	log.Info("starting run")

	run := &runState{rc: rc, state: StateStarted}

	stream, err := o.client.CreateRunStream(ctx, rc.ThreadID, rc.AssistantID)
	if err != nil {
		run.to(StateFailed, o.logger)
		o.failRun(run, err)
		metrics.RecordRun("failed", time.Since(start).Seconds())
		return err
	}

	run.to(StateStreaming, o.logger)
	run.pending = append(run.pending, stream)

	for len(run.pending) > 0 {
		next := run.pending[len(run.pending)-1]
		run.pending = run.pending[:len(run.pending)-1]

		if err := o.consume(ctx, run, next); err != nil {
			for _, s := range run.pending {
				_ = s.Close()
			}
			run.to(StateFailed, o.logger)
			o.failRun(run, err)
			metrics.RecordRun("failed", time.Since(start).Seconds())
			return err
		}
	}

	if !run.state.Terminal() {
		run.to(StateCompleted, o.logger)
	}
	metrics.RecordRun(string(run.state), time.Since(start).Seconds())
	log.Info("run finished", zap.String("state", string(run.state)),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// consume drains one stream, validating and dispatching each event in the
// order the remote yields them.
func (o *Orchestrator) consume(ctx context.Context, run *runState, stream assistant.Stream) error {
	defer stream.Close()

	for {
		ev, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		eventThread := ev.Envelope().ThreadID
		if eventThread == "" {
			eventThread = run.rc.ThreadID
		}
		if !o.validateThread(eventThread, run.rc) {
			continue
		}

		if err := o.dispatchEvent(ctx, run, ev); err != nil {
			return err
		}
	}
}

// validateThread enforces the cross-talk guard: the event's thread must
// match the run's expected thread, and the registry must still map this
// assistant+user pair to that thread. Mismatches are dropped with a log
// entry, never raised; they occur benignly during session transitions.
func (o *Orchestrator) validateThread(eventThreadID string, rc RunContext) bool {
	if eventThreadID != rc.ThreadID {
		o.logger.Warn("thread mismatch, dropping event",
			zap.String("event_thread_id", eventThreadID),
			zap.String("expected_thread_id", rc.ThreadID))
		return false
	}

	rec, ok := o.registry.Lookup(rc.AssistantID, rc.UserID)
	if !ok || rec.ThreadID != eventThreadID {
		o.logger.Warn("thread not associated with assistant, dropping event",
			zap.String("thread_id", eventThreadID),
			zap.String("assistant_id", rc.AssistantID),
			zap.String("user_id", rc.UserID))
		return false
	}
	return true
}

// emit stamps the run's user onto the event, publishes it to all channels,
// and signals the run queue when one is attached.
func (o *Orchestrator) emit(run *runState, event *model.Event, queue bool) {
	stamped := event.WithUser(run.rc.UserID)
	o.publisher.Publish(stamped)

	if queue && run.rc.Queue != nil {
		select {
		case run.rc.Queue <- stamped:
		default:
			o.logger.Warn("run queue full, dropping signal",
				zap.String("event_type", stamped.Type))
		}
	}
}

// failRun implements the unrecoverable-failure contract: log, then
// synthesize a terminal error event and a done marker so the controller's
// wait can never hang.
func (o *Orchestrator) failRun(run *runState, cause error) {
	o.logger.Error("run failed",
		zap.String("thread_id", run.rc.ThreadID), zap.Error(cause))

	errEvent := model.NewEvent(model.EventError)
	errEvent.Data["message"] = cause.Error()
	o.emit(run, errEvent, true)

	o.emit(run, model.NewEvent(model.EventDone), true)
}
