// Package session holds per-user web session state: the ready/buffering
// protocol, the completion queue, and the replay buffer.
package session

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/flexihub/assistant-gateway/internal/buffer"
	"github.com/flexihub/assistant-gateway/internal/model"
	"github.com/flexihub/assistant-gateway/pkg/logger"
)

// outboxSize bounds the live event queue feeding one SSE connection. A
// consumer that stops reading loses newest events rather than blocking the
// run pipeline.
const outboxSize = 256

// Session is the per-user state gluing the orchestrator to the web
// transport. Events delivered before the client signals readiness accumulate
// in the pending buffer; Ready drains them into the outbox atomically and
// flips the session live.
type Session struct {
	ID string

	mu         sync.Mutex
	threadID   string
	live       bool
	pending    []*model.Event
	outbox     chan *model.Event
	completion chan *model.Event
	rolling    *buffer.Rolling
	logger     *logger.Logger
}

func newSession(id string, replaySize int, log *logger.Logger) *Session {
	return &Session{
		ID:         id,
		outbox:     make(chan *model.Event, outboxSize),
		completion: make(chan *model.Event, 16),
		rolling:    buffer.NewRolling(replaySize, log),
		logger:     log.Named("session").With(zap.String("user_id", id)),
	}
}

// ThreadID returns the remote thread bound to this session, if any.
func (s *Session) ThreadID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threadID
}

// SetThreadID binds the session to its remote thread.
func (s *Session) SetThreadID(threadID string) {
	s.mu.Lock()
	s.threadID = threadID
	s.mu.Unlock()
}

// Live reports whether the client has signaled readiness for this run cycle.
func (s *Session) Live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

// BeginRun resets the session for a new user message: the completion queue
// is replaced (events still in flight from a superseded run are orphaned),
// the pending buffer is cleared, and the ready flag drops until the client
// calls Ready again.
func (s *Session) BeginRun() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = nil
	s.live = false
	s.completion = make(chan *model.Event, 16)
}

// Deliver routes one event into the session. Delta chunks feed the replay
// buffer; completed messages finalize it; terminal events additionally
// signal the completion queue. Buffering vs. forwarding depends on the ready
// flag.
func (s *Session) Deliver(event *model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch event.Type {
	case model.EventMessageDelta:
		s.rolling.AddPartialChunk(event.MessageID, event.Text())
	case model.EventMessageCompleted:
		s.rolling.Finalize(event.MessageID, event)
	}

	if model.IsTerminal(event.Type) {
		select {
		case s.completion <- event:
		default:
			s.logger.Warn("completion queue full, dropping terminal signal",
				zap.String("event_type", event.Type))
		}
	}

	if !s.live {
		s.pending = append(s.pending, event)
		return
	}
	s.push(event)
}

// Ready atomically drains the pending buffer into the outbox and marks the
// session live. Later events forward immediately.
func (s *Session) Ready() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ev := range s.pending {
		s.push(ev)
	}
	s.pending = nil
	s.live = true
}

// push requires s.mu held.
func (s *Session) push(event *model.Event) {
	select {
	case s.outbox <- event:
	default:
		s.logger.Warn("outbox full, dropping event",
			zap.String("event_type", event.Type))
	}
}

// Events exposes the live outbox consumed by the SSE generator.
func (s *Session) Events() <-chan *model.Event {
	return s.outbox
}

// Replay returns finalized messages after the given checkpoint id, for a
// reconnecting client. See buffer.Rolling.ReplayAfter for checkpoint
// semantics.
func (s *Session) Replay(lastID string) []*model.Event {
	return s.rolling.ReplayAfter(lastID)
}

// AwaitCompletion blocks until a completion-class event for the current run
// arrives, or ctx ends. It returns the terminal event on success.
func (s *Session) AwaitCompletion(ctx context.Context) (*model.Event, error) {
	s.mu.Lock()
	done := s.completion
	s.mu.Unlock()

	select {
	case ev := <-done:
		return ev, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
