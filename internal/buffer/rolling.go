// Package buffer accumulates partial message content and keeps a capped,
// insertion-ordered history of finalized messages for SSE replay.
package buffer

import (
	"sync"

	"go.uber.org/zap"

	"github.com/flexihub/assistant-gateway/internal/model"
	"github.com/flexihub/assistant-gateway/pkg/logger"
)

// DefaultMaxSize is the finalized-message capacity used when none is given.
const DefaultMaxSize = 50

// Rolling maintains per-message partial chunks and a FIFO-capped map of
// finalized messages. Safe for concurrent use.
type Rolling struct {
	mu       sync.Mutex
	partials map[string][]string
	finals   map[string]*model.Event
	order    []string // finalized message ids, insertion order
	maxSize  int
	logger   *logger.Logger
}

// NewRolling creates a buffer retaining at most maxSize finalized messages.
func NewRolling(maxSize int, log *logger.Logger) *Rolling {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Rolling{
		partials: make(map[string][]string),
		finals:   make(map[string]*model.Event),
		maxSize:  maxSize,
		logger:   log.Named("buffer"),
	}
}

// AddPartialChunk appends a text chunk for the message. Chunks for an empty
// message id have no replay identity and are dropped.
func (r *Rolling) AddPartialChunk(messageID, text string) {
	if messageID == "" {
		r.logger.Debug("partial chunk without message id, skipping")
		return
	}

	r.mu.Lock()
	r.partials[messageID] = append(r.partials[messageID], text)
	r.mu.Unlock()
}

// Finalize stores the event in the finalized history, evicting the oldest
// entries past capacity, and clears the message's partial chunks. An event
// arriving without content gets the chunks concatenated in arrival order; an
// event already carrying the full text keeps it as-is, so the finalized text
// is never duplicated. A second call for an already-finalized id is a no-op
// so replay content is never duplicated either.
func (r *Rolling) Finalize(messageID string, event *model.Event) {
	if messageID == "" {
		r.logger.Debug("finalize without message id, skipping")
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, done := r.finals[messageID]; done {
		r.logger.Warn("message already finalized, ignoring",
			zap.String("message_id", messageID))
		return
	}

	chunks := r.partials[messageID]
	delete(r.partials, messageID)

	if len(event.Content) == 0 {
		var combined string
		for _, c := range chunks {
			combined += c
		}
		event.Content = append(event.Content, combined)
	}
	if event.MessageID == "" {
		event.MessageID = messageID
	}

	r.finals[messageID] = event
	r.order = append(r.order, messageID)

	for len(r.order) > r.maxSize {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.finals, oldest)
		r.logger.Debug("evicted finalized message", zap.String("message_id", oldest))
	}
}

// Len returns the number of finalized messages currently retained.
func (r *Rolling) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// ReplayAfter returns finalized events in insertion order. An empty lastID
// replays everything; a known lastID replays what was finalized strictly
// after it; an unknown lastID replays nothing (an unknown checkpoint means
// nothing new).
func (r *Rolling) ReplayAfter(lastID string) []*model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*model.Event
	found := lastID == ""
	for _, id := range r.order {
		if found {
			out = append(out, r.finals[id])
		} else if id == lastID {
			found = true
		}
	}
	return out
}
