package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/flexihub/assistant-gateway/internal/middleware"
	"github.com/flexihub/assistant-gateway/internal/model"
	"github.com/flexihub/assistant-gateway/internal/session"
	"github.com/flexihub/assistant-gateway/pkg/logger"
	"github.com/flexihub/assistant-gateway/pkg/metrics"
)

// StreamHandler serves the SSE event stream for web clients.
type StreamHandler struct {
	sessions  *session.Manager
	heartbeat time.Duration
	logger    *logger.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(sessions *session.Manager, heartbeat time.Duration, log *logger.Logger) *StreamHandler {
	return &StreamHandler{
		sessions:  sessions,
		heartbeat: heartbeat,
		logger:    log,
	}
}

// Stream handles GET /api/v1/chat/stream. A Last-Event-ID header (or
// last_event_id query param) replays finalized messages after that
// checkpoint before live events begin.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	sess := h.sessions.GetOrCreate(userID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	// Reconnect backoff hint for EventSource clients.
	fmt.Fprint(w, "retry: 1000\n\n")
	flusher.Flush()

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	lastID := r.Header.Get("Last-Event-ID")
	if lastID == "" {
		lastID = r.URL.Query().Get("last_event_id")
	}
	for _, ev := range sess.Replay(lastID) {
		h.sendEvent(w, flusher, ev)
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	h.logger.Info("sse stream attached", zap.String("user_id", userID))

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("sse stream closed", zap.String("user_id", userID))
			return
		case ev := <-sess.Events():
			h.sendEvent(w, flusher, ev)
		case <-heartbeat.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		}
	}
}

// sendEvent writes one event in SSE wire format. Finalized messages carry
// their message id as the SSE event id so clients can checkpoint for replay.
func (h *StreamHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, ev *model.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("event not serializable", zap.Error(err))
		return
	}

	if ev.Type == model.EventMessageCompleted && ev.MessageID != "" {
		fmt.Fprintf(w, "id: %s\n", ev.MessageID)
	}
	fmt.Fprintf(w, "event: %s\n", ev.Type)
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}
