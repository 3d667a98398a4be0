package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/flexihub/assistant-gateway/internal/middleware"
	"github.com/flexihub/assistant-gateway/internal/model"
	"github.com/flexihub/assistant-gateway/internal/orchestrator"
	"github.com/flexihub/assistant-gateway/internal/registry"
	"github.com/flexihub/assistant-gateway/internal/session"
	"github.com/flexihub/assistant-gateway/pkg/logger"
)

// runTimeout bounds a detached run so an orphaned stream cannot hold its
// goroutine forever.
const runTimeout = 5 * time.Minute

// awaitTimeout bounds how long the message endpoint waits for the run's
// terminal event before acknowledging with 202 and leaving the rest to the
// stream endpoint.
const awaitTimeout = 2 * time.Minute

// ChatHandler accepts user messages and drives runs for web clients.
type ChatHandler struct {
	registry     *registry.Registry
	orchestrator *orchestrator.Orchestrator
	sessions     *session.Manager
	assistantID  string
	logger       *logger.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(
	reg *registry.Registry,
	orch *orchestrator.Orchestrator,
	sessions *session.Manager,
	assistantID string,
	log *logger.Logger,
) *ChatHandler {
	return &ChatHandler{
		registry:     reg,
		orchestrator: orch,
		sessions:     sessions,
		assistantID:  assistantID,
		logger:       log,
	}
}

// messageRequest is the POST /chat/message body.
type messageRequest struct {
	Message string `json:"message"`
}

// Message handles POST /api/v1/chat/message. The run itself is detached so a
// dropped request never kills it, but the response waits for the run's
// terminal event: 200 once the run finished, 202 when the wait timed out or
// the caller went away while output was still streaming.
func (h *ChatHandler) Message(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateMessageContent(req.Message); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess := h.sessions.GetOrCreate(userID)
	sess.BeginRun()

	threadID, err := h.registry.GetOrCreateThread(r.Context(), h.assistantID, userID)
	if err != nil {
		h.logger.Error("thread resolution failed",
			zap.String("user_id", userID), zap.Error(err))
		writeError(w, http.StatusBadGateway, "cannot establish conversation")
		return
	}
	if err := middleware.ValidateThreadID(threadID); err != nil {
		h.logger.Error("remote returned malformed thread id",
			zap.String("thread_id", threadID), zap.Error(err))
		writeError(w, http.StatusBadGateway, "cannot establish conversation")
		return
	}
	sess.SetThreadID(threadID)

	if _, err := h.registry.AddMessage(r.Context(), threadID, req.Message, userID); err != nil {
		if errors.Is(err, model.ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("add message failed",
			zap.String("thread_id", threadID), zap.Error(err))
		writeError(w, http.StatusBadGateway, "cannot deliver message")
		return
	}

	rc := orchestrator.RunContext{
		AssistantID: h.assistantID,
		ThreadID:    threadID,
		UserID:      userID,
		// Completion reaches the handler through the session hub; no
		// direct queue is needed.
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		if err := h.orchestrator.StartRun(ctx, rc); err != nil {
			h.logger.Error("run failed",
				zap.String("thread_id", threadID),
				zap.String("user_id", userID),
				zap.Error(err))
		}
	}()

	waitCtx, cancel := context.WithTimeout(r.Context(), awaitTimeout)
	defer cancel()
	if _, err := sess.AwaitCompletion(waitCtx); err != nil {
		writeJSON(w, http.StatusAccepted, map[string]interface{}{
			"status":    true,
			"thread_id": threadID,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    true,
		"thread_id": threadID,
	})
}

// Ready handles POST /api/v1/chat/ready: the client signals its stream is
// attached, releasing buffered events.
func (h *ChatHandler) Ready(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	sess, ok := h.sessions.Get(userID)
	if !ok {
		writeError(w, http.StatusNotFound, "no active session")
		return
	}
	sess.Ready()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": true,
	})
}

// Session handles GET /api/v1/chat/session, reporting the caller's session
// state.
func (h *ChatHandler) Session(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	resp := map[string]interface{}{
		"status":  true,
		"user_id": userID,
	}
	if sess, ok := h.sessions.Get(userID); ok {
		resp["thread_id"] = sess.ThreadID()
		resp["live"] = sess.Live()
	}
	writeJSON(w, http.StatusOK, resp)
}
