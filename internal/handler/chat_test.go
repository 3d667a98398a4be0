package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flexihub/assistant-gateway/internal/assistant"
	"github.com/flexihub/assistant-gateway/internal/channel"
	"github.com/flexihub/assistant-gateway/internal/middleware"
	"github.com/flexihub/assistant-gateway/internal/model"
	"github.com/flexihub/assistant-gateway/internal/orchestrator"
	"github.com/flexihub/assistant-gateway/internal/registry"
	"github.com/flexihub/assistant-gateway/internal/session"
	"github.com/flexihub/assistant-gateway/internal/tool"
	"github.com/flexihub/assistant-gateway/pkg/logger"
	"github.com/flexihub/assistant-gateway/pkg/tokens"
)

// fakeStream replays scripted wire events.
type fakeStream struct {
	events []model.WireEvent
	pos    int
}

func (s *fakeStream) Recv() (model.WireEvent, error) {
	if s.pos >= len(s.events) {
		return model.WireEvent{}, io.EOF
	}
	ev := s.events[s.pos]
	s.pos++
	return ev, nil
}

func (s *fakeStream) Close() error { return nil }

// fakeClient serves one scripted run per CreateRunStream call.
type fakeClient struct {
	script   func() []model.WireEvent
	threadID string
}

func (f *fakeClient) CreateThread(ctx context.Context) (string, error) {
	if f.threadID != "" {
		return f.threadID, nil
	}
	return "thread_1", nil
}

func (f *fakeClient) RetrieveThread(ctx context.Context, threadID string) error { return nil }

func (f *fakeClient) CreateMessage(ctx context.Context, threadID, content string, metadata map[string]any) (string, error) {
	return "msg_user", nil
}

func (f *fakeClient) CreateRunStream(ctx context.Context, threadID, assistantID string) (assistant.Stream, error) {
	if f.script == nil {
		return nil, errors.New("no run scripted")
	}
	return &fakeStream{events: f.script()}, nil
}

func (f *fakeClient) SubmitToolOutputsStream(ctx context.Context, threadID, runID string, outputs []model.ToolOutput) (assistant.Stream, error) {
	return nil, errors.New("no continuation scripted")
}

func completedRun() []model.WireEvent {
	payload := func(v any) json.RawMessage {
		data, _ := json.Marshal(v)
		return data
	}
	return []model.WireEvent{
		{Type: model.WireMessageCompleted, Data: payload(map[string]any{
			"id":        "msg_1",
			"thread_id": "thread_1",
			"role":      "assistant",
			"content": []map[string]any{
				{"type": "text", "text": map[string]any{"value": "Hello"}},
			},
		})},
		{Type: model.WireDone},
	}
}

type testEnv struct {
	chat     *ChatHandler
	stream   *StreamHandler
	sessions *session.Manager
}

func newTestEnv(t *testing.T, client *fakeClient) *testEnv {
	t.Helper()
	log := logger.NewNop()

	reg := registry.New(client, log)
	sessions := session.NewManager(10, log)
	hub := session.NewHub(sessions)
	publisher := channel.NewPublisher([]channel.Channel{hub}, log)

	toolReg := tool.NewRegistry()
	executor := tool.NewExecutor(toolReg, tokens.NewTruncator("gpt-4o-mini"), 1000, log)

	orch := orchestrator.New(client, reg, executor, publisher, log)

	return &testEnv{
		chat:     NewChatHandler(reg, orch, sessions, "asst_1", log),
		stream:   NewStreamHandler(sessions, time.Second, log),
		sessions: sessions,
	}
}

func asUser(r *http.Request, userID string) *http.Request {
	ctx := context.WithValue(r.Context(), middleware.UserIDKey, userID)
	return r.WithContext(ctx)
}

func TestMessageRejectsEmptyBody(t *testing.T) {
	env := newTestEnv(t, &fakeClient{})

	for _, body := range []string{`{"message":""}`, `{"message":"   "}`, `{}`} {
		req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/chat/message", strings.NewReader(body)), "alice")
		rec := httptest.NewRecorder()
		env.chat.Message(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %s", body)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, false, resp["status"])
	}
}

func TestMessageRejectsInvalidJSON(t *testing.T) {
	env := newTestEnv(t, &fakeClient{})

	req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/chat/message", strings.NewReader("{broken")), "alice")
	rec := httptest.NewRecorder()
	env.chat.Message(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMessageAwaitsRunCompletion(t *testing.T) {
	env := newTestEnv(t, &fakeClient{script: completedRun})

	req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/chat/message", strings.NewReader(`{"message":"hi"}`)), "alice")
	rec := httptest.NewRecorder()
	env.chat.Message(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, "response follows the run's terminal event")

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["status"])
	assert.Equal(t, "thread_1", resp["thread_id"])

	// The run finished before the response, so its output is already
	// buffered and replayable.
	sess, ok := env.sessions.Get("alice")
	require.True(t, ok)

	replay := sess.Replay("")
	require.Len(t, replay, 1)
	assert.Equal(t, "Hello", replay[0].Text())
}

func TestMessageRejectsMalformedRemoteThread(t *testing.T) {
	env := newTestEnv(t, &fakeClient{threadID: "conv_1", script: completedRun})

	req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/chat/message", strings.NewReader(`{"message":"hi"}`)), "alice")
	rec := httptest.NewRecorder()
	env.chat.Message(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestReadyWithoutSession(t *testing.T) {
	env := newTestEnv(t, &fakeClient{})

	req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/chat/ready", nil), "ghost")
	rec := httptest.NewRecorder()
	env.chat.Ready(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReadyReleasesBufferedEvents(t *testing.T) {
	env := newTestEnv(t, &fakeClient{script: completedRun})

	req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/chat/message", strings.NewReader(`{"message":"hi"}`)), "alice")
	env.chat.Message(httptest.NewRecorder(), req)

	sess, ok := env.sessions.Get("alice")
	require.True(t, ok)
	assert.False(t, sess.Live())

	readyReq := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/chat/ready", nil), "alice")
	rec := httptest.NewRecorder()
	env.chat.Ready(rec, readyReq)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, sess.Live())

	var buffered int
	for {
		select {
		case <-sess.Events():
			buffered++
			continue
		default:
		}
		break
	}
	assert.Greater(t, buffered, 0, "buffered events drain on ready")
}

func TestSessionReportsState(t *testing.T) {
	env := newTestEnv(t, &fakeClient{script: completedRun})

	msgReq := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/chat/message", strings.NewReader(`{"message":"hi"}`)), "alice")
	env.chat.Message(httptest.NewRecorder(), msgReq)

	req := asUser(httptest.NewRequest(http.MethodGet, "/api/v1/chat/session", nil), "alice")
	rec := httptest.NewRecorder()
	env.chat.Session(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "alice", resp["user_id"])
	assert.Equal(t, "thread_1", resp["thread_id"])
}

func TestStreamReplaysAndHeartbeats(t *testing.T) {
	env := newTestEnv(t, &fakeClient{script: completedRun})

	msgReq := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/chat/message", strings.NewReader(`{"message":"hi"}`)), "alice")
	env.chat.Message(httptest.NewRecorder(), msgReq)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	req := asUser(httptest.NewRequest(http.MethodGet, "/api/v1/chat/stream", nil).WithContext(ctx), "alice")
	rec := httptest.NewRecorder()

	env.stream.Stream(rec, req)

	body := rec.Body.String()
	assert.Contains(t, body, "retry: 1000")
	assert.Contains(t, body, "id: msg_1")
	assert.Contains(t, body, "event: message_completed")
	assert.Contains(t, body, "Hello")
}
