package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/flexihub/assistant-gateway/internal/model"
)

// assistantsBetaHeader is required on every Assistants API request.
const assistantsBetaHeader = "assistants=v2"

// OpenAI implements Client against the OpenAI Assistants API. Thread and
// message CRUD go through the go-openai client; the two streaming calls are
// not covered by the library, so they speak SSE against the same base URL.
type OpenAI struct {
	api        *openai.Client
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewOpenAI creates an OpenAI-backed assistant client.
func NewOpenAI(apiKey, baseURL string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &OpenAI{
		api:        openai.NewClientWithConfig(cfg),
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{},
	}, nil
}

// CreateThread creates a new remote thread.
func (o *OpenAI) CreateThread(ctx context.Context) (string, error) {
	thread, err := o.api.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		return "", fmt.Errorf("%w: create thread: %v", model.ErrRemoteService, err)
	}
	return thread.ID, nil
}

// RetrieveThread checks thread existence with a lightweight retrieve call.
func (o *OpenAI) RetrieveThread(ctx context.Context, threadID string) error {
	if _, err := o.api.RetrieveThread(ctx, threadID); err != nil {
		return fmt.Errorf("%w: retrieve thread %s: %v", model.ErrRemoteService, threadID, err)
	}
	return nil
}

// CreateMessage adds a user message to the thread.
func (o *OpenAI) CreateMessage(ctx context.Context, threadID, content string, metadata map[string]any) (string, error) {
	msg, err := o.api.CreateMessage(ctx, threadID, openai.MessageRequest{
		Role:     string(openai.ThreadMessageRoleUser),
		Content:  content,
		Metadata: metadata,
	})
	if err != nil {
		return "", fmt.Errorf("%w: create message: %v", model.ErrRemoteService, err)
	}
	return msg.ID, nil
}

// CreateRunStream starts a streaming run on the thread.
func (o *OpenAI) CreateRunStream(ctx context.Context, threadID, assistantID string) (Stream, error) {
	path := fmt.Sprintf("/threads/%s/runs", threadID)
	return o.openStream(ctx, path, map[string]any{
		"assistant_id": assistantID,
		"stream":       true,
	})
}

// SubmitToolOutputsStream resubmits tool outputs and streams the
// continuation of the run.
func (o *OpenAI) SubmitToolOutputsStream(ctx context.Context, threadID, runID string, outputs []model.ToolOutput) (Stream, error) {
	path := fmt.Sprintf("/threads/%s/runs/%s/submit_tool_outputs", threadID, runID)
	return o.openStream(ctx, path, map[string]any{
		"tool_outputs": outputs,
		"stream":       true,
	})
}

func (o *OpenAI) openStream(ctx context.Context, path string, body map[string]any) (Stream, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal stream request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build stream request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("OpenAI-Beta", assistantsBetaHeader)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: open stream %s: %v", model.ErrRemoteService, path, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: stream %s returned %d: %s",
			model.ErrRemoteService, path, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	return newSSEStream(resp.Body), nil
}
