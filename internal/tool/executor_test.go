package tool

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flexihub/assistant-gateway/internal/model"
	"github.com/flexihub/assistant-gateway/pkg/logger"
	"github.com/flexihub/assistant-gateway/pkg/tokens"
)

func newTestExecutor(maxTokens int) (*Executor, *Registry) {
	reg := NewRegistry()
	return NewExecutor(reg, tokens.NewTruncator("gpt-4o-mini"), maxTokens, logger.NewNop()), reg
}

func TestExecuteUnknownTool(t *testing.T) {
	exec, _ := newTestExecutor(1000)

	_, err := exec.Execute(context.Background(), "no_such_tool", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrToolNotFound)
	assert.Contains(t, err.Error(), "no_such_tool")
}

func TestExecutePropagatesToolError(t *testing.T) {
	exec, reg := newTestExecutor(1000)
	boom := errors.New("backend down")
	reg.Register("flaky", func(_ context.Context, _ map[string]any) (any, error) {
		return nil, boom
	})

	_, err := exec.Execute(context.Background(), "flaky", map[string]any{})
	assert.ErrorIs(t, err, boom)
}

func TestExecutePassesArguments(t *testing.T) {
	exec, reg := newTestExecutor(1000)
	reg.Register("echo", func(_ context.Context, args map[string]any) (any, error) {
		return args["value"], nil
	})

	result, err := exec.Execute(context.Background(), "echo", map[string]any{"value": "ping"})
	require.NoError(t, err)
	assert.Equal(t, "ping", result)
}

func TestPrepareOutputSuccessEnvelope(t *testing.T) {
	exec, _ := newTestExecutor(1000)

	out := exec.PrepareOutput("call_1", map[string]any{"answer": 42}, true)
	assert.Equal(t, "call_1", out.ToolCallID)

	var payload struct {
		Status  bool           `json:"status"`
		Message string         `json:"message"`
		Result  map[string]any `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(out.Output), &payload))
	assert.True(t, payload.Status)
	assert.Equal(t, "Success", payload.Message)
	assert.Equal(t, float64(42), payload.Result["answer"])
}

func TestPrepareOutputFailureEnvelope(t *testing.T) {
	exec, _ := newTestExecutor(1000)

	out := exec.PrepareOutput("call_2", "backend down", false)

	var payload struct {
		Status  bool   `json:"status"`
		Message string `json:"message"`
		Result  any    `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(out.Output), &payload))
	assert.False(t, payload.Status)
	assert.Equal(t, "backend down", payload.Message)
	assert.Nil(t, payload.Result)
}

func TestPrepareOutputTruncatesOversized(t *testing.T) {
	reg := NewRegistry()
	tr := tokens.NewTruncator("gpt-4o-mini")
	exec := NewExecutor(reg, tr, 10, logger.NewNop())

	out := exec.PrepareOutput("call_3", strings.Repeat("data ", 500), true)
	assert.LessOrEqual(t, tr.Count(out.Output), 10)
	assert.NotEmpty(t, out.Output)
}

func TestBuiltinNotesRoundTrip(t *testing.T) {
	reg := NewRegistry()
	RegisterBuiltins(reg)
	ctx := context.Background()

	save, ok := reg.Get("save_note")
	require.True(t, ok)
	_, err := save(ctx, map[string]any{"key": "color", "value": "blue"})
	require.NoError(t, err)

	recall, ok := reg.Get("recall_note")
	require.True(t, ok)
	result, err := recall(ctx, map[string]any{"key": "color"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"key": "color", "value": "blue"}, result)

	_, err = recall(ctx, map[string]any{"key": "missing"})
	assert.Error(t, err)
}
