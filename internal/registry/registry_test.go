package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flexihub/assistant-gateway/internal/assistant"
	"github.com/flexihub/assistant-gateway/internal/model"
	"github.com/flexihub/assistant-gateway/pkg/logger"
)

// fakeClient counts calls and can be told to fail validation for specific
// threads.
type fakeClient struct {
	mu            sync.Mutex
	created       atomic.Int64
	messages      atomic.Int64
	invalid       map[string]bool
	createErr     error
	messageIDs    []string
	nextMessageID int
}

func (f *fakeClient) CreateThread(ctx context.Context) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	n := f.created.Add(1)
	return fmt.Sprintf("thread_%d", n), nil
}

func (f *fakeClient) RetrieveThread(ctx context.Context, threadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.invalid[threadID] {
		return errors.New("thread gone")
	}
	return nil
}

func (f *fakeClient) CreateMessage(ctx context.Context, threadID, content string, metadata map[string]any) (string, error) {
	n := f.messages.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messageIDs) > 0 {
		id := f.messageIDs[f.nextMessageID%len(f.messageIDs)]
		f.nextMessageID++
		return id, nil
	}
	return fmt.Sprintf("msg_%d", n), nil
}

func (f *fakeClient) CreateRunStream(ctx context.Context, threadID, assistantID string) (assistant.Stream, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeClient) SubmitToolOutputsStream(ctx context.Context, threadID, runID string, outputs []model.ToolOutput) (assistant.Stream, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeClient) markInvalid(threadID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.invalid == nil {
		f.invalid = make(map[string]bool)
	}
	f.invalid[threadID] = true
}

func TestGetOrCreateThreadIdempotent(t *testing.T) {
	client := &fakeClient{}
	reg := New(client, logger.NewNop())
	ctx := context.Background()

	first, err := reg.GetOrCreateThread(ctx, "asst_1", "alice")
	require.NoError(t, err)

	second, err := reg.GetOrCreateThread(ctx, "asst_1", "alice")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), client.created.Load())
}

func TestGetOrCreateThreadScopesByUser(t *testing.T) {
	client := &fakeClient{}
	reg := New(client, logger.NewNop())
	ctx := context.Background()

	alice, err := reg.GetOrCreateThread(ctx, "asst_1", "alice")
	require.NoError(t, err)
	bob, err := reg.GetOrCreateThread(ctx, "asst_1", "bob")
	require.NoError(t, err)

	assert.NotEqual(t, alice, bob)
	assert.Equal(t, int64(2), client.created.Load())
}

func TestGetOrCreateThreadRecreatesInvalid(t *testing.T) {
	client := &fakeClient{}
	reg := New(client, logger.NewNop())
	ctx := context.Background()

	first, err := reg.GetOrCreateThread(ctx, "asst_1", "alice")
	require.NoError(t, err)

	client.markInvalid(first)

	second, err := reg.GetOrCreateThread(ctx, "asst_1", "alice")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, int64(2), client.created.Load())
}

func TestGetOrCreateThreadConcurrentSingleCreation(t *testing.T) {
	client := &fakeClient{}
	reg := New(client, logger.NewNop())
	ctx := context.Background()

	const callers = 16
	results := make([]string, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = reg.GetOrCreateThread(ctx, "asst_1", "alice")
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
	}
	assert.Equal(t, int64(1), client.created.Load())
}

func TestGetOrCreateThreadCreationFailure(t *testing.T) {
	client := &fakeClient{createErr: errors.New("boom")}
	reg := New(client, logger.NewNop())

	_, err := reg.GetOrCreateThread(context.Background(), "asst_1", "alice")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrRemoteService)
}

func TestAddMessageRejectsEmpty(t *testing.T) {
	client := &fakeClient{}
	reg := New(client, logger.NewNop())

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := reg.AddMessage(context.Background(), "thread_1", text, "alice")
		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrValidation)
	}
	assert.Equal(t, int64(0), client.messages.Load(), "no network call for rejected input")
}

func TestAddMessageAcceptsDuplicateIDs(t *testing.T) {
	client := &fakeClient{messageIDs: []string{"msg_same"}}
	reg := New(client, logger.NewNop())
	ctx := context.Background()

	first, err := reg.AddMessage(ctx, "thread_1", "hello", "alice")
	require.NoError(t, err)
	second, err := reg.AddMessage(ctx, "thread_1", "hello again", "alice")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(2), client.messages.Load())
}

func TestLookupFallsBackToAssistantKey(t *testing.T) {
	client := &fakeClient{}
	reg := New(client, logger.NewNop())
	ctx := context.Background()

	unscoped, err := reg.GetOrCreateThread(ctx, "asst_1", "")
	require.NoError(t, err)

	rec, ok := reg.Lookup("asst_1", "alice")
	require.True(t, ok)
	assert.Equal(t, unscoped, rec.ThreadID)

	scoped, err := reg.GetOrCreateThread(ctx, "asst_1", "alice")
	require.NoError(t, err)

	rec, ok = reg.Lookup("asst_1", "alice")
	require.True(t, ok)
	assert.Equal(t, scoped, rec.ThreadID)
}
