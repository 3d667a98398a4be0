// Package registry owns the mapping from (assistant, user) to a remote
// thread and its lifecycle.
package registry

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/flexihub/assistant-gateway/internal/assistant"
	"github.com/flexihub/assistant-gateway/internal/model"
	"github.com/flexihub/assistant-gateway/pkg/logger"
	"github.com/flexihub/assistant-gateway/pkg/metrics"
)

// Status is the lifecycle state of a tracked thread.
type Status string

const (
	StatusInitialized Status = "initialized"
	StatusInvalid     Status = "invalid"
)

// Record is one tracked thread. At most one live record exists per key.
type Record struct {
	AssistantID string
	UserID      string
	ThreadID    string
	Status      Status
}

// Registry maps assistant+user keys to remote threads, validates thread
// liveness, and serializes creation per key so concurrent first-use of the
// same key never creates duplicate remote threads.
type Registry struct {
	client assistant.Client
	logger *logger.Logger

	mu      sync.Mutex
	threads map[string]Record
	// threadID -> message ids already seen, for duplicate-detection logging
	seen map[string]map[string]struct{}

	group singleflight.Group
}

// New creates a Registry backed by the given assistant client.
func New(client assistant.Client, log *logger.Logger) *Registry {
	return &Registry{
		client:  client,
		logger:  log.Named("registry"),
		threads: make(map[string]Record),
		seen:    make(map[string]map[string]struct{}),
	}
}

// Key builds the composite registry key: assistant alone, or assistant:user
// when a user scope is supplied.
func Key(assistantID, userID string) string {
	if userID == "" {
		return assistantID
	}
	return assistantID + ":" + userID
}

// GetOrCreateThread returns the cached thread for the assistant+user pair,
// validating it against the remote API, or creates a new one. Network I/O
// happens outside the map lock; the singleflight group serializes callers of
// the same key so exactly one remote thread is created under concurrent
// first-use.
func (r *Registry) GetOrCreateThread(ctx context.Context, assistantID, userID string) (string, error) {
	key := Key(assistantID, userID)

	v, err, _ := r.group.Do(key, func() (any, error) {
		r.mu.Lock()
		rec, ok := r.threads[key]
		r.mu.Unlock()

		if ok {
			if err := r.client.RetrieveThread(ctx, rec.ThreadID); err == nil {
				r.logger.Debug("reusing thread",
					zap.String("key", key), zap.String("thread_id", rec.ThreadID))
				return rec.ThreadID, nil
			}
			r.logger.Warn("tracked thread failed validation, evicting",
				zap.String("key", key), zap.String("thread_id", rec.ThreadID))
			r.mu.Lock()
			delete(r.threads, key)
			r.mu.Unlock()
		}

		threadID, err := r.client.CreateThread(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: cannot establish session for assistant %q (user %q): %v",
				model.ErrRemoteService, assistantID, userID, err)
		}

		r.mu.Lock()
		r.threads[key] = Record{
			AssistantID: assistantID,
			UserID:      userID,
			ThreadID:    threadID,
			Status:      StatusInitialized,
		}
		r.mu.Unlock()

		metrics.ThreadsCreated.Inc()
		r.logger.Info("thread created",
			zap.String("key", key), zap.String("thread_id", threadID))
		return threadID, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Lookup returns the tracked record for the assistant+user pair. The scoped
// key is preferred; the assistant-only key is the fallback. Pure read, never
// mutates.
func (r *Registry) Lookup(assistantID, userID string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if userID != "" {
		if rec, ok := r.threads[Key(assistantID, userID)]; ok {
			return rec, true
		}
	}
	rec, ok := r.threads[assistantID]
	return rec, ok
}

// AddMessage adds a user message to the thread. Empty or whitespace-only
// text is rejected before any network call. Message ids already seen on the
// thread are logged as duplicates but still accepted.
func (r *Registry) AddMessage(ctx context.Context, threadID, text, userID string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: message cannot be empty", model.ErrValidation)
	}

	var metadata map[string]any
	if userID != "" {
		metadata = map[string]any{"user_id": userID}
	}

	messageID, err := r.client.CreateMessage(ctx, threadID, text, metadata)
	if err != nil {
		return "", fmt.Errorf("add message to thread %s: %w", threadID, err)
	}

	r.mu.Lock()
	seen, ok := r.seen[threadID]
	if !ok {
		seen = make(map[string]struct{})
		r.seen[threadID] = seen
	}
	_, dup := seen[messageID]
	seen[messageID] = struct{}{}
	r.mu.Unlock()

	if dup {
		r.logger.Warn("duplicate message id on thread",
			zap.String("thread_id", threadID), zap.String("message_id", messageID))
	}

	metrics.MessagesTotal.WithLabelValues("user").Inc()
	r.logger.Debug("message added",
		zap.String("thread_id", threadID), zap.String("message_id", messageID))
	return messageID, nil
}
