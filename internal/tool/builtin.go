package tool

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// RegisterBuiltins installs the tools both binaries ship with. Domain
// backends (spreadsheets, audits, search) plug in through the same registry.
func RegisterBuiltins(r *Registry) {
	notes := &noteStore{notes: make(map[string]string)}
	r.Register("save_note", notes.save)
	r.Register("recall_note", notes.recall)
	r.Register("current_time", currentTime)
}

// noteStore is a process-local key/value scratchpad the assistant can write
// to and read back within a session.
type noteStore struct {
	mu    sync.Mutex
	notes map[string]string
}

func (s *noteStore) save(_ context.Context, args map[string]any) (any, error) {
	key, _ := args["key"].(string)
	value, _ := args["value"].(string)
	if key == "" {
		return nil, fmt.Errorf("save_note: key is required")
	}

	s.mu.Lock()
	s.notes[key] = value
	s.mu.Unlock()

	return map[string]any{"saved": key}, nil
}

func (s *noteStore) recall(_ context.Context, args map[string]any) (any, error) {
	key, _ := args["key"].(string)
	if key == "" {
		return nil, fmt.Errorf("recall_note: key is required")
	}

	s.mu.Lock()
	value, ok := s.notes[key]
	s.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("recall_note: no note under %q", key)
	}
	return map[string]any{"key": key, "value": value}, nil
}

func currentTime(_ context.Context, _ map[string]any) (any, error) {
	return map[string]any{"now": time.Now().UTC().Format(time.RFC3339)}, nil
}
