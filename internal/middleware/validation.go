package middleware

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// maxMessageBytes bounds inbound message size, roughly 100KB.
const maxMessageBytes = 100000

// ValidateMessageContent validates inbound chat message content.
func ValidateMessageContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.New("message cannot be empty")
	}
	if len(content) > maxMessageBytes {
		return errors.New("message exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("message must be valid UTF-8")
	}
	return nil
}

// ValidateThreadID validates a remote thread id. Remote ids are opaque but
// always non-empty and prefix-tagged.
func ValidateThreadID(id string) error {
	if id == "" {
		return errors.New("thread ID cannot be empty")
	}
	if !strings.HasPrefix(id, "thread_") {
		return errors.New("invalid thread ID format")
	}
	return nil
}
