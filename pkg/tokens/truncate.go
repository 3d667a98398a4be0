// Package tokens provides token-aware text truncation for model context limits.
package tokens

import (
	"github.com/pkoukk/tiktoken-go"
)

// fallbackCharsPerToken approximates token counts when no encoding is
// available. Four characters per token is the usual English estimate.
const fallbackCharsPerToken = 4

// Truncator counts tokens for a model encoding and trims text to a budget.
// When the encoding cannot be loaded it degrades to a character estimate.
type Truncator struct {
	enc *tiktoken.Tiktoken
}

// NewTruncator builds a Truncator for the given model. The encoding lookup
// falls back to cl100k_base, and then to the character estimate.
func NewTruncator(model string) *Truncator {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, _ = tiktoken.GetEncoding("cl100k_base")
	}
	return &Truncator{enc: enc}
}

// Count returns the token count of text.
func (t *Truncator) Count(text string) int {
	if t.enc == nil {
		return (len(text) + fallbackCharsPerToken - 1) / fallbackCharsPerToken
	}
	return len(t.enc.Encode(text, nil, nil))
}

// TruncateTail trims text so it fits within maxTokens, removing from the
// front and keeping the tail. The most recent part of a large payload is
// assumed to be the relevant part.
func (t *Truncator) TruncateTail(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}

	if t.enc == nil {
		max := maxTokens * fallbackCharsPerToken
		if len(text) <= max {
			return text
		}
		return text[len(text)-max:]
	}

	toks := t.enc.Encode(text, nil, nil)
	if len(toks) <= maxTokens {
		return text
	}
	return t.enc.Decode(toks[len(toks)-maxTokens:])
}
