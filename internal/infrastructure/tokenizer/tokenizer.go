// Package tokenizer counts and truncates text by model token count, used by
// the Context Assembler (spec section 4.6) to enforce MAX_CHUNK_TOKENS and by
// the chunk store loader to validate token_count fields. It wraps
// tiktoken-go's cl100k_base encoding with a lazy sync.Once init, falling back
// to a character-based estimate if the encoding table cannot be loaded (e.g.
// no network access to fetch the BPE ranks file), so retrieval never blocks
// on tokenizer availability.
package tokenizer

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const charsPerTokenEstimate = 4

// Counter counts tokens in text. A single process-wide Counter is shared
// read-only across requests; tiktoken-go's encoder is safe for concurrent
// use once initialised.
type Counter struct {
	once    sync.Once
	enc     *tiktoken.Tiktoken
	initErr error
}

func New() *Counter {
	return &Counter{}
}

func (c *Counter) init() {
	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			c.initErr = err
			return
		}
		c.enc = enc
	})
}

// Count returns the token count of text, falling back to a character-based
// estimate if the tiktoken encoding failed to load.
func (c *Counter) Count(text string) int {
	c.init()
	if c.initErr != nil || c.enc == nil {
		return estimateTokens(text)
	}
	return len(c.enc.Encode(text, nil, nil))
}

// TruncateHeadTail applies the keep-head-and-tail strategy from spec section
// 4.6: keep the first half and last half of the word sequence, joined with
// an explicit ellipsis marker, so a truncated chunk still shows the reader
// its beginning and end.
func TruncateHeadTail(text string, maxTokens int) string {
	words := strings.Fields(text)
	if maxTokens <= 0 || len(words) == 0 {
		return text
	}

	c := New()
	if c.Count(text) <= maxTokens {
		return text
	}

	// Approximate the word budget as one word per token of budget; the
	// joined result is not re-counted against maxTokens, which avoids
	// calling the tokenizer on every candidate split.
	keepWords := maxTokens
	if keepWords > len(words) {
		keepWords = len(words)
	}
	half := keepWords / 2
	if half == 0 {
		half = 1
	}

	head := words[:min(half, len(words))]
	tailStart := len(words) - half
	if tailStart < len(head) {
		tailStart = len(head)
	}
	tail := words[tailStart:]

	return strings.Join(head, " ") + " […] " + strings.Join(tail, " ")
}

func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + charsPerTokenEstimate - 1) / charsPerTokenEstimate
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
