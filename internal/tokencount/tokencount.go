// Package tokencount re-estimates output token counts by BPE, since the
// vendor's recorded output_tokens are a known-wrong streaming artefact
// (spec.md §4.4, §9 Open Question (a)). No tokenizer appears anywhere in
// the retrieval pack; github.com/pkoukk/tiktoken-go is the cl100k_base
// implementation spec.md names directly, introduced here as the one
// out-of-pack dependency this module requires (see DESIGN.md).
package tokencount

import (
	"math"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Counter estimates token counts using the cl100k_base BPE vocabulary,
// falling back to a length/4 heuristic when the encoder cannot be loaded
// (e.g. offline, no cached vocabulary file).
type Counter struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
	err  error
}

// New returns a Counter. Loading of the BPE vocabulary is deferred to the
// first Count call so construction never fails or blocks on network I/O.
func New() *Counter {
	return &Counter{}
}

func (c *Counter) encoder() (*tiktoken.Tiktoken, error) {
	c.once.Do(func() {
		c.enc, c.err = tiktoken.GetEncoding("cl100k_base")
	})
	return c.enc, c.err
}

// Count returns the estimated token count of text. Falls back to
// ⌈len(text)/4⌉ when the cl100k_base encoder is unavailable, per
// spec.md §4.4.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	enc, err := c.encoder()
	if err != nil || enc == nil {
		return fallbackCount(text)
	}
	return len(enc.Encode(text, nil, nil))
}

// fallbackCount is the ⌈len(text)/4⌉ heuristic used when the cl100k_base
// encoder cannot be loaded.
func fallbackCount(text string) int {
	return int(math.Ceil(float64(len(text)) / 4))
}
