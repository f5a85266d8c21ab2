// Package chunker splits text into overlapping token windows and attributes
// each window to the printed pages it covers.
package chunker

import (
	"fmt"
	"strings"
)

// Defaults used when the caller does not configure chunking.
const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 100
)

// Tokenizer converts between text and the embedding model's tokens.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

// Window is a half-open token range [Start, End).
type Window struct {
	Start int
	End   int
}

// Chunker produces token-bounded chunks.
type Chunker struct {
	tok     Tokenizer
	size    int
	overlap int
}

// New validates the window configuration.
func New(tok Tokenizer, size, overlap int) (*Chunker, error) {
	if tok == nil {
		return nil, fmt.Errorf("tokenizer is required")
	}
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0,%d), got %d", size, overlap)
	}
	return &Chunker{tok: tok, size: size, overlap: overlap}, nil
}

func (c *Chunker) Size() int    { return c.size }
func (c *Chunker) Overlap() int { return c.overlap }

// CountTokens returns the number of tokens in text.
func (c *Chunker) CountTokens(text string) int {
	return len(c.tok.Encode(text))
}

// Windows returns the token windows for a stream of total tokens. A stream
// that fits in one window yields a single window; an empty stream yields none.
func Windows(total, size, overlap int) []Window {
	if total <= 0 {
		return nil
	}
	if total <= size {
		return []Window{{Start: 0, End: total}}
	}

	step := size - overlap
	windows := make([]Window, 0, total/step+1)
	for start := 0; start < total; start += step {
		end := min(start+size, total)
		windows = append(windows, Window{Start: start, End: end})
		if end >= total {
			break
		}
	}
	return windows
}

// Chunk splits text. Blank text yields no chunks; text that fits in one
// window is returned unchanged.
func (c *Chunker) Chunk(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	tokens := c.tok.Encode(text)
	if len(tokens) <= c.size {
		return []string{text}
	}

	windows := Windows(len(tokens), c.size, c.overlap)
	chunks := make([]string, 0, len(windows))
	for _, w := range windows {
		chunks = append(chunks, c.tok.Decode(tokens[w.Start:w.End]))
	}
	return chunks
}
