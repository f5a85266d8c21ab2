package testutil

import (
	"strconv"
	"strings"
	"sync"
)

// WordTokenizer treats every whitespace-separated word as one token. It gives
// tests exact control over token counts and window boundaries.
type WordTokenizer struct {
	mu    sync.Mutex
	ids   map[string]int
	words []string
}

func NewWordTokenizer() *WordTokenizer {
	return &WordTokenizer{ids: make(map[string]int)}
}

func (w *WordTokenizer) Encode(text string) []int {
	w.mu.Lock()
	defer w.mu.Unlock()

	fields := strings.Fields(text)
	tokens := make([]int, len(fields))
	for i, f := range fields {
		id, ok := w.ids[f]
		if !ok {
			id = len(w.words)
			w.ids[f] = id
			w.words = append(w.words, f)
		}
		tokens[i] = id
	}
	return tokens
}

func (w *WordTokenizer) Decode(tokens []int) string {
	w.mu.Lock()
	defer w.mu.Unlock()

	words := make([]string, len(tokens))
	for i, t := range tokens {
		words[i] = w.words[t]
	}
	return strings.Join(words, " ")
}

// Words returns n distinct words w<from>..w<from+n-1> joined by spaces.
func Words(from, n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString("w")
		sb.WriteString(strconv.Itoa(from + i))
	}
	return sb.String()
}
