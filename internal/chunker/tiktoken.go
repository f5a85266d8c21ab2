package chunker

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// DefaultEncoding is the tokenizer family of OpenAI's text-embedding-3 models.
const DefaultEncoding = "cl100k_base"

var loaderOnce sync.Once

// Tiktoken is a Tokenizer backed by tiktoken-go with the BPE ranks bundled
// into the binary, so no network access is needed at startup.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// NewTiktoken loads the named encoding.
func NewTiktoken(encoding string) (*Tiktoken, error) {
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %s: %w", encoding, err)
	}
	return &Tiktoken{enc: enc}, nil
}

func (t *Tiktoken) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

// Decode maps tokens back to text. A window boundary can split a multi-byte
// rune; the fragment is replaced with U+FFFD so chunks stay valid UTF-8.
func (t *Tiktoken) Decode(tokens []int) string {
	return strings.ToValidUTF8(t.enc.Decode(tokens), "\uFFFD")
}
