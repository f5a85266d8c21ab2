package testutil

import (
	"context"
	"hash/fnv"
	"strings"
)

// HashEmbedder maps text to a bag-of-words vector by hashing each lowercased
// word into one of Dims buckets. Texts sharing words land close together,
// which is enough to exercise ranking without a provider.
type HashEmbedder struct {
	Dims int
}

func NewHashEmbedder() *HashEmbedder {
	return &HashEmbedder{Dims: 64}
}

func (h *HashEmbedder) Model() string { return "hash-bow" }

func (h *HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, h.Dims)
		for _, w := range strings.Fields(strings.ToLower(t)) {
			f := fnv.New32a()
			_, _ = f.Write([]byte(w))
			v[f.Sum32()%uint32(h.Dims)]++
		}
		out[i] = v
	}
	return out, nil
}
