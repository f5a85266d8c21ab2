// Package cache stores query embeddings so repeated searches skip the
// embedding provider.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
)

// ErrCorrupt is returned when a cached value cannot be decoded.
var ErrCorrupt = errors.New("cache: corrupt vector")

// Key builds the cache key for text embedded with model.
func Key(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("kbase:emb:%s:%s", model, hex.EncodeToString(sum[:]))
}

// Cache is implemented by Memory and Redis.
type Cache interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Set(ctx context.Context, key string, vec []float32) error
}

// EncodeVector packs a vector as little-endian float32 values.
func EncodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

// DecodeVector is the inverse of EncodeVector.
func DecodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, ErrCorrupt
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec, nil
}
