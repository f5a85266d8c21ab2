package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocumentIDFor(t *testing.T) {
	id := DocumentIDFor("Замена масла в двигателе")

	assert.Len(t, id, DocumentIDLength)
	assert.Equal(t, id, DocumentIDFor("Замена масла в двигателе"))
	assert.NotEqual(t, id, DocumentIDFor("Замена масла в двигателе."))
}

func TestChunkID(t *testing.T) {
	assert.Equal(t, "abc_0", ChunkID("abc", 0))
	assert.Equal(t, "abc_12", ChunkID("abc", 12))
}

func TestChunkFilter_Matches(t *testing.T) {
	rec := ChunkRecord{DocumentID: "d1", Filename: "kia_rio.pdf"}

	tests := []struct {
		name   string
		filter ChunkFilter
		want   bool
	}{
		{"empty filter", ChunkFilter{}, true},
		{"document match", ChunkFilter{DocumentID: "d1"}, true},
		{"document mismatch", ChunkFilter{DocumentID: "d2"}, false},
		{"filename match", ChunkFilter{Filename: "kia_rio.pdf"}, true},
		{"both, one mismatch", ChunkFilter{DocumentID: "d1", Filename: "x.pdf"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(rec))
		})
	}
}

func TestValidateChunkRecord(t *testing.T) {
	valid := ChunkRecord{ID: "d_0", DocumentID: "d", ChunkIndex: 0, TotalChunks: 1, Embedding: []float32{1}}

	tests := []struct {
		name    string
		mutate  func(r *ChunkRecord)
		wantErr bool
	}{
		{"valid", func(r *ChunkRecord) {}, false},
		{"missing id", func(r *ChunkRecord) { r.ID = " " }, true},
		{"missing document", func(r *ChunkRecord) { r.DocumentID = "" }, true},
		{"index out of range", func(r *ChunkRecord) { r.ChunkIndex = 1 }, true},
		{"negative index", func(r *ChunkRecord) { r.ChunkIndex = -1 }, true},
		{"no embedding", func(r *ChunkRecord) { r.Embedding = nil }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mutate(&r)
			err := ValidateChunkRecord(r)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDomainError_IsMatchesByCode(t *testing.T) {
	err := NewDomainErrorWithCause(ErrCodeEmbeddingProvider, "batch 2 failed", errors.New("429"))
	wrapped := fmt.Errorf("ingest: %w", err)

	assert.ErrorIs(t, wrapped, ErrEmbeddingProvider)
	assert.NotErrorIs(t, wrapped, ErrStorage)
	assert.Equal(t, StageEmbedding, StageOf(wrapped))
	assert.Contains(t, err.Error(), "[EMBEDDING_PROVIDER/embedding]")
	assert.Contains(t, err.Error(), "429")
}

func TestStageOf(t *testing.T) {
	assert.Equal(t, StageExtraction, StageOf(ErrUnsupportedFormat))
	assert.Equal(t, StageExtraction, StageOf(ErrEmptyDocument))
	assert.Equal(t, StageChunking, StageOf(ErrNoChunksProduced))
	assert.Equal(t, StageStorage, StageOf(ErrStorage))
	assert.Equal(t, "", StageOf(ErrDocumentNotFound))
	assert.Equal(t, "", StageOf(errors.New("plain")))
}
