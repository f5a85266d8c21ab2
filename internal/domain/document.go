package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// DocumentIDLength is the number of hex characters kept from the content hash.
const DocumentIDLength = 16

// Document is the summary of an ingested file. It is derived from the
// metadata denormalized onto each of its chunks.
type Document struct {
	ID          string
	Filename    string
	TotalChunks int
	AddedAt     int64
}

// DocumentDetail is a document together with its stored chunks.
type DocumentDetail struct {
	Document
	Chunks []DocumentChunk
}

// DocumentChunk is the display form of one stored chunk.
type DocumentChunk struct {
	Index int
	Text  string
	Pages string
}

// ChunkRecord is a chunk as persisted in a vector store.
type ChunkRecord struct {
	ID          string
	DocumentID  string
	Filename    string
	ChunkIndex  int
	TotalChunks int
	Pages       string
	AddedAt     int64
	Text        string
	Embedding   []float32
}

// Candidate is a nearest-neighbour result returned by a vector store.
// Distance is cosine distance in [0, 2].
type Candidate struct {
	Record   ChunkRecord
	Distance float64
}

// ChunkFilter selects chunk records by metadata equality. Empty fields are
// ignored; an empty filter matches everything.
type ChunkFilter struct {
	DocumentID string
	Filename   string
}

// Matches reports whether r satisfies every non-empty field of f.
func (f ChunkFilter) Matches(r ChunkRecord) bool {
	if f.DocumentID != "" && r.DocumentID != f.DocumentID {
		return false
	}
	if f.Filename != "" && r.Filename != f.Filename {
		return false
	}
	return true
}

// SearchHit is a ranked chunk returned from a search.
type SearchHit struct {
	ChunkID    string
	Text       string
	Score      float64
	Filename   string
	ChunkIndex int
	DocumentID string
	Pages      string
}

// IngestResult is returned by a successful ingestion.
type IngestResult struct {
	DocumentID string
	Filename   string
	ChunkCount int
	TokenCount int
}

// Stats summarises the contents of the knowledge base.
type Stats struct {
	TotalChunks    int
	TotalDocuments int
	CollectionName string
	Documents      []Document
}

// DocumentIDFor derives the stable document id from cleaned text.
func DocumentIDFor(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:DocumentIDLength]
}

// ChunkID builds the id of the index-th chunk of a document.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s_%d", documentID, index)
}

// ValidateChunkRecord checks that a record is ready to be stored.
func ValidateChunkRecord(r ChunkRecord) error {
	if strings.TrimSpace(r.ID) == "" {
		return NewDomainErrorWithCause(ErrCodeInvalidInput, "chunk id is required", nil)
	}
	if r.DocumentID == "" {
		return NewDomainErrorWithCause(ErrCodeInvalidInput, "document id is required", nil)
	}
	if r.ChunkIndex < 0 || r.ChunkIndex >= r.TotalChunks {
		return NewDomainErrorWithCause(ErrCodeInvalidInput,
			fmt.Sprintf("chunk index %d out of range [0,%d)", r.ChunkIndex, r.TotalChunks), nil)
	}
	if len(r.Embedding) == 0 {
		return NewDomainErrorWithCause(ErrCodeInvalidInput, "embedding is required", nil)
	}
	return nil
}
