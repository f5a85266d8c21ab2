package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/tipo-sto/kbase/internal/chunker"
	"github.com/tipo-sto/kbase/internal/domain"
	"github.com/tipo-sto/kbase/internal/extractor"
	"github.com/tipo-sto/kbase/internal/telemetry"
)

// IngestInput names a file on local disk. Filename is the name shown to
// users; it defaults to the base name of Path.
type IngestInput struct {
	Path        string
	Filename    string
	ContentType string
}

// ArchiveKey is the object key of an archived original.
func ArchiveKey(documentID, filename string) string {
	return "documents/" + documentID + "/" + path.Base(filepath.ToSlash(filename))
}

// Ingest extracts, chunks, embeds and stores a document. Ingesting the same
// content again replaces the stored chunks under the same document id.
func (kb *KnowledgeBase) Ingest(ctx context.Context, in IngestInput) (*domain.IngestResult, error) {
	if in.Filename == "" {
		in.Filename = filepath.Base(in.Path)
	}
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeBase.Ingest", telemetry.SpanAttributes{
		Filename:  in.Filename,
		Operation: "ingest",
	})
	defer span.End()

	result, err := kb.ingest(ctx, in)
	if result != nil {
		span.SetTag("document_id", result.DocumentID)
	}
	if err != nil {
		kb.log.Warn("ingestion failed", "filename", in.Filename, "stage", domain.StageOf(err), "error", err)
		if stage := domain.StageOf(err); stage == domain.StageEmbedding || stage == domain.StageStorage {
			span.SetError(err)
		}
		return nil, err
	}
	return result, nil
}

func (kb *KnowledgeBase) ingest(ctx context.Context, in IngestInput) (*domain.IngestResult, error) {
	raw, err := kb.extractor.Extract(ctx, in.Path, in.ContentType)
	if err != nil {
		var de *domain.DomainError
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeExtractionFailed, "failed to extract text", err)
	}

	text := extractor.Clean(raw)
	if strings.TrimSpace(text) == "" {
		return nil, domain.NewDomainError(domain.ErrCodeEmptyDocument, "no text could be extracted from "+in.Filename)
	}

	documentID := domain.DocumentIDFor(text)
	telemetry.AddBreadcrumb(ctx, "ingest", "extracted "+in.Filename)
	tokenCount := kb.chunker.CountTokens(text)

	chunks := kb.chunker.Chunk(text)
	if len(chunks) == 0 {
		return nil, domain.NewDomainError(domain.ErrCodeNoChunksProduced, "chunker produced no chunks")
	}
	kb.log.Debug("document chunked", "document_id", documentID, "chunks", len(chunks), "tokens", tokenCount)
	telemetry.AddBreadcrumb(ctx, "ingest", fmt.Sprintf("chunked %s into %d chunks", documentID, len(chunks)))

	vectors, err := kb.embedChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}

	telemetry.AddBreadcrumb(ctx, "ingest", "embedded "+documentID)

	pages := chunker.AttributePages(chunks)
	addedAt := kb.now().Unix()
	records := make([]domain.ChunkRecord, len(chunks))
	for i, chunk := range chunks {
		records[i] = domain.ChunkRecord{
			ID:          domain.ChunkID(documentID, i),
			DocumentID:  documentID,
			Filename:    in.Filename,
			ChunkIndex:  i,
			TotalChunks: len(chunks),
			Pages:       pages[i],
			AddedAt:     addedAt,
			Text:        chunk,
			Embedding:   vectors[i],
		}
	}

	if err := kb.store.Upsert(ctx, records); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeStorage, "failed to store chunks", err)
	}

	if kb.archiver != nil {
		key := ArchiveKey(documentID, in.Filename)
		if err := kb.archiver.Archive(ctx, key, in.Path, in.ContentType); err != nil {
			kb.log.Warn("failed to archive original", "document_id", documentID, "key", key, "error", err)
		}
	}

	kb.log.Info("document ingested",
		"document_id", documentID,
		"filename", in.Filename,
		"chunks", len(chunks),
		"tokens", tokenCount,
	)

	return &domain.IngestResult{
		DocumentID: documentID,
		Filename:   in.Filename,
		ChunkCount: len(chunks),
		TokenCount: tokenCount,
	}, nil
}

// embedChunks embeds chunks in batches of EmbedBatchSize, at most
// EmbedConcurrency batches in flight. Vectors come back in chunk order.
func (kb *KnowledgeBase) embedChunks(ctx context.Context, chunks []string) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))
	size := kb.cfg.EmbedBatchSize

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(kb.cfg.EmbedConcurrency)
	for start := 0; start < len(chunks); start += size {
		end := min(start+size, len(chunks))
		g.Go(func() error {
			batch, err := kb.embedder.Embed(gctx, chunks[start:end])
			if err != nil {
				return fmt.Errorf("batch [%d:%d]: %w", start, end, err)
			}
			if len(batch) != end-start {
				return fmt.Errorf("batch [%d:%d]: got %d embeddings", start, end, len(batch))
			}
			copy(vectors[start:end], batch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeEmbeddingProvider, "failed to embed chunks", err)
	}
	return vectors, nil
}
