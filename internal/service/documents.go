package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/tipo-sto/kbase/internal/domain"
	"github.com/tipo-sto/kbase/internal/pagination"
	"github.com/tipo-sto/kbase/internal/telemetry"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// ListDocuments returns one summary per stored document, newest first.
func (kb *KnowledgeBase) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeBase.ListDocuments", telemetry.SpanAttributes{
		Operation: "list",
	})
	defer span.End()

	records, err := kb.store.Get(ctx, domain.ChunkFilter{})
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeStorage, "failed to read chunks", err)
	}
	return summarize(records), nil
}

// ListDocumentsPage is ListDocuments with cursor pagination.
func (kb *KnowledgeBase) ListDocumentsPage(ctx context.Context, cursor string, limit int) (*pagination.PageResult[domain.Document], error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	decoded, err := pagination.DecodeCursor(cursor)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInvalidInput, "invalid cursor", err)
	}

	docs, err := kb.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	page := pagination.Page(docs, decoded, limit,
		func(d domain.Document) string { return d.ID },
		func(d domain.Document) time.Time { return time.Unix(d.AddedAt, 0) },
	)
	return &page, nil
}

// GetDocument returns a document with its chunks ordered by index.
func (kb *KnowledgeBase) GetDocument(ctx context.Context, documentID string) (*domain.DocumentDetail, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeBase.GetDocument", telemetry.SpanAttributes{
		DocumentID: documentID,
		Operation:  "get",
	})
	defer span.End()

	records, err := kb.documentRecords(ctx, documentID)
	if err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool { return records[i].ChunkIndex < records[j].ChunkIndex })
	detail := &domain.DocumentDetail{
		Document: summarize(records)[0],
		Chunks:   make([]domain.DocumentChunk, len(records)),
	}
	for i, r := range records {
		detail.Chunks[i] = domain.DocumentChunk{Index: r.ChunkIndex, Text: r.Text, Pages: r.Pages}
	}
	return detail, nil
}

// DeleteDocument removes every chunk of a document and its archived original.
func (kb *KnowledgeBase) DeleteDocument(ctx context.Context, documentID string) error {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeBase.DeleteDocument", telemetry.SpanAttributes{
		DocumentID: documentID,
		Operation:  "delete",
	})
	defer span.End()

	records, err := kb.documentRecords(ctx, documentID)
	if err != nil {
		return err
	}

	ids := make([]string, len(records))
	filenames := make(map[string]struct{})
	for i, r := range records {
		ids[i] = r.ID
		filenames[r.Filename] = struct{}{}
	}
	if err := kb.store.Delete(ctx, ids); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeStorage, "failed to delete chunks", err)
	}

	if kb.archiver != nil {
		for name := range filenames {
			key := ArchiveKey(documentID, name)
			if err := kb.archiver.Remove(ctx, key); err != nil {
				kb.log.Warn("failed to remove archived original", "document_id", documentID, "key", key, "error", err)
			}
		}
	}

	kb.log.Info("document deleted", "document_id", documentID, "chunks", len(ids))
	return nil
}

// OriginalURL returns a temporary download link for the archived original
// of a document.
func (kb *KnowledgeBase) OriginalURL(ctx context.Context, documentID string) (string, error) {
	records, err := kb.documentRecords(ctx, documentID)
	if err != nil {
		return "", err
	}
	if kb.archiver == nil {
		return "", domain.NewDomainError(domain.ErrCodeNotFound, "originals are not archived")
	}
	url, err := kb.archiver.DownloadURL(ctx, ArchiveKey(documentID, records[0].Filename))
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeNotFound, "original of "+documentID+" not found", err)
	}
	return url, nil
}

// Stats summarises the collection.
func (kb *KnowledgeBase) Stats(ctx context.Context) (*domain.Stats, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeBase.Stats", telemetry.SpanAttributes{
		Operation: "stats",
	})
	defer span.End()

	total, err := kb.store.Count(ctx)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeStorage, "failed to count chunks", err)
	}
	docs, err := kb.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	return &domain.Stats{
		TotalChunks:    total,
		TotalDocuments: len(docs),
		CollectionName: kb.cfg.CollectionName,
		Documents:      docs,
	}, nil
}

func (kb *KnowledgeBase) documentRecords(ctx context.Context, documentID string) ([]domain.ChunkRecord, error) {
	if strings.TrimSpace(documentID) == "" {
		return nil, domain.NewDomainError(domain.ErrCodeInvalidInput, "document id is required")
	}
	records, err := kb.store.Get(ctx, domain.ChunkFilter{DocumentID: documentID})
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeStorage, "failed to read chunks", err)
	}
	if len(records) == 0 {
		return nil, domain.NewDomainError(domain.ErrCodeNotFound, "document "+documentID+" not found")
	}
	return records, nil
}

// summarize groups records by document. The first record seen supplies the
// filename, chunk count and ingestion time.
func summarize(records []domain.ChunkRecord) []domain.Document {
	byID := make(map[string]domain.Document)
	for _, r := range records {
		if _, ok := byID[r.DocumentID]; ok {
			continue
		}
		byID[r.DocumentID] = domain.Document{
			ID:          r.DocumentID,
			Filename:    r.Filename,
			TotalChunks: r.TotalChunks,
			AddedAt:     r.AddedAt,
		}
	}

	docs := make([]domain.Document, 0, len(byID))
	for _, d := range byID {
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].AddedAt != docs[j].AddedAt {
			return docs[i].AddedAt > docs[j].AddedAt
		}
		return docs[i].ID < docs[j].ID
	})
	return docs
}
