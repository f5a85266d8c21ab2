package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tipo-sto/kbase/internal/api"
	"github.com/tipo-sto/kbase/internal/domain"
	"github.com/tipo-sto/kbase/internal/extractor"
	"github.com/tipo-sto/kbase/internal/logger"
	"github.com/tipo-sto/kbase/internal/pagination"
	"github.com/tipo-sto/kbase/internal/service"
)

const (
	DefaultSearchTopK         = 3
	DefaultSearchMinRelevance = 0.3
	DefaultMaxUploadBytes     = 100 << 20

	// multipart headers and boundaries on top of the file itself
	multipartOverhead = 1 << 20
)

type KnowledgeBaseService interface {
	Ingest(ctx context.Context, in service.IngestInput) (*domain.IngestResult, error)
	Search(ctx context.Context, in service.SearchInput) ([]domain.SearchHit, error)
	ListDocumentsPage(ctx context.Context, cursor string, limit int) (*pagination.PageResult[domain.Document], error)
	GetDocument(ctx context.Context, documentID string) (*domain.DocumentDetail, error)
	DeleteDocument(ctx context.Context, documentID string) error
	OriginalURL(ctx context.Context, documentID string) (string, error)
	Stats(ctx context.Context) (*domain.Stats, error)
}

type KnowledgeBaseHandler struct {
	svc            KnowledgeBaseService
	maxUploadBytes int64
	log            *logger.Logger
}

func NewKnowledgeBaseHandler(svc KnowledgeBaseService, maxUploadBytes int64, log *logger.Logger) *KnowledgeBaseHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	if log == nil {
		log = logger.Nop()
	}
	return &KnowledgeBaseHandler{svc: svc, maxUploadBytes: maxUploadBytes, log: log}
}

type IngestResponse struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	ChunkCount int    `json:"chunk_count"`
	TokenCount int    `json:"token_count"`
}

type DocumentResponse struct {
	DocumentID  string `json:"document_id"`
	Filename    string `json:"filename"`
	TotalChunks int    `json:"total_chunks"`
	AddedAt     int64  `json:"added_at"`
}

type ListDocumentsResponse struct {
	Documents  []DocumentResponse `json:"documents"`
	NextCursor string             `json:"next_cursor,omitempty"`
	HasMore    bool               `json:"has_more"`
}

type ChunkResponse struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
	Pages string `json:"pages,omitempty"`
}

type DocumentDetailResponse struct {
	DocumentResponse
	ChunkCount int             `json:"chunk_count"`
	Chunks     []ChunkResponse `json:"chunks"`
}

type DeleteResponse struct {
	Status     string `json:"status"`
	DocumentID string `json:"document_id"`
}

type SearchRequest struct {
	Query        string   `json:"query"`
	TopK         *int     `json:"top_k"`
	MinRelevance *float64 `json:"min_relevance"`
}

type SearchHitResponse struct {
	ChunkID    string  `json:"chunk_id"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
	Filename   string  `json:"filename"`
	ChunkIndex int     `json:"chunk_index"`
	DocumentID string  `json:"document_id"`
	Pages      string  `json:"pages"`
}

type SearchResponse struct {
	Query   string              `json:"query"`
	Results []SearchHitResponse `json:"results"`
	Count   int                 `json:"count"`
}

type StatsResponse struct {
	TotalChunks    int                `json:"total_chunks"`
	TotalDocuments int                `json:"total_documents"`
	CollectionName string             `json:"collection_name"`
	Documents      []DocumentResponse `json:"documents"`
}

func documentToResponse(d domain.Document) DocumentResponse {
	return DocumentResponse{
		DocumentID:  d.ID,
		Filename:    d.Filename,
		TotalChunks: d.TotalChunks,
		AddedAt:     d.AddedAt,
	}
}

func documentsToResponse(docs []domain.Document) []DocumentResponse {
	out := make([]DocumentResponse, len(docs))
	for i, d := range docs {
		out[i] = documentToResponse(d)
	}
	return out
}

func NewListDocumentsResponse(page *pagination.PageResult[domain.Document]) ListDocumentsResponse {
	return ListDocumentsResponse{
		Documents:  documentsToResponse(page.Items),
		NextCursor: page.Cursor,
		HasMore:    page.HasMore,
	}
}

func NewDocumentDetailResponse(doc *domain.DocumentDetail) DocumentDetailResponse {
	chunks := make([]ChunkResponse, len(doc.Chunks))
	for i, c := range doc.Chunks {
		chunks[i] = ChunkResponse{Index: c.Index, Text: c.Text, Pages: c.Pages}
	}
	return DocumentDetailResponse{
		DocumentResponse: documentToResponse(doc.Document),
		ChunkCount:       len(chunks),
		Chunks:           chunks,
	}
}

// NewSearchResponse renders hits in rank order. Results is never null.
func NewSearchResponse(query string, hits []domain.SearchHit) SearchResponse {
	results := make([]SearchHitResponse, len(hits))
	for i, hit := range hits {
		results[i] = SearchHitResponse{
			ChunkID:    hit.ChunkID,
			Text:       hit.Text,
			Score:      hit.Score,
			Filename:   hit.Filename,
			ChunkIndex: hit.ChunkIndex,
			DocumentID: hit.DocumentID,
			Pages:      hit.Pages,
		}
	}
	return SearchResponse{Query: query, Results: results, Count: len(results)}
}

func NewStatsResponse(stats *domain.Stats) StatsResponse {
	return StatsResponse{
		TotalChunks:    stats.TotalChunks,
		TotalDocuments: stats.TotalDocuments,
		CollectionName: stats.CollectionName,
		Documents:      documentsToResponse(stats.Documents),
	}
}

// Upload accepts a multipart "file" field, spools it to a temporary file and
// ingests it.
func (h *KnowledgeBaseHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			h.tooLarge(w)
			return
		}
		api.Error(w, http.StatusBadRequest, domain.ErrCodeInvalidInput, "multipart field \"file\" is required")
		return
	}
	defer file.Close()
	if header.Size > h.maxUploadBytes {
		h.tooLarge(w)
		return
	}

	filename := filepath.Base(header.Filename)
	contentType := header.Header.Get("Content-Type")
	if _, err := extractor.DetectFormat(filename, contentType); err != nil {
		api.HandleError(w, r, domain.NewDomainError(domain.ErrCodeUnsupportedFormat, fmt.Sprintf(
			"unsupported file type %q, allowed: %s", filepath.Ext(filename), strings.Join(extractor.SupportedExtensions(), ", "))))
		return
	}

	tmpPath, err := spool(file, filepath.Ext(filename))
	if err != nil {
		h.log.Error("failed to spool upload", "filename", filename, "error", err)
		api.HandleError(w, r, err)
		return
	}
	defer os.Remove(tmpPath)

	res, err := h.svc.Ingest(r.Context(), service.IngestInput{
		Path:        tmpPath,
		Filename:    filename,
		ContentType: contentType,
	})
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.JSON(w, http.StatusCreated, IngestResponse{
		DocumentID: res.DocumentID,
		Filename:   res.Filename,
		ChunkCount: res.ChunkCount,
		TokenCount: res.TokenCount,
	})
}

func (h *KnowledgeBaseHandler) tooLarge(w http.ResponseWriter) {
	api.Error(w, http.StatusRequestEntityTooLarge, api.ErrCodePayloadTooLarge,
		fmt.Sprintf("file too large (max %d MB)", h.maxUploadBytes>>20))
}

func spool(src io.Reader, ext string) (string, error) {
	tmp, err := os.CreateTemp("", "kbase-upload-*"+ext)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	return tmp.Name(), nil
}

func (h *KnowledgeBaseHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			api.Error(w, http.StatusBadRequest, domain.ErrCodeInvalidInput, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	page, err := h.svc.ListDocumentsPage(r.Context(), r.URL.Query().Get("cursor"), limit)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.JSON(w, http.StatusOK, NewListDocumentsResponse(page))
}

func (h *KnowledgeBaseHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	doc, err := h.svc.GetDocument(r.Context(), id)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.JSON(w, http.StatusOK, NewDocumentDetailResponse(doc))
}

func (h *KnowledgeBaseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.svc.DeleteDocument(r.Context(), id); err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.JSON(w, http.StatusOK, DeleteResponse{Status: "deleted", DocumentID: id})
}

// Original redirects to a short-lived download link for the archived file.
func (h *KnowledgeBaseHandler) Original(w http.ResponseWriter, r *http.Request) {
	url, err := h.svc.OriginalURL(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, r, err)
		return
	}
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

func (h *KnowledgeBaseHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, domain.ErrCodeInvalidInput, "invalid request body")
		return
	}

	in := service.SearchInput{
		Query:        req.Query,
		TopK:         DefaultSearchTopK,
		MinRelevance: DefaultSearchMinRelevance,
	}
	if req.TopK != nil {
		if *req.TopK <= 0 {
			api.Error(w, http.StatusBadRequest, domain.ErrCodeInvalidInput, "top_k must be positive")
			return
		}
		in.TopK = *req.TopK
	}
	if req.MinRelevance != nil {
		if *req.MinRelevance < 0 {
			api.Error(w, http.StatusBadRequest, domain.ErrCodeInvalidInput, "min_relevance must not be negative")
			return
		}
		in.MinRelevance = *req.MinRelevance
	}

	hits, err := h.svc.Search(r.Context(), in)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.JSON(w, http.StatusOK, NewSearchResponse(req.Query, hits))
}

func (h *KnowledgeBaseHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.JSON(w, http.StatusOK, NewStatsResponse(stats))
}
