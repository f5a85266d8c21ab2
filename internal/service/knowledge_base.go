package service

import (
	"context"
	"time"

	"github.com/tipo-sto/kbase/internal/domain"
	"github.com/tipo-sto/kbase/internal/logger"
)

const (
	DefaultCollectionName   = "knowledge_base"
	DefaultEmbedBatchSize   = 50
	DefaultEmbedConcurrency = 1
	DefaultTopK             = 5
	DefaultMinRelevance     = 0.3

	// CandidateMultiplier widens the nearest-neighbour fetch so that the
	// quality and brand filters still leave enough results.
	CandidateMultiplier = 20
)

// Embedder turns texts into vectors, one per input in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// VectorStore persists chunk records and answers nearest-neighbour queries.
type VectorStore interface {
	// Upsert replaces every record of the records' document as one unit.
	Upsert(ctx context.Context, records []domain.ChunkRecord) error
	Query(ctx context.Context, vector []float32, n int) ([]domain.Candidate, error)
	Get(ctx context.Context, filter domain.ChunkFilter) ([]domain.ChunkRecord, error)
	Delete(ctx context.Context, ids []string) error
	Count(ctx context.Context) (int, error)
}

// Extractor reads the raw text of an uploaded file.
type Extractor interface {
	Extract(ctx context.Context, path, contentType string) (string, error)
}

// Chunker splits cleaned text into token-bounded chunks.
type Chunker interface {
	Chunk(text string) []string
	CountTokens(text string) int
}

// Lexicon supplies query expansion and brand scoping.
type Lexicon interface {
	Expand(query string) string
	BrandTerms(query string) []string
}

// EmbeddingCache memoizes query embeddings.
type EmbeddingCache interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Set(ctx context.Context, key string, vec []float32) error
}

// Archiver keeps a copy of every ingested original.
type Archiver interface {
	Archive(ctx context.Context, key, path, contentType string) error
	Remove(ctx context.Context, key string) error
	DownloadURL(ctx context.Context, key string) (string, error)
}

// Config tunes the knowledge base. Zero values fall back to the defaults.
type Config struct {
	CollectionName   string
	EmbedBatchSize   int
	EmbedConcurrency int
	TopK             int
	MinRelevance     float64
}

func (c Config) withDefaults() Config {
	if c.CollectionName == "" {
		c.CollectionName = DefaultCollectionName
	}
	if c.EmbedBatchSize <= 0 {
		c.EmbedBatchSize = DefaultEmbedBatchSize
	}
	if c.EmbedConcurrency <= 0 {
		c.EmbedConcurrency = DefaultEmbedConcurrency
	}
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}
	if c.MinRelevance <= 0 {
		c.MinRelevance = DefaultMinRelevance
	}
	return c
}

// KnowledgeBase ingests documents and answers semantic searches over them.
type KnowledgeBase struct {
	cfg       Config
	extractor Extractor
	chunker   Chunker
	embedder  Embedder
	store     VectorStore
	lexicon   Lexicon
	log       *logger.Logger

	cache     EmbeddingCache
	archiver  Archiver
	searchLog SearchLogger
	now       func() time.Time
}

// Option configures optional collaborators.
type Option func(*KnowledgeBase)

func WithEmbeddingCache(c EmbeddingCache) Option {
	return func(kb *KnowledgeBase) { kb.cache = c }
}

func WithArchiver(a Archiver) Option {
	return func(kb *KnowledgeBase) { kb.archiver = a }
}

func WithSearchLogger(l SearchLogger) Option {
	return func(kb *KnowledgeBase) { kb.searchLog = l }
}

// WithClock overrides the time source used for added_at and latency.
func WithClock(now func() time.Time) Option {
	return func(kb *KnowledgeBase) { kb.now = now }
}

// NewKnowledgeBase wires the service. A nil logger discards output.
func NewKnowledgeBase(
	cfg Config,
	extractor Extractor,
	chunker Chunker,
	embedder Embedder,
	store VectorStore,
	lexicon Lexicon,
	log *logger.Logger,
	opts ...Option,
) *KnowledgeBase {
	if log == nil {
		log = logger.Nop()
	}
	kb := &KnowledgeBase{
		cfg:       cfg.withDefaults(),
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		store:     store,
		lexicon:   lexicon,
		log:       log.With("component", "knowledge_base"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(kb)
	}
	return kb
}

// Config returns the effective configuration.
func (kb *KnowledgeBase) Config() Config {
	return kb.cfg
}
