package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tipo-sto/kbase/internal/cache"
	"github.com/tipo-sto/kbase/internal/domain"
)

// plainQuery matches no expansion stem and no brand keyword.
const plainQuery = "oil change interval"

var queryVec = []float32{1, 0}

// at returns a unit vector whose cosine with queryVec is cos, so its score
// against queryVec is (1+cos)/2.
func at(cos float64) []float32 {
	return []float32{float32(cos), float32(math.Sqrt(1 - cos*cos))}
}

func scores(hits []domain.SearchHit) []float64 {
	out := make([]float64, len(hits))
	for i, h := range hits {
		out[i] = h.Score
	}
	return out
}

func TestSearch_ThresholdAndOrder(t *testing.T) {
	f := newFixture(t, Config{}, nil)
	f.emb.fallback = queryVec
	seed(t, f.store, "doc1", "manual.pdf", at(0.2), at(1), at(-0.6), at(0.8))

	hits, err := f.kb.Search(context.Background(), SearchInput{Query: plainQuery, TopK: 10, MinRelevance: 0.5})
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.InDeltaSlice(t, []float64{1, 0.9, 0.6}, scores(hits), 1e-4)
	assert.Equal(t, "doc1_1", hits[0].ChunkID)
	assert.Equal(t, "doc1", hits[0].DocumentID)
	assert.Equal(t, "manual.pdf", hits[0].Filename)
	assert.Equal(t, 1, hits[0].ChunkIndex)
	for _, h := range hits {
		assert.GreaterOrEqual(t, h.Score, 0.5)
		assert.Equal(t, RoundScore(h.Score), h.Score)
	}
}

func TestSearch_NothingAboveThreshold(t *testing.T) {
	f := newFixture(t, Config{}, nil)
	f.emb.fallback = queryVec
	seed(t, f.store, "doc1", "manual.pdf", at(0), at(-0.5), []float32{-1, 0})

	hits, err := f.kb.Search(context.Background(), SearchInput{Query: plainQuery, TopK: 3, MinRelevance: 0.9})
	require.NoError(t, err)
	assert.NotNil(t, hits)
	assert.Empty(t, hits)
}

func TestSearch_ThresholdAppliesToRoundedScore(t *testing.T) {
	f := newFixture(t, Config{}, nil)
	f.emb.fallback = queryVec
	// Raw score is about 0.90004, which rounds down to 0.9.
	seed(t, f.store, "doc1", "manual.pdf", at(1), at(0.80008))

	minRel := 0.90003
	hits, err := f.kb.Search(context.Background(), SearchInput{Query: plainQuery, TopK: 10, MinRelevance: minRel})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "doc1_0", hits[0].ChunkID)
	for _, h := range hits {
		assert.GreaterOrEqual(t, h.Score, minRel)
	}
}

func TestSearch_ResultBound(t *testing.T) {
	f := newFixture(t, Config{}, nil)
	f.emb.fallback = queryVec
	vecs := make([][]float32, 10)
	for i := range vecs {
		vecs[i] = at(1 - float64(i)/100)
	}
	seed(t, f.store, "doc1", "manual.pdf", vecs...)

	hits, err := f.kb.Search(context.Background(), SearchInput{Query: plainQuery, TopK: 3})
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, []string{"doc1_0", "doc1_1", "doc1_2"}, []string{hits[0].ChunkID, hits[1].ChunkID, hits[2].ChunkID})

	hits, err = f.kb.Search(context.Background(), SearchInput{Query: plainQuery})
	require.NoError(t, err)
	assert.Len(t, hits, DefaultTopK)
}

func TestSearch_FetchSize(t *testing.T) {
	tests := []struct {
		name  string
		count int
		topK  int
		want  int
	}{
		{"capped by top_k", 1000, 3, 60},
		{"capped by count", 30, 3, 30},
		{"default top_k", 1000, 0, DefaultTopK * CandidateMultiplier},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(MockVectorStore)
			store.On("Count", mock.Anything).Return(tt.count, nil)
			store.On("Query", mock.Anything, mock.Anything, tt.want).Return([]domain.Candidate{}, nil).Once()

			f := newFixture(t, Config{}, store)
			_, err := f.kb.Search(context.Background(), SearchInput{Query: plainQuery, TopK: tt.topK})
			require.NoError(t, err)
			store.AssertExpectations(t)
		})
	}
}

func TestSearch_DropsLowQualityChunks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{}, nil)
	f.emb.fallback = queryVec

	toc := strings.Repeat("Глава 1. Двигатель . . . . . . . 12\n", 6) + strings.Repeat("Описание раздела\n", 4)
	recs := []domain.ChunkRecord{
		{ID: "doc1_0", DocumentID: "doc1", Filename: "m.pdf", ChunkIndex: 0, TotalChunks: 3, Text: "Оглавление", Embedding: queryVec},
		{ID: "doc1_1", DocumentID: "doc1", Filename: "m.pdf", ChunkIndex: 1, TotalChunks: 3, Text: toc, Embedding: queryVec},
		{ID: "doc1_2", DocumentID: "doc1", Filename: "m.pdf", ChunkIndex: 2, TotalChunks: 3, Text: longText("doc1", 2), Embedding: at(0.9)},
	}
	require.NoError(t, f.store.Upsert(ctx, recs))

	hits, err := f.kb.Search(ctx, SearchInput{Query: plainQuery})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "doc1_2", hits[0].ChunkID)
}

func TestSearch_BrandScoping(t *testing.T) {
	f := newFixture(t, Config{}, nil)
	f.emb.fallback = queryVec
	seed(t, f.store, "getz", "Hyundai_Getz_2008.pdf", at(0.6))
	seed(t, f.store, "rio", "kia_rio.pdf", at(1))

	t.Run("restricted to matching documents", func(t *testing.T) {
		hits, err := f.kb.Search(context.Background(), SearchInput{Query: "Hyundai " + plainQuery})
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "Hyundai_Getz_2008.pdf", hits[0].Filename)
	})

	t.Run("falls back when no document matches", func(t *testing.T) {
		hits, err := f.kb.Search(context.Background(), SearchInput{Query: "Toyota " + plainQuery})
		require.NoError(t, err)
		require.Len(t, hits, 2)
		assert.Equal(t, "kia_rio.pdf", hits[0].Filename)
	})
}

func TestSearch_ExpandedQueryMergesBestScore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{}, nil)

	query := "замена фильтр"
	expanded := f.kb.lexicon.Expand(query)
	require.NotEqual(t, query, expanded)
	f.emb.fixed = map[string][]float32{
		query:    {1, 0},
		expanded: {0, 1},
	}
	seed(t, f.store, "doc1", "manual.pdf", []float32{1, 0}, []float32{0, 1})

	hits, err := f.kb.Search(ctx, SearchInput{Query: query, MinRelevance: 0.9})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.InDeltaSlice(t, []float64{1, 1}, scores(hits), 1e-9)

	calls := f.emb.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{query, expanded}, calls[0])
}

func TestSearch_CachesQueryEmbeddings(t *testing.T) {
	f := newFixture(t, Config{}, nil, WithEmbeddingCache(cache.NewMemory(16, time.Hour)))
	f.emb.fallback = queryVec
	seed(t, f.store, "doc1", "manual.pdf", at(1))

	for i := 0; i < 3; i++ {
		hits, err := f.kb.Search(context.Background(), SearchInput{Query: plainQuery})
		require.NoError(t, err)
		require.Len(t, hits, 1)
	}
	assert.Len(t, f.emb.Calls(), 1)
}

func TestSearch_TiesAreDeterministic(t *testing.T) {
	f := newFixture(t, Config{}, nil)
	f.emb.fallback = queryVec
	seed(t, f.store, "doc2", "b.pdf", at(1), at(1))
	seed(t, f.store, "doc1", "a.pdf", at(1))

	hits, err := f.kb.Search(context.Background(), SearchInput{Query: plainQuery})
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, []string{"doc1_0", "doc2_0", "doc2_1"}, []string{hits[0].ChunkID, hits[1].ChunkID, hits[2].ChunkID})
}

func TestSearch_EmptyStore(t *testing.T) {
	f := newFixture(t, Config{}, nil)

	hits, err := f.kb.Search(context.Background(), SearchInput{Query: plainQuery})
	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.Empty(t, f.emb.Calls())
}

func TestSearch_InvalidInput(t *testing.T) {
	f := newFixture(t, Config{}, nil)

	_, err := f.kb.Search(context.Background(), SearchInput{Query: "   "})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.kb.Search(context.Background(), SearchInput{Query: plainQuery, MinRelevance: 1.01})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSearch_ProviderAndStoreErrors(t *testing.T) {
	t.Run("embedding", func(t *testing.T) {
		f := newFixture(t, Config{}, nil)
		f.emb.failOn = 1
		seed(t, f.store, "doc1", "manual.pdf", at(1))

		_, err := f.kb.Search(context.Background(), SearchInput{Query: plainQuery})
		assert.ErrorIs(t, err, domain.ErrEmbeddingProvider)
	})

	t.Run("count", func(t *testing.T) {
		store := new(MockVectorStore)
		store.On("Count", mock.Anything).Return(0, errors.New("connection reset"))

		f := newFixture(t, Config{}, store)
		_, err := f.kb.Search(context.Background(), SearchInput{Query: plainQuery})
		assert.ErrorIs(t, err, domain.ErrStorage)
	})
}

func TestSearch_WritesSearchLog(t *testing.T) {
	logs := &fakeSearchLogger{err: errors.New("log table missing")}
	f := newFixture(t, Config{}, nil, WithSearchLogger(logs))
	f.emb.fallback = queryVec
	seed(t, f.store, "doc1", "manual.pdf", at(0.8))

	hits, err := f.kb.Search(context.Background(), SearchInput{Query: "  " + plainQuery + " "})
	require.NoError(t, err)
	require.Len(t, hits, 1)

	require.Len(t, logs.entries, 1)
	e := logs.entries[0]
	assert.Equal(t, DefaultCollectionName, e.Collection)
	assert.Equal(t, plainQuery, e.Query)
	assert.False(t, e.Expanded)
	assert.False(t, e.BrandScoped)
	assert.Equal(t, 1, e.HitCount)
	require.NotNil(t, e.TopScore)
	assert.Equal(t, hits[0].Score, *e.TopScore)
}
