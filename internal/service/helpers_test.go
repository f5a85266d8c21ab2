package service

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tipo-sto/kbase/internal/chunker"
	"github.com/tipo-sto/kbase/internal/domain"
	"github.com/tipo-sto/kbase/internal/lexicon"
	"github.com/tipo-sto/kbase/internal/testutil"
	"github.com/tipo-sto/kbase/internal/vectorstore"
)

var testNow = time.Date(2026, 5, 12, 9, 30, 0, 0, time.UTC)

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) Extract(_ context.Context, _, _ string) (string, error) {
	return f.text, f.err
}

// fakeEmbedder returns fixed vectors for known texts and a bag-of-words
// hash vector otherwise.
type fakeEmbedder struct {
	mu       sync.Mutex
	fixed    map[string][]float32
	fallback []float32
	failOn   int // 1-based call number that fails, 0 never
	calls    [][]string
}

const hashDims = 16

func (f *fakeEmbedder) Model() string { return "fake-embedding" }

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), texts...))
	call := len(f.calls)
	f.mu.Unlock()

	if f.failOn > 0 && call == f.failOn {
		return nil, errors.New("provider unavailable")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vectorFor(t)
	}
	return out, nil
}

func (f *fakeEmbedder) vectorFor(text string) []float32 {
	if v, ok := f.fixed[text]; ok {
		return v
	}
	if f.fallback != nil {
		return f.fallback
	}
	return hashVector(text)
}

func (f *fakeEmbedder) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func hashVector(text string) []float32 {
	v := make([]float32, hashDims+1)
	v[hashDims] = 1
	for _, w := range strings.Fields(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%hashDims]++
	}
	return v
}

type fakeArchiver struct {
	mu       sync.Mutex
	archived map[string]string
	removed  []string
	err      error
}

func newFakeArchiver() *fakeArchiver {
	return &fakeArchiver{archived: make(map[string]string)}
}

func (a *fakeArchiver) Archive(_ context.Context, key, path, _ string) error {
	if a.err != nil {
		return a.err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.archived[key] = path
	return nil
}

func (a *fakeArchiver) Remove(_ context.Context, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.removed = append(a.removed, key)
	delete(a.archived, key)
	return nil
}

func (a *fakeArchiver) DownloadURL(_ context.Context, key string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.archived[key]; !ok {
		return "", errors.New("no such key")
	}
	return "https://archive.local/" + key, nil
}

type fakeSearchLogger struct {
	entries []SearchLogEntry
	err     error
}

func (l *fakeSearchLogger) Log(_ context.Context, e SearchLogEntry) error {
	l.entries = append(l.entries, e)
	return l.err
}

// MockVectorStore is a mock implementation of VectorStore
type MockVectorStore struct {
	mock.Mock
}

func (m *MockVectorStore) Upsert(ctx context.Context, records []domain.ChunkRecord) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

func (m *MockVectorStore) Query(ctx context.Context, vector []float32, n int) ([]domain.Candidate, error) {
	args := m.Called(ctx, vector, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Candidate), args.Error(1)
}

func (m *MockVectorStore) Get(ctx context.Context, filter domain.ChunkFilter) ([]domain.ChunkRecord, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ChunkRecord), args.Error(1)
}

func (m *MockVectorStore) Delete(ctx context.Context, ids []string) error {
	args := m.Called(ctx, ids)
	return args.Error(0)
}

func (m *MockVectorStore) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func newSQLiteStore(t *testing.T) *vectorstore.SQLite {
	t.Helper()
	s, err := vectorstore.OpenSQLite(":memory:", DefaultCollectionName)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newWordChunker(t *testing.T, size, overlap int) *chunker.Chunker {
	t.Helper()
	c, err := chunker.New(testutil.NewWordTokenizer(), size, overlap)
	require.NoError(t, err)
	return c
}

type fixture struct {
	kb       *KnowledgeBase
	ext      *fakeExtractor
	emb      *fakeEmbedder
	store    VectorStore
	archiver *fakeArchiver
}

func newFixture(t *testing.T, cfg Config, store VectorStore, opts ...Option) *fixture {
	t.Helper()
	if store == nil {
		store = newSQLiteStore(t)
	}
	f := &fixture{
		ext:      &fakeExtractor{},
		emb:      &fakeEmbedder{},
		store:    store,
		archiver: newFakeArchiver(),
	}
	opts = append([]Option{WithClock(func() time.Time { return testNow }), WithArchiver(f.archiver)}, opts...)
	f.kb = NewKnowledgeBase(cfg, f.ext, newWordChunker(t, 800, 100), f.emb, store, lexicon.Default(), nil, opts...)
	return f
}

// seed stores one record per vector under documentID with text long enough
// to pass the quality filter.
func seed(t *testing.T, store VectorStore, documentID, filename string, vecs ...[]float32) []domain.ChunkRecord {
	t.Helper()
	recs := make([]domain.ChunkRecord, len(vecs))
	for i, v := range vecs {
		recs[i] = domain.ChunkRecord{
			ID:          domain.ChunkID(documentID, i),
			DocumentID:  documentID,
			Filename:    filename,
			ChunkIndex:  i,
			TotalChunks: len(vecs),
			Pages:       "",
			AddedAt:     testNow.Unix(),
			Text:        longText(documentID, i),
			Embedding:   v,
		}
	}
	require.NoError(t, store.Upsert(context.Background(), recs))
	return recs
}

func longText(documentID string, i int) string {
	return strings.Repeat("Проверка уровня моторного масла по щупу. ", 4) + documentID + " " + string(rune('a'+i))
}
