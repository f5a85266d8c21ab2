package service

import (
	"context"
	"sort"
	"strings"

	"github.com/tipo-sto/kbase/internal/cache"
	"github.com/tipo-sto/kbase/internal/domain"
	"github.com/tipo-sto/kbase/internal/telemetry"
)

// SearchInput is a semantic search request. Zero TopK and MinRelevance use
// the configured defaults.
type SearchInput struct {
	Query        string
	TopK         int
	MinRelevance float64
}

type candidate struct {
	record domain.ChunkRecord
	score  float64
}

// Search returns at most TopK chunks relevant to the query, best first.
// The query is searched as given and, when the lexicon knows any of its
// terms, once more with synonyms appended; the best score per chunk wins.
// If the query names a car brand and some hits come from documents whose
// filename mentions it, only those hits are kept.
func (kb *KnowledgeBase) Search(ctx context.Context, in SearchInput) ([]domain.SearchHit, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeBase.Search", telemetry.SpanAttributes{
		Operation: "search",
	})
	defer span.End()

	started := kb.now()

	query := strings.TrimSpace(in.Query)
	if query == "" {
		return nil, domain.NewDomainError(domain.ErrCodeInvalidInput, "query is required")
	}
	if in.MinRelevance > 1 {
		return nil, domain.NewDomainError(domain.ErrCodeInvalidInput, "min_relevance must not exceed 1")
	}
	topK := in.TopK
	if topK <= 0 {
		topK = kb.cfg.TopK
	}
	minRelevance := in.MinRelevance
	if minRelevance <= 0 {
		minRelevance = kb.cfg.MinRelevance
	}

	count, err := kb.store.Count(ctx)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeStorage, "failed to count chunks", err)
	}
	if count == 0 {
		return []domain.SearchHit{}, nil
	}

	queries := []string{query}
	if expanded := kb.lexicon.Expand(query); expanded != query {
		queries = append(queries, expanded)
	}

	vectors, err := kb.embedQueries(ctx, queries)
	if err != nil {
		return nil, err
	}

	fetch := min(topK*CandidateMultiplier, count)
	best := make(map[string]candidate)
	for _, vec := range vectors {
		found, err := kb.store.Query(ctx, vec, fetch)
		if err != nil {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeStorage, "failed to query vector store", err)
		}
		for _, c := range found {
			score := RoundScore(Score(c.Distance))
			if score < minRelevance || IsLowQuality(c.Record.Text) {
				continue
			}
			if prev, ok := best[c.Record.ID]; !ok || score > prev.score {
				best[c.Record.ID] = candidate{record: c.Record, score: score}
			}
		}
	}

	candidates := make([]candidate, 0, len(best))
	for _, c := range best {
		candidates = append(candidates, c)
	}

	brandScoped := false
	if terms := kb.lexicon.BrandTerms(query); len(terms) > 0 {
		if matched := filterByBrand(candidates, terms); len(matched) > 0 {
			kb.log.Debug("search scoped to brand documents", "terms", terms, "hits", len(matched))
			candidates = matched
			brandScoped = true
		}
	}

	sortCandidates(candidates)
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	hits := make([]domain.SearchHit, len(candidates))
	for i, c := range candidates {
		hits[i] = domain.SearchHit{
			ChunkID:    c.record.ID,
			Text:       c.record.Text,
			Score:      c.score,
			Filename:   c.record.Filename,
			ChunkIndex: c.record.ChunkIndex,
			DocumentID: c.record.DocumentID,
			Pages:      c.record.Pages,
		}
	}

	kb.logSearch(ctx, SearchLogEntry{
		Collection:  kb.cfg.CollectionName,
		Query:       query,
		Expanded:    len(queries) > 1,
		BrandScoped: brandScoped,
		HitCount:    len(hits),
		Latency:     kb.now().Sub(started),
	}, hits)

	return hits, nil
}

// embedQueries embeds every query in a single provider call, serving what
// it can from the embedding cache.
func (kb *KnowledgeBase) embedQueries(ctx context.Context, queries []string) ([][]float32, error) {
	vectors := make([][]float32, len(queries))
	var missing []int

	for i, q := range queries {
		if kb.cache == nil {
			missing = append(missing, i)
			continue
		}
		vec, ok, err := kb.cache.Get(ctx, cache.Key(kb.embedder.Model(), q))
		if err != nil {
			kb.log.Warn("embedding cache read failed", "error", err)
		}
		if ok {
			vectors[i] = vec
			continue
		}
		missing = append(missing, i)
	}

	if len(missing) == 0 {
		return vectors, nil
	}

	texts := make([]string, len(missing))
	for j, i := range missing {
		texts[j] = queries[i]
	}
	embedded, err := kb.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeEmbeddingProvider, "failed to embed query", err)
	}
	if len(embedded) != len(texts) {
		return nil, domain.NewDomainError(domain.ErrCodeEmbeddingProvider, "embedding count does not match query count")
	}

	for j, i := range missing {
		vectors[i] = embedded[j]
		if kb.cache == nil {
			continue
		}
		if err := kb.cache.Set(ctx, cache.Key(kb.embedder.Model(), texts[j]), embedded[j]); err != nil {
			kb.log.Warn("embedding cache write failed", "error", err)
		}
	}
	return vectors, nil
}

func filterByBrand(candidates []candidate, terms []string) []candidate {
	var matched []candidate
	for _, c := range candidates {
		name := strings.ToLower(c.record.Filename)
		for _, term := range terms {
			if strings.Contains(name, term) {
				matched = append(matched, c)
				break
			}
		}
	}
	return matched
}

func sortCandidates(candidates []candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.record.Filename != b.record.Filename {
			return a.record.Filename < b.record.Filename
		}
		if a.record.ChunkIndex != b.record.ChunkIndex {
			return a.record.ChunkIndex < b.record.ChunkIndex
		}
		return a.record.ID < b.record.ID
	})
}

func (kb *KnowledgeBase) logSearch(ctx context.Context, entry SearchLogEntry, hits []domain.SearchHit) {
	if kb.searchLog == nil {
		return
	}
	if len(hits) > 0 {
		top := hits[0].Score
		entry.TopScore = &top
	}
	if err := kb.searchLog.Log(ctx, entry); err != nil {
		kb.log.Warn("failed to write search log", "error", err)
	}
}
