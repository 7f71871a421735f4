package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"docuchat/internal/ai"
	"docuchat/internal/model"
)

const (
	defaultTopK   = 4
	defaultFetchK = 30
)

// ChunkSource yields candidate chunks already restricted to the given
// confidentiality levels. The restriction happens at the source so no
// out-of-policy chunk is ever ranked.
type ChunkSource interface {
	ListByLevels(levels []string) ([]model.DocumentChunk, error)
}

// Params are the external tuning knobs of a search; they are
// configuration, not part of the access-control contract.
type Params struct {
	TopK           int
	FetchK         int
	ScoreThreshold float32
}

// Result is a ranked chunk.
type Result struct {
	Chunk model.DocumentChunk `json:"chunk"`
	Score float32             `json:"score"`
}

// Searcher embeds a query and returns the top-k most similar chunks among
// the candidates the filter admits.
type Searcher struct {
	chunks ChunkSource
	llm    *ai.OpenAICompatibleClient
	embCfg ai.EmbeddingConfig
	params Params
}

func NewSearcher(chunks ChunkSource, llm *ai.OpenAICompatibleClient, embCfg ai.EmbeddingConfig, params Params) *Searcher {
	if params.TopK <= 0 {
		params.TopK = defaultTopK
	}
	if params.FetchK <= 0 {
		params.FetchK = defaultFetchK
	}
	return &Searcher{chunks: chunks, llm: llm, embCfg: embCfg, params: params}
}

// Search returns up to TopK chunks relevant to the query, drawn from a
// candidate pool of at most FetchK, all within the filter's levels.
func (s *Searcher) Search(ctx context.Context, query string, filter Filter) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" || filter.Empty() {
		return nil, nil
	}

	candidates, err := s.chunks.ListByLevels(filter.LevelStrings())
	if err != nil {
		return nil, fmt.Errorf("load candidate chunks failed: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	queryEmb, err := s.llm.Embed(ctx, s.embCfg, query)
	if err != nil {
		return nil, fmt.Errorf("embed query failed: %w", err)
	}

	scored := make([]Result, 0, len(candidates))
	for i := range candidates {
		score := cosineSimilarity(queryEmb, candidates[i].EmbeddingVector())
		if score < s.params.ScoreThreshold {
			continue
		}
		scored = append(scored, Result{Chunk: candidates[i], Score: score})
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	if len(scored) > s.params.FetchK {
		scored = scored[:s.params.FetchK]
	}
	if len(scored) > s.params.TopK {
		scored = scored[:s.params.TopK]
	}
	return scored, nil
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float32
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA <= 0 || normB <= 0 {
		return 0
	}
	return dot / float32(math.Sqrt(float64(normA))*math.Sqrt(float64(normB)))
}
