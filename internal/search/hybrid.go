package search

import (
	"context"

	"github.com/korrelate/ingestcore/internal/collab"
	"github.com/korrelate/ingestcore/internal/model"
)

// ChunkSource supplies the COMPLETED-document candidate pool HybridSearch
// scopes every query to.
type ChunkSource interface {
	AllCompletedChunks(ctx context.Context, documentIDFilter string) ([]model.Chunk, error)
}

// Query is HybridSearch's input contract.
type Query struct {
	Text         string
	TopK         int
	Mode         string // "dense" or "hybrid"
	Alpha        float64
	DocumentID   string // optional filter
}

// Result is one ranked chunk returned to the caller.
type Result struct {
	ID           string
	DocumentID   string
	Content      string
	Score        float64
	VectorScore  float64
	KeywordScore float64
	Heading      string
	Breadcrumbs  []string
}

// HybridSearch orchestrates dense+sparse candidate retrieval and RRF fusion.
type HybridSearch struct {
	chunks   ChunkSource
	vectors  collab.VectorIndex
	embedder collab.Embedder
	rrfK     int
}

func NewHybridSearch(chunks ChunkSource, vectors collab.VectorIndex, embedder collab.Embedder, rrfK int) *HybridSearch {
	return &HybridSearch{chunks: chunks, vectors: vectors, embedder: embedder, rrfK: rrfK}
}

// Search runs the full dense(+sparse) retrieval and fusion pipeline.
// mode=dense never invokes the sparse retriever, per spec; an empty corpus
// returns an empty (not nil-panicking) result slice.
func (h *HybridSearch) Search(ctx context.Context, q Query) ([]Result, error) {
	topK := q.TopK
	if topK <= 0 {
		topK = 5
	}
	limit := 2 * topK
	if limit < 20 {
		limit = 20
	}

	vectors, err := h.embedder.Embed(ctx, []string{q.Text})
	if err != nil {
		return nil, err
	}
	var queryVec []float32
	if len(vectors) > 0 {
		queryVec = vectors[0]
	}

	denseHits, err := h.vectors.Search(ctx, queryVec, limit, q.DocumentID)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*RankedChunk, len(denseHits))
	for i, hit := range denseHits {
		byID[hit.ChunkID] = &RankedChunk{ChunkID: hit.ChunkID, DenseRank: i + 1, VectorScore: hit.Score}
	}

	alpha := q.Alpha
	if alpha == 0 {
		alpha = 0.5
	}

	if q.Mode == "dense" {
		chunks, err := h.chunks.AllCompletedChunks(ctx, q.DocumentID)
		if err != nil {
			return nil, err
		}
		byChunkID := indexChunks(chunks)
		results := make([]Result, 0, len(denseHits))
		for _, hit := range denseHits {
			c, ok := byChunkID[hit.ChunkID]
			if !ok {
				continue
			}
			results = append(results, toResult(c, hit.Score, 0))
			if len(results) >= topK {
				break
			}
		}
		return results, nil
	}

	allChunks, err := h.chunks.AllCompletedChunks(ctx, q.DocumentID)
	if err != nil {
		return nil, err
	}
	if len(allChunks) == 0 {
		return []Result{}, nil
	}

	bm25 := BuildBM25Index(allChunks)
	sparseHits := bm25.Search(q.Text, limit)
	for _, hit := range sparseHits {
		if existing, ok := byID[hit.ChunkID]; ok {
			existing.SparseRank = hit.SparseRank
			existing.KeywordScore = hit.KeywordScore
		} else {
			h := hit
			byID[hit.ChunkID] = &h
		}
	}

	candidates := make([]RankedChunk, 0, len(byID))
	for _, c := range byID {
		candidates = append(candidates, *c)
	}

	fused := RRF(candidates, alpha, h.rrfK)
	byChunkID := indexChunks(allChunks)

	results := make([]Result, 0, topK)
	for _, f := range fused {
		c, ok := byChunkID[f.ChunkID]
		if !ok {
			continue
		}
		results = append(results, toResultWithScores(c, f))
		if len(results) >= topK {
			break
		}
	}
	return results, nil
}

func indexChunks(chunks []model.Chunk) map[string]model.Chunk {
	m := make(map[string]model.Chunk, len(chunks))
	for _, c := range chunks {
		m[c.ID] = c
	}
	return m
}

func toResult(c model.Chunk, vectorScore, keywordScore float64) Result {
	return Result{
		ID:           c.ID,
		DocumentID:   c.DocumentID,
		Content:      c.Content,
		Score:        vectorScore,
		VectorScore:  vectorScore,
		KeywordScore: keywordScore,
		Heading:      c.Heading,
		Breadcrumbs:  c.Breadcrumbs,
	}
}

func toResultWithScores(c model.Chunk, f Fused) Result {
	return Result{
		ID:           c.ID,
		DocumentID:   c.DocumentID,
		Content:      c.Content,
		Score:        f.Score,
		VectorScore:  f.VectorScore,
		KeywordScore: f.KeywordScore,
		Heading:      c.Heading,
		Breadcrumbs:  c.Breadcrumbs,
	}
}
