// Package search implements HybridSearch: dense + sparse candidate
// retrieval, fused by Reciprocal Rank Fusion.
package search

import "sort"

// RankedChunk is one fusion candidate, identified by (documentId, chunkIndex)
// for deterministic tie-breaking.
type RankedChunk struct {
	ChunkID      string
	DocumentID   string
	ChunkIndex   int
	DenseRank    int // 1-based, 0 = not ranked by this retriever
	SparseRank   int // 1-based, 0 = not ranked by this retriever
	VectorScore  float64
	KeywordScore float64
}

// Fused is one RRF result, carrying both sub-scores for the caller to surface.
type Fused struct {
	RankedChunk
	Score float64
}

const defaultK = 60

// RRF fuses dense and sparse rankings for candidates, computing
// score(c) = alpha*1/(k+rDense) + (1-alpha)*1/(k+rSparse) per chunk, missing
// rank contributing 0. Ties break by dense rank, then (documentId, chunkIndex).
func RRF(candidates []RankedChunk, alpha float64, k int) []Fused {
	if k <= 0 {
		k = defaultK
	}
	out := make([]Fused, len(candidates))
	for i, c := range candidates {
		var denseTerm, sparseTerm float64
		if c.DenseRank > 0 {
			denseTerm = alpha * (1.0 / float64(k+c.DenseRank))
		}
		if c.SparseRank > 0 {
			sparseTerm = (1 - alpha) * (1.0 / float64(k+c.SparseRank))
		}
		out[i] = Fused{RankedChunk: c, Score: denseTerm + sparseTerm}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		di, dj := rankOrMax(out[i].DenseRank), rankOrMax(out[j].DenseRank)
		if di != dj {
			return di < dj
		}
		if out[i].DocumentID != out[j].DocumentID {
			return out[i].DocumentID < out[j].DocumentID
		}
		return out[i].ChunkIndex < out[j].ChunkIndex
	})
	return out
}

func rankOrMax(r int) int {
	if r <= 0 {
		return int(^uint(0) >> 1)
	}
	return r
}
