package search

import (
	"context"
	"errors"
	"testing"

	"github.com/korrelate/ingestcore/internal/collab"
	"github.com/korrelate/ingestcore/internal/model"
)

type fakeChunkSource struct {
	chunks []model.Chunk
}

func (f *fakeChunkSource) AllCompletedChunks(ctx context.Context, documentIDFilter string) ([]model.Chunk, error) {
	if documentIDFilter == "" {
		return f.chunks, nil
	}
	var out []model.Chunk
	for _, c := range f.chunks {
		if c.DocumentID == documentIDFilter {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeVectorIndex struct {
	hits []collab.ScoredChunkID
	err  error
}

func (f *fakeVectorIndex) Upsert(ctx context.Context, chunk model.Chunk) error { return nil }
func (f *fakeVectorIndex) Delete(ctx context.Context, chunkID string) error    { return nil }
func (f *fakeVectorIndex) Search(ctx context.Context, queryVector []float32, topK int, documentIDFilter string) ([]collab.ScoredChunkID, error) {
	if f.err != nil {
		return nil, f.err
	}
	if topK < len(f.hits) {
		return f.hits[:topK], nil
	}
	return f.hits, nil
}

type fakeSearchEmbedder struct {
	dim int
}

func (f *fakeSearchEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dim)
	}
	return out, nil
}
func (f *fakeSearchEmbedder) Mode() collab.EmbedMode { return collab.ModeDense }
func (f *fakeSearchEmbedder) Dimension() int         { return f.dim }

func makeChunk(id, docID string, idx int, content string) model.Chunk {
	return model.Chunk{ID: id, DocumentID: docID, ChunkIndex: idx, Content: content}
}

func TestHybridSearch_DenseModeUsesOnlyVectorRanking(t *testing.T) {
	chunks := &fakeChunkSource{chunks: []model.Chunk{
		makeChunk("c1", "doc-1", 0, "alpha beta gamma"),
		makeChunk("c2", "doc-1", 1, "delta epsilon zeta"),
	}}
	vectors := &fakeVectorIndex{hits: []collab.ScoredChunkID{
		{ChunkID: "c2", Score: 0.9},
		{ChunkID: "c1", Score: 0.5},
	}}
	hs := NewHybridSearch(chunks, vectors, &fakeSearchEmbedder{dim: 4}, 60)

	results, err := hs.Search(context.Background(), Query{Text: "query", TopK: 5, Mode: "dense"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "c2" {
		t.Errorf("results[0].ID = %q, want %q (dense-ranked first)", results[0].ID, "c2")
	}
}

func TestHybridSearch_HybridModeFusesDenseAndSparse(t *testing.T) {
	chunks := &fakeChunkSource{chunks: []model.Chunk{
		makeChunk("c1", "doc-1", 0, "the quick brown fox jumps"),
		makeChunk("c2", "doc-1", 1, "a completely unrelated sentence"),
	}}
	vectors := &fakeVectorIndex{hits: []collab.ScoredChunkID{
		{ChunkID: "c1", Score: 0.8},
	}}
	hs := NewHybridSearch(chunks, vectors, &fakeSearchEmbedder{dim: 4}, 60)

	results, err := hs.Search(context.Background(), Query{Text: "quick fox", TopK: 5, Mode: "hybrid"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one result")
	}
	if results[0].ID != "c1" {
		t.Errorf("results[0].ID = %q, want %q (agrees on both signals)", results[0].ID, "c1")
	}
}

func TestHybridSearch_EmptyCorpusReturnsEmptyNotNilPanic(t *testing.T) {
	chunks := &fakeChunkSource{}
	vectors := &fakeVectorIndex{}
	hs := NewHybridSearch(chunks, vectors, &fakeSearchEmbedder{dim: 4}, 60)

	results, err := hs.Search(context.Background(), Query{Text: "anything", TopK: 5, Mode: "hybrid"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results for an empty corpus, got %d", len(results))
	}
}

func TestHybridSearch_DocumentIDFilterScopesCandidates(t *testing.T) {
	chunks := &fakeChunkSource{chunks: []model.Chunk{
		makeChunk("c1", "doc-1", 0, "shared term"),
		makeChunk("c2", "doc-2", 0, "shared term"),
	}}
	vectors := &fakeVectorIndex{hits: []collab.ScoredChunkID{
		{ChunkID: "c1", Score: 0.9},
	}}
	hs := NewHybridSearch(chunks, vectors, &fakeSearchEmbedder{dim: 4}, 60)

	results, err := hs.Search(context.Background(), Query{Text: "shared term", TopK: 5, Mode: "hybrid", DocumentID: "doc-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, r := range results {
		if r.DocumentID != "doc-1" {
			t.Errorf("got result from %q, want only doc-1", r.DocumentID)
		}
	}
}

func TestHybridSearch_EmbedderErrorPropagates(t *testing.T) {
	chunks := &fakeChunkSource{}
	vectors := &fakeVectorIndex{}
	hs := NewHybridSearch(chunks, vectors, &erroringEmbedder{}, 60)

	_, err := hs.Search(context.Background(), Query{Text: "anything", TopK: 5, Mode: "dense"})
	if err == nil {
		t.Fatal("expected embedder error to propagate")
	}
}

type erroringEmbedder struct{}

func (e *erroringEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("embedding provider down")
}
func (e *erroringEmbedder) Mode() collab.EmbedMode { return collab.ModeDense }
func (e *erroringEmbedder) Dimension() int         { return 4 }
