package processing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/korrelate/ingestcore/internal/chunking"
	"github.com/korrelate/ingestcore/internal/collab"
	"github.com/korrelate/ingestcore/internal/model"

	"github.com/google/uuid"
)

// FastLaneResult mirrors FastLaneProcessor's contract output.
type FastLaneResult struct {
	Success      bool
	ChunksCreated int
	ErrorCode    string
}

// ChunkStore is the subset of MetadataStore FastLaneProcessor/CallbackReconciler need.
type ChunkStore interface {
	ReplaceChunks(ctx context.Context, documentID string, chunks []model.Chunk) error
}

// FastLaneProcessor handles text-like inputs (json, txt, md) entirely in-process.
type FastLaneProcessor struct {
	docs     DocStore
	chunks   ChunkStore
	sm       *StateMachine
	embedder collab.Embedder
}

func NewFastLaneProcessor(docs DocStore, chunkStore ChunkStore, sm *StateMachine, embedder collab.Embedder) *FastLaneProcessor {
	return &FastLaneProcessor{docs: docs, chunks: chunkStore, sm: sm, embedder: embedder}
}

// Process runs the full fast-lane sequence. It is idempotent per call: a
// second call against an already-PROCESSING document is a no-op transition.
func (p *FastLaneProcessor) Process(ctx context.Context, documentID string, content []byte, format model.Format, profile model.ProcessingProfile) FastLaneResult {
	doc, err := p.docs.GetDocument(ctx, documentID)
	if err != nil {
		return FastLaneResult{Success: false, ErrorCode: "NOT_FOUND"}
	}

	if doc.Status == model.StatusPending {
		if err := p.sm.Transition(ctx, doc, model.StatusProcessing, TransitionOpts{Reason: "fast-lane-pickup"}); err != nil {
			return p.fail(ctx, doc, fmt.Sprintf("PROCESSING_ERROR:%v", err))
		}
	}

	text := string(content)
	if format == model.FormatJSON {
		var parsed interface{}
		if err := json.Unmarshal(content, &parsed); err != nil {
			return p.fail(ctx, doc, model.ErrInvalidJSON)
		}
		pretty, err := json.MarshalIndent(parsed, "", "  ")
		if err != nil {
			return p.fail(ctx, doc, model.ErrInvalidJSON)
		}
		text = string(pretty)
	}

	check := chunking.CheckText(text, profile.Quality)
	if !check.Passed {
		return p.fail(ctx, doc, check.Reason)
	}

	drafts := chunking.Chunk(text, profile.Chunking)
	if len(drafts) == 0 {
		return p.fail(ctx, doc, model.ErrNoContent)
	}

	texts := make([]string, len(drafts))
	for i, d := range drafts {
		texts[i] = d.Content
	}
	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return p.fail(ctx, doc, fmt.Sprintf("PROCESSING_ERROR:%v", err))
	}

	var sparseVectors [][]model.SparseTerm
	if se, ok := p.embedder.(collab.SparseEmbedder); ok {
		sparseVectors, err = se.EmbedSparse(ctx, texts)
		if err != nil {
			return p.fail(ctx, doc, fmt.Sprintf("PROCESSING_ERROR:%v", err))
		}
	}

	chunks := make([]model.Chunk, len(drafts))
	now := time.Now().UTC()
	for i, d := range drafts {
		verdict := chunking.ScoreChunk(d, profile.Quality)
		var vec []float32
		if i < len(vectors) {
			vec = vectors[i]
		}
		var sparse []model.SparseTerm
		if i < len(sparseVectors) {
			sparse = sparseVectors[i]
		}
		chunks[i] = model.Chunk{
			ID:              uuid.NewString(),
			DocumentID:      documentID,
			ChunkIndex:      d.ChunkIndex,
			Content:         d.Content,
			CharStart:       d.CharStart,
			CharEnd:         d.CharEnd,
			Heading:         d.Heading,
			Breadcrumbs:     d.Breadcrumbs,
			QualityScore:    verdict.QualityScore,
			QualityFlags:    verdict.Flags,
			ChunkType:       d.ChunkType,
			TokenCount:      d.TokenCount,
			Embedding:       vec,
			SparseEmbedding: sparse,
			CreatedAt:       now,
		}
	}

	if err := p.chunks.ReplaceChunks(ctx, documentID, chunks); err != nil {
		return p.fail(ctx, doc, fmt.Sprintf("PROCESSING_ERROR:%v", err))
	}

	if err := p.sm.Transition(ctx, doc, model.StatusCompleted, TransitionOpts{ChunkCount: len(chunks), Reason: "fast-lane-complete"}); err != nil {
		return p.fail(ctx, doc, fmt.Sprintf("PROCESSING_ERROR:%v", err))
	}

	return FastLaneResult{Success: true, ChunksCreated: len(chunks)}
}

func (p *FastLaneProcessor) fail(ctx context.Context, doc *model.Document, reason string) FastLaneResult {
	_ = p.sm.Transition(ctx, doc, model.StatusFailed, TransitionOpts{FailReason: &reason, Reason: "fast-lane-failure"})
	return FastLaneResult{Success: false, ErrorCode: reason}
}
