package processing

import (
	"context"
	"fmt"
	"time"

	"github.com/korrelate/ingestcore/internal/chunking"
	"github.com/korrelate/ingestcore/internal/collab"
	"github.com/korrelate/ingestcore/internal/model"
	"github.com/korrelate/ingestcore/internal/store"

	"github.com/google/uuid"
)

// CallbackResult carries the converted content the heavy-lane worker reports
// on success. Mirrors collab.ConvertResult but decoupled from that package.
type CallbackResult struct {
	Markdown   string
	PageCount  int
	OCRApplied bool
}

// ReconcileResult mirrors CallbackReconciler's contract output.
type ReconcileResult struct {
	Acknowledged bool
	Outcome      string
}

// CallbackReconciler is the single entry point for the heavy-lane worker's
// /internal/callback report, completing the HeavyWorkerProtocol handshake.
type CallbackReconciler struct {
	docs     DocStore
	chunks   ChunkStore
	sm       *StateMachine
	embedder collab.Embedder
}

func NewCallbackReconciler(docs DocStore, chunkStore ChunkStore, sm *StateMachine, embedder collab.Embedder) *CallbackReconciler {
	return &CallbackReconciler{docs: docs, chunks: chunkStore, sm: sm, embedder: embedder}
}

// Reconcile processes one callback. It is idempotent per documentId: a repeat
// callback against an already-terminal document is acknowledged as a no-op.
func (r *CallbackReconciler) Reconcile(ctx context.Context, documentID string, success bool, result *CallbackResult, jobErr *model.JobError, profile model.ProcessingProfile) (ReconcileResult, error) {
	doc, err := r.docs.GetDocument(ctx, documentID)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("NOT_FOUND: %w", err)
	}

	if doc.Status == model.StatusCompleted || doc.Status == model.StatusFailed {
		return ReconcileResult{Acknowledged: true, Outcome: "already_terminal"}, nil
	}

	if !success {
		code := "PROCESSING_ERROR"
		msg := "heavy-lane conversion failed"
		if jobErr != nil {
			code = jobErr.Code
			msg = jobErr.Message
		}
		reason := fmt.Sprintf("%s:%s", code, msg)
		if err := r.sm.Transition(ctx, doc, model.StatusFailed, TransitionOpts{FailReason: &reason, Reason: "callback-failure"}); err != nil {
			return ReconcileResult{}, err
		}
		return ReconcileResult{Acknowledged: true, Outcome: "failed"}, nil
	}

	if result == nil {
		return r.fail(ctx, doc, model.ErrNoContent)
	}

	check := chunking.CheckText(result.Markdown, profile.Quality)
	if !check.Passed {
		return r.fail(ctx, doc, check.Reason)
	}

	drafts := chunking.Chunk(result.Markdown, profile.Chunking)
	if len(drafts) == 0 {
		return r.fail(ctx, doc, model.ErrNoContent)
	}

	texts := make([]string, len(drafts))
	for i, d := range drafts {
		texts[i] = d.Content
	}
	vectors, err := r.embedder.Embed(ctx, texts)
	if err != nil {
		return r.fail(ctx, doc, fmt.Sprintf("PROCESSING_ERROR:%v", err))
	}

	var sparseVectors [][]model.SparseTerm
	if se, ok := r.embedder.(collab.SparseEmbedder); ok {
		sparseVectors, err = se.EmbedSparse(ctx, texts)
		if err != nil {
			return r.fail(ctx, doc, fmt.Sprintf("PROCESSING_ERROR:%v", err))
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
		var page *int
		if result.PageCount > 0 {
			p := pageForChunk(d.CharStart, len(result.Markdown), result.PageCount)
			page = &p
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
			Page:            page,
			QualityScore:    verdict.QualityScore,
			QualityFlags:    verdict.Flags,
			ChunkType:       d.ChunkType,
			TokenCount:      d.TokenCount,
			Embedding:       vec,
			SparseEmbedding: sparse,
			CreatedAt:       now,
		}
	}

	// ReplaceChunks deletes any prior set (reprocessing) before inserting the new one.
	if err := r.chunks.ReplaceChunks(ctx, documentID, chunks); err != nil {
		if err == store.ErrStateConflict {
			return r.fail(ctx, doc, "PROCESSING_ERROR:chunk persistence conflict")
		}
		return r.fail(ctx, doc, fmt.Sprintf("PROCESSING_ERROR:%v", err))
	}

	if err := r.sm.Transition(ctx, doc, model.StatusCompleted, TransitionOpts{ChunkCount: len(chunks), Reason: "callback-complete"}); err != nil {
		return ReconcileResult{}, err
	}

	return ReconcileResult{Acknowledged: true, Outcome: "completed"}, nil
}

func (r *CallbackReconciler) fail(ctx context.Context, doc *model.Document, reason string) (ReconcileResult, error) {
	if err := r.sm.Transition(ctx, doc, model.StatusFailed, TransitionOpts{FailReason: &reason, Reason: "callback-reject"}); err != nil {
		return ReconcileResult{}, err
	}
	return ReconcileResult{Acknowledged: true, Outcome: "failed"}, nil
}

// pageForChunk approximates the source page a chunk's text starts on from its
// character offset, assuming page breaks are spread evenly across the document.
func pageForChunk(charStart, totalChars, pageCount int) int {
	if totalChars == 0 || pageCount <= 1 {
		return 1
	}
	page := (charStart*pageCount)/totalChars + 1
	if page > pageCount {
		page = pageCount
	}
	return page
}
