package processing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/korrelate/ingestcore/internal/model"
	"github.com/korrelate/ingestcore/internal/store"
)

func TestReconcile_AlreadyTerminalIsNoOp(t *testing.T) {
	doc := &model.Document{ID: "doc-1", Status: model.StatusCompleted, UpdatedAt: time.Now().UTC()}
	docStore := newFakeDocStore(doc)
	chunkStore := &fakeChunkStore{}
	sm := NewStateMachine(docStore, &fakeBus{})
	r := NewCallbackReconciler(docStore, chunkStore, sm, &fakeEmbedder{dim: 4})

	result, err := r.Reconcile(context.Background(), "doc-1", true, &CallbackResult{Markdown: "whatever"}, nil, testProfile())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Acknowledged || result.Outcome != "already_terminal" {
		t.Errorf("got %+v, want already_terminal", result)
	}
	if chunkStore.replaced != nil {
		t.Error("expected no chunks written for an already-terminal document")
	}
}

func TestReconcile_FailureReportedByWorker(t *testing.T) {
	doc := &model.Document{ID: "doc-2", Status: model.StatusProcessing, UpdatedAt: time.Now().UTC()}
	docStore := newFakeDocStore(doc)
	chunkStore := &fakeChunkStore{}
	sm := NewStateMachine(docStore, &fakeBus{})
	r := NewCallbackReconciler(docStore, chunkStore, sm, &fakeEmbedder{dim: 4})

	jobErr := &model.JobError{Code: "CORRUPT_FILE", Message: "could not parse pdf"}
	result, err := r.Reconcile(context.Background(), "doc-2", false, nil, jobErr, testProfile())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != "failed" {
		t.Errorf("Outcome = %q, want failed", result.Outcome)
	}
	if docStore.docs["doc-2"].Status != model.StatusFailed {
		t.Errorf("Status = %q, want %q", docStore.docs["doc-2"].Status, model.StatusFailed)
	}
	if docStore.docs["doc-2"].FailReason == nil {
		t.Fatal("expected FailReason to be set")
	}
}

func TestReconcile_MissingResultFails(t *testing.T) {
	doc := &model.Document{ID: "doc-3", Status: model.StatusProcessing, UpdatedAt: time.Now().UTC()}
	docStore := newFakeDocStore(doc)
	chunkStore := &fakeChunkStore{}
	sm := NewStateMachine(docStore, &fakeBus{})
	r := NewCallbackReconciler(docStore, chunkStore, sm, &fakeEmbedder{dim: 4})

	result, err := r.Reconcile(context.Background(), "doc-3", true, nil, nil, testProfile())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != "failed" {
		t.Errorf("Outcome = %q, want failed", result.Outcome)
	}
	if docStore.docs["doc-3"].Status != model.StatusFailed {
		t.Errorf("Status = %q, want %q", docStore.docs["doc-3"].Status, model.StatusFailed)
	}
}

func TestReconcile_QualityCheckRejectsNoise(t *testing.T) {
	doc := &model.Document{ID: "doc-4", Status: model.StatusProcessing, UpdatedAt: time.Now().UTC()}
	docStore := newFakeDocStore(doc)
	chunkStore := &fakeChunkStore{}
	sm := NewStateMachine(docStore, &fakeBus{})
	r := NewCallbackReconciler(docStore, chunkStore, sm, &fakeEmbedder{dim: 4})

	result, err := r.Reconcile(context.Background(), "doc-4", true, &CallbackResult{Markdown: "!@#$%^&*()!@#$%^&*()"}, nil, testProfile())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != "failed" {
		t.Errorf("Outcome = %q, want failed", result.Outcome)
	}
	if docStore.docs["doc-4"].Status != model.StatusFailed {
		t.Errorf("Status = %q, want %q", docStore.docs["doc-4"].Status, model.StatusFailed)
	}
}

func TestReconcile_EmbeddingErrorFails(t *testing.T) {
	doc := &model.Document{ID: "doc-5", Status: model.StatusProcessing, UpdatedAt: time.Now().UTC()}
	docStore := newFakeDocStore(doc)
	chunkStore := &fakeChunkStore{}
	sm := NewStateMachine(docStore, &fakeBus{})
	r := NewCallbackReconciler(docStore, chunkStore, sm, &fakeEmbedder{err: errors.New("provider down")})

	md := "# Heading\n\nThis is plenty of real markdown content to pass the quality gate easily."
	result, err := r.Reconcile(context.Background(), "doc-5", true, &CallbackResult{Markdown: md}, nil, testProfile())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != "failed" {
		t.Errorf("Outcome = %q, want failed", result.Outcome)
	}
	if docStore.docs["doc-5"].Status != model.StatusFailed {
		t.Errorf("Status = %q, want %q", docStore.docs["doc-5"].Status, model.StatusFailed)
	}
}

func TestReconcile_ReplaceChunksConflictFails(t *testing.T) {
	doc := &model.Document{ID: "doc-6", Status: model.StatusProcessing, UpdatedAt: time.Now().UTC()}
	docStore := newFakeDocStore(doc)
	chunkStore := &fakeChunkStore{err: store.ErrStateConflict}
	sm := NewStateMachine(docStore, &fakeBus{})
	r := NewCallbackReconciler(docStore, chunkStore, sm, &fakeEmbedder{dim: 4})

	md := "# Heading\n\nThis is plenty of real markdown content to pass the quality gate easily."
	result, err := r.Reconcile(context.Background(), "doc-6", true, &CallbackResult{Markdown: md}, nil, testProfile())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != "failed" {
		t.Errorf("Outcome = %q, want failed", result.Outcome)
	}
	if docStore.docs["doc-6"].Status != model.StatusFailed {
		t.Errorf("Status = %q, want %q", docStore.docs["doc-6"].Status, model.StatusFailed)
	}
}

func TestReconcile_Success(t *testing.T) {
	doc := &model.Document{ID: "doc-7", Status: model.StatusProcessing, UpdatedAt: time.Now().UTC()}
	docStore := newFakeDocStore(doc)
	chunkStore := &fakeChunkStore{}
	sm := NewStateMachine(docStore, &fakeBus{})
	r := NewCallbackReconciler(docStore, chunkStore, sm, &fakeEmbedder{dim: 4})

	md := "# Heading\n\nThis is plenty of real markdown content to pass the quality gate easily.\n\n## Second section\n\nMore content here to make sure we get at least one chunk out of this document."
	result, err := r.Reconcile(context.Background(), "doc-7", true, &CallbackResult{Markdown: md, PageCount: 2}, nil, testProfile())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != "completed" {
		t.Fatalf("Outcome = %q, want completed", result.Outcome)
	}
	if docStore.docs["doc-7"].Status != model.StatusCompleted {
		t.Errorf("Status = %q, want %q", docStore.docs["doc-7"].Status, model.StatusCompleted)
	}
	chunks := chunkStore.replaced["doc-7"]
	if len(chunks) == 0 {
		t.Fatal("expected chunks to be written")
	}
	for _, c := range chunks {
		if c.Page == nil {
			t.Error("expected every chunk to have a page assigned when PageCount > 0")
			continue
		}
		if *c.Page < 1 || *c.Page > 2 {
			t.Errorf("Page = %d, want between 1 and 2", *c.Page)
		}
	}
}

func TestPageForChunk(t *testing.T) {
	tests := []struct {
		name                       string
		charStart, total, pages   int
		want                       int
	}{
		{"single page document", 50, 100, 1, 1},
		{"no total chars falls back to page 1", 0, 0, 5, 1},
		{"first half of two-page doc", 0, 100, 2, 1},
		{"second half of two-page doc", 60, 100, 2, 2},
		{"clamped to last page", 100, 100, 2, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pageForChunk(tt.charStart, tt.total, tt.pages)
			if got != tt.want {
				t.Errorf("pageForChunk(%d, %d, %d) = %d, want %d", tt.charStart, tt.total, tt.pages, got, tt.want)
			}
		})
	}
}
