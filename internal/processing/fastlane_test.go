package processing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/korrelate/ingestcore/internal/collab"
	"github.com/korrelate/ingestcore/internal/model"
)

type fakeChunkStore struct {
	replaced map[string][]model.Chunk
	err      error
}

func (f *fakeChunkStore) ReplaceChunks(ctx context.Context, documentID string, chunks []model.Chunk) error {
	if f.err != nil {
		return f.err
	}
	if f.replaced == nil {
		f.replaced = make(map[string][]model.Chunk)
	}
	f.replaced[documentID] = chunks
	return nil
}

type fakeEmbedder struct {
	dim int
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dim)
	}
	return out, nil
}
func (f *fakeEmbedder) Mode() collab.EmbedMode { return collab.ModeDense }
func (f *fakeEmbedder) Dimension() int         { return f.dim }

func testProfile() model.ProcessingProfile {
	p := model.DefaultProfile()
	p.Chunking.TargetChars = 1000
	p.Quality.MinChars = 10
	return p
}

func TestFastLaneProcess_Success(t *testing.T) {
	doc := &model.Document{ID: "doc-1", Status: model.StatusPending, UpdatedAt: time.Now().UTC()}
	docStore := newFakeDocStore(doc)
	chunkStore := &fakeChunkStore{}
	sm := NewStateMachine(docStore, &fakeBus{})
	embedder := &fakeEmbedder{dim: 4}
	fl := NewFastLaneProcessor(docStore, chunkStore, sm, embedder)

	content := []byte("This is a perfectly reasonable piece of plain text content to chunk and embed.")
	result := fl.Process(context.Background(), "doc-1", content, model.FormatTXT, testProfile())

	if !result.Success {
		t.Fatalf("expected success, got ErrorCode=%q", result.ErrorCode)
	}
	if result.ChunksCreated == 0 {
		t.Error("expected at least one chunk")
	}
	if docStore.docs["doc-1"].Status != model.StatusCompleted {
		t.Errorf("Status = %q, want %q", docStore.docs["doc-1"].Status, model.StatusCompleted)
	}
}

func TestFastLaneProcess_InvalidJSONFails(t *testing.T) {
	doc := &model.Document{ID: "doc-1", Status: model.StatusPending, UpdatedAt: time.Now().UTC()}
	docStore := newFakeDocStore(doc)
	chunkStore := &fakeChunkStore{}
	sm := NewStateMachine(docStore, &fakeBus{})
	fl := NewFastLaneProcessor(docStore, chunkStore, sm, &fakeEmbedder{dim: 4})

	result := fl.Process(context.Background(), "doc-1", []byte("{not valid json"), model.FormatJSON, testProfile())

	if result.Success {
		t.Fatal("expected failure for invalid JSON")
	}
	if result.ErrorCode != model.ErrInvalidJSON {
		t.Errorf("ErrorCode = %q, want %q", result.ErrorCode, model.ErrInvalidJSON)
	}
	if docStore.docs["doc-1"].Status != model.StatusFailed {
		t.Errorf("Status = %q, want %q", docStore.docs["doc-1"].Status, model.StatusFailed)
	}
}

func TestFastLaneProcess_TooShortTextFails(t *testing.T) {
	doc := &model.Document{ID: "doc-1", Status: model.StatusPending, UpdatedAt: time.Now().UTC()}
	docStore := newFakeDocStore(doc)
	chunkStore := &fakeChunkStore{}
	sm := NewStateMachine(docStore, &fakeBus{})
	fl := NewFastLaneProcessor(docStore, chunkStore, sm, &fakeEmbedder{dim: 4})

	result := fl.Process(context.Background(), "doc-1", []byte("hi"), model.FormatTXT, testProfile())

	if result.Success {
		t.Fatal("expected failure for too-short text")
	}
	if result.ErrorCode != model.ErrTextTooShort {
		t.Errorf("ErrorCode = %q, want %q", result.ErrorCode, model.ErrTextTooShort)
	}
}

func TestFastLaneProcess_EmbedderErrorFails(t *testing.T) {
	doc := &model.Document{ID: "doc-1", Status: model.StatusPending, UpdatedAt: time.Now().UTC()}
	docStore := newFakeDocStore(doc)
	chunkStore := &fakeChunkStore{}
	sm := NewStateMachine(docStore, &fakeBus{})
	fl := NewFastLaneProcessor(docStore, chunkStore, sm, &fakeEmbedder{err: errors.New("provider down")})

	result := fl.Process(context.Background(), "doc-1", []byte("This text is long enough to pass quality checks easily."), model.FormatTXT, testProfile())

	if result.Success {
		t.Fatal("expected failure when the embedder errors")
	}
	if docStore.docs["doc-1"].Status != model.StatusFailed {
		t.Errorf("Status = %q, want %q", docStore.docs["doc-1"].Status, model.StatusFailed)
	}
}

func TestFastLaneProcess_DocumentNotFound(t *testing.T) {
	docStore := newFakeDocStore(&model.Document{ID: "other-doc", Status: model.StatusPending, UpdatedAt: time.Now().UTC()})
	chunkStore := &fakeChunkStore{}
	sm := NewStateMachine(docStore, &fakeBus{})
	fl := NewFastLaneProcessor(docStore, chunkStore, sm, &fakeEmbedder{dim: 4})

	result := fl.Process(context.Background(), "missing-doc", []byte("some content"), model.FormatTXT, testProfile())
	if result.Success || result.ErrorCode != "NOT_FOUND" {
		t.Errorf("expected NOT_FOUND failure, got %+v", result)
	}
}
