package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/korrelate/ingestcore/internal/collab"
	"github.com/korrelate/ingestcore/internal/model"

	"github.com/hibiken/asynq"
)

type fakeConverter struct {
	result collab.ConvertResult
	err    error
}

func (f *fakeConverter) Convert(ctx context.Context, filePath string, format model.Format, cfg model.ConversionConfig) (collab.ConvertResult, error) {
	if f.err != nil {
		return collab.ConvertResult{}, f.err
	}
	return f.result, nil
}

type callbackCapture struct {
	mu       sync.Mutex
	payloads []CallbackPayload
	status   int
}

func newCallbackServer(t *testing.T, cap *callbackCapture) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p CallbackPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		cap.mu.Lock()
		cap.payloads = append(cap.payloads, p)
		cap.mu.Unlock()
		status := cap.status
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 100}))
}

func TestHeavyWorker_SuccessReportsCompletion(t *testing.T) {
	cap := &callbackCapture{}
	srv := newCallbackServer(t, cap)

	conv := &fakeConverter{result: collab.ConvertResult{Markdown: "# hi", PageCount: 3}}
	w := NewHeavyWorker(conv, srv.URL, testLogger())

	payload := HeavyLanePayload{DocumentID: "doc-1", FilePath: "/tmp/f.pdf", Format: model.FormatPDF}
	task, err := NewHeavyLaneTask(payload)
	if err != nil {
		t.Fatalf("unexpected error building task: %v", err)
	}

	if err := w.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cap.mu.Lock()
	defer cap.mu.Unlock()
	if len(cap.payloads) != 1 {
		t.Fatalf("expected 1 callback, got %d", len(cap.payloads))
	}
	got := cap.payloads[0]
	if !got.Success || got.DocumentID != "doc-1" || got.Result == nil || got.Result.Markdown != "# hi" {
		t.Errorf("unexpected callback payload: %+v", got)
	}
}

func TestHeavyWorker_PermanentFailureReportsAndDoesNotRetry(t *testing.T) {
	cap := &callbackCapture{}
	srv := newCallbackServer(t, cap)

	conv := &fakeConverter{err: errors.New("CORRUPT_FILE: could not open archive")}
	w := NewHeavyWorker(conv, srv.URL, testLogger())

	payload := HeavyLanePayload{DocumentID: "doc-2", FilePath: "/tmp/f.pdf", Format: model.FormatPDF}
	task, err := NewHeavyLaneTask(payload)
	if err != nil {
		t.Fatalf("unexpected error building task: %v", err)
	}

	if err := w.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("expected nil error for a permanent failure (no asynq retry), got: %v", err)
	}

	cap.mu.Lock()
	defer cap.mu.Unlock()
	if len(cap.payloads) != 1 {
		t.Fatalf("expected 1 callback, got %d", len(cap.payloads))
	}
	got := cap.payloads[0]
	if got.Success {
		t.Error("expected Success=false for a permanent failure")
	}
	if got.Error == nil || got.Error.Code != "CORRUPT_FILE" {
		t.Errorf("Error = %+v, want code CORRUPT_FILE", got.Error)
	}
}

func TestHeavyWorker_TransientFailureReturnsErrorForRetry(t *testing.T) {
	cap := &callbackCapture{}
	srv := newCallbackServer(t, cap)

	conv := &fakeConverter{err: errors.New("connection reset by peer")}
	w := NewHeavyWorker(conv, srv.URL, testLogger())

	payload := HeavyLanePayload{DocumentID: "doc-3", FilePath: "/tmp/f.pdf", Format: model.FormatPDF}
	task, err := NewHeavyLaneTask(payload)
	if err != nil {
		t.Fatalf("unexpected error building task: %v", err)
	}

	if err := w.ProcessTask(context.Background(), task); err == nil {
		t.Fatal("expected a transient conversion error to propagate for asynq's retry")
	}

	cap.mu.Lock()
	defer cap.mu.Unlock()
	if len(cap.payloads) != 0 {
		t.Errorf("expected no callback for a transient failure, got %d", len(cap.payloads))
	}
}

func TestHeavyWorker_InvalidPayloadSkipsRetry(t *testing.T) {
	w := NewHeavyWorker(&fakeConverter{}, "http://unused", testLogger())
	task := asynq.NewTask(TaskHeavyLaneConvert, []byte("not json"))

	err := w.ProcessTask(context.Background(), task)
	if err == nil {
		t.Fatal("expected an error for an unparseable payload")
	}
	if !errors.Is(err, asynq.SkipRetry) {
		t.Errorf("expected error to wrap asynq.SkipRetry, got: %v", err)
	}
}
