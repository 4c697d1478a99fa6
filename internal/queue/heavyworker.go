package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/korrelate/ingestcore/internal/collab"
	"github.com/korrelate/ingestcore/internal/model"

	"github.com/hibiken/asynq"
)

// CallbackPayload is what the heavy worker POSTs to /internal/callback,
// the other half of HeavyWorkerProtocol. Profile is the bundle frozen at
// enqueue time, carried back so reconciliation chunks and scores with the
// same parameters the worker converted under.
type CallbackPayload struct {
	DocumentID string                  `json:"documentId"`
	Success    bool                    `json:"success"`
	Result     *CallbackResult         `json:"result,omitempty"`
	Error      *model.JobError         `json:"error,omitempty"`
	Profile    model.ProcessingProfile `json:"profile"`
}

// CallbackResult mirrors collab.ConvertResult over the wire.
type CallbackResult struct {
	Markdown   string `json:"markdown"`
	PageCount  int    `json:"pageCount"`
	OCRApplied bool   `json:"ocrApplied"`
}

// HeavyWorker is the asynq task handler standing in for an external
// conversion worker: it runs the Converter then reports back over HTTP via
// the same callback contract a genuinely external process would use. This
// keeps ProcessingQueue -> worker -> /internal/callback a real wire protocol
// even though, today, both ends live in this module.
type HeavyWorker struct {
	converter   collab.Converter
	callbackURL string
	httpClient  *http.Client
	log         *slog.Logger
}

func NewHeavyWorker(converter collab.Converter, callbackURL string, log *slog.Logger) *HeavyWorker {
	return &HeavyWorker{
		converter:   converter,
		callbackURL: callbackURL,
		httpClient:  &http.Client{Timeout: 6 * time.Minute},
		log:         log,
	}
}

// ProcessTask implements asynq.Handler. Conversion errors are reported to the
// callback endpoint rather than surfaced as a task error, so permanent
// failures (PASSWORD_PROTECTED, CORRUPT_FILE, UNSUPPORTED_FORMAT) land on the
// document as FAILED instead of exhausting asynq's retry budget.
func (w *HeavyWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p HeavyLanePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("unmarshal heavy lane payload: %w", asynq.SkipRetry)
	}

	result, convErr := w.converter.Convert(ctx, p.FilePath, p.Format, p.Profile.Conversion)
	if convErr != nil {
		code, msg := splitConversionError(convErr)
		if IsPermanent(code) {
			w.report(ctx, CallbackPayload{
				DocumentID: p.DocumentID,
				Success:    false,
				Error:      &model.JobError{Code: code, Message: msg},
				Profile:    p.Profile,
			})
			return nil // do not retry a permanent failure
		}
		w.log.Error("heavy lane conversion failed, will retry", "documentId", p.DocumentID, "error", convErr)
		return convErr // asynq retries transient failures up to MaxRetry
	}

	w.report(ctx, CallbackPayload{
		DocumentID: p.DocumentID,
		Success:    true,
		Result: &CallbackResult{
			Markdown:   result.Markdown,
			PageCount:  result.PageCount,
			OCRApplied: result.OCRApplied,
		},
		Profile: p.Profile,
	})
	return nil
}

func (w *HeavyWorker) report(ctx context.Context, payload CallbackPayload) {
	body, err := json.Marshal(payload)
	if err != nil {
		w.log.Error("marshal callback payload", "error", err)
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.callbackURL, bytes.NewReader(body))
	if err != nil {
		w.log.Error("build callback request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		w.log.Error("deliver callback", "documentId", payload.DocumentID, "error", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		w.log.Error("callback rejected", "documentId", payload.DocumentID, "status", resp.StatusCode)
	}
}

// splitConversionError pulls a "CODE: message" prefixed error apart; errors
// without a known code prefix are treated as transient.
func splitConversionError(err error) (code, message string) {
	msg := err.Error()
	for c := range permanentErrorCodes {
		prefix := c + ":"
		if len(msg) >= len(prefix) && msg[:len(prefix)] == prefix {
			return c, msg[len(prefix):]
		}
	}
	return "PROCESSING_ERROR", msg
}
