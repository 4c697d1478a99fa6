// Package queue implements the ProcessingQueue and the worker-facing half of
// HeavyWorkerProtocol on top of asynq.
package queue

import (
	"encoding/json"
	"time"

	"github.com/korrelate/ingestcore/internal/model"

	"github.com/hibiken/asynq"
)

const (
	// TaskHeavyLaneConvert is the one task type the heavy lane ever enqueues;
	// fast-lane documents never reach asynq at all (FastLaneProcessor runs inline).
	TaskHeavyLaneConvert = "document:convert"
)

// HeavyLanePayload is the durable body of a heavy-lane ProcessingJob.
type HeavyLanePayload struct {
	DocumentID string                  `json:"documentId"`
	FilePath   string                  `json:"filePath"`
	Format     model.Format            `json:"format"`
	Profile    model.ProcessingProfile `json:"profile"`
}

// NewHeavyLaneTask builds the asynq.Task enqueued for a heavy-lane document.
// Retry/backoff and the visibility timeout are set per spec: 3 attempts,
// 5s/10s/20s backoff, 5 minute timeout.
func NewHeavyLaneTask(p HeavyLanePayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(
		TaskHeavyLaneConvert,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(5*time.Minute),
		asynq.Queue("heavy"),
		asynq.TaskID("doc:"+p.DocumentID),
		// Keep completed tasks around long enough for ProcessingQueue.Sweep's
		// retention policy to apply its own 1h/1000-job rule; asynq would
		// otherwise delete them immediately on completion.
		asynq.Retention(24*time.Hour),
	), nil
}

// permanentErrorCodes short-circuit retry entirely: no amount of re-running
// the same job will fix a password-protected, corrupt, or unsupported file.
var permanentErrorCodes = map[string]bool{
	model.ErrPasswordProtected: true,
	model.ErrCorruptFile:       true,
	model.ErrUnsupportedFormat: true,
}

// IsPermanent reports whether code should bypass asynq's retry schedule.
func IsPermanent(code string) bool {
	return permanentErrorCodes[code]
}

// RetryDelay mirrors the server-side RetryDelayFunc: 5s, 10s, 20s, matching
// the backoff this queue configures its asynq.Server with.
func RetryDelay(n int, err error, task *asynq.Task) time.Duration {
	base := []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second}
	if n <= 0 {
		return base[0]
	}
	if n-1 < len(base) {
		return base[n-1]
	}
	return base[len(base)-1]
}
