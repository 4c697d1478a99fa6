package queue

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/korrelate/ingestcore/internal/model"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// ProcessingQueue is the heavy-lane ProcessingQueue collaborator: enqueue and
// inspect durable jobs, enforcing at-most-one-active-job-per-document.
type ProcessingQueue struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	rdb       *redis.Client
}

func New(redisOpt asynq.RedisClientOpt, rdb *redis.Client) *ProcessingQueue {
	return &ProcessingQueue{
		client:    asynq.NewClient(redisOpt),
		inspector: asynq.NewInspector(redisOpt),
		rdb:       rdb,
	}
}

func (q *ProcessingQueue) Close() error {
	q.inspector.Close()
	return q.client.Close()
}

const lockTTL = 5 * time.Minute

// lockKey mirrors the one-active-job-per-document invariant: a prior lock
// must be released (job terminal) before the same document can be re-enqueued.
func lockKey(documentID string) string {
	return "ingestcore:joblock:" + documentID
}

// Enqueue admits a heavy-lane job. If documentID already holds an active
// lock, the job is rejected rather than silently queued twice.
func (q *ProcessingQueue) Enqueue(ctx context.Context, p HeavyLanePayload) (*model.ProcessingJob, error) {
	ok, err := q.rdb.SetNX(ctx, lockKey(p.DocumentID), "1", lockTTL).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("document %s already has an active processing job", p.DocumentID)
	}

	task, err := NewHeavyLaneTask(p)
	if err != nil {
		q.rdb.Del(ctx, lockKey(p.DocumentID))
		return nil, err
	}

	info, err := q.client.EnqueueContext(ctx, task)
	if err != nil {
		q.rdb.Del(ctx, lockKey(p.DocumentID))
		return nil, err
	}

	return &model.ProcessingJob{
		ID:          info.ID,
		DocumentID:  p.DocumentID,
		FilePath:    p.FilePath,
		Format:      p.Format,
		MaxAttempts: 3,
		State:       model.JobWaiting,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// Release frees the per-document lock once a job reaches a terminal state
// (completed or permanently failed), allowing reprocessing to re-enqueue.
func (q *ProcessingQueue) Release(ctx context.Context, documentID string) {
	q.rdb.Del(ctx, lockKey(documentID))
}

// Retention policy: completed jobs are kept for at least completedRetentionWindow
// or the most recent completedRetentionMinKept, whichever set is larger;
// failed (archived) jobs are kept for failedRetentionWindow.
const (
	completedRetentionWindow  = 1 * time.Hour
	completedRetentionMinKept = 1000
	failedRetentionWindow     = 24 * time.Hour
)

// Sweep trims the heavy queue's completed and archived task sets down to the
// retention policy. Meant to be driven by a periodic scheduler, not the
// request path.
func (q *ProcessingQueue) Sweep(ctx context.Context) (completedDeleted, failedDeleted int, err error) {
	completed, err := q.inspector.ListCompletedTasks("heavy", asynq.PageSize(5000))
	if err != nil {
		return 0, 0, fmt.Errorf("list completed tasks: %w", err)
	}
	sort.Slice(completed, func(i, j int) bool {
		return completed[i].CompletedAt.After(completed[j].CompletedAt)
	})
	cutoff := time.Now().UTC().Add(-completedRetentionWindow)
	for i, t := range completed {
		if i < completedRetentionMinKept || t.CompletedAt.After(cutoff) {
			continue
		}
		if err := q.inspector.DeleteTask("heavy", t.ID); err != nil {
			continue
		}
		completedDeleted++
	}

	archived, err := q.inspector.ListArchivedTasks("heavy", asynq.PageSize(5000))
	if err != nil {
		return completedDeleted, 0, fmt.Errorf("list archived tasks: %w", err)
	}
	archiveCutoff := time.Now().UTC().Add(-failedRetentionWindow)
	for _, t := range archived {
		if t.LastFailedAt.After(archiveCutoff) {
			continue
		}
		if err := q.inspector.DeleteTask("heavy", t.ID); err != nil {
			continue
		}
		failedDeleted++
	}

	return completedDeleted, failedDeleted, nil
}

// Counts reports a point-in-time tally of jobs per state for the admin stats route.
func (q *ProcessingQueue) Counts() (model.JobCounts, error) {
	info, err := q.inspector.GetQueueInfo("heavy")
	if err != nil {
		return model.JobCounts{}, err
	}
	return model.JobCounts{
		Waiting:   info.Pending,
		Active:    info.Active,
		Completed: info.Completed,
		Failed:    info.Failed,
		Delayed:   info.Scheduled + info.Retry,
	}, nil
}
