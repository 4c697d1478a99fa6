package model

import "time"

// JobState mirrors the lifecycle states of a durable ProcessingJob.
type JobState string

const (
	JobWaiting   JobState = "waiting"
	JobActive    JobState = "active"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
	JobDelayed   JobState = "delayed"
)

// JobError carries a short machine code plus a human message, never a bare exception.
type JobError struct {
	Code    string `bson:"code" json:"code"`
	Message string `bson:"message" json:"message"`
}

// ProcessingJob is the durable unit of work tracked by the ProcessingQueue.
type ProcessingJob struct {
	ID            string         `bson:"_id" json:"id"`
	DocumentID    string         `bson:"documentId" json:"documentId"`
	FilePath      string         `bson:"filePath" json:"filePath"`
	Format        Format         `bson:"format" json:"format"`
	ProfileConfig ProcessingProfile `bson:"profileConfig" json:"profileConfig"`
	AttemptsMade  int            `bson:"attemptsMade" json:"attemptsMade"`
	MaxAttempts   int            `bson:"maxAttempts" json:"maxAttempts"`
	NextRunAt     time.Time      `bson:"nextRunAt" json:"nextRunAt"`
	State         JobState       `bson:"state" json:"state"`
	LastError     *JobError      `bson:"lastError,omitempty" json:"lastError,omitempty"`
	CreatedAt     time.Time      `bson:"createdAt" json:"createdAt"`
}

// JobCounts is a point-in-time tally of jobs per state, used by the admin stats route.
type JobCounts struct {
	Waiting   int `json:"waiting"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Delayed   int `json:"delayed"`
}
