package queue

import (
	"time"

	"github.com/google/uuid"
)

// JobType represents the type of job
type JobType string

const (
	// JobTypeOrphanSweep checks a list of touched videos and deletes the ones
	// no user references anymore
	JobTypeOrphanSweep JobType = "orphan_sweep"
	// JobTypeOrphanGC walks every video row looking for orphans
	JobTypeOrphanGC JobType = "orphan_gc"
)

// DefaultMaxRetries is how often a failed job is re-enqueued before it goes to the DLQ
const DefaultMaxRetries = 3

// Job represents a job in the queue
type Job struct {
	ID         uuid.UUID      `json:"id"`
	Type       JobType        `json:"type"`
	UserID     string         `json:"user_id,omitempty"`   // User whose removal triggered the job
	VideoIDs   []string       `json:"video_ids,omitempty"` // Touched video ids for sweep jobs
	NotBefore  *time.Time     `json:"not_before,omitempty"`
	NotAfter   *time.Time     `json:"not_after,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	RetryCount int            `json:"retry_count"`
	MaxRetries int            `json:"max_retries"`
}

// NewJob creates a new job
func NewJob(jobType JobType, userID string, videoIDs []string) *Job {
	return &Job{
		ID:         uuid.New(),
		Type:       jobType,
		UserID:     userID,
		VideoIDs:   videoIDs,
		Metadata:   make(map[string]any),
		CreatedAt:  time.Now(),
		MaxRetries: DefaultMaxRetries,
	}
}

// NewSweepJob creates an orphan sweep for videoIDs that runs no earlier than delay from now
func NewSweepJob(userID string, videoIDs []string, delay time.Duration) *Job {
	job := NewJob(JobTypeOrphanSweep, userID, videoIDs)
	if delay > 0 {
		job.Delay(delay)
	}
	return job
}

// Delay pushes NotBefore to d from now
func (j *Job) Delay(d time.Duration) {
	notBefore := time.Now().Add(d)
	j.NotBefore = &notBefore
}

// ShouldProcess checks if the job should be processed now
func (j *Job) ShouldProcess() bool {
	now := time.Now()
	if j.NotBefore != nil && now.Before(*j.NotBefore) {
		return false
	}
	if j.NotAfter != nil && now.After(*j.NotAfter) {
		return false
	}
	return true
}

// IsExpired checks if the job has expired
func (j *Job) IsExpired() bool {
	if j.NotAfter == nil {
		return false
	}
	return time.Now().After(*j.NotAfter)
}

// CanRetry checks if the job can be retried
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// IncrementRetry increments the retry count
func (j *Job) IncrementRetry() {
	j.RetryCount++
}

// RetryBackoff is the delay before the next attempt: base doubled per retry so far
func (j *Job) RetryBackoff(base time.Duration) time.Duration {
	backoff := base
	for i := 1; i < j.RetryCount && backoff < time.Hour; i++ {
		backoff *= 2
	}
	return min(backoff, time.Hour)
}
