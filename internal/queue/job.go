package queue

import (
	"errors"
	"fmt"
	"time"

	"github.com/benvon/jotjot/internal/validation"
	"github.com/google/uuid"
)

// JobType represents the type of job
type JobType string

const (
	// JobTypeDailyReport sends the daily report to every eligible user
	JobTypeDailyReport JobType = "daily_report"
	// JobTypeDailyMaintenance collects and reports operational metrics
	JobTypeDailyMaintenance JobType = "daily_maintenance"
	// JobTypeTestUserEmailReport sends one user's report, ignoring dry run
	JobTypeTestUserEmailReport JobType = "test_user_email_report"
)

// ErrUnknownJobType is returned for job types no worker handles
var ErrUnknownJobType = errors.New("unknown job type")

// ParseJobType validates a job type name
func ParseJobType(s string) (JobType, error) {
	switch t := JobType(s); t {
	case JobTypeDailyReport, JobTypeDailyMaintenance, JobTypeTestUserEmailReport:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownJobType, s)
}

// Job represents a job in the queue
type Job struct {
	ID          uuid.UUID  `json:"id"`
	Type        JobType    `json:"type"`
	UserID      string     `json:"user_id,omitempty"`      // Required for test_user_email_report
	DryRun      bool       `json:"dry_run,omitempty"`      // daily_report only
	Date        string     `json:"date,omitempty"`         // Report date override (YYYY-MM-DD)
	TargetEmail string     `json:"target_email,omitempty"` // Maintenance recipient override
	Tables      []string   `json:"tables,omitempty"`
	Functions   []string   `json:"functions,omitempty"`
	NotBefore   *time.Time `json:"not_before,omitempty"` // Earliest time to process job (nil = immediate)
	NotAfter    *time.Time `json:"not_after,omitempty"`  // Latest time to process job (nil = no expiration)
	CreatedAt   time.Time  `json:"created_at"`
	RetryCount  int        `json:"retry_count"`
	MaxRetries  int        `json:"max_retries"`
}

// NewJob creates a new job
func NewJob(jobType JobType) *Job {
	return &Job{
		ID:         uuid.New(),
		Type:       jobType,
		CreatedAt:  time.Now(),
		RetryCount: 0,
		MaxRetries: 3,
	}
}

// Validate checks the fields each job type needs
func (j *Job) Validate() error {
	if _, err := ParseJobType(string(j.Type)); err != nil {
		return err
	}
	if j.Type == JobTypeTestUserEmailReport && j.UserID == "" {
		return fmt.Errorf("job %s: user_id is required for %s", j.ID, j.Type)
	}
	if j.Date != "" {
		if err := validation.ValidateDate(j.Date); err != nil {
			return fmt.Errorf("job %s: %w", j.ID, err)
		}
	}
	return nil
}

// ShouldProcess checks if the job should be processed at now
func (j *Job) ShouldProcess(now time.Time) bool {
	if j.NotBefore != nil && now.Before(*j.NotBefore) {
		return false
	}
	if j.NotAfter != nil && now.After(*j.NotAfter) {
		return false
	}
	return true
}

// IsExpired checks if the job has expired at now
func (j *Job) IsExpired(now time.Time) bool {
	if j.NotAfter == nil {
		return false
	}
	return now.After(*j.NotAfter)
}

// CanRetry checks if the job can be retried
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// IncrementRetry increments the retry count
func (j *Job) IncrementRetry() {
	j.RetryCount++
}
