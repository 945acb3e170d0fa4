package model

import (
	"encoding/json"
	"time"
)

// Job statuses. Transitions are monotonic:
// PENDING -> RUNNING -> COMPLETED.
const (
	JobStatusPending   = "PENDING"
	JobStatusRunning   = "RUNNING"
	JobStatusCompleted = "COMPLETED"
)

// Archive statuses. A NULL archive_status column means the result was
// never archived. Valid transitions:
// absent -> pending -> completed -> restoring -> absent.
const (
	ArchiveStatusPending   = "pending"
	ArchiveStatusCompleted = "completed"
	ArchiveStatusRestoring = "restoring"
)

// Job is one row of the annotations table, the single source of truth
// for a job's lifecycle state.
type Job struct {
	JobID         string `gorm:"primaryKey;column:job_id"`
	UserID        string `gorm:"column:user_id;index:idx_jobs_user_id;not null"`
	Email         string `gorm:"column:email"`
	Status        string `gorm:"column:status;not null"`
	InputFileName string `gorm:"column:input_file_name"`
	InputBucket   string `gorm:"column:input_bucket"`
	InputKey      string `gorm:"column:input_key"`

	SubmitTime   time.Time  `gorm:"column:submit_time;not null"`
	CompleteTime *time.Time `gorm:"column:complete_time"`

	ResultBucket *string `gorm:"column:result_bucket"`
	ResultKey    *string `gorm:"column:result_key"`
	LogKey       *string `gorm:"column:log_key"`

	ArchiveStatus *string `gorm:"column:archive_status;index:idx_jobs_archive_id,composite:archive"`
	ArchiveID     *string `gorm:"column:archive_id;index:idx_jobs_archive_id,composite:archive"`
}

type JobList []Job

func (Job) TableName() string {
	return "annotations"
}

func (j Job) String() string {
	val, _ := json.Marshal(j)
	return string(val)
}

// Archived reports whether the job currently has an archived result.
func (j *Job) Archived() bool {
	return j.ArchiveStatus != nil && *j.ArchiveStatus == ArchiveStatusCompleted
}
