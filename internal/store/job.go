package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/seqworks/annotation-pipeline/internal/store/model"
	"gorm.io/gorm"
)

// Job exposes the annotations table. Every mutation except Create is a
// conditional single-row update: the WHERE clause names the expected
// prior state and a zero rows-affected result surfaces as
// ErrPreconditionFailed (or ErrRecordNotFound when the row is missing).
// Workers rely on this for idempotence under redelivered messages.
type Job interface {
	Create(ctx context.Context, job model.Job) (*model.Job, error)
	Get(ctx context.Context, jobID string) (*model.Job, error)
	List(ctx context.Context, filter *JobQueryFilter, opts *JobQueryOptions) (model.JobList, error)
	GetByArchiveID(ctx context.Context, archiveID string) (*model.Job, error)

	MarkRunning(ctx context.Context, jobID string) error
	Complete(ctx context.Context, jobID string, completeTime time.Time, resultBucket, resultKey, logKey string) error

	BeginArchive(ctx context.Context, jobID string) error
	FinishArchive(ctx context.Context, jobID string, archiveID string) error
	AbandonArchive(ctx context.Context, jobID string) error
	BeginRestore(ctx context.Context, jobID string) error
	FinishRestore(ctx context.Context, jobID string) error

	InitialMigration(ctx context.Context) error
}

type JobStore struct {
	db *gorm.DB
}

// Make sure we conform to Job interface
var _ Job = (*JobStore)(nil)

func NewJobStore(db *gorm.DB) Job {
	return &JobStore{db: db}
}

func (s *JobStore) InitialMigration(ctx context.Context) error {
	return s.getDB(ctx).AutoMigrate(&model.Job{})
}

func (s *JobStore) Create(ctx context.Context, job model.Job) (*model.Job, error) {
	if err := s.getDB(ctx).WithContext(ctx).Create(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("creating job: %w", err)
	}
	return &job, nil
}

func (s *JobStore) Get(ctx context.Context, jobID string) (*model.Job, error) {
	var job model.Job
	result := s.getDB(ctx).WithContext(ctx).First(&job, "job_id = ?", jobID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying job: %w", result.Error)
	}
	return &job, nil
}

func (s *JobStore) List(ctx context.Context, filter *JobQueryFilter, opts *JobQueryOptions) (model.JobList, error) {
	var jobs model.JobList
	tx := s.getDB(ctx).WithContext(ctx)

	if filter != nil {
		for _, fn := range filter.QueryFn {
			tx = fn(tx)
		}
	}
	if opts != nil {
		for _, fn := range opts.QueryFn {
			tx = fn(tx)
		}
	}

	if err := tx.Model(&jobs).Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// GetByArchiveID resolves the job owning a cold-storage archive. Archive
// ids are handed out once per archived result, so more than one match
// means the table is corrupt and the caller must not guess.
func (s *JobStore) GetByArchiveID(ctx context.Context, archiveID string) (*model.Job, error) {
	var jobs model.JobList
	result := s.getDB(ctx).WithContext(ctx).Where("archive_id = ?", archiveID).Find(&jobs)
	if result.Error != nil {
		return nil, fmt.Errorf("querying job by archive id: %w", result.Error)
	}
	switch len(jobs) {
	case 0:
		return nil, ErrRecordNotFound
	case 1:
		return &jobs[0], nil
	default:
		return nil, fmt.Errorf("archive id %s maps to %d jobs", archiveID, len(jobs))
	}
}

// MarkRunning moves a job from PENDING to RUNNING. Exactly one caller
// wins; the rest get ErrPreconditionFailed.
func (s *JobStore) MarkRunning(ctx context.Context, jobID string) error {
	result := s.getDB(ctx).WithContext(ctx).
		Model(&model.Job{}).
		Where("job_id = ? AND status = ?", jobID, model.JobStatusPending).
		Update("status", model.JobStatusRunning)
	return s.conditionalResult(ctx, jobID, result)
}

// Complete records the result and log locations, the completion time and
// the COMPLETED status in one update, conditional on the job still
// being RUNNING.
func (s *JobStore) Complete(ctx context.Context, jobID string, completeTime time.Time, resultBucket, resultKey, logKey string) error {
	result := s.getDB(ctx).WithContext(ctx).
		Model(&model.Job{}).
		Where("job_id = ? AND status = ?", jobID, model.JobStatusRunning).
		Updates(map[string]interface{}{
			"status":        model.JobStatusCompleted,
			"complete_time": completeTime,
			"result_bucket": resultBucket,
			"result_key":    resultKey,
			"log_key":       logKey,
		})
	return s.conditionalResult(ctx, jobID, result)
}

// BeginArchive moves archive_status from absent to pending. Jobs without
// a completed result are never eligible.
func (s *JobStore) BeginArchive(ctx context.Context, jobID string) error {
	result := s.getDB(ctx).WithContext(ctx).
		Model(&model.Job{}).
		Where("job_id = ? AND status = ? AND archive_status IS NULL AND result_key IS NOT NULL",
			jobID, model.JobStatusCompleted).
		Update("archive_status", model.ArchiveStatusPending)
	return s.conditionalResult(ctx, jobID, result)
}

func (s *JobStore) FinishArchive(ctx context.Context, jobID string, archiveID string) error {
	result := s.getDB(ctx).WithContext(ctx).
		Model(&model.Job{}).
		Where("job_id = ? AND archive_status = ?", jobID, model.ArchiveStatusPending).
		Updates(map[string]interface{}{
			"archive_status": model.ArchiveStatusCompleted,
			"archive_id":     archiveID,
		})
	return s.conditionalResult(ctx, jobID, result)
}

// AbandonArchive rolls a failed archival back from pending to absent so
// a redelivered job-completed event can retry the whole unit of work.
func (s *JobStore) AbandonArchive(ctx context.Context, jobID string) error {
	result := s.getDB(ctx).WithContext(ctx).
		Model(&model.Job{}).
		Where("job_id = ? AND archive_status = ?", jobID, model.ArchiveStatusPending).
		Update("archive_status", nil)
	return s.conditionalResult(ctx, jobID, result)
}

func (s *JobStore) BeginRestore(ctx context.Context, jobID string) error {
	result := s.getDB(ctx).WithContext(ctx).
		Model(&model.Job{}).
		Where("job_id = ? AND archive_status = ?", jobID, model.ArchiveStatusCompleted).
		Update("archive_status", model.ArchiveStatusRestoring)
	return s.conditionalResult(ctx, jobID, result)
}

// FinishRestore clears the archive fields, returning the job to the
// never-archived shape.
func (s *JobStore) FinishRestore(ctx context.Context, jobID string) error {
	result := s.getDB(ctx).WithContext(ctx).
		Model(&model.Job{}).
		Where("job_id = ? AND archive_status = ?", jobID, model.ArchiveStatusRestoring).
		Updates(map[string]interface{}{
			"archive_status": nil,
			"archive_id":     nil,
		})
	return s.conditionalResult(ctx, jobID, result)
}

func (s *JobStore) conditionalResult(ctx context.Context, jobID string, result *gorm.DB) error {
	if result.Error != nil {
		return fmt.Errorf("updating job %s: %w", jobID, result.Error)
	}
	if result.RowsAffected == 0 {
		if _, err := s.Get(ctx, jobID); err != nil {
			return err
		}
		return ErrPreconditionFailed
	}
	return nil
}

func (s *JobStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db
}
