package workers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/seqworks/annotation-pipeline/internal/events"
	"github.com/seqworks/annotation-pipeline/internal/queue"
	"github.com/seqworks/annotation-pipeline/internal/storage"
	"github.com/seqworks/annotation-pipeline/internal/store"
	"github.com/seqworks/annotation-pipeline/pkg/metrics"
	"go.uber.org/zap"
)

// CompletedJob describes a finished annotation run: local artifact
// paths plus the identity needed to publish the completion event.
type CompletedJob struct {
	JobID      string
	UserID     string
	Email      string
	ResultPath string
	LogPath    string
}

// Notifier performs the completion phase of a job: upload artifacts to
// hot storage, record the COMPLETED transition atomically, publish the
// job-completed event and clean the staging directory up. It runs
// inside the runner process, not as a channel consumer.
type Notifier struct {
	jobs          store.Job
	hot           storage.ObjectStore
	completed     queue.Queue
	resultsBucket string
	log           *zap.SugaredLogger
}

func NewNotifier(jobs store.Job, hot storage.ObjectStore, completed queue.Queue, resultsBucket string) *Notifier {
	return &Notifier{
		jobs:          jobs,
		hot:           hot,
		completed:     completed,
		resultsBucket: resultsBucket,
		log:           zap.S().Named("notifier"),
	}
}

// Complete uploads the artifacts, records the COMPLETED transition and
// publishes the completion event. The staging cleanup is deferred so it
// runs on every path, and its failure never overrides the transition
// outcome.
func (n *Notifier) Complete(ctx context.Context, job CompletedJob) error {
	defer n.cleanupStaging(filepath.Dir(job.ResultPath))

	resultKey := artifactKey(job.UserID, job.JobID, job.ResultPath)
	logKey := artifactKey(job.UserID, job.JobID, job.LogPath)

	if err := n.upload(ctx, job.ResultPath, resultKey); err != nil {
		return errors.Wrapf(err, "uploading result for job %s", job.JobID)
	}
	if err := n.upload(ctx, job.LogPath, logKey); err != nil {
		return errors.Wrapf(err, "uploading log for job %s", job.JobID)
	}

	switch err := n.jobs.Complete(ctx, job.JobID, time.Now().UTC(), n.resultsBucket, resultKey, logKey); {
	case errors.Is(err, store.ErrPreconditionFailed):
		// a previous run of this job already completed it; exactly one
		// notification per job, so do not publish again
		n.log.Infow("job already completed", "job_id", job.JobID)
		return nil
	case err != nil:
		return errors.Wrapf(err, "completing job %s", job.JobID)
	}

	body, err := events.Encode(events.JobCompleted{
		JobID:   job.JobID,
		Email:   job.Email,
		Message: fmt.Sprintf("Job %s has been completed and results have been uploaded.", job.JobID),
	})
	if err != nil {
		return err
	}
	if err := n.completed.Send(ctx, body); err != nil {
		return errors.Wrapf(err, "publishing completion of job %s", job.JobID)
	}

	metrics.IncreaseJobsCompleted()
	n.log.Infow("job completed", "job_id", job.JobID, "result_key", resultKey)
	return nil
}

func (n *Notifier) upload(ctx context.Context, path, key string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	return n.hot.PutObject(ctx, n.resultsBucket, key, f, info.Size())
}

func (n *Notifier) cleanupStaging(jobDir string) {
	if err := os.RemoveAll(jobDir); err != nil {
		// not fatal; the job outcome stands either way
		n.log.Warnw("failed to clean staging dir", "dir", jobDir, "error", err)
	}
}

// artifactKey builds the deterministic user/job-scoped hot-storage key
// for an artifact.
func artifactKey(userID, jobID, path string) string {
	return fmt.Sprintf("%s/%s/%s", userID, jobID, filepath.Base(path))
}
