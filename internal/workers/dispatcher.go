package workers

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/seqworks/annotation-pipeline/internal/events"
	"github.com/seqworks/annotation-pipeline/internal/queue"
	"github.com/seqworks/annotation-pipeline/internal/runner"
	"github.com/seqworks/annotation-pipeline/internal/storage"
	"github.com/seqworks/annotation-pipeline/internal/store"
	"github.com/seqworks/annotation-pipeline/pkg/metrics"
	"go.uber.org/zap"
)

// Dispatcher consumes job requests: it stages the input artifact,
// claims the PENDING->RUNNING transition and launches the annotation
// process. The claim gates the launch, so a redelivered request for a
// job that is already RUNNING or COMPLETED never spawns a second
// process.
type Dispatcher struct {
	jobs       store.Job
	hot        storage.ObjectStore
	launcher   runner.Launcher
	stagingDir string
	log        *zap.SugaredLogger
}

var _ Handler = (*Dispatcher)(nil)

func NewDispatcher(jobs store.Job, hot storage.ObjectStore, launcher runner.Launcher, stagingDir string) *Dispatcher {
	return &Dispatcher{
		jobs:       jobs,
		hot:        hot,
		launcher:   launcher,
		stagingDir: stagingDir,
		log:        zap.S().Named("dispatcher"),
	}
}

func (d *Dispatcher) Handle(ctx context.Context, msg *queue.Message) error {
	req, err := events.Decode[events.JobRequest](msg.Body)
	if err != nil {
		return Terminal(err)
	}
	if err := req.Validate(); err != nil {
		return Terminal(err)
	}

	// stage the input into a per-job directory; failures here are
	// transient and retried by redelivery without touching the record
	jobDir := filepath.Join(d.stagingDir, req.JobID)
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return errors.Wrapf(err, "creating staging dir for job %s", req.JobID)
	}

	data, err := d.hot.GetObject(ctx, req.InputBucket, req.InputKey)
	if err != nil {
		return errors.Wrapf(err, "fetching input for job %s", req.JobID)
	}

	inputPath := filepath.Join(jobDir, req.InputFileName)
	if err := os.WriteFile(inputPath, data, 0o644); err != nil {
		return errors.Wrapf(err, "staging input for job %s", req.JobID)
	}

	// claim the job; losing the claim means a duplicate delivery
	switch err := d.jobs.MarkRunning(ctx, req.JobID); {
	case errors.Is(err, store.ErrPreconditionFailed):
		d.log.Infow("job already claimed, skipping duplicate launch", "job_id", req.JobID)
		d.cleanup(jobDir)
		return nil
	case errors.Is(err, store.ErrRecordNotFound):
		d.cleanup(jobDir)
		return Terminalf("job %s has no record", req.JobID)
	case err != nil:
		return errors.Wrapf(err, "marking job %s running", req.JobID)
	}

	if err := d.launcher.Launch(ctx, runner.LaunchSpec{
		JobID:     req.JobID,
		UserID:    req.UserID,
		Email:     req.Email,
		InputPath: inputPath,
	}); err != nil {
		// the job stays RUNNING; surfacing the error keeps the message
		// around for the reconciliation sweep to find
		return errors.Wrapf(err, "launching annotation for job %s", req.JobID)
	}

	metrics.IncreaseJobsDispatched()
	d.log.Infow("job dispatched", "job_id", req.JobID, "user_id", req.UserID)
	return nil
}

func (d *Dispatcher) cleanup(jobDir string) {
	if err := os.RemoveAll(jobDir); err != nil {
		d.log.Warnw("failed to remove staging dir", "dir", jobDir, "error", err)
	}
}
