package workers

import (
	"context"

	"github.com/pkg/errors"
	"github.com/seqworks/annotation-pipeline/internal/entitlement"
	"github.com/seqworks/annotation-pipeline/internal/events"
	"github.com/seqworks/annotation-pipeline/internal/queue"
	"github.com/seqworks/annotation-pipeline/internal/storage"
	"github.com/seqworks/annotation-pipeline/internal/store"
	"github.com/seqworks/annotation-pipeline/internal/store/model"
	"github.com/seqworks/annotation-pipeline/pkg/metrics"
	"go.uber.org/zap"
)

// Archiver consumes job-completed events and moves the results of
// non-exempt users from hot to cold storage. The absent->pending claim
// makes duplicate events no-ops; a failed cold upload rolls the claim
// back so the redelivered event retries the whole unit of work.
type Archiver struct {
	jobs         store.Job
	entitlements entitlement.Service
	hot          storage.ObjectStore
	cold         storage.ColdStore
	log          *zap.SugaredLogger
}

var _ Handler = (*Archiver)(nil)

const finishArchiveAttempts = 3

func NewArchiver(jobs store.Job, entitlements entitlement.Service, hot storage.ObjectStore, cold storage.ColdStore) *Archiver {
	return &Archiver{
		jobs:         jobs,
		entitlements: entitlements,
		hot:          hot,
		cold:         cold,
		log:          zap.S().Named("archiver"),
	}
}

func (a *Archiver) Handle(ctx context.Context, msg *queue.Message) error {
	ev, err := events.Decode[events.JobCompleted](msg.Body)
	if err != nil {
		return Terminal(err)
	}
	if err := ev.Validate(); err != nil {
		return Terminal(err)
	}

	job, err := a.jobs.Get(ctx, ev.JobID)
	switch {
	case errors.Is(err, store.ErrRecordNotFound):
		return Terminalf("job %s has no record", ev.JobID)
	case err != nil:
		return errors.Wrapf(err, "loading job %s", ev.JobID)
	}

	tier, err := a.entitlements.Lookup(ctx, job.UserID)
	switch {
	case errors.Is(err, store.ErrRecordNotFound):
		return Terminalf("job %s belongs to unknown user %s", job.JobID, job.UserID)
	case err != nil:
		return errors.Wrapf(err, "looking up entitlement of user %s", job.UserID)
	}
	if tier.ArchiveExempt() {
		a.log.Infow("user exempt from archival, skipping", "job_id", job.JobID, "user_id", job.UserID)
		return nil
	}

	switch err := a.jobs.BeginArchive(ctx, job.JobID); {
	case errors.Is(err, store.ErrPreconditionFailed):
		// either a duplicate event for an archived job, a job without a
		// result, or an archival already in flight
		a.log.Infow("archival not applicable, skipping", "job_id", job.JobID)
		return nil
	case err != nil:
		return errors.Wrapf(err, "claiming archival of job %s", job.JobID)
	}

	if job.ResultBucket == nil || job.ResultKey == nil {
		// BeginArchive guards on result_key, so this cannot happen
		// outside a corrupted record
		a.abandon(ctx, job)
		return Terminalf("job %s passed the archive guard without a result location", job.JobID)
	}

	data, err := a.hot.GetObject(ctx, *job.ResultBucket, *job.ResultKey)
	if err != nil {
		a.abandon(ctx, job)
		return errors.Wrapf(err, "reading result of job %s", job.JobID)
	}

	archiveID, err := a.cold.Archive(ctx, data)
	if err != nil {
		a.abandon(ctx, job)
		return errors.Wrapf(err, "archiving result of job %s", job.JobID)
	}

	if err := a.hot.DeleteObject(ctx, *job.ResultBucket, *job.ResultKey); err != nil {
		// the cold copy is authoritative from here on; an orphaned hot
		// copy is preferable to re-uploading on retry
		a.log.Warnw("failed to delete hot copy after archival",
			"job_id", job.JobID, "key", *job.ResultKey, "error", err)
	}

	// once the cold copy exists and the hot copy is gone, failing to
	// record the archive strands the record in pending: the redelivered
	// event loses the BeginArchive claim and gets acked. Retry in place
	// to shrink that window.
	var finishErr error
	for attempt := 0; attempt < finishArchiveAttempts; attempt++ {
		if finishErr = a.jobs.FinishArchive(ctx, job.JobID, archiveID); finishErr == nil {
			break
		}
	}
	if finishErr != nil {
		return errors.Wrapf(finishErr, "recording archive of job %s", job.JobID)
	}

	metrics.IncreaseJobsArchived()
	a.log.Infow("result archived", "job_id", job.JobID, "archive_id", archiveID)
	return nil
}

func (a *Archiver) abandon(ctx context.Context, job *model.Job) {
	if err := a.jobs.AbandonArchive(ctx, job.JobID); err != nil {
		a.log.Errorw("failed to roll archival claim back", "job_id", job.JobID, "error", err)
	}
}
