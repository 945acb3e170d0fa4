package workers

import (
	"bytes"
	"context"

	"github.com/pkg/errors"
	"github.com/seqworks/annotation-pipeline/internal/events"
	"github.com/seqworks/annotation-pipeline/internal/queue"
	"github.com/seqworks/annotation-pipeline/internal/storage"
	"github.com/seqworks/annotation-pipeline/internal/store"
	"github.com/seqworks/annotation-pipeline/pkg/metrics"
	"go.uber.org/zap"
)

// Thawer consumes thaw-completed notifications from cold storage: it
// copies the retrieved bytes back to the original hot location, deletes
// the cold copy and returns the record to the never-archived shape.
type Thawer struct {
	jobs store.Job
	hot  storage.ObjectStore
	cold storage.ColdStore
	log  *zap.SugaredLogger
}

var _ Handler = (*Thawer)(nil)

func NewThawer(jobs store.Job, hot storage.ObjectStore, cold storage.ColdStore) *Thawer {
	return &Thawer{
		jobs: jobs,
		hot:  hot,
		cold: cold,
		log:  zap.S().Named("thawer"),
	}
}

func (t *Thawer) Handle(ctx context.Context, msg *queue.Message) error {
	ev, err := events.Decode[events.ThawCompleted](msg.Body)
	if err != nil {
		return Terminal(err)
	}
	if err := ev.Validate(); err != nil {
		return Terminal(err)
	}

	if ev.StatusCode != events.RetrievalSucceeded {
		// failed retrievals are not retried here
		t.log.Warnw("retrieval did not succeed, dropping",
			"archive_id", ev.ArchiveID, "status", ev.StatusCode)
		return nil
	}

	job, err := t.jobs.GetByArchiveID(ctx, ev.ArchiveID)
	switch {
	case errors.Is(err, store.ErrRecordNotFound):
		// duplicate notification after the restore already finished, or
		// an archive this deployment does not know
		return Terminalf("no job holds archive %s", ev.ArchiveID)
	case err != nil:
		// includes the multiple-jobs invariant violation
		return Terminal(err)
	}

	if job.ResultBucket == nil || job.ResultKey == nil {
		return Terminalf("job %s has an archive but no result location", job.JobID)
	}

	data, err := t.cold.FetchRetrieval(ctx, ev.RetrievalJobID)
	if err != nil {
		return errors.Wrapf(err, "fetching retrieval for job %s", job.JobID)
	}

	if err := t.hot.PutObject(ctx, *job.ResultBucket, *job.ResultKey, bytes.NewReader(data), int64(len(data))); err != nil {
		return errors.Wrapf(err, "writing result of job %s back to hot storage", job.JobID)
	}

	if err := t.cold.Delete(ctx, ev.ArchiveID); err != nil {
		// accepted trade-off: cold storage may transiently keep an
		// orphaned copy
		t.log.Warnw("failed to delete cold copy",
			"job_id", job.JobID, "archive_id", ev.ArchiveID, "error", err)
	}

	switch err := t.jobs.FinishRestore(ctx, job.JobID); {
	case errors.Is(err, store.ErrPreconditionFailed):
		t.log.Infow("restore already recorded", "job_id", job.JobID)
		return nil
	case err != nil:
		return errors.Wrapf(err, "clearing archive state of job %s", job.JobID)
	}

	metrics.IncreaseJobsRestored()
	t.log.Infow("result restored", "job_id", job.JobID, "key", *job.ResultKey)
	return nil
}
