package workers

import (
	"context"

	"github.com/pkg/errors"
	"github.com/seqworks/annotation-pipeline/internal/events"
	"github.com/seqworks/annotation-pipeline/internal/queue"
	"github.com/seqworks/annotation-pipeline/internal/storage"
	"github.com/seqworks/annotation-pipeline/internal/store"
	"github.com/seqworks/annotation-pipeline/internal/store/model"
	"go.uber.org/zap"
)

// Restorer consumes archive requests (entitlement upgrades) and starts
// a cold-storage retrieval for every archived job of the user. The
// message is acked only when the whole batch has been initiated; jobs
// already restoring are skipped on retry.
type Restorer struct {
	jobs store.Job
	cold storage.ColdStore
	log  *zap.SugaredLogger
}

var _ Handler = (*Restorer)(nil)

func NewRestorer(jobs store.Job, cold storage.ColdStore) *Restorer {
	return &Restorer{
		jobs: jobs,
		cold: cold,
		log:  zap.S().Named("restorer"),
	}
}

func (r *Restorer) Handle(ctx context.Context, msg *queue.Message) error {
	req, err := events.Decode[events.ArchiveRequest](msg.Body)
	if err != nil {
		return Terminal(err)
	}
	if err := req.Validate(); err != nil {
		return Terminal(err)
	}

	jobs, err := r.jobs.List(ctx,
		store.NewJobQueryFilter().ByUserID(req.UserID),
		store.NewJobQueryOptions().WithSortOrder(store.SortBySubmitTime))
	if err != nil {
		return errors.Wrapf(err, "listing jobs of user %s", req.UserID)
	}

	var failed int
	for i := range jobs {
		job := &jobs[i]
		if !job.Archived() || job.ArchiveID == nil {
			// never archived, still archiving, or already restoring
			continue
		}

		if err := r.restore(ctx, job); err != nil {
			r.log.Errorw("failed to initiate restore",
				"job_id", job.JobID, "archive_id", *job.ArchiveID, "error", err)
			failed++
		}
	}

	if failed > 0 {
		return errors.Errorf("restoring jobs of user %s: %d of %d initiations failed",
			req.UserID, failed, len(jobs))
	}
	return nil
}

func (r *Restorer) restore(ctx context.Context, job *model.Job) error {
	retrievalJobID, err := r.initiateWithFallback(ctx, *job.ArchiveID)
	if err != nil {
		return err
	}

	// the retrieval handle is not persisted; thaw completion is
	// correlated by archive id
	switch err := r.jobs.BeginRestore(ctx, job.JobID); {
	case errors.Is(err, store.ErrPreconditionFailed):
		r.log.Infow("restore already in flight", "job_id", job.JobID)
		return nil
	case err != nil:
		return err
	}

	r.log.Infow("restore initiated",
		"job_id", job.JobID, "archive_id", *job.ArchiveID, "retrieval_job_id", retrievalJobID)
	return nil
}

// initiateWithFallback asks for the fast tier first and drops to the
// always-available tier when cold storage reports capacity exhaustion.
func (r *Restorer) initiateWithFallback(ctx context.Context, archiveID string) (string, error) {
	retrievalJobID, err := r.cold.InitiateRetrieval(ctx, archiveID, storage.TierExpedited)
	if err == nil {
		return retrievalJobID, nil
	}
	if !errors.Is(err, storage.ErrInsufficientCapacity) {
		return "", err
	}

	r.log.Infow("expedited tier exhausted, falling back to standard", "archive_id", archiveID)
	return r.cold.InitiateRetrieval(ctx, archiveID, storage.TierStandard)
}
