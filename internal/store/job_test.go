package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/seqworks/annotation-pipeline/internal/store"
	"github.com/seqworks/annotation-pipeline/internal/store/model"
	"github.com/stretchr/testify/require"
)

func newPendingJob(t *testing.T, jobs store.Job, userID string) *model.Job {
	t.Helper()

	created, err := jobs.Create(context.Background(), model.Job{
		JobID:         uuid.NewString(),
		UserID:        userID,
		Email:         userID + "@example.com",
		Status:        model.JobStatusPending,
		InputFileName: "sample.vcf",
		InputBucket:   "inputs",
		InputKey:      userID + "/sample.vcf",
		SubmitTime:    time.Now().UTC(),
	})
	require.NoError(t, err)
	return created
}

func completeJob(t *testing.T, jobs store.Job, jobID string) {
	t.Helper()

	require.NoError(t, jobs.MarkRunning(context.Background(), jobID))
	require.NoError(t, jobs.Complete(context.Background(), jobID, time.Now().UTC(),
		"results", "u1/"+jobID+"/sample.annot.vcf", "u1/"+jobID+"/sample.vcf.count.log"))
}

func TestJobCreateAndGet(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	job := newPendingJob(t, st.Job(), "u1")

	got, err := st.Job().Get(ctx, job.JobID)
	require.NoError(t, err)
	require.Equal(t, model.JobStatusPending, got.Status)
	require.Nil(t, got.CompleteTime)
	require.Nil(t, got.ArchiveStatus)

	_, err = st.Job().Get(ctx, "no-such-job")
	require.ErrorIs(t, err, store.ErrRecordNotFound)

	_, err = st.Job().Create(ctx, *job)
	require.ErrorIs(t, err, store.ErrDuplicateKey)
}

func TestMarkRunningClaimsOnce(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	job := newPendingJob(t, st.Job(), "u1")

	require.NoError(t, st.Job().MarkRunning(ctx, job.JobID))

	// a redelivered request loses the claim
	err := st.Job().MarkRunning(ctx, job.JobID)
	require.ErrorIs(t, err, store.ErrPreconditionFailed)

	err = st.Job().MarkRunning(ctx, "no-such-job")
	require.ErrorIs(t, err, store.ErrRecordNotFound)

	got, err := st.Job().Get(ctx, job.JobID)
	require.NoError(t, err)
	require.Equal(t, model.JobStatusRunning, got.Status)
}

func TestCompleteIsAtomicAndMonotonic(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	job := newPendingJob(t, st.Job(), "u1")

	// PENDING jobs cannot jump to COMPLETED
	err := st.Job().Complete(ctx, job.JobID, time.Now().UTC(), "results", "r", "l")
	require.ErrorIs(t, err, store.ErrPreconditionFailed)

	require.NoError(t, st.Job().MarkRunning(ctx, job.JobID))
	completedAt := time.Now().UTC()
	require.NoError(t, st.Job().Complete(ctx, job.JobID, completedAt, "results", "u1/j/r.annot.vcf", "u1/j/r.log"))

	got, err := st.Job().Get(ctx, job.JobID)
	require.NoError(t, err)
	require.Equal(t, model.JobStatusCompleted, got.Status)
	require.NotNil(t, got.CompleteTime)
	require.NotNil(t, got.ResultKey)
	require.Equal(t, "u1/j/r.annot.vcf", *got.ResultKey)
	require.NotNil(t, got.LogKey)

	// completing twice is a conflict, not a second completion
	err = st.Job().Complete(ctx, job.JobID, time.Now().UTC(), "results", "other", "other")
	require.ErrorIs(t, err, store.ErrPreconditionFailed)

	got, err = st.Job().Get(ctx, job.JobID)
	require.NoError(t, err)
	require.Equal(t, "u1/j/r.annot.vcf", *got.ResultKey)
}

func TestArchiveLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	job := newPendingJob(t, st.Job(), "u1")

	// jobs without a result are never eligible
	err := st.Job().BeginArchive(ctx, job.JobID)
	require.ErrorIs(t, err, store.ErrPreconditionFailed)

	completeJob(t, st.Job(), job.JobID)

	require.NoError(t, st.Job().BeginArchive(ctx, job.JobID))

	// a duplicate event cannot claim the archival again
	err = st.Job().BeginArchive(ctx, job.JobID)
	require.ErrorIs(t, err, store.ErrPreconditionFailed)

	require.NoError(t, st.Job().FinishArchive(ctx, job.JobID, "archive-1"))

	got, err := st.Job().Get(ctx, job.JobID)
	require.NoError(t, err)
	require.NotNil(t, got.ArchiveStatus)
	require.Equal(t, model.ArchiveStatusCompleted, *got.ArchiveStatus)
	require.NotNil(t, got.ArchiveID)
	require.Equal(t, "archive-1", *got.ArchiveID)

	// restore cycle
	require.NoError(t, st.Job().BeginRestore(ctx, job.JobID))
	err = st.Job().BeginRestore(ctx, job.JobID)
	require.ErrorIs(t, err, store.ErrPreconditionFailed)

	require.NoError(t, st.Job().FinishRestore(ctx, job.JobID))

	got, err = st.Job().Get(ctx, job.JobID)
	require.NoError(t, err)
	require.Nil(t, got.ArchiveStatus)
	require.Nil(t, got.ArchiveID)

	// back to the never-archived shape; archival may start over
	require.NoError(t, st.Job().BeginArchive(ctx, job.JobID))
}

func TestAbandonArchiveRollsBack(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	job := newPendingJob(t, st.Job(), "u1")
	completeJob(t, st.Job(), job.JobID)

	require.NoError(t, st.Job().BeginArchive(ctx, job.JobID))
	require.NoError(t, st.Job().AbandonArchive(ctx, job.JobID))

	got, err := st.Job().Get(ctx, job.JobID)
	require.NoError(t, err)
	require.Nil(t, got.ArchiveStatus)

	// abandoned claims can be retried from scratch
	require.NoError(t, st.Job().BeginArchive(ctx, job.JobID))
}

func TestGetByArchiveID(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	job := newPendingJob(t, st.Job(), "u1")
	completeJob(t, st.Job(), job.JobID)
	require.NoError(t, st.Job().BeginArchive(ctx, job.JobID))
	require.NoError(t, st.Job().FinishArchive(ctx, job.JobID, "archive-42"))

	got, err := st.Job().GetByArchiveID(ctx, "archive-42")
	require.NoError(t, err)
	require.Equal(t, job.JobID, got.JobID)

	_, err = st.Job().GetByArchiveID(ctx, "unknown")
	require.ErrorIs(t, err, store.ErrRecordNotFound)
}

func TestListByUserID(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	first := newPendingJob(t, st.Job(), "u1")
	second := newPendingJob(t, st.Job(), "u1")
	newPendingJob(t, st.Job(), "u2")

	jobs, err := st.Job().List(ctx,
		store.NewJobQueryFilter().ByUserID("u1"),
		store.NewJobQueryOptions().WithSortOrder(store.SortBySubmitTime))
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	ids := []string{jobs[0].JobID, jobs[1].JobID}
	require.Contains(t, ids, first.JobID)
	require.Contains(t, ids, second.JobID)
}

func TestListByStatusAndArchiveStatus(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	pending := newPendingJob(t, st.Job(), "u1")
	completed := newPendingJob(t, st.Job(), "u1")
	completeJob(t, st.Job(), completed.JobID)

	archived := newPendingJob(t, st.Job(), "u1")
	completeJob(t, st.Job(), archived.JobID)
	require.NoError(t, st.Job().BeginArchive(ctx, archived.JobID))
	require.NoError(t, st.Job().FinishArchive(ctx, archived.JobID, "archive-1"))

	jobs, err := st.Job().List(ctx,
		store.NewJobQueryFilter().ByStatus(model.JobStatusPending),
		store.NewJobQueryOptions().WithSortOrder(store.SortByJobID))
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, pending.JobID, jobs[0].JobID)

	jobs, err = st.Job().List(ctx,
		store.NewJobQueryFilter().ByUserID("u1").ByArchiveStatus(model.ArchiveStatusCompleted),
		nil)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, archived.JobID, jobs[0].JobID)
}
