package workers_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/seqworks/annotation-pipeline/internal/events"
	"github.com/seqworks/annotation-pipeline/internal/runner"
	"github.com/seqworks/annotation-pipeline/internal/store/model"
	"github.com/seqworks/annotation-pipeline/internal/workers"
	"github.com/stretchr/testify/require"
)

// TestJobLifecycle drives a single job through every hand-off: dispatch,
// completion, archival, restore initiation, and thaw. Each stage is
// exercised through the same message payloads the deployed channels
// carry.
func TestJobLifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	job := e.createPendingJob(t, "j1", "u1")

	// dispatch
	launcher := &fakeLauncher{}
	d := workers.NewDispatcher(e.st.Job(), e.hot, launcher, e.staging)
	require.NoError(t, d.Handle(ctx, encodeMsg(t, jobRequest(job))))

	launches := launcher.launches()
	require.Len(t, launches, 1)
	spec := launches[0]

	// stand in for the annotation run: write the artifacts next to the
	// staged input
	resultPath := runner.ResultPath(spec.InputPath)
	logPath := runner.LogPath(spec.InputPath)
	require.NoError(t, os.WriteFile(resultPath, []byte("annotated"), 0o644))
	require.NoError(t, os.WriteFile(logPath, []byte("log"), 0o644))

	// completion
	n := workers.NewNotifier(e.st.Job(), e.hot, e.completed, resultsBucket)
	require.NoError(t, n.Complete(ctx, workers.CompletedJob{
		JobID:      spec.JobID,
		UserID:     spec.UserID,
		Email:      spec.Email,
		ResultPath: resultPath,
		LogPath:    logPath,
	}))

	got, err := e.st.Job().Get(ctx, "j1")
	require.NoError(t, err)
	require.Equal(t, model.JobStatusCompleted, got.Status)
	require.NotNil(t, got.ResultKey)
	resultKey := *got.ResultKey
	require.True(t, e.hot.Exists(resultsBucket, resultKey))

	// archival, fed by the published completion event
	msg, err := e.completed.Receive(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, msg)

	a := workers.NewArchiver(e.st.Job(), e.entitlements, e.hot, e.cold)
	require.NoError(t, a.Handle(ctx, msg))
	require.False(t, e.hot.Exists(resultsBucket, resultKey))

	got, err = e.st.Job().Get(ctx, "j1")
	require.NoError(t, err)
	require.NotNil(t, got.ArchiveID)
	archiveID := *got.ArchiveID

	// restore after an entitlement upgrade
	r := workers.NewRestorer(e.st.Job(), e.cold)
	require.NoError(t, r.Handle(ctx, encodeMsg(t, events.ArchiveRequest{UserID: "u1", Role: "premium_user"})))

	retrievals := e.cold.Retrievals()
	require.Len(t, retrievals, 1)

	// thaw, fed by the notification cold storage would emit
	var retrievalJobID string
	for id := range retrievals {
		retrievalJobID = id
	}
	th := workers.NewThawer(e.st.Job(), e.hot, e.cold)
	require.NoError(t, th.Handle(ctx, encodeMsg(t, events.ThawCompleted{
		RetrievalJobID: retrievalJobID,
		ArchiveID:      archiveID,
		StatusCode:     events.RetrievalSucceeded,
	})))

	// back to the never-archived shape with the result hot again
	got, err = e.st.Job().Get(ctx, "j1")
	require.NoError(t, err)
	require.Equal(t, model.JobStatusCompleted, got.Status)
	require.Nil(t, got.ArchiveStatus)
	require.Nil(t, got.ArchiveID)

	data, err := e.hot.GetObject(ctx, resultsBucket, resultKey)
	require.NoError(t, err)
	require.Equal(t, []byte("annotated"), data)
	require.False(t, e.cold.Has(archiveID))

	// staging directory was cleaned by the completion phase
	_, err = os.Stat(spec.InputPath)
	require.True(t, os.IsNotExist(err))
}
