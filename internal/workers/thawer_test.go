package workers_test

import (
	"context"
	"testing"

	"github.com/seqworks/annotation-pipeline/internal/events"
	"github.com/seqworks/annotation-pipeline/internal/storage"
	"github.com/seqworks/annotation-pipeline/internal/workers"
	"github.com/stretchr/testify/require"
)

// beginRestore puts an archived job into the restoring state and
// returns the retrieval job handle cold storage would report back.
func (e *env) beginRestore(t *testing.T, jobID, archiveID string) string {
	t.Helper()
	ctx := context.Background()

	retrievalJobID, err := e.cold.InitiateRetrieval(ctx, archiveID, storage.TierExpedited)
	require.NoError(t, err)
	require.NoError(t, e.st.Job().BeginRestore(ctx, jobID))
	return retrievalJobID
}

func TestThawerRestoresResultToHotStorage(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.createPendingJob(t, "j1", "u1")
	archiveID, resultKey := e.archiveJob(t, "j1", "u1")
	retrievalJobID := e.beginRestore(t, "j1", archiveID)

	th := workers.NewThawer(e.st.Job(), e.hot, e.cold)
	require.NoError(t, th.Handle(ctx, encodeMsg(t, events.ThawCompleted{
		RetrievalJobID: retrievalJobID,
		ArchiveID:      archiveID,
		StatusCode:     events.RetrievalSucceeded,
	})))

	// result is back at its original key, cold copy gone
	data, err := e.hot.GetObject(ctx, resultsBucket, resultKey)
	require.NoError(t, err)
	require.Equal(t, []byte("annotated"), data)
	require.False(t, e.cold.Has(archiveID))

	got, err := e.st.Job().Get(ctx, "j1")
	require.NoError(t, err)
	require.Nil(t, got.ArchiveStatus)
	require.Nil(t, got.ArchiveID)
}

func TestThawerDropsFailedRetrievals(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.createPendingJob(t, "j1", "u1")
	archiveID, resultKey := e.archiveJob(t, "j1", "u1")
	retrievalJobID := e.beginRestore(t, "j1", archiveID)

	th := workers.NewThawer(e.st.Job(), e.hot, e.cold)
	require.NoError(t, th.Handle(ctx, encodeMsg(t, events.ThawCompleted{
		RetrievalJobID: retrievalJobID,
		ArchiveID:      archiveID,
		StatusCode:     events.RetrievalFailed,
	})))

	// nothing moved
	require.False(t, e.hot.Exists(resultsBucket, resultKey))
	require.True(t, e.cold.Has(archiveID))
}

func TestThawerDuplicateNotificationHasNoSideEffects(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.createPendingJob(t, "j1", "u1")
	archiveID, resultKey := e.archiveJob(t, "j1", "u1")
	retrievalJobID := e.beginRestore(t, "j1", archiveID)

	th := workers.NewThawer(e.st.Job(), e.hot, e.cold)
	msg := encodeMsg(t, events.ThawCompleted{
		RetrievalJobID: retrievalJobID,
		ArchiveID:      archiveID,
		StatusCode:     events.RetrievalSucceeded,
	})
	require.NoError(t, th.Handle(ctx, msg))

	// the archive id no longer resolves to a job; the replay is dropped
	err := th.Handle(ctx, msg)
	require.Error(t, err)
	require.True(t, workers.IsTerminal(err))

	require.True(t, e.hot.Exists(resultsBucket, resultKey))
}

func TestThawerRejectsMalformedNotifications(t *testing.T) {
	e := newEnv(t)

	th := workers.NewThawer(e.st.Job(), e.hot, e.cold)
	err := th.Handle(context.Background(), encodeMsg(t, events.ThawCompleted{
		RetrievalJobID: "r1",
		StatusCode:     events.RetrievalSucceeded,
	}))
	require.Error(t, err)
	require.True(t, workers.IsTerminal(err))
}
