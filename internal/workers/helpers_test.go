package workers_test

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/seqworks/annotation-pipeline/internal/entitlement"
	"github.com/seqworks/annotation-pipeline/internal/events"
	"github.com/seqworks/annotation-pipeline/internal/queue"
	"github.com/seqworks/annotation-pipeline/internal/runner"
	"github.com/seqworks/annotation-pipeline/internal/storage"
	"github.com/seqworks/annotation-pipeline/internal/store"
	"github.com/seqworks/annotation-pipeline/internal/store/model"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	inputsBucket  = "inputs"
	resultsBucket = "results"
)

type env struct {
	st           store.Store
	hot          *storage.MemoryObjectStore
	cold         *storage.MemoryColdStore
	completed    *queue.MemoryQueue
	entitlements *entitlement.StaticService
	staging      string
}

func newEnv(t *testing.T) *env {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "workers.db")), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	st := store.NewStore(db)
	require.NoError(t, st.InitialMigration(context.Background()))
	t.Cleanup(func() { _ = st.Close() })

	return &env{
		st:           st,
		hot:          storage.NewMemoryObjectStore(),
		cold:         storage.NewMemoryColdStore(),
		completed:    queue.NewMemoryQueue(time.Minute),
		entitlements: &entitlement.StaticService{Tiers: map[string]entitlement.Tier{}},
		staging:      t.TempDir(),
	}
}

// createPendingJob writes the job record and stages the input object in
// hot storage, the way the out-of-scope web layer would.
func (e *env) createPendingJob(t *testing.T, jobID, userID string) *model.Job {
	t.Helper()

	inputKey := userID + "/" + jobID + "/sample.vcf"
	require.NoError(t, e.hot.PutObject(context.Background(), inputsBucket, inputKey,
		bytes.NewReader([]byte("chr1\t123\tA\tG\n")), 14))

	job, err := e.st.Job().Create(context.Background(), model.Job{
		JobID:         jobID,
		UserID:        userID,
		Email:         userID + "@example.com",
		Status:        model.JobStatusPending,
		InputFileName: "sample.vcf",
		InputBucket:   inputsBucket,
		InputKey:      inputKey,
		SubmitTime:    time.Now().UTC(),
	})
	require.NoError(t, err)
	return job
}

// completeJob pushes a job straight to COMPLETED with its result object
// in hot storage, skipping the dispatch phase.
func (e *env) completeJob(t *testing.T, jobID, userID string) (resultKey string) {
	t.Helper()
	ctx := context.Background()

	resultKey = userID + "/" + jobID + "/sample.annot.vcf"
	logKey := userID + "/" + jobID + "/sample.vcf.count.log"
	require.NoError(t, e.hot.PutObject(ctx, resultsBucket, resultKey,
		bytes.NewReader([]byte("annotated")), 9))
	require.NoError(t, e.hot.PutObject(ctx, resultsBucket, logKey,
		bytes.NewReader([]byte("log")), 3))

	require.NoError(t, e.st.Job().MarkRunning(ctx, jobID))
	require.NoError(t, e.st.Job().Complete(ctx, jobID, time.Now().UTC(), resultsBucket, resultKey, logKey))
	return resultKey
}

func (e *env) archiveJob(t *testing.T, jobID, userID string) (archiveID, resultKey string) {
	t.Helper()
	ctx := context.Background()

	resultKey = e.completeJob(t, jobID, userID)
	data, err := e.hot.GetObject(ctx, resultsBucket, resultKey)
	require.NoError(t, err)

	archiveID, err = e.cold.Archive(ctx, data)
	require.NoError(t, err)
	require.NoError(t, e.hot.DeleteObject(ctx, resultsBucket, resultKey))
	require.NoError(t, e.st.Job().BeginArchive(ctx, jobID))
	require.NoError(t, e.st.Job().FinishArchive(ctx, jobID, archiveID))
	return archiveID, resultKey
}

func encodeMsg(t *testing.T, payload any) *queue.Message {
	t.Helper()

	body, err := events.Encode(payload)
	require.NoError(t, err)
	return &queue.Message{ID: "m1", Receipt: "m1", Body: body, ReceiveCount: 1}
}

// fakeLauncher records launches instead of spawning processes.
type fakeLauncher struct {
	mu      sync.Mutex
	specs   []runner.LaunchSpec
	failure error
}

func (l *fakeLauncher) Launch(_ context.Context, spec runner.LaunchSpec) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.failure != nil {
		return l.failure
	}
	l.specs = append(l.specs, spec)
	return nil
}

func (l *fakeLauncher) launches() []runner.LaunchSpec {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]runner.LaunchSpec(nil), l.specs...)
}
