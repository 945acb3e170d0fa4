package queue_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/seqworks/annotation-pipeline/internal/queue"
	"github.com/seqworks/annotation-pipeline/internal/store"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestQueues(t *testing.T) store.Queue {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "queue.db")), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	st := store.NewStore(db)
	require.NoError(t, st.InitialMigration(context.Background()))
	t.Cleanup(func() { _ = st.Close() })
	return st.Queue()
}

func TestDatabaseQueueRoundTrip(t *testing.T) {
	q := queue.NewDatabaseQueue(newTestQueues(t), "jobs", time.Minute, 5)
	ctx := context.Background()

	require.NoError(t, q.Send(ctx, []byte("payload")))

	msg, err := q.Receive(ctx, 2*time.Second)
	require.NoError(t, err)
	require.NotNil(t, msg)
	require.Equal(t, []byte("payload"), msg.Body)

	require.NoError(t, q.Ack(ctx, msg))

	none, err := q.Receive(ctx, 10*time.Millisecond)
	require.NoError(t, err)
	require.Nil(t, none)
}

func TestDatabaseQueueReceiveTimesOut(t *testing.T) {
	q := queue.NewDatabaseQueue(newTestQueues(t), "jobs", time.Minute, 5)

	start := time.Now()
	msg, err := q.Receive(context.Background(), 10*time.Millisecond)
	require.NoError(t, err)
	require.Nil(t, msg)

	elapsed := time.Since(start)
	require.GreaterOrEqual(t, elapsed, 10*time.Millisecond)
	// the wait bounds the poll sleep; a short wait must not block for a
	// full poll interval
	require.Less(t, elapsed, 250*time.Millisecond)
}
