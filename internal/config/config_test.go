package config_test

import (
	"testing"
	"time"

	"github.com/seqworks/annotation-pipeline/internal/config"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := config.NewDefault()
	require.NotNil(t, cfg)

	require.Equal(t, "pgsql", cfg.Database.Type)
	require.Equal(t, "postgres", cfg.Queue.Backend)
	require.Equal(t, "job-requests", cfg.Queue.JobRequestQueue)
	require.Equal(t, "job-completed", cfg.Queue.JobCompletedQueue)
	require.Equal(t, "archive-requests", cfg.Queue.ArchiveQueue)
	require.Equal(t, "thaw-completed", cfg.Queue.ThawQueue)
	require.Equal(t, 20*time.Second, cfg.Queue.WaitTime)
	require.Equal(t, 120*time.Second, cfg.Queue.VisibilityTimeout)
	require.Equal(t, 5, cfg.Queue.MaxReceiveCount)
	require.Equal(t, "annotation-runner", cfg.Worker.RunnerCommand)
	require.Equal(t, "info", cfg.Service.LogLevel)
}
