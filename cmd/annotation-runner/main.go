// annotation-runner wraps one annotation job: it runs the external
// tool on the staged input, then performs the completion phase —
// artifact upload, the COMPLETED transition, the job-completed event
// and staging cleanup. The dispatcher launches one runner per job.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/seqworks/annotation-pipeline/internal/config"
	"github.com/seqworks/annotation-pipeline/internal/queue"
	"github.com/seqworks/annotation-pipeline/internal/runner"
	"github.com/seqworks/annotation-pipeline/internal/storage"
	"github.com/seqworks/annotation-pipeline/internal/store"
	"github.com/seqworks/annotation-pipeline/internal/workers"
	"github.com/seqworks/annotation-pipeline/pkg/log"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	jobID     string
	userID    string
	email     string
	inputPath string
)

var rootCmd = &cobra.Command{
	Use:   "annotation-runner",
	Short: "Run one annotation job to completion",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return fmt.Errorf("reading configuration: %w", err)
		}

		logger := log.InitLog(log.ParseLevel(cfg.Service.LogLevel))
		defer func() { _ = logger.Sync() }()
		undo := zap.ReplaceGlobals(logger)
		defer undo()

		ctx := context.Background()

		if err := runner.Annotate(ctx, cfg.Worker.AnnotateCommand, inputPath); err != nil {
			// the job stays RUNNING; the reconciliation sweep owns it
			return err
		}

		db, err := store.InitDB(cfg)
		if err != nil {
			return fmt.Errorf("initializing data store: %w", err)
		}
		st := store.NewStore(db)
		defer st.Close()

		hot, err := storage.NewMinioStore(
			storage.WithEndpoint(cfg.HotStorage.Endpoint),
			storage.WithAccessKey(cfg.HotStorage.AccessKey),
			storage.WithSecretKey(cfg.HotStorage.SecretKey),
			storage.WithSSL(cfg.HotStorage.UseSSL),
		)
		if err != nil {
			return err
		}

		var completed queue.Queue
		switch cfg.Queue.Backend {
		case "postgres":
			completed = queue.NewDatabaseQueue(st.Queue(), cfg.Queue.JobCompletedQueue, cfg.Queue.VisibilityTimeout, cfg.Queue.MaxReceiveCount)
		case "sqs":
			completed, err = queue.NewSQSQueue(cfg.Queue.AwsRegion, cfg.Queue.JobCompletedQueue)
			if err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown queue backend %q", cfg.Queue.Backend)
		}

		notifier := workers.NewNotifier(st.Job(), hot, completed, cfg.HotStorage.ResultsBucket)
		return notifier.Complete(ctx, workers.CompletedJob{
			JobID:      jobID,
			UserID:     userID,
			Email:      email,
			ResultPath: runner.ResultPath(inputPath),
			LogPath:    runner.LogPath(inputPath),
		})
	},
}

func init() {
	rootCmd.Flags().StringVar(&jobID, "job-id", "", "job identifier")
	rootCmd.Flags().StringVar(&userID, "user-id", "", "owning user identifier")
	rootCmd.Flags().StringVar(&email, "email", "", "owning user email")
	rootCmd.Flags().StringVar(&inputPath, "input", "", "staged input file")
	_ = rootCmd.MarkFlagRequired("job-id")
	_ = rootCmd.MarkFlagRequired("user-id")
	_ = rootCmd.MarkFlagRequired("input")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
