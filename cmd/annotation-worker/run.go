package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/seqworks/annotation-pipeline/internal/config"
	"github.com/seqworks/annotation-pipeline/internal/entitlement"
	"github.com/seqworks/annotation-pipeline/internal/queue"
	"github.com/seqworks/annotation-pipeline/internal/runner"
	"github.com/seqworks/annotation-pipeline/internal/storage"
	"github.com/seqworks/annotation-pipeline/internal/store"
	"github.com/seqworks/annotation-pipeline/internal/workers"
	"github.com/seqworks/annotation-pipeline/pkg/log"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// runWorker wires the shared plumbing (config, logging, store, channel)
// and drives one worker role until a termination signal.
func runWorker(name string, build func(cfg *config.Config, st store.Store) (queue.Queue, workers.Handler, error)) error {
	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("reading configuration: %w", err)
	}

	logger := log.InitLog(log.ParseLevel(cfg.Service.LogLevel))
	defer func() { _ = logger.Sync() }()
	undo := zap.ReplaceGlobals(logger)
	defer undo()

	zap.S().Infof("starting %s", name)
	defer zap.S().Infof("%s stopped", name)

	db, err := store.InitDB(cfg)
	if err != nil {
		return fmt.Errorf("initializing data store: %w", err)
	}
	st := store.NewStore(db)
	defer st.Close()

	q, handler, err := build(cfg, st)
	if err != nil {
		return err
	}

	if cfg.Service.MetricsAddress != "" {
		go serveMetrics(cfg.Service.MetricsAddress)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	return workers.New(name, q, handler, cfg.Queue.WaitTime).Run(ctx)
}

func serveMetrics(address string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(address, mux); err != nil {
		zap.S().Errorw("metrics listener stopped", "address", address, "error", err)
	}
}

func newQueue(cfg *config.Config, st store.Store, name string) (queue.Queue, error) {
	switch cfg.Queue.Backend {
	case "postgres":
		return queue.NewDatabaseQueue(st.Queue(), name, cfg.Queue.VisibilityTimeout, cfg.Queue.MaxReceiveCount), nil
	case "sqs":
		return queue.NewSQSQueue(cfg.Queue.AwsRegion, name)
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.Queue.Backend)
	}
}

func newHotStorage(cfg *config.Config) (storage.ObjectStore, error) {
	return storage.NewMinioStore(
		storage.WithEndpoint(cfg.HotStorage.Endpoint),
		storage.WithAccessKey(cfg.HotStorage.AccessKey),
		storage.WithSecretKey(cfg.HotStorage.SecretKey),
		storage.WithSSL(cfg.HotStorage.UseSSL),
	)
}

var dispatcherCmd = &cobra.Command{
	Use:   "dispatcher",
	Short: "Consume job requests and launch annotation processes",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorker("dispatcher", func(cfg *config.Config, st store.Store) (queue.Queue, workers.Handler, error) {
			q, err := newQueue(cfg, st, cfg.Queue.JobRequestQueue)
			if err != nil {
				return nil, nil, err
			}
			hot, err := newHotStorage(cfg)
			if err != nil {
				return nil, nil, err
			}
			launcher := runner.NewExecLauncher(cfg.Worker.RunnerCommand)
			return q, workers.NewDispatcher(st.Job(), hot, launcher, cfg.Worker.StagingDir), nil
		})
	},
}

var archiverCmd = &cobra.Command{
	Use:   "archiver",
	Short: "Move completed results of non-exempt users to cold storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorker("archiver", func(cfg *config.Config, st store.Store) (queue.Queue, workers.Handler, error) {
			q, err := newQueue(cfg, st, cfg.Queue.JobCompletedQueue)
			if err != nil {
				return nil, nil, err
			}
			hot, err := newHotStorage(cfg)
			if err != nil {
				return nil, nil, err
			}
			cold, err := storage.NewGlacierStore(cfg.ColdStorage.AwsRegion, cfg.ColdStorage.Vault)
			if err != nil {
				return nil, nil, err
			}
			entitlements := entitlement.NewStoreService(st.User())
			return q, workers.NewArchiver(st.Job(), entitlements, hot, cold), nil
		})
	},
}

var restorerCmd = &cobra.Command{
	Use:   "restorer",
	Short: "Initiate cold-storage retrievals for upgraded users",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorker("restorer", func(cfg *config.Config, st store.Store) (queue.Queue, workers.Handler, error) {
			q, err := newQueue(cfg, st, cfg.Queue.ArchiveQueue)
			if err != nil {
				return nil, nil, err
			}
			cold, err := storage.NewGlacierStore(cfg.ColdStorage.AwsRegion, cfg.ColdStorage.Vault)
			if err != nil {
				return nil, nil, err
			}
			return q, workers.NewRestorer(st.Job(), cold), nil
		})
	},
}

var thawerCmd = &cobra.Command{
	Use:   "thawer",
	Short: "Copy retrieved archives back to hot storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorker("thawer", func(cfg *config.Config, st store.Store) (queue.Queue, workers.Handler, error) {
			q, err := newQueue(cfg, st, cfg.Queue.ThawQueue)
			if err != nil {
				return nil, nil, err
			}
			hot, err := newHotStorage(cfg)
			if err != nil {
				return nil, nil, err
			}
			cold, err := storage.NewGlacierStore(cfg.ColdStorage.AwsRegion, cfg.ColdStorage.Vault)
			if err != nil {
				return nil, nil, err
			}
			return q, workers.NewThawer(st.Job(), hot, cold), nil
		})
	},
}
