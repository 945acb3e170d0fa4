package main

import (
	"context"
	"fmt"

	"github.com/seqworks/annotation-pipeline/internal/config"
	"github.com/seqworks/annotation-pipeline/internal/store"
	"github.com/seqworks/annotation-pipeline/pkg/log"
	"github.com/seqworks/annotation-pipeline/pkg/migrations"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate the db",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return fmt.Errorf("reading configuration: %w", err)
		}

		logger := log.InitLog(log.ParseLevel(cfg.Service.LogLevel))
		defer func() { _ = logger.Sync() }()
		undo := zap.ReplaceGlobals(logger)
		defer undo()

		zap.S().Info("initializing data store")
		db, err := store.InitDB(cfg)
		if err != nil {
			return fmt.Errorf("initializing data store: %w", err)
		}
		st := store.NewStore(db)
		defer st.Close()

		if cfg.Service.MigrationFolder != "" {
			if err := migrations.MigrateStore(db, cfg.Service.MigrationFolder); err != nil {
				return fmt.Errorf("running migrations: %w", err)
			}
		} else if err := st.InitialMigration(context.Background()); err != nil {
			return fmt.Errorf("running initial migration: %w", err)
		}

		zap.S().Info("db migrated")
		return nil
	},
}
