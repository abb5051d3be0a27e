package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg := appConfig
	if cfg.Audit.Driver == "none" {
		return errors.New("audit.driver is none; nothing to migrate")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	auditDB, err := openAudit(ctx, cfg)
	if err != nil {
		return err
	}
	defer auditDB.Close()

	if err := auditDB.repo.Migrate(ctx); err != nil {
		return err
	}
	logger.Info("audit schema ready", zap.String("driver", cfg.Audit.Driver))
	return nil
}
