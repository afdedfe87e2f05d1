package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/responder/config"
	"github.com/kilianp07/responder/core/model"
	"github.com/kilianp07/responder/infra/logger"
	"github.com/kilianp07/responder/infra/sqlstore"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the schema and seed reference data",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Store.Driver == "memory" {
		return fmt.Errorf("migrate requires a sql store driver")
	}
	s, err := sqlstore.Open(cfg.Store.Driver, cfg.Store.DSN, logger.New("migrate"))
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	if err := s.Migrate(cmd.Context(), model.DefaultReference()); err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
	return err
}
