package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/campaigner/config"
	srv "github.com/mohammad-safakhou/campaigner/internal/server"
)

func migrateCMD(cfgPath *string) *cobra.Command {
	const migDirDefault = "file://migrations"
	var (
		migDir string
		steps  int
	)
	migrate := &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Run Postgres store migrations",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*cfgPath)
			if err != nil {
				return err
			}
			if err := cfg.Storage.Postgres.Validate(); err != nil {
				return fmt.Errorf("postgres not configured: %w", err)
			}
			direction := "up"
			if len(args) == 1 {
				direction = args[0]
			}
			if err := srv.Migrate(migDir, cfg.Storage.Postgres.DSN(), direction, steps); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrations %s: done\n", direction)
			return nil
		},
	}
	migrate.Flags().StringVar(&migDir, "dir", migDirDefault, "migrations source (file://migrations)")
	migrate.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")
	return migrate
}
