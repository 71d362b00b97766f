package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rongwang/checkin-server/internal/config"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "migrate",
		Short:        "Apply database migrations and exit",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(rootOpts)
			logger := newLogger(rootOpts)

			// SetupDatabase migrates as part of opening the connection
			db, err := config.SetupDatabase(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			var version int
			if err := db.Get(&version, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`); err != nil {
				return fmt.Errorf("failed to read schema version: %w", err)
			}

			logger.Info("database migrated", "driver", cfg.Database.Driver, "version", version)
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
			return nil
		},
	}
}
