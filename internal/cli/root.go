package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/rongwang/checkin-server/internal/config"
	"github.com/rongwang/checkin-server/internal/utils"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Driver  string // overrides DB_DRIVER when set
}

// NewRootCommand creates the root command for the check-in server CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "checkin-server",
		Short: "Event check-in server",
		Long:  "Runs the event check-in API and its administrative tasks: migrations, fixture seeding and staff accounts.",
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", "", "database driver (postgres|sqlite), overrides DB_DRIVER")

	// Add subcommands
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewCreateStaffCommand(opts))

	return cmd
}

// loadConfig reads the environment and applies global flag overrides.
func loadConfig(opts *RootOptions) *config.Config {
	cfg := config.LoadConfig()
	if opts.Driver != "" {
		cfg.Database.Driver = opts.Driver
	}
	return cfg
}

func newLogger(opts *RootOptions) *utils.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return utils.NewLoggerTo(os.Stdout, level)
}
