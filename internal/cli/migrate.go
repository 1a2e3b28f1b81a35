package cli

import (
	"fmt"

	"snapletter/internal/infra/config"
	"snapletter/internal/infra/database"
	"snapletter/internal/infra/logger"

	"github.com/spf13/cobra"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate [up|down|status]",
		Short: "Apply or inspect database migrations",
		Long: `Run the embedded schema migrations against DATABASE_URL using the
dialect selected by DATABASE_DRIVER. Defaults to "up".`,
		Args:          cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs:     []string{database.MigrateUp, database.MigrateDown, database.MigrateStatus},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			command := database.MigrateUp
			if len(args) == 1 {
				command = args[0]
			}
			return runMigrate(command)
		},
	}
	return cmd
}

func runMigrate(command string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("could not load configuration: %w", err)
	}
	logger.Init(cfg)
	log := logger.Component("migrate")

	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	log.WithField("driver", cfg.DatabaseDriver).WithField("command", command).Info("Running migrations")
	if err := database.Migrate(db, cfg.DatabaseDriver, command, log); err != nil {
		return err
	}
	log.Info("Migrations finished")
	return nil
}
