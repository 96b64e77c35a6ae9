package admin

import (
	"fmt"

	"github.com/cloo-solutions/medrag/internal/database"
	"github.com/spf13/cobra"
)

func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long:  "Apply pending migrations from MIGRATIONS_DIR, or roll back the latest one with --down",
		Args:  cobra.NoArgs,
		RunE:  runMigrate,
	}

	cmd.Flags().Bool("down", false, "Roll back the most recent migration")

	return cmd
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	down, _ := cmd.Flags().GetBool("down")
	if down {
		if err := database.MigrateDown(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Rolled back one migration")
		return nil
	}

	status, err := database.Migrate(cfg.DatabaseURL, cfg.MigrationsDir)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Schema at version %d\n", status.Version)
	return nil
}
