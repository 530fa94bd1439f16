package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/fuomag9/kabomba-status/internal/database"
	"github.com/fuomag9/kabomba-status/internal/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage database schema migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply every pending migration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := database.Connect(cfg.Database, false)
		if err != nil {
			return err
		}
		defer database.Close(db)
		return database.RunMigrations(db, cfg.Database)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down [steps]",
	Short: "Roll back migrations (one step by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		steps := 1
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid steps %q: %w", args[0], err)
			}
			steps = n
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := database.Connect(cfg.Database, false)
		if err != nil {
			return err
		}
		defer database.Close(db)

		if err := database.RollbackMigrations(db, cfg.Database, steps); err != nil {
			return err
		}
		logger.Log().WithField("steps", steps).Info("migrations rolled back")
		return nil
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd)
	rootCmd.AddCommand(migrateCmd)
}
