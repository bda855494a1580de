package main

import (
	"github.com/spf13/cobra"

	"github.com/emilythestrangee/stackit/backend/internal/database"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, logger, db, err := setup()
			if err != nil {
				return err
			}
			defer db.Close()

			if err := database.Migrate(db.GetDB()); err != nil {
				return err
			}
			logger.Info("schema migrated")
			return nil
		},
	}
}
