package main

import (
	"github.com/spf13/cobra"

	"tenantdesk/backend/internal/db/migrate"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the embedded schema migrations",
	}
	for _, direction := range []string{"up", "down"} {
		cmd.AddCommand(&cobra.Command{
			Use:   direction,
			Short: "Migrate " + direction,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := migrate.Run(loaded.DatabaseURL, direction); err != nil {
					return err
				}
				cmd.Printf("migrated %s\n", direction)
				return nil
			},
		})
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, dirty, err := migrate.Version(loaded.DatabaseURL)
			if err != nil {
				return err
			}
			cmd.Printf("version %d (dirty: %t)\n", v, dirty)
			return nil
		},
	})
	return cmd
}
