// Command manage holds the operator commands: schema migrations, the one-shot invitation expiry,
// development seed data, organization policies and the audit trail.
package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tenantdesk/backend/internal/config"
	"tenantdesk/backend/internal/db"
	"tenantdesk/backend/internal/platform/logger"
)

var rootCmd = &cobra.Command{
	Use:           "manage",
	Short:         "tenantdesk management commands",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		loaded = cfg
		return logger.Init(config.LoggerConf(cfg))
	},
}

// loaded is the configuration read by the root command before any subcommand runs.
var loaded *config.Config

func init() {
	rootCmd.AddCommand(migrateCmd(), expireInvitesCmd(), seedCmd(), policyCmd(), auditCmd())
}

func openDB() (*sql.DB, error) {
	return db.Open(loaded.DatabaseURL)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.L().Errorw("manage failed", "command", os.Args[1:], "error", err)
		logger.Sync()
		rootCmd.PrintErrln("Error:", err)
		stop()
		os.Exit(1)
	}
}
