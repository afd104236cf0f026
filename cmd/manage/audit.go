package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tenantdesk/backend/internal/audit/domain"
	auditrepo "tenantdesk/backend/internal/audit/repository"
)

func auditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the audit trail",
	}
	var (
		orgID  int64
		limit  int
		offset int
	)
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Print the newest audit entries of an organization",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 || limit > 1000 {
				return fmt.Errorf("--limit must be between 1 and 1000")
			}
			conn, err := openDB()
			if err != nil {
				return err
			}
			defer conn.Close()
			entries, err := auditrepo.NewPostgresRepository(conn).ListByOrg(cmd.Context(), orgID, limit, offset)
			if err != nil {
				return err
			}
			return printAudit(cmd.OutOrStdout(), entries)
		},
	}
	tail.Flags().Int64Var(&orgID, "org", 0, "organization id")
	tail.Flags().IntVar(&limit, "limit", 50, "number of entries")
	tail.Flags().IntVar(&offset, "offset", 0, "entries to skip")
	_ = tail.MarkFlagRequired("org")
	cmd.AddCommand(tail)
	return cmd
}

func printAudit(w io.Writer, entries []*domain.AuditLog) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tUSER\tACTION\tRESOURCE\tIP")
	for _, e := range entries {
		user := "-"
		if e.UserID != nil {
			user = fmt.Sprint(*e.UserID)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.CreatedAt.UTC().Format("2006-01-02 15:04:05"), user, e.Action, e.Resource, e.IP)
	}
	return tw.Flush()
}
