package main

import (
	"github.com/spf13/cobra"

	invitationrepo "tenantdesk/backend/internal/invitation/repository"
	invitationservice "tenantdesk/backend/internal/invitation/service"
	"tenantdesk/backend/internal/worker"
)

func expireInvitesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expire-invites",
		Short: "Mark every lapsed pending invitation as expired",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, err := openDB()
			if err != nil {
				return err
			}
			defer conn.Close()
			svc := invitationservice.NewInvitationService(invitationrepo.NewPostgresRepository(conn), nil, nil, nil, "", nil)
			n, err := worker.Sweep(cmd.Context(), svc)
			if err != nil {
				return err
			}
			cmd.Printf("Expired %d invitation(s).\n", n)
			return nil
		},
	}
}
