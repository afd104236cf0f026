package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"tenantdesk/backend/internal/db"
	memberdomain "tenantdesk/backend/internal/membership/domain"
	memberrepo "tenantdesk/backend/internal/membership/repository"
	orgdomain "tenantdesk/backend/internal/organization/domain"
	orgrepo "tenantdesk/backend/internal/organization/repository"
	orgservice "tenantdesk/backend/internal/organization/service"
	"tenantdesk/backend/internal/platform/logger"
	"tenantdesk/backend/internal/security"
	teamdomain "tenantdesk/backend/internal/team/domain"
	teamrepo "tenantdesk/backend/internal/team/repository"
	teammemberdomain "tenantdesk/backend/internal/teammember/domain"
	teammemberrepo "tenantdesk/backend/internal/teammember/repository"
	userdomain "tenantdesk/backend/internal/user/domain"
	userrepo "tenantdesk/backend/internal/user/repository"
)

const (
	seedOwner  = "owner"
	seedMember = "member"
	seedOrg    = "acme"
)

func seedCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert development data (idempotent)",
		Long: "Creates users owner and member, the organization acme owned by owner with member as a MEMBER, " +
			"and the team core. Does nothing when the owner user already exists.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if loaded.IsProduction() {
				return fmt.Errorf("seed refuses to run with APP_ENV=production")
			}
			if err := userdomain.ValidatePassword(password); err != nil {
				return err
			}
			conn, err := openDB()
			if err != nil {
				return err
			}
			defer conn.Close()
			created, err := seed(cmd.Context(), seedStores{
				tx:          db.NewTransactor(conn),
				users:       userrepo.NewPostgresRepository(conn),
				orgs:        orgrepo.NewPostgresRepository(conn),
				members:     memberrepo.NewPostgresRepository(conn),
				teams:       teamrepo.NewPostgresRepository(conn),
				teamMembers: teammemberrepo.NewPostgresRepository(conn),
				hasher:      security.NewPasswordHasher(loaded.BcryptCost),
			}, password)
			if err != nil {
				return err
			}
			if !created {
				cmd.Println("Seed already applied (user owner exists). Skipping.")
				return nil
			}
			cmd.Printf("Seeded users %s and %s (password %q), organization %s and team core.\n", seedOwner, seedMember, password, seedOrg)
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "password123", "password for the seeded users")
	return cmd
}

type seedStores struct {
	tx          db.Transactor
	users       *userrepo.PostgresRepository
	orgs        *orgrepo.PostgresRepository
	members     *memberrepo.PostgresRepository
	teams       *teamrepo.PostgresRepository
	teamMembers *teammemberrepo.PostgresRepository
	hasher      *security.PasswordHasher
}

func seed(ctx context.Context, s seedStores, password string) (bool, error) {
	existing, err := s.users.GetByUsername(ctx, seedOwner)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return false, err
	}
	orgs := orgservice.NewOrganizationService(s.tx, s.orgs, s.members, nil, nil)

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		owner := &userdomain.User{Username: seedOwner, Email: "owner@acme.test", FirstName: "Olivia", LastName: "Owner", PasswordHash: hash, IsActive: true}
		if err := s.users.Create(ctx, owner); err != nil {
			return fmt.Errorf("create owner: %w", err)
		}
		member := &userdomain.User{Username: seedMember, Email: "member@acme.test", FirstName: "Max", LastName: "Member", PasswordHash: hash, IsActive: true}
		if err := s.users.Create(ctx, member); err != nil {
			return fmt.Errorf("create member: %w", err)
		}

		org := &orgdomain.Org{Name: "Acme", Slug: seedOrg, CreatedBy: &owner.ID, UpdatedBy: &owner.ID}
		ownerMember, err := orgs.CreateWithOwner(ctx, org, owner.ID, "boss")
		if err != nil {
			return fmt.Errorf("create organization: %w", err)
		}
		plain := &memberdomain.Member{UserID: member.ID, OrgID: org.ID, Role: memberdomain.RoleMember, CreatedBy: &owner.ID, UpdatedBy: &owner.ID}
		if err := s.members.Create(ctx, plain); err != nil {
			return fmt.Errorf("add member: %w", err)
		}

		team := &teamdomain.Team{OrgID: org.ID, Name: "Core", Slug: "core", CreatedBy: &owner.ID, UpdatedBy: &owner.ID}
		if err := s.teams.Create(ctx, team); err != nil {
			return fmt.Errorf("create team: %w", err)
		}
		for _, tm := range []*teammemberdomain.TeamMember{
			{TeamID: team.ID, MemberID: ownerMember.ID, Role: memberdomain.RoleOwner, CreatedBy: &owner.ID, UpdatedBy: &owner.ID},
			{TeamID: team.ID, MemberID: plain.ID, Role: memberdomain.RoleMember, CreatedBy: &owner.ID, UpdatedBy: &owner.ID},
		} {
			if err := s.teamMembers.Create(ctx, tm); err != nil {
				return fmt.Errorf("add team member: %w", err)
			}
		}
		logger.L().Infow("seed: created", "organization_id", org.ID, "team_id", team.ID)
		return nil
	})
	return err == nil, err
}
