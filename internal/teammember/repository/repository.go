package repository

import (
	"context"

	"tenantdesk/backend/internal/teammember/domain"
)

// Repository defines persistence for team members. Returned rows carry Team and Member (with User).
type Repository interface {
	// GetVisible returns the active team member id whose team and member are active and whose team belongs to orgID.
	GetVisible(ctx context.Context, orgID, id int64) (*domain.TeamMember, error)
	// GetActiveForMember returns the caller's own active row on teamID, or nil.
	GetActiveForMember(ctx context.Context, teamID, memberID int64) (*domain.TeamMember, error)
	// GetPair returns the row for (teamID, memberID) regardless of its active flag, or nil.
	GetPair(ctx context.Context, teamID, memberID int64) (*domain.TeamMember, error)
	List(ctx context.Context, f domain.Filter) ([]*domain.TeamMember, error)
	Create(ctx context.Context, tm *domain.TeamMember) error
	// Reactivate re-enables an inactive row in place, keeping its id.
	Reactivate(ctx context.Context, tm *domain.TeamMember) error
	UpdateRole(ctx context.Context, tm *domain.TeamMember) error
	Deactivate(ctx context.Context, id int64, updatedBy *int64) error
}
