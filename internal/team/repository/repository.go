package repository

import (
	"context"

	"tenantdesk/backend/internal/team/domain"
)

// Repository defines persistence for teams.
type Repository interface {
	// GetActive returns the active team id inside orgID, or nil.
	GetActive(ctx context.Context, orgID, id int64) (*domain.Team, error)
	List(ctx context.Context, f domain.Filter) ([]*domain.Team, error)
	Create(ctx context.Context, t *domain.Team) error
	Update(ctx context.Context, t *domain.Team) error
	Deactivate(ctx context.Context, id int64, updatedBy *int64) error
	// HasActiveMember reports whether memberID is an active member of the team and of its organization.
	HasActiveMember(ctx context.Context, teamID, memberID int64) (bool, error)
}
