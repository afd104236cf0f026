package repository

import (
	"context"

	"tenantdesk/backend/internal/membership/domain"
)

// Repository defines persistence for organization members. Returned members carry their User.
type Repository interface {
	// GetByID returns the member regardless of its active flag, or nil if not found.
	GetByID(ctx context.Context, id int64) (*domain.Member, error)
	// GetActive returns the active member for (userID, orgID) whose user is active, or nil.
	GetActive(ctx context.Context, userID, orgID int64) (*domain.Member, error)
	List(ctx context.Context, f domain.Filter) ([]*domain.Member, error)
	Create(ctx context.Context, m *domain.Member) error
	Update(ctx context.Context, m *domain.Member) error
	UpdateRole(ctx context.Context, id int64, role domain.Role, updatedBy *int64) error
	Deactivate(ctx context.Context, id int64, updatedBy *int64) error
	// ExistsForUser reports whether any member row links userID to orgID.
	ExistsForUser(ctx context.Context, userID, orgID int64) (bool, error)
	// ExistsActiveByEmail reports whether an active user with email has an active member row in orgID.
	ExistsActiveByEmail(ctx context.Context, orgID int64, email string) (bool, error)
}
