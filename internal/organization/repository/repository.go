package repository

import (
	"context"

	"tenantdesk/backend/internal/organization/domain"
)

// Repository defines persistence for organizations.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*domain.Org, error)
	// GetActiveForUser returns the organization only when it is active and userID holds an active member row in it.
	GetActiveForUser(ctx context.Context, id, userID int64) (*domain.Org, error)
	List(ctx context.Context, f domain.Filter) ([]*domain.Org, error)
	Create(ctx context.Context, o *domain.Org) error
	SetOwner(ctx context.Context, id, memberID int64) error
	Update(ctx context.Context, o *domain.Org) error
	Deactivate(ctx context.Context, id int64, updatedBy *int64) error
}
