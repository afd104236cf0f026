package repository

import (
	"context"

	"tenantdesk/backend/internal/policy/domain"
)

// Repository defines persistence for organization policies.
type Repository interface {
	ListByOrg(ctx context.Context, orgID int64) ([]*domain.Policy, error)
	// ListEnabledByOrg returns only enabled policies, in name order.
	ListEnabledByOrg(ctx context.Context, orgID int64) ([]*domain.Policy, error)
	// Upsert creates the policy or replaces the rules of the one with the same (org, name).
	Upsert(ctx context.Context, p *domain.Policy) error
	SetEnabled(ctx context.Context, orgID int64, name string, enabled bool) (bool, error)
}
