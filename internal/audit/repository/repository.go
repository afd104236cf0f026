package repository

import (
	"context"

	"tenantdesk/backend/internal/audit/domain"
)

// Repository defines persistence for audit logs.
type Repository interface {
	Create(ctx context.Context, a *domain.AuditLog) error
	ListByOrg(ctx context.Context, orgID int64, limit, offset int) ([]*domain.AuditLog, error)
}
