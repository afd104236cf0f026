package repository

import (
	"context"
	"time"

	"tenantdesk/backend/internal/session/domain"
)

// Repository defines persistence for sessions.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	Revoke(ctx context.Context, id string) error
	RevokeAllByUser(ctx context.Context, userID int64) error
	// SetOrganization stores the active tenant for the session, replacing any previous value.
	SetOrganization(ctx context.Context, id string, orgID int64) error
	UpdateLastSeen(ctx context.Context, id string, at time.Time) error
	UpdateRefreshToken(ctx context.Context, id, jti, refreshTokenHash string) error
}
