package repository

import (
	"context"
	"time"

	"tenantdesk/backend/internal/invitation/domain"
)

// Repository defines persistence for invitations.
type Repository interface {
	// GetByKey returns the active invitation with key inside orgID, or nil.
	GetByKey(ctx context.Context, orgID int64, key string) (*domain.Invitation, error)
	// GetOpenByKey returns the active, unexpired, unaccepted invitation with key in any organization, or nil.
	GetOpenByKey(ctx context.Context, key string, now time.Time) (*domain.Invitation, error)
	List(ctx context.Context, f domain.Filter) ([]*domain.Invitation, error)
	Create(ctx context.Context, inv *domain.Invitation) error
	// Update writes a pending invitation and reports false when it was already accepted or expired.
	Update(ctx context.Context, inv *domain.Invitation) (bool, error)
	MarkExpired(ctx context.Context, id int64) error
	// MarkAccepted links memberID and reports false when the invitation was already terminal.
	MarkAccepted(ctx context.Context, id, memberID int64) (bool, error)
	Deactivate(ctx context.Context, id int64, updatedBy *int64) error
	// ExistsPending reports whether a pending invitation for email exists in orgID, ignoring lapsed ones.
	ExistsPending(ctx context.Context, orgID int64, email string, now time.Time) (bool, error)
	// ExpireOverdue flips every active, unexpired invitation whose expired_at passed and returns the count.
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
}
