package repository

import (
	"context"
	"time"

	"tenantdesk/backend/internal/user/domain"
)

// Repository defines persistence for users.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	// GetActiveByEmail returns the first active user with email, compared case-insensitively.
	GetActiveByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, u *domain.User) error
	SetPassword(ctx context.Context, id int64, passwordHash string) error
	// MarkSelfCreated sets created_by and updated_by to the user itself (signup).
	MarkSelfCreated(ctx context.Context, id int64) error
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
}
