package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"tenantdesk/backend/internal/db"
	"tenantdesk/backend/internal/session/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(conn *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	var (
		s                 domain.Session
		org               sql.NullInt64
		revoked, lastSeen sql.NullTime
	)
	err := db.Conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT id::text, user_id, organization_id, expires_at, revoked_at, last_seen_at, ip_address,
			refresh_jti, refresh_token_hash, created_at
		FROM sessions WHERE id = $1`, id).
		Scan(&s.ID, &s.UserID, &org, &s.ExpiresAt, &revoked, &lastSeen, &s.IPAddress,
			&s.RefreshJti, &s.RefreshTokenHash, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	s.OrgID = db.Int64Ptr(org)
	s.RevokedAt = db.TimePtr(revoked)
	s.LastSeenAt = db.TimePtr(lastSeen)
	return &s, nil
}

// Create persists the session. The session must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := db.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, organization_id, expires_at, ip_address, refresh_jti, refresh_token_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.UserID, db.NullInt64(s.OrgID), s.ExpiresAt, s.IPAddress, s.RefreshJti, s.RefreshTokenHash, s.CreatedAt)
	return err
}

// Revoke marks the session as revoked.
func (r *PostgresRepository) Revoke(ctx context.Context, id string) error {
	_, err := db.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE sessions SET revoked_at = now() WHERE id = $1 AND revoked_at IS NULL`, id)
	return err
}

// RevokeAllByUser revokes every open session of the user.
func (r *PostgresRepository) RevokeAllByUser(ctx context.Context, userID int64) error {
	_, err := db.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE sessions SET revoked_at = now() WHERE user_id = $1 AND revoked_at IS NULL`, userID)
	return err
}

func (r *PostgresRepository) SetOrganization(ctx context.Context, id string, orgID int64) error {
	_, err := db.Conn(ctx, r.db).ExecContext(ctx, `UPDATE sessions SET organization_id = $2 WHERE id = $1`, id, orgID)
	return err
}

func (r *PostgresRepository) UpdateLastSeen(ctx context.Context, id string, at time.Time) error {
	_, err := db.Conn(ctx, r.db).ExecContext(ctx, `UPDATE sessions SET last_seen_at = $2 WHERE id = $1`, id, at)
	return err
}

// UpdateRefreshToken sets the session's current refresh token jti and hash for rotation.
func (r *PostgresRepository) UpdateRefreshToken(ctx context.Context, id, jti, refreshTokenHash string) error {
	_, err := db.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE sessions SET refresh_jti = $2, refresh_token_hash = $3 WHERE id = $1`, id, jti, refreshTokenHash)
	return err
}
