package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"tenantdesk/backend/internal/db"
	"tenantdesk/backend/internal/invitation/domain"
	memberdomain "tenantdesk/backend/internal/membership/domain"
)

const selectInvitation = `SELECT i.id, i.organization_id, i.email, i.role, i.key::text, i.expired_at, i.is_expired,
	i.is_accepted, i.member_id, i.is_active, i.created_at, i.updated_at, i.created_by, i.updated_by
	FROM invitations i`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an invitation repository that uses the given db for persistence.
func NewPostgresRepository(conn *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// GetByKey returns the invitation for key in orgID, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByKey(ctx context.Context, orgID int64, key string) (*domain.Invitation, error) {
	return r.getOne(ctx, selectInvitation+` WHERE i.key = $1 AND i.organization_id = $2 AND i.is_active`, key, orgID)
}

func (r *PostgresRepository) GetOpenByKey(ctx context.Context, key string, now time.Time) (*domain.Invitation, error) {
	return r.getOne(ctx, selectInvitation+` WHERE i.key = $1 AND i.is_active AND NOT i.is_expired
		AND NOT i.is_accepted AND (i.expired_at IS NULL OR i.expired_at >= $2)`, key, now)
}

// List returns active invitations matching f, newest first.
func (r *PostgresRepository) List(ctx context.Context, f domain.Filter) ([]*domain.Invitation, error) {
	var w db.Where
	w.Add("i.organization_id = ?", f.OrgID).
		Add("i.is_active").
		AddIf(f.Email != "", "i.email = ?", f.Email).
		AddIf(f.EmailContains != "", "i.email ILIKE ?", db.Contains(f.EmailContains)).
		In("i.role", f.Roles)
	if f.IsAccepted != nil {
		w.Add("i.is_accepted = ?", *f.IsAccepted)
	}
	if f.IsExpired != nil {
		w.Add("i.is_expired = ?", *f.IsExpired)
	}
	if f.ExpiredAt != nil {
		w.Add("i.expired_at = ?", *f.ExpiredAt)
	}
	if f.ExpiredAtGT != nil {
		w.Add("i.expired_at > ?", *f.ExpiredAtGT)
	}
	if f.ExpiredAtLT != nil {
		w.Add("i.expired_at < ?", *f.ExpiredAtLT)
	}
	clause, args := w.SQL()
	rows, err := db.Conn(ctx, r.db).QueryContext(ctx, selectInvitation+clause+` ORDER BY i.id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// Create inserts inv. The key must already be set.
func (r *PostgresRepository) Create(ctx context.Context, inv *domain.Invitation) error {
	row := db.Conn(ctx, r.db).QueryRowContext(ctx, `
		INSERT INTO invitations (organization_id, email, role, key, expired_at, is_expired, is_accepted, is_active, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, TRUE, $7, $8)
		RETURNING id, is_active, created_at, updated_at`,
		inv.OrgID, inv.Email, string(inv.Role), inv.Key, db.NullTime(inv.ExpiredAt), inv.IsExpired,
		db.NullInt64(inv.CreatedBy), db.NullInt64(inv.UpdatedBy))
	return row.Scan(&inv.ID, &inv.IsActive, &inv.CreatedAt, &inv.UpdatedAt)
}

// Update writes the editable fields of a pending invitation. Key, organization and acceptance
// never change here.
func (r *PostgresRepository) Update(ctx context.Context, inv *domain.Invitation) (bool, error) {
	row := db.Conn(ctx, r.db).QueryRowContext(ctx, `
		UPDATE invitations SET email = $2, role = $3, expired_at = $4, is_expired = $5, updated_by = $6, updated_at = now()
		WHERE id = $1 AND NOT is_accepted AND NOT is_expired RETURNING updated_at`,
		inv.ID, inv.Email, string(inv.Role), db.NullTime(inv.ExpiredAt), inv.IsExpired, db.NullInt64(inv.UpdatedBy))
	if err := row.Scan(&inv.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *PostgresRepository) MarkExpired(ctx context.Context, id int64) error {
	_, err := db.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE invitations SET is_expired = TRUE, updated_at = now() WHERE id = $1`, id)
	return err
}

func (r *PostgresRepository) MarkAccepted(ctx context.Context, id, memberID int64) (bool, error) {
	res, err := db.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE invitations SET is_accepted = TRUE, member_id = $2, updated_at = now()
		WHERE id = $1 AND NOT is_accepted AND NOT is_expired`, id, memberID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// Deactivate soft-deletes the invitation.
func (r *PostgresRepository) Deactivate(ctx context.Context, id int64, updatedBy *int64) error {
	_, err := db.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE invitations SET is_active = FALSE, updated_by = $2, updated_at = now() WHERE id = $1`,
		id, db.NullInt64(updatedBy))
	return err
}

func (r *PostgresRepository) ExistsPending(ctx context.Context, orgID int64, email string, now time.Time) (bool, error) {
	var ok bool
	err := db.Conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM invitations
			WHERE organization_id = $1 AND lower(email) = lower($2) AND is_active AND NOT is_expired AND NOT is_accepted
			AND (expired_at IS NULL OR expired_at >= $3)
		)`, orgID, email, now).Scan(&ok)
	return ok, err
}

func (r *PostgresRepository) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	res, err := db.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE invitations SET is_expired = TRUE, updated_at = now()
		WHERE is_active AND NOT is_expired AND expired_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*domain.Invitation, error) {
	inv, err := scanInvitation(db.Conn(ctx, r.db).QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return inv, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInvitation(s scanner) (*domain.Invitation, error) {
	var (
		inv                      domain.Invitation
		role                     string
		expiredAt                sql.NullTime
		member, created, updated sql.NullInt64
	)
	if err := s.Scan(&inv.ID, &inv.OrgID, &inv.Email, &role, &inv.Key, &expiredAt, &inv.IsExpired,
		&inv.IsAccepted, &member, &inv.IsActive, &inv.CreatedAt, &inv.UpdatedAt, &created, &updated); err != nil {
		return nil, err
	}
	inv.Role = memberdomain.Role(role)
	inv.ExpiredAt = db.TimePtr(expiredAt)
	inv.MemberID = db.Int64Ptr(member)
	inv.CreatedBy = db.Int64Ptr(created)
	inv.UpdatedBy = db.Int64Ptr(updated)
	return &inv, nil
}
