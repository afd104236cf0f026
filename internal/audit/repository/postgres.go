package repository

import (
	"context"
	"database/sql"

	"tenantdesk/backend/internal/audit/domain"
	"tenantdesk/backend/internal/db"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit log repository that uses the given db for persistence.
func NewPostgresRepository(conn *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// Create persists the audit log. The audit log must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	_, err := db.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO audit_logs (id, organization_id, user_id, action, resource, ip, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, db.NullInt64(a.OrgID), db.NullInt64(a.UserID), a.Action, a.Resource, a.IP, a.Metadata, a.CreatedAt)
	return err
}

// ListByOrg returns audit logs for the given org, newest first.
func (r *PostgresRepository) ListByOrg(ctx context.Context, orgID int64, limit, offset int) ([]*domain.AuditLog, error) {
	rows, err := db.Conn(ctx, r.db).QueryContext(ctx, `
		SELECT id, organization_id, user_id, action, resource, ip, metadata, created_at
		FROM audit_logs WHERE organization_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, orgID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.AuditLog
	for rows.Next() {
		var (
			a           domain.AuditLog
			org, userID sql.NullInt64
		)
		if err := rows.Scan(&a.ID, &org, &userID, &a.Action, &a.Resource, &a.IP, &a.Metadata, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.OrgID = db.Int64Ptr(org)
		a.UserID = db.Int64Ptr(userID)
		out = append(out, &a)
	}
	return out, rows.Err()
}
