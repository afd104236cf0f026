package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"tenantdesk/backend/internal/db"
	"tenantdesk/backend/internal/policy/domain"
)

const columns = `id::text, organization_id, name, rules, enabled, created_at, updated_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a policy repository that uses the given db for persistence.
func NewPostgresRepository(conn *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// ListByOrg returns all policies for the given org. Returns (nil, error) only on database errors.
func (r *PostgresRepository) ListByOrg(ctx context.Context, orgID int64) ([]*domain.Policy, error) {
	return r.list(ctx, `SELECT `+columns+` FROM org_policies WHERE organization_id = $1 ORDER BY name`, orgID)
}

func (r *PostgresRepository) ListEnabledByOrg(ctx context.Context, orgID int64) ([]*domain.Policy, error) {
	return r.list(ctx, `SELECT `+columns+` FROM org_policies WHERE organization_id = $1 AND enabled ORDER BY name`, orgID)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Policy, error) {
	rows, err := db.Conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Policy
	for rows.Next() {
		var p domain.Policy
		if err := rows.Scan(&p.ID, &p.OrgID, &p.Name, &p.Rules, &p.Enabled, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// Upsert persists p. A new policy gets a fresh id; an existing (org, name) keeps its id.
func (r *PostgresRepository) Upsert(ctx context.Context, p *domain.Policy) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	row := db.Conn(ctx, r.db).QueryRowContext(ctx, `
		INSERT INTO org_policies (id, organization_id, name, rules, enabled)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (organization_id, name)
		DO UPDATE SET rules = EXCLUDED.rules, enabled = EXCLUDED.enabled, updated_at = now()
		RETURNING id::text, created_at, updated_at`,
		p.ID, p.OrgID, p.Name, p.Rules, p.Enabled)
	return row.Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

// SetEnabled toggles a policy by name. Reports false when no such policy exists.
func (r *PostgresRepository) SetEnabled(ctx context.Context, orgID int64, name string, enabled bool) (bool, error) {
	res, err := db.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE org_policies SET enabled = $3, updated_at = now() WHERE organization_id = $1 AND name = $2`,
		orgID, name, enabled)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
