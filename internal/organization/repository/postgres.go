package repository

import (
	"context"
	"database/sql"
	"errors"

	"tenantdesk/backend/internal/db"
	"tenantdesk/backend/internal/organization/domain"
)

const selectOrg = `SELECT o.id, o.name, o.slug, o.owner_id, o.is_active, o.created_at, o.updated_at, o.created_by, o.updated_by
	FROM organizations o`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an organization repository that uses the given db for persistence.
func NewPostgresRepository(conn *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// GetByID returns the organization for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*domain.Org, error) {
	return r.getOne(ctx, selectOrg+` WHERE o.id = $1`, id)
}

func (r *PostgresRepository) GetActiveForUser(ctx context.Context, id, userID int64) (*domain.Org, error) {
	return r.getOne(ctx, selectOrg+` WHERE o.id = $1 AND o.is_active AND EXISTS (
		SELECT 1 FROM members m WHERE m.organization_id = o.id AND m.user_id = $2 AND m.is_active)`, id, userID)
}

// List returns organizations matching f, newest first. Only active ones unless f.IsActive says otherwise.
func (r *PostgresRepository) List(ctx context.Context, f domain.Filter) ([]*domain.Org, error) {
	active := true
	if f.IsActive != nil {
		active = *f.IsActive
	}
	var w db.Where
	w.Add("o.is_active = ?", active).
		AddIf(f.Name != "", "o.name = ?", f.Name).
		AddIf(f.NameContains != "", "o.name ILIKE ?", db.Contains(f.NameContains)).
		AddIf(f.Slug != "", "o.slug = ?", f.Slug).
		AddIf(f.SlugContains != "", "o.slug ILIKE ?", db.Contains(f.SlugContains))
	clause, args := w.SQL()
	rows, err := db.Conn(ctx, r.db).QueryContext(ctx, selectOrg+clause+` ORDER BY o.id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Org
	for rows.Next() {
		o, err := scanOrg(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Create inserts o without an owner and fills its id and timestamps.
func (r *PostgresRepository) Create(ctx context.Context, o *domain.Org) error {
	row := db.Conn(ctx, r.db).QueryRowContext(ctx, `
		INSERT INTO organizations (name, slug, is_active, created_by, updated_by)
		VALUES ($1, $2, TRUE, $3, $4)
		RETURNING id, is_active, created_at, updated_at`,
		o.Name, o.Slug, db.NullInt64(o.CreatedBy), db.NullInt64(o.UpdatedBy))
	return row.Scan(&o.ID, &o.IsActive, &o.CreatedAt, &o.UpdatedAt)
}

func (r *PostgresRepository) SetOwner(ctx context.Context, id, memberID int64) error {
	_, err := db.Conn(ctx, r.db).ExecContext(ctx, `UPDATE organizations SET owner_id = $2 WHERE id = $1`, id, memberID)
	return err
}

func (r *PostgresRepository) Update(ctx context.Context, o *domain.Org) error {
	row := db.Conn(ctx, r.db).QueryRowContext(ctx, `
		UPDATE organizations SET name = $2, slug = $3, updated_by = $4, updated_at = now()
		WHERE id = $1 RETURNING updated_at`,
		o.ID, o.Name, o.Slug, db.NullInt64(o.UpdatedBy))
	return row.Scan(&o.UpdatedAt)
}

// Deactivate soft-deletes the organization.
func (r *PostgresRepository) Deactivate(ctx context.Context, id int64, updatedBy *int64) error {
	_, err := db.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE organizations SET is_active = FALSE, updated_by = $2, updated_at = now() WHERE id = $1`,
		id, db.NullInt64(updatedBy))
	return err
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*domain.Org, error) {
	o, err := scanOrg(db.Conn(ctx, r.db).QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return o, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrg(s scanner) (*domain.Org, error) {
	var (
		o                       domain.Org
		owner, created, updated sql.NullInt64
	)
	if err := s.Scan(&o.ID, &o.Name, &o.Slug, &owner, &o.IsActive, &o.CreatedAt, &o.UpdatedAt, &created, &updated); err != nil {
		return nil, err
	}
	o.OwnerID = db.Int64Ptr(owner)
	o.CreatedBy = db.Int64Ptr(created)
	o.UpdatedBy = db.Int64Ptr(updated)
	return &o, nil
}
