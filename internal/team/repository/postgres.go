package repository

import (
	"context"
	"database/sql"
	"errors"

	"tenantdesk/backend/internal/db"
	"tenantdesk/backend/internal/team/domain"
)

// Columns selects a team aliased as t.
const Columns = `t.id, t.organization_id, t.name, t.slug, t.description, t.is_active, t.created_at, t.updated_at,
	t.created_by, t.updated_by`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a team repository that uses the given db for persistence.
func NewPostgresRepository(conn *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// GetActive returns the team for id in orgID, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetActive(ctx context.Context, orgID, id int64) (*domain.Team, error) {
	t, err := scanTeam(db.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+Columns+` FROM teams t WHERE t.id = $1 AND t.organization_id = $2 AND t.is_active`, id, orgID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

// List returns active teams matching f, newest first.
func (r *PostgresRepository) List(ctx context.Context, f domain.Filter) ([]*domain.Team, error) {
	var w db.Where
	w.Add("t.organization_id = ?", f.OrgID).
		Add("t.is_active").
		AddIf(f.Name != "", "t.name = ?", f.Name).
		AddIf(f.NameContains != "", "t.name ILIKE ?", db.Contains(f.NameContains)).
		AddIf(f.Slug != "", "t.slug = ?", f.Slug).
		AddIf(f.SlugContains != "", "t.slug ILIKE ?", db.Contains(f.SlugContains))
	clause, args := w.SQL()
	rows, err := db.Conn(ctx, r.db).QueryContext(ctx, `SELECT `+Columns+` FROM teams t`+clause+` ORDER BY t.id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Team
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Create(ctx context.Context, t *domain.Team) error {
	row := db.Conn(ctx, r.db).QueryRowContext(ctx, `
		INSERT INTO teams (organization_id, name, slug, description, is_active, created_by, updated_by)
		VALUES ($1, $2, $3, $4, TRUE, $5, $6)
		RETURNING id, is_active, created_at, updated_at`,
		t.OrgID, t.Name, t.Slug, db.NullString(t.Description), db.NullInt64(t.CreatedBy), db.NullInt64(t.UpdatedBy))
	return row.Scan(&t.ID, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
}

func (r *PostgresRepository) Update(ctx context.Context, t *domain.Team) error {
	row := db.Conn(ctx, r.db).QueryRowContext(ctx, `
		UPDATE teams SET name = $2, slug = $3, description = $4, updated_by = $5, updated_at = now()
		WHERE id = $1 RETURNING updated_at`,
		t.ID, t.Name, t.Slug, db.NullString(t.Description), db.NullInt64(t.UpdatedBy))
	return row.Scan(&t.UpdatedAt)
}

// Deactivate soft-deletes the team.
func (r *PostgresRepository) Deactivate(ctx context.Context, id int64, updatedBy *int64) error {
	_, err := db.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE teams SET is_active = FALSE, updated_by = $2, updated_at = now() WHERE id = $1`,
		id, db.NullInt64(updatedBy))
	return err
}

func (r *PostgresRepository) HasActiveMember(ctx context.Context, teamID, memberID int64) (bool, error) {
	var ok bool
	err := db.Conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM team_members tm JOIN members m ON m.id = tm.member_id
			WHERE tm.team_id = $1 AND tm.member_id = $2 AND tm.is_active AND m.is_active
		)`, teamID, memberID).Scan(&ok)
	return ok, err
}

type scanner interface {
	Scan(dest ...any) error
}

// Dest returns scan destinations for Columns. Call finish after a successful Scan.
func Dest(t *domain.Team) (dest []any, finish func()) {
	var (
		description      sql.NullString
		created, updated sql.NullInt64
	)
	dest = []any{&t.ID, &t.OrgID, &t.Name, &t.Slug, &description, &t.IsActive, &t.CreatedAt, &t.UpdatedAt, &created, &updated}
	return dest, func() {
		t.Description = db.StringPtr(description)
		t.CreatedBy = db.Int64Ptr(created)
		t.UpdatedBy = db.Int64Ptr(updated)
	}
}

func scanTeam(s scanner) (*domain.Team, error) {
	var t domain.Team
	dest, finish := Dest(&t)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	finish()
	return &t, nil
}
