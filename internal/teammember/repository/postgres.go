package repository

import (
	"context"
	"database/sql"
	"errors"

	"tenantdesk/backend/internal/db"
	memberdomain "tenantdesk/backend/internal/membership/domain"
	memberrepo "tenantdesk/backend/internal/membership/repository"
	teamdomain "tenantdesk/backend/internal/team/domain"
	teamrepo "tenantdesk/backend/internal/team/repository"
	"tenantdesk/backend/internal/teammember/domain"
	userrepo "tenantdesk/backend/internal/user/repository"
)

const selectTeamMember = `SELECT tm.id, tm.team_id, tm.member_id, tm.role, tm.is_active, tm.created_at, tm.updated_at,
	tm.created_by, tm.updated_by, ` + teamrepo.Columns + `, ` + memberrepo.MemberColumns + `, ` + userrepo.Columns + `
	FROM team_members tm
	JOIN teams t ON t.id = tm.team_id
	JOIN members m ON m.id = tm.member_id
	JOIN users u ON u.id = m.user_id`

// visible is the default scope: active rows on active teams for active members.
const visible = ` AND tm.is_active AND t.is_active AND m.is_active`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a team member repository that uses the given db for persistence.
func NewPostgresRepository(conn *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// GetVisible returns the team member for id in orgID, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetVisible(ctx context.Context, orgID, id int64) (*domain.TeamMember, error) {
	return r.getOne(ctx, selectTeamMember+` WHERE tm.id = $1 AND t.organization_id = $2`+visible, id, orgID)
}

func (r *PostgresRepository) GetActiveForMember(ctx context.Context, teamID, memberID int64) (*domain.TeamMember, error) {
	return r.getOne(ctx, selectTeamMember+` WHERE tm.team_id = $1 AND tm.member_id = $2 AND tm.is_active`, teamID, memberID)
}

func (r *PostgresRepository) GetPair(ctx context.Context, teamID, memberID int64) (*domain.TeamMember, error) {
	return r.getOne(ctx, selectTeamMember+` WHERE tm.team_id = $1 AND tm.member_id = $2`, teamID, memberID)
}

// List returns visible team members matching f, newest first.
func (r *PostgresRepository) List(ctx context.Context, f domain.Filter) ([]*domain.TeamMember, error) {
	var w db.Where
	w.Add("t.organization_id = ?", f.OrgID).
		Add("tm.is_active AND t.is_active AND m.is_active").
		AddIf(f.TeamID != 0, "tm.team_id = ?", f.TeamID).
		AddIf(f.MemberID != 0, "tm.member_id = ?", f.MemberID).
		AddIf(f.TeamName != "", "t.name = ?", f.TeamName).
		AddIf(f.TeamNameContains != "", "t.name ILIKE ?", db.Contains(f.TeamNameContains)).
		AddIf(f.TeamSlug != "", "t.slug = ?", f.TeamSlug).
		AddIf(f.TeamSlugContains != "", "t.slug ILIKE ?", db.Contains(f.TeamSlugContains)).
		AddIf(f.MemberFullNameContains != "", "u.full_name ILIKE ?", db.Contains(f.MemberFullNameContains)).
		AddIf(f.MemberEmailContains != "", "u.email ILIKE ?", db.Contains(f.MemberEmailContains)).
		In("tm.role", f.Roles)
	clause, args := w.SQL()
	rows, err := db.Conn(ctx, r.db).QueryContext(ctx, selectTeamMember+clause+` ORDER BY tm.id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.TeamMember
	for rows.Next() {
		tm, err := scanTeamMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tm)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Create(ctx context.Context, tm *domain.TeamMember) error {
	row := db.Conn(ctx, r.db).QueryRowContext(ctx, `
		INSERT INTO team_members (team_id, member_id, role, is_active, created_by, updated_by)
		VALUES ($1, $2, $3, TRUE, $4, $5)
		RETURNING id, is_active, created_at, updated_at`,
		tm.TeamID, tm.MemberID, string(tm.Role), db.NullInt64(tm.CreatedBy), db.NullInt64(tm.UpdatedBy))
	return row.Scan(&tm.ID, &tm.IsActive, &tm.CreatedAt, &tm.UpdatedAt)
}

func (r *PostgresRepository) Reactivate(ctx context.Context, tm *domain.TeamMember) error {
	row := db.Conn(ctx, r.db).QueryRowContext(ctx, `
		UPDATE team_members SET is_active = TRUE, role = $2, updated_by = $3, updated_at = now()
		WHERE id = $1 RETURNING is_active, updated_at`,
		tm.ID, string(tm.Role), db.NullInt64(tm.UpdatedBy))
	return row.Scan(&tm.IsActive, &tm.UpdatedAt)
}

func (r *PostgresRepository) UpdateRole(ctx context.Context, tm *domain.TeamMember) error {
	row := db.Conn(ctx, r.db).QueryRowContext(ctx, `
		UPDATE team_members SET role = $2, updated_by = $3, updated_at = now()
		WHERE id = $1 RETURNING updated_at`,
		tm.ID, string(tm.Role), db.NullInt64(tm.UpdatedBy))
	return row.Scan(&tm.UpdatedAt)
}

// Deactivate soft-deletes the team member.
func (r *PostgresRepository) Deactivate(ctx context.Context, id int64, updatedBy *int64) error {
	_, err := db.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE team_members SET is_active = FALSE, updated_by = $2, updated_at = now() WHERE id = $1`,
		id, db.NullInt64(updatedBy))
	return err
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*domain.TeamMember, error) {
	tm, err := scanTeamMember(db.Conn(ctx, r.db).QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return tm, nil
}

func scanTeamMember(s userrepo.Scanner) (*domain.TeamMember, error) {
	var (
		tm               domain.TeamMember
		role             string
		created, updated sql.NullInt64
	)
	tm.Team = &teamdomain.Team{}
	tm.Member = &memberdomain.Member{}
	teamDest, teamFinish := teamrepo.Dest(tm.Team)
	memberDest, memberFinish := memberrepo.Dest(tm.Member)
	dest := []any{&tm.ID, &tm.TeamID, &tm.MemberID, &role, &tm.IsActive, &tm.CreatedAt, &tm.UpdatedAt, &created, &updated}
	dest = append(dest, teamDest...)
	dest = append(dest, memberDest...)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	teamFinish()
	memberFinish()
	tm.Role = memberdomain.Role(role)
	tm.CreatedBy = db.Int64Ptr(created)
	tm.UpdatedBy = db.Int64Ptr(updated)
	return &tm, nil
}
