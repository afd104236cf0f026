package repository

import (
	"context"
	"database/sql"
	"errors"

	"tenantdesk/backend/internal/db"
	"tenantdesk/backend/internal/membership/domain"
	userdomain "tenantdesk/backend/internal/user/domain"
	userrepo "tenantdesk/backend/internal/user/repository"
)

const selectMember = `SELECT ` + MemberColumns + `, ` + userrepo.Columns + `
	FROM members m JOIN users u ON u.id = m.user_id`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a member repository that uses the given db for persistence.
func NewPostgresRepository(conn *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// GetByID returns the member for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*domain.Member, error) {
	return r.getOne(ctx, selectMember+` WHERE m.id = $1`, id)
}

// GetActive returns the active member linking userID to orgID, or nil if not found.
func (r *PostgresRepository) GetActive(ctx context.Context, userID, orgID int64) (*domain.Member, error) {
	return r.getOne(ctx, selectMember+` WHERE m.user_id = $1 AND m.organization_id = $2 AND m.is_active AND u.is_active`, userID, orgID)
}

// List returns members matching f, newest first.
func (r *PostgresRepository) List(ctx context.Context, f domain.Filter) ([]*domain.Member, error) {
	var w db.Where
	w.Add("m.organization_id = ?", f.OrgID).
		AddIf(!f.IncludeInactive, "m.is_active").
		AddIf(f.Nickname != "", "m.nickname = ?", f.Nickname).
		AddIf(f.NicknameContains != "", "m.nickname ILIKE ?", db.Contains(f.NicknameContains)).
		AddIf(f.UserID != 0, "m.user_id = ?", f.UserID).
		AddIf(f.FullNameContains != "", "u.full_name ILIKE ?", db.Contains(f.FullNameContains)).
		AddIf(f.EmailContains != "", "u.email ILIKE ?", db.Contains(f.EmailContains)).
		In("m.role", f.Roles)
	clause, args := w.SQL()
	rows, err := db.Conn(ctx, r.db).QueryContext(ctx, selectMember+clause+` ORDER BY m.id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Create inserts m and fills its id and timestamps.
func (r *PostgresRepository) Create(ctx context.Context, m *domain.Member) error {
	row := db.Conn(ctx, r.db).QueryRowContext(ctx, `
		INSERT INTO members (user_id, organization_id, nickname, role, is_active, created_by, updated_by)
		VALUES ($1, $2, $3, $4, TRUE, $5, $6)
		RETURNING id, is_active, created_at, updated_at`,
		m.UserID, m.OrgID, nullNickname(m.Nickname), string(m.Role), db.NullInt64(m.CreatedBy), db.NullInt64(m.UpdatedBy))
	return row.Scan(&m.ID, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
}

// Update writes the member's nickname. Role changes go through UpdateRole.
func (r *PostgresRepository) Update(ctx context.Context, m *domain.Member) error {
	row := db.Conn(ctx, r.db).QueryRowContext(ctx, `
		UPDATE members SET nickname = $2, updated_by = $3, updated_at = now()
		WHERE id = $1 RETURNING updated_at`,
		m.ID, nullNickname(m.Nickname), db.NullInt64(m.UpdatedBy))
	return row.Scan(&m.UpdatedAt)
}

func (r *PostgresRepository) UpdateRole(ctx context.Context, id int64, role domain.Role, updatedBy *int64) error {
	_, err := db.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE members SET role = $2, updated_by = $3, updated_at = now() WHERE id = $1`,
		id, string(role), db.NullInt64(updatedBy))
	return err
}

// Deactivate soft-deletes the member.
func (r *PostgresRepository) Deactivate(ctx context.Context, id int64, updatedBy *int64) error {
	_, err := db.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE members SET is_active = FALSE, updated_by = $2, updated_at = now() WHERE id = $1`,
		id, db.NullInt64(updatedBy))
	return err
}

func (r *PostgresRepository) ExistsForUser(ctx context.Context, userID, orgID int64) (bool, error) {
	var ok bool
	err := db.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM members WHERE user_id = $1 AND organization_id = $2)`,
		userID, orgID).Scan(&ok)
	return ok, err
}

func (r *PostgresRepository) ExistsActiveByEmail(ctx context.Context, orgID int64, email string) (bool, error) {
	var ok bool
	err := db.Conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM members m JOIN users u ON u.id = m.user_id
			WHERE m.organization_id = $1 AND m.is_active AND u.is_active AND lower(u.email) = lower($2)
		)`, orgID, email).Scan(&ok)
	return ok, err
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*domain.Member, error) {
	m, err := scanMember(db.Conn(ctx, r.db).QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

// MemberColumns selects a member aliased as m; join with users u and append userrepo.Columns.
const MemberColumns = `m.id, m.user_id, m.organization_id, m.nickname, m.role, m.is_active,
	m.created_at, m.updated_at, m.created_by, m.updated_by`

// Dest returns scan destinations for MemberColumns followed by userrepo.Columns.
func Dest(m *domain.Member) (dest []any, finish func()) {
	var (
		nickname sql.NullString
		role     string
		created  sql.NullInt64
		updated  sql.NullInt64
	)
	m.User = &userdomain.User{}
	userDest, userFinish := userrepo.Dest(m.User)
	dest = append([]any{&m.ID, &m.UserID, &m.OrgID, &nickname, &role, &m.IsActive,
		&m.CreatedAt, &m.UpdatedAt, &created, &updated}, userDest...)
	return dest, func() {
		m.Nickname = nickname.String
		m.Role = domain.Role(role)
		m.CreatedBy = db.Int64Ptr(created)
		m.UpdatedBy = db.Int64Ptr(updated)
		userFinish()
	}
}

func scanMember(s userrepo.Scanner) (*domain.Member, error) {
	var m domain.Member
	dest, finish := Dest(&m)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	finish()
	return &m, nil
}

// nullNickname stores an empty nickname as NULL so the (nickname, organization) constraint ignores it.
func nullNickname(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
