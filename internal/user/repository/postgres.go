package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"tenantdesk/backend/internal/db"
	"tenantdesk/backend/internal/user/domain"
)

// Columns is the select list scanned by ScanUser; other repositories join users with it.
const Columns = `u.id, u.username, u.email, u.first_name, u.last_name, u.password_hash, u.is_superuser,
	u.is_active, u.last_login, u.created_at, u.updated_at, u.created_by, u.updated_by`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(conn *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+Columns+` FROM users u WHERE u.id = $1`, id)
}

// GetByUsername returns the user with the given username, or nil if not found.
func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+Columns+` FROM users u WHERE u.username = $1`, username)
}

// GetActiveByEmail returns the oldest active user with email, or nil if none.
func (r *PostgresRepository) GetActiveByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+Columns+` FROM users u
		WHERE lower(u.email) = lower($1) AND u.is_active ORDER BY u.id LIMIT 1`, email)
}

// Create inserts u and fills its id and timestamps.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	row := db.Conn(ctx, r.db).QueryRowContext(ctx, `
		INSERT INTO users (username, email, first_name, last_name, password_hash, is_superuser, is_active, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`,
		u.Username, u.Email, u.FirstName, u.LastName, u.PasswordHash, u.IsSuperuser, u.IsActive,
		db.NullInt64(u.CreatedBy), db.NullInt64(u.UpdatedBy))
	return row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
}

// Update writes the profile fields of u. Password and flags are changed through dedicated methods.
func (r *PostgresRepository) Update(ctx context.Context, u *domain.User) error {
	row := db.Conn(ctx, r.db).QueryRowContext(ctx, `
		UPDATE users SET username = $2, email = $3, first_name = $4, last_name = $5, updated_by = $6, updated_at = now()
		WHERE id = $1 RETURNING updated_at`,
		u.ID, u.Username, u.Email, u.FirstName, u.LastName, db.NullInt64(u.UpdatedBy))
	return row.Scan(&u.UpdatedAt)
}

func (r *PostgresRepository) SetPassword(ctx context.Context, id int64, passwordHash string) error {
	_, err := db.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`, id, passwordHash)
	return err
}

func (r *PostgresRepository) MarkSelfCreated(ctx context.Context, id int64) error {
	_, err := db.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE users SET created_by = id, updated_by = id WHERE id = $1`, id)
	return err
}

func (r *PostgresRepository) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	_, err := db.Conn(ctx, r.db).ExecContext(ctx, `UPDATE users SET last_login = $2 WHERE id = $1`, id, at)
	return err
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*domain.User, error) {
	u, err := ScanUser(db.Conn(ctx, r.db).QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

// Scanner is satisfied by *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// Dest returns scan destinations matching Columns for u. Call finish after a successful Scan.
func Dest(u *domain.User) (dest []any, finish func()) {
	var (
		lastLogin sql.NullTime
		created   sql.NullInt64
		updated   sql.NullInt64
	)
	dest = []any{&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash,
		&u.IsSuperuser, &u.IsActive, &lastLogin, &u.CreatedAt, &u.UpdatedAt, &created, &updated}
	return dest, func() {
		u.LastLogin = db.TimePtr(lastLogin)
		u.CreatedBy = db.Int64Ptr(created)
		u.UpdatedBy = db.Int64Ptr(updated)
	}
}

// ScanUser reads one row selected with Columns.
func ScanUser(s Scanner) (*domain.User, error) {
	var u domain.User
	dest, finish := Dest(&u)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	finish()
	return &u, nil
}
