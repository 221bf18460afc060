// Package postgres implements CredentialStore and tasks.Store on PostgreSQL
// through database/sql and the pgx driver. Schema changes are goose migrations
// embedded in the migrations subpackage.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	taskAuth "github.com/MrEthical07/taskAuth"
	"github.com/MrEthical07/taskAuth/store/postgres/migrations"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// DBTX is the subset of database/sql the store uses. *sql.DB and *sql.Tx
// both satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open connects with the pgx driver and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return db, nil
}

// Migrate applies all pending migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

// Store is a PostgreSQL-backed CredentialStore. Driver errors other than
// no-rows and unique violations are returned unchanged.
type Store struct {
	db  DBTX
	now func() time.Time
}

func NewStore(db DBTX) *Store {
	return &Store{db: db, now: time.Now}
}

// WithClock returns s with a different time source for timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	if now != nil {
		s.now = now
	}
	return s
}

const selectColumns = `id, username, email, password_hash, role, version, created_at, updated_at`

func scanRecord(row *sql.Row) (taskAuth.CredentialRecord, error) {
	var (
		r    taskAuth.CredentialRecord
		role string
	)
	err := row.Scan(&r.ID, &r.Username, &r.Email, &r.PasswordHash, &role, &r.Version, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return taskAuth.CredentialRecord{}, taskAuth.ErrRecordNotFound
		}
		return taskAuth.CredentialRecord{}, err
	}
	r.Role = taskAuth.Role(role)
	return r, nil
}

func (s *Store) FindByID(ctx context.Context, id int64) (taskAuth.CredentialRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM users WHERE id = $1`
	return scanRecord(s.db.QueryRowContext(ctx, query, id))
}

func (s *Store) FindByUsername(ctx context.Context, username string) (taskAuth.CredentialRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM users WHERE username = $1`
	return scanRecord(s.db.QueryRowContext(ctx, query, username))
}

func (s *Store) FindByEmail(ctx context.Context, email string) (taskAuth.CredentialRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM users WHERE email = $1`
	return scanRecord(s.db.QueryRowContext(ctx, query, email))
}

// FindByUsernameOrEmail prefers the username match when two rows qualify.
func (s *Store) FindByUsernameOrEmail(ctx context.Context, username, email string) (taskAuth.CredentialRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM users
		 WHERE username = $1 OR email = $2
		 ORDER BY (username = $1) DESC
		 LIMIT 1`
	return scanRecord(s.db.QueryRowContext(ctx, query, username, email))
}

func (s *Store) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, username)
}

func (s *Store) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email)
}

func (s *Store) exists(ctx context.Context, query string, arg any) (bool, error) {
	var ok bool
	if err := s.db.QueryRowContext(ctx, query, arg).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

// Create inserts a record. The users_username_key and users_email_key
// constraints are authoritative; a violation returns ErrRecordDuplicate.
func (s *Store) Create(ctx context.Context, input taskAuth.NewCredential) (taskAuth.CredentialRecord, error) {
	query :=
		`INSERT INTO users (username, email, password_hash, role, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, 1, $5, $5)
		 RETURNING ` + selectColumns

	now := s.now().UTC()
	record, err := scanRecord(s.db.QueryRowContext(ctx, query,
		input.Username, input.Email, input.PasswordHash, string(input.Role), now))
	if err != nil {
		return taskAuth.CredentialRecord{}, mapWriteError(err)
	}
	return record, nil
}

// Update writes the mutable columns when the stored version equals
// record.Version and bumps the version in the same statement.
func (s *Store) Update(ctx context.Context, record taskAuth.CredentialRecord) (taskAuth.CredentialRecord, error) {
	query :=
		`UPDATE users
		 SET email = $1, password_hash = $2, role = $3, version = version + 1, updated_at = $4
		 WHERE id = $5 AND version = $6
		 RETURNING ` + selectColumns

	updatedAt := record.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = s.now().UTC()
	}

	updated, err := scanRecord(s.db.QueryRowContext(ctx, query,
		record.Email, record.PasswordHash, string(record.Role), updatedAt, record.ID, record.Version))
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, taskAuth.ErrRecordNotFound) {
		return taskAuth.CredentialRecord{}, mapWriteError(err)
	}

	// No row matched: either the id is gone or the version moved.
	exists, existsErr := s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, record.ID)
	if existsErr != nil {
		return taskAuth.CredentialRecord{}, existsErr
	}
	if exists {
		return taskAuth.CredentialRecord{}, taskAuth.ErrVersionConflict
	}
	return taskAuth.CredentialRecord{}, taskAuth.ErrRecordNotFound
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return taskAuth.ErrRecordNotFound
	}
	return nil
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", taskAuth.ErrRecordDuplicate, pgErr.ConstraintName)
	}
	return err
}

var _ taskAuth.CredentialStore = (*Store)(nil)
