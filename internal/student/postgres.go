package student

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresStore persists students and scans in Postgres.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a store over an open connection pool.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate bootstraps the two tables so a fresh database works out of the box.
// Statements run one at a time; the extended protocol rejects batched DDL.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS students (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			email         TEXT NOT NULL CONSTRAINT students_email_key UNIQUE,
			phone         TEXT NOT NULL,
			college       TEXT NOT NULL,
			role          TEXT NOT NULL,
			registered_at TIMESTAMPTZ NOT NULL,
			validated     BOOLEAN NOT NULL DEFAULT FALSE,
			validated_at  TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS validation_scans (
			id         TEXT PRIMARY KEY,
			student_id TEXT NOT NULL,
			scanned_at TIMESTAMPTZ NOT NULL,
			method     TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS validation_scans_scanned_at_idx
			ON validation_scans (scanned_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (p *PostgresStore) Insert(ctx context.Context, s Student) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO students (id, name, email, phone, college, role, registered_at, validated, validated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, s.ID, s.Name, s.Email, s.Phone, s.College, s.Role, s.RegisteredAt, s.Validated, s.ValidatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if strings.Contains(pgErr.ConstraintName, "email") {
				return ErrDuplicateEmail
			}
			return ErrDuplicateID
		}
		return err
	}
	return nil
}

const studentColumns = `id, name, email, phone, college, role, registered_at, validated, validated_at`

func (p *PostgresStore) FindByID(ctx context.Context, id string) (Student, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+studentColumns+` FROM students WHERE id = $1`, id)
	return scanStudent(row)
}

func (p *PostgresStore) FindByEmail(ctx context.Context, email string) (Student, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+studentColumns+` FROM students WHERE email = $1`, email)
	return scanStudent(row)
}

// MarkValidated is a single conditional UPDATE so concurrent validations of
// the same id resolve to exactly one winner.
func (p *PostgresStore) MarkValidated(ctx context.Context, id string, ts time.Time) (Student, bool, error) {
	row := p.db.QueryRowContext(ctx, `
		UPDATE students SET validated = TRUE, validated_at = $2
		WHERE id = $1 AND validated = FALSE
		RETURNING `+studentColumns+`
	`, id, ts)
	s, err := scanStudent(row)
	if err == nil {
		return s, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Student{}, false, err
	}
	// Either the id is unknown or it was already validated; a plain lookup
	// tells the two apart.
	s, err = p.FindByID(ctx, id)
	if err != nil {
		return Student{}, false, err
	}
	return s, false, nil
}

func (p *PostgresStore) Search(ctx context.Context, query, role string) ([]Student, error) {
	q := `SELECT ` + studentColumns + ` FROM students`
	args := []any{}
	clauses := []string{}
	if query != "" {
		args = append(args, "%"+query+"%")
		clauses = append(clauses, `(name ILIKE $1 OR id ILIKE $1 OR college ILIKE $1 OR email ILIKE $1)`)
	}
	if role != "" {
		args = append(args, role)
		if len(args) == 2 {
			clauses = append(clauses, `role = $2`)
		} else {
			clauses = append(clauses, `role = $1`)
		}
	}
	if len(clauses) > 0 {
		q += " WHERE " + strings.Join(clauses, " AND ")
	}
	q += " ORDER BY registered_at DESC"

	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *PostgresStore) ListAll(ctx context.Context) ([]Student, error) {
	return p.Search(ctx, "", "")
}

func (p *PostgresStore) AppendScan(ctx context.Context, scan Scan) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO validation_scans (id, student_id, scanned_at, method)
		VALUES ($1,$2,$3,$4)
	`, scan.ID, scan.StudentID, scan.ScannedAt, scan.Method)
	return err
}

func (p *PostgresStore) RecentScans(ctx context.Context, limit int) ([]ScanRecord, error) {
	// INNER JOIN drops scans whose student no longer resolves.
	rows, err := p.db.QueryContext(ctx, `
		SELECT v.id, v.student_id, v.scanned_at, v.method,
		       s.id, s.name, s.email, s.phone, s.college, s.role, s.registered_at, s.validated, s.validated_at
		FROM validation_scans v
		JOIN students s ON s.id = v.student_id
		ORDER BY v.scanned_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ScanRecord
	for rows.Next() {
		var rec ScanRecord
		var validatedAt sql.NullTime
		if err := rows.Scan(
			&rec.Scan.ID, &rec.StudentID, &rec.ScannedAt, &rec.Method,
			&rec.Student.ID, &rec.Student.Name, &rec.Student.Email, &rec.Student.Phone,
			&rec.Student.College, &rec.Student.Role, &rec.Student.RegisteredAt,
			&rec.Student.Validated, &validatedAt,
		); err != nil {
			return nil, err
		}
		if validatedAt.Valid {
			t := validatedAt.Time
			rec.Student.ValidatedAt = &t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStudent(row rowScanner) (Student, error) {
	var s Student
	var validatedAt sql.NullTime
	err := row.Scan(&s.ID, &s.Name, &s.Email, &s.Phone, &s.College, &s.Role,
		&s.RegisteredAt, &s.Validated, &validatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Student{}, ErrNotFound
		}
		return Student{}, err
	}
	if validatedAt.Valid {
		t := validatedAt.Time
		s.ValidatedAt = &t
	}
	return s, nil
}
