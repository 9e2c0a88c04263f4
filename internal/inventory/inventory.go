// Package inventory is the bridge to the shared inventory database owned by
// the teacher-assistant portal. The roster (students table) belongs to that
// system and is read-only here; the bridge only creates and writes the two
// C-test result tables, and only on a best-effort basis.
package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite

	"github.com/DaveyBK/c-test-intake-app/internal/model"
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

var (
	// ErrUnavailable means the shared database cannot be reached or its
	// roster does not exist. Callers treat this as a sync failure, never
	// as a grading failure.
	ErrUnavailable = errors.New("inventory database not available")
	// ErrUnknownStudent means the referenced student_id is not in the
	// shared roster.
	ErrUnknownStudent = errors.New("student not found in inventory roster")
)

// DB wraps an open handle to the shared inventory database.
type DB struct {
	db     *sql.DB
	driver Driver
}

// Open connects to the shared database and ensures the C-test tables exist.
// The roster must already be present; Open fails with ErrUnavailable when it
// is not, since a roster-less database is not the shared store we expect.
func Open(ctx context.Context, driver Driver, dsn string) (*DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite"
	case DriverPostgres:
		drvName = "pgx"
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	d := &DB{db: db, driver: driver}
	if !d.rosterExists(ctx) {
		db.Close()
		return nil, fmt.Errorf("%w: roster table missing", ErrUnavailable)
	}
	if err := d.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return d, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

// IsAvailable reports whether the shared database is reachable and still
// carries the roster. It never blocks beyond the driver's ping.
func (d *DB) IsAvailable(ctx context.Context) bool {
	if err := d.db.PingContext(ctx); err != nil {
		return false
	}
	return d.rosterExists(ctx)
}

func (d *DB) rosterExists(ctx context.Context) bool {
	var n int
	err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM students`).Scan(&n)
	return err == nil
}

// EnsureSchema creates the two C-test tables if absent. It is idempotent and
// never alters tables owned by the inventory system's other consumers.
func (d *DB) EnsureSchema(ctx context.Context) error {
	var schema string
	switch d.driver {
	case DriverPostgres:
		schema = schemaPostgres
	default:
		schema = schemaSQLite
	}
	_, err := d.db.ExecContext(ctx, schema)
	return err
}

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS c_test_results (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  student_id TEXT NOT NULL REFERENCES students(student_id),
  test_version TEXT NOT NULL,
  test_date DATETIME NOT NULL,
  num_items INTEGER NOT NULL,
  num_correct INTEGER NOT NULL,
  percentage REAL NOT NULL,
  score INTEGER NOT NULL,
  placement_level TEXT NOT NULL,
  completed BOOLEAN NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS c_test_result_items (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  result_id INTEGER NOT NULL REFERENCES c_test_results(id),
  item_number INTEGER NOT NULL,
  correct_word TEXT NOT NULL,
  student_answer TEXT NOT NULL,
  is_correct BOOLEAN NOT NULL
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS c_test_results (
  id BIGSERIAL PRIMARY KEY,
  student_id TEXT NOT NULL REFERENCES students(student_id),
  test_version TEXT NOT NULL,
  test_date TIMESTAMPTZ NOT NULL,
  num_items INTEGER NOT NULL,
  num_correct INTEGER NOT NULL,
  percentage DOUBLE PRECISION NOT NULL,
  score INTEGER NOT NULL,
  placement_level TEXT NOT NULL,
  completed BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS c_test_result_items (
  id BIGSERIAL PRIMARY KEY,
  result_id BIGINT NOT NULL REFERENCES c_test_results(id),
  item_number INTEGER NOT NULL,
  correct_word TEXT NOT NULL,
  student_answer TEXT NOT NULL,
  is_correct BOOLEAN NOT NULL
);
`

// GetStudents returns roster rows, optionally filtered by status.
// An empty filter returns everyone.
func (d *DB) GetStudents(ctx context.Context, statusFilter string) ([]model.Student, error) {
	query := `SELECT student_id, first_name, last_name, level, status FROM students`
	var args []any
	if statusFilter != "" {
		query += ` WHERE status = $1`
		args = append(args, statusFilter)
	}
	query += ` ORDER BY last_name, first_name`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var students []model.Student
	for rows.Next() {
		var st model.Student
		if err := rows.Scan(&st.StudentID, &st.FirstName, &st.LastName, &st.Level, &st.Status); err != nil {
			return nil, err
		}
		students = append(students, st)
	}
	return students, rows.Err()
}

// GetStudent returns a roster row by id, or nil if unknown.
func (d *DB) GetStudent(ctx context.Context, studentID string) (*model.Student, error) {
	var st model.Student
	err := d.db.QueryRowContext(ctx,
		`SELECT student_id, first_name, last_name, level, status
		 FROM students WHERE student_id = $1`, studentID,
	).Scan(&st.StudentID, &st.FirstName, &st.LastName, &st.Level, &st.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// SaveResult mirrors a graded result into the shared database. The header
// and all item rows go in one transaction; a failure writes nothing. A
// student_id absent from the roster fails with ErrUnknownStudent.
func (d *DB) SaveResult(ctx context.Context, r model.CTestResult) (int64, error) {
	st, err := d.GetStudent(ctx, r.StudentID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if st == nil {
		return 0, fmt.Errorf("%w: %s", ErrUnknownStudent, r.StudentID)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer tx.Rollback()

	var resultID int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO c_test_results
		 (student_id, test_version, test_date, num_items, num_correct,
		  percentage, score, placement_level, completed)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		r.StudentID, r.TestVersion, r.TestDate, r.NumItems, r.NumCorrect,
		r.Percentage, r.Score, r.PlacementLevel, r.Completed,
	).Scan(&resultID)
	if err != nil {
		return 0, err
	}

	for _, item := range r.Items {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO c_test_result_items
			 (result_id, item_number, correct_word, student_answer, is_correct)
			 VALUES ($1, $2, $3, $4, $5)`,
			resultID, item.ItemNumber, item.CorrectAnswer, item.StudentAnswer, item.IsCorrect,
		)
		if err != nil {
			return 0, err
		}
	}

	return resultID, tx.Commit()
}

// GetStudentHistory returns result summaries for a student, newest first.
func (d *DB) GetStudentHistory(ctx context.Context, studentID string) ([]model.HistoryEntry, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT test_version, test_date, score, placement_level
		 FROM c_test_results
		 WHERE student_id = $1
		 ORDER BY test_date DESC, id DESC`, studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var history []model.HistoryEntry
	for rows.Next() {
		var h model.HistoryEntry
		if err := rows.Scan(&h.TestVersion, &h.TestDate, &h.Score, &h.PlacementLevel); err != nil {
			return nil, err
		}
		history = append(history, h)
	}
	return history, rows.Err()
}
