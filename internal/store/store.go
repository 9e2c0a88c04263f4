// Package store is the durable local database for graded C-test results.
// Every graded submission is written here first; mirroring to the shared
// inventory database is tracked per result via its sync status.
package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/DaveyBK/c-test-intake-app/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS c_test_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		student_id TEXT NOT NULL,
		test_version TEXT NOT NULL,
		test_date DATETIME NOT NULL,
		num_items INTEGER NOT NULL,
		num_correct INTEGER NOT NULL,
		percentage REAL NOT NULL,
		score INTEGER NOT NULL,
		placement_level TEXT NOT NULL,
		completed BOOLEAN NOT NULL DEFAULT 1,
		sync_status TEXT NOT NULL DEFAULT 'pending',
		synced_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS c_test_result_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		result_id INTEGER NOT NULL,
		item_number INTEGER NOT NULL,
		correct_answer TEXT NOT NULL,
		student_answer TEXT NOT NULL,
		is_correct BOOLEAN NOT NULL,
		FOREIGN KEY (result_id) REFERENCES c_test_results(id)
	);

	CREATE TABLE IF NOT EXISTS answer_keys (
		version TEXT PRIMARY KEY,
		num_items INTEGER NOT NULL,
		items_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS imported_files (
		path TEXT PRIMARY KEY,
		sha256 TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS student_cache (
		student_id TEXT PRIMARY KEY,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		level TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT ''
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveResult stores a graded result with all of its items in one
// transaction and returns the assigned local id. New results start with
// sync_status = pending.
func (s *Store) SaveResult(r model.CTestResult) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO c_test_results
		 (student_id, test_version, test_date, num_items, num_correct,
		  percentage, score, placement_level, completed, sync_status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.StudentID, r.TestVersion, r.TestDate, r.NumItems, r.NumCorrect,
		r.Percentage, r.Score, r.PlacementLevel, r.Completed, model.SyncPending,
	)
	if err != nil {
		return 0, err
	}
	resultID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, item := range r.Items {
		_, err := tx.Exec(
			`INSERT INTO c_test_result_items
			 (result_id, item_number, correct_answer, student_answer, is_correct)
			 VALUES (?, ?, ?, ?, ?)`,
			resultID, item.ItemNumber, item.CorrectAnswer, item.StudentAnswer, item.IsCorrect,
		)
		if err != nil {
			return 0, err
		}
	}

	return resultID, tx.Commit()
}

// GetResult returns a result with its items by local id.
func (s *Store) GetResult(id int64) (model.CTestResult, error) {
	var r model.CTestResult
	var syncedAt sql.NullTime
	err := s.db.QueryRow(
		`SELECT id, student_id, test_version, test_date, num_items, num_correct,
		        percentage, score, placement_level, completed, sync_status, synced_at
		 FROM c_test_results WHERE id = ?`, id,
	).Scan(&r.ID, &r.StudentID, &r.TestVersion, &r.TestDate, &r.NumItems, &r.NumCorrect,
		&r.Percentage, &r.Score, &r.PlacementLevel, &r.Completed, &r.SyncStatus, &syncedAt)
	if err != nil {
		return model.CTestResult{}, err
	}
	if syncedAt.Valid {
		t := syncedAt.Time
		r.SyncedAt = &t
	}
	r.Items, err = s.resultItems(id)
	return r, err
}

func (s *Store) resultItems(resultID int64) ([]model.GradedItem, error) {
	rows, err := s.db.Query(
		`SELECT item_number, correct_answer, student_answer, is_correct
		 FROM c_test_result_items WHERE result_id = ? ORDER BY item_number`, resultID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []model.GradedItem
	for rows.Next() {
		var item model.GradedItem
		if err := rows.Scan(&item.ItemNumber, &item.CorrectAnswer, &item.StudentAnswer, &item.IsCorrect); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// GetHistory returns all results for a student, most recent first.
func (s *Store) GetHistory(studentID string) ([]model.CTestResult, error) {
	return s.listResults(
		`SELECT id FROM c_test_results WHERE student_id = ? ORDER BY test_date DESC, id DESC`,
		studentID,
	)
}

// ListUnsynced returns results that still need a mirror attempt, oldest first.
func (s *Store) ListUnsynced() ([]model.CTestResult, error) {
	return s.listResults(
		`SELECT id FROM c_test_results WHERE sync_status != ? ORDER BY id`,
		model.SyncSynced,
	)
}

// ListResults returns every stored result, most recent first.
func (s *Store) ListResults() ([]model.CTestResult, error) {
	return s.listResults(`SELECT id FROM c_test_results ORDER BY test_date DESC, id DESC`)
}

func (s *Store) listResults(query string, args ...any) ([]model.CTestResult, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var results []model.CTestResult
	for _, id := range ids {
		r, err := s.GetResult(id)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}

// MarkSynced transitions a result to sync_status = synced with a timestamp.
func (s *Store) MarkSynced(id int64, at time.Time) error {
	_, err := s.db.Exec(
		`UPDATE c_test_results SET sync_status = ?, synced_at = ? WHERE id = ?`,
		model.SyncSynced, at, id,
	)
	return err
}

// MarkSyncFailed transitions a result to sync_status = failed.
func (s *Store) MarkSyncFailed(id int64) error {
	_, err := s.db.Exec(
		`UPDATE c_test_results SET sync_status = ? WHERE id = ?`,
		model.SyncFailed, id,
	)
	return err
}

// ResultCount returns the number of stored results.
func (s *Store) ResultCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM c_test_results`).Scan(&count)
	return count, err
}
