package store

import (
	"database/sql"

	"github.com/DaveyBK/c-test-intake-app/internal/model"
)

// CacheStudents replaces cached roster rows for the given students.
// The cache is a read-only convenience for offline runs; the shared
// inventory database remains the authoritative roster.
func (s *Store) CacheStudents(students []model.Student) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, st := range students {
		_, err := tx.Exec(
			`INSERT INTO student_cache (student_id, first_name, last_name, level, status)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(student_id) DO UPDATE SET
			   first_name = ?, last_name = ?, level = ?, status = ?`,
			st.StudentID, st.FirstName, st.LastName, st.Level, st.Status,
			st.FirstName, st.LastName, st.Level, st.Status,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CachedStudent returns a cached roster row, or nil if unknown.
func (s *Store) CachedStudent(studentID string) (*model.Student, error) {
	var st model.Student
	err := s.db.QueryRow(
		`SELECT student_id, first_name, last_name, level, status
		 FROM student_cache WHERE student_id = ?`, studentID,
	).Scan(&st.StudentID, &st.FirstName, &st.LastName, &st.Level, &st.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// CachedStudents returns all cached roster rows ordered by name.
func (s *Store) CachedStudents() ([]model.Student, error) {
	rows, err := s.db.Query(
		`SELECT student_id, first_name, last_name, level, status
		 FROM student_cache ORDER BY last_name, first_name`,
	)
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
