package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/DaveyBK/c-test-intake-app/internal/model"
)

// SaveAnswerKey validates and stores (or replaces) an answer key.
func (s *Store) SaveAnswerKey(key model.AnswerKey) error {
	if err := key.Validate(); err != nil {
		return err
	}
	itemsJSON, err := json.Marshal(key.Items)
	if err != nil {
		return fmt.Errorf("marshal answer key %s: %w", key.Version, err)
	}
	_, err = s.db.Exec(
		`INSERT INTO answer_keys (version, num_items, items_json) VALUES (?, ?, ?)
		 ON CONFLICT(version) DO UPDATE SET num_items = ?, items_json = ?`,
		key.Version, key.NumItems(), string(itemsJSON), key.NumItems(), string(itemsJSON),
	)
	return err
}

// GetAnswerKey returns the stored key for a test version.
func (s *Store) GetAnswerKey(version string) (model.AnswerKey, error) {
	var itemsJSON string
	err := s.db.QueryRow(
		`SELECT items_json FROM answer_keys WHERE version = ?`, version,
	).Scan(&itemsJSON)
	if err != nil {
		return model.AnswerKey{}, err
	}
	key := model.AnswerKey{Version: version}
	if err := json.Unmarshal([]byte(itemsJSON), &key.Items); err != nil {
		return model.AnswerKey{}, fmt.Errorf("unmarshal answer key %s: %w", version, err)
	}
	return key, nil
}

// ListAnswerKeyVersions returns the stored versions in alphabetical order.
func (s *Store) ListAnswerKeyVersions() ([]string, error) {
	rows, err := s.db.Query(`SELECT version FROM answer_keys ORDER BY version`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// GetImportedFileHash returns the recorded sha256 for an imported key file,
// or an empty string if the file has not been imported.
func (s *Store) GetImportedFileHash(path string) (string, error) {
	var hash string
	err := s.db.QueryRow(`SELECT sha256 FROM imported_files WHERE path = ?`, path).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return hash, err
}

// SetImportedFileHash records the sha256 of an imported key file.
func (s *Store) SetImportedFileHash(path, hash string) error {
	_, err := s.db.Exec(
		`INSERT INTO imported_files (path, sha256) VALUES (?, ?)
		 ON CONFLICT(path) DO UPDATE SET sha256 = ?`,
		path, hash, hash,
	)
	return err
}
