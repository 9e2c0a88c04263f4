package model

import (
	"fmt"
	"time"
)

// SyncStatus tracks whether a locally stored result has been mirrored
// to the shared inventory database.
type SyncStatus string

const (
	// SyncPending means the result has not been pushed to inventory yet.
	SyncPending SyncStatus = "pending"
	// SyncSynced means the result was mirrored successfully.
	SyncSynced SyncStatus = "synced"
	// SyncFailed means the last mirror attempt failed.
	SyncFailed SyncStatus = "failed"
)

// Student status values used by the shared roster.
const (
	StudentActive   = "active"
	StudentInactive = "inactive"
)

// AnswerKey is the correct completion for every item of one C-test version.
// Item numbers are 1-based and contiguous.
type AnswerKey struct {
	Version string         `json:"version"`
	Items   map[int]string `json:"items"`
}

// NumItems returns the number of items in the key.
func (k AnswerKey) NumItems() int {
	return len(k.Items)
}

// Validate checks that the key is usable for grading: a non-empty version,
// at least one item, contiguous numbering from 1, and no empty answers.
func (k AnswerKey) Validate() error {
	if k.Version == "" {
		return fmt.Errorf("answer key: missing version")
	}
	if len(k.Items) == 0 {
		return fmt.Errorf("answer key %s: no items", k.Version)
	}
	for n := 1; n <= len(k.Items); n++ {
		answer, ok := k.Items[n]
		if !ok {
			return fmt.Errorf("answer key %s: missing item %d", k.Version, n)
		}
		if answer == "" {
			return fmt.Errorf("answer key %s: item %d has an empty answer", k.Version, n)
		}
	}
	return nil
}

// ExtractedAnswers maps item numbers to the student's raw answers.
// Unanswered items map to the empty string.
type ExtractedAnswers map[int]string

// GradedItem is the grading outcome for a single C-test item.
type GradedItem struct {
	ItemNumber    int    `json:"item_number"`
	CorrectAnswer string `json:"correct_answer"`
	StudentAnswer string `json:"student_answer"`
	IsCorrect     bool   `json:"is_correct"`
}

// CTestResult is one graded submission. Immutable after grading except for
// the sync fields, which the local store and the syncer maintain.
type CTestResult struct {
	ID             int64        `json:"id"`
	StudentID      string       `json:"student_id"`
	TestVersion    string       `json:"test_version"`
	TestDate       time.Time    `json:"test_date"`
	NumItems       int          `json:"num_items"`
	NumCorrect     int          `json:"num_correct"`
	Percentage     float64      `json:"percentage"`
	Score          int          `json:"score"`
	PlacementLevel string       `json:"placement_level"`
	Items          []GradedItem `json:"items"`
	Completed      bool         `json:"completed"`
	SyncStatus     SyncStatus   `json:"sync_status"`
	SyncedAt       *time.Time   `json:"synced_at,omitempty"`
}

// Student is a read-only projection of a shared-roster row. The student ID
// is an opaque text identifier owned by the inventory system.
type Student struct {
	StudentID string `json:"student_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Level     string `json:"level"`
	Status    string `json:"status"`
}

// FullName returns "First Last".
func (s Student) FullName() string {
	return s.FirstName + " " + s.LastName
}

// HistoryEntry is a summary row from the shared store's result history.
type HistoryEntry struct {
	TestVersion    string    `json:"test_version"`
	TestDate       time.Time `json:"test_date"`
	Score          int       `json:"score"`
	PlacementLevel string    `json:"placement_level"`
}

// ResultExport is the payload written by the export command.
type ResultExport struct {
	ExportedAt time.Time     `json:"exported_at"`
	NumResults int           `json:"num_results"`
	Results    []CTestResult `json:"results"`
}
