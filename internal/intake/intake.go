// Package intake runs the submission pipeline: extract answers from raw
// text, grade them against the stored answer key, persist the result
// locally, then mirror it to the shared store on a best-effort basis.
package intake

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/DaveyBK/c-test-intake-app/internal/grader"
	"github.com/DaveyBK/c-test-intake-app/internal/model"
	"github.com/DaveyBK/c-test-intake-app/internal/parser"
	"github.com/DaveyBK/c-test-intake-app/internal/store"
	"github.com/DaveyBK/c-test-intake-app/internal/syncer"
)

var (
	ErrEmptyStudentID = errors.New("student id is required")
	ErrUnknownVersion = errors.New("unknown test version")
)

// Submission is one student's raw test response.
type Submission struct {
	StudentID   string `json:"student_id"`
	TestVersion string `json:"test_version"`
	Text        string `json:"text"`
}

// Service wires the pipeline stages together. Syncer may carry a nil
// bridge; the pipeline still completes, the result just stays unsynced.
type Service struct {
	Store          *store.Store
	Syncer         *syncer.Syncer
	AcceptVariants bool
	Now            func() time.Time
}

func NewService(st *store.Store, sy *syncer.Syncer, acceptVariants bool) *Service {
	return &Service{Store: st, Syncer: sy, AcceptVariants: acceptVariants, Now: time.Now}
}

// Process grades one submission end to end and returns the stored result
// with its final sync status, plus the human-readable feedback report.
// A sync failure is recorded on the result, never returned as an error.
func (s *Service) Process(ctx context.Context, sub Submission) (model.CTestResult, string, error) {
	if strings.TrimSpace(sub.StudentID) == "" {
		return model.CTestResult{}, "", ErrEmptyStudentID
	}

	key, err := s.Store.GetAnswerKey(sub.TestVersion)
	if err == sql.ErrNoRows {
		return model.CTestResult{}, "", fmt.Errorf("%w: %s", ErrUnknownVersion, sub.TestVersion)
	}
	if err != nil {
		return model.CTestResult{}, "", fmt.Errorf("load answer key: %w", err)
	}

	answers := parser.Extract(sub.Text, key.NumItems())
	outcome, err := grader.Grade(ctx, key, answers, s.AcceptVariants)
	if err != nil {
		return model.CTestResult{}, "", fmt.Errorf("grade: %w", err)
	}

	result := model.CTestResult{
		StudentID:      strings.TrimSpace(sub.StudentID),
		TestVersion:    key.Version,
		TestDate:       s.Now(),
		NumItems:       outcome.NumItems,
		NumCorrect:     outcome.NumCorrect,
		Percentage:     outcome.Percentage,
		Score:          outcome.Score,
		PlacementLevel: outcome.PlacementLevel,
		Items:          outcome.Items,
		Completed:      true,
	}

	id, err := s.Store.SaveResult(result)
	if err != nil {
		return model.CTestResult{}, "", fmt.Errorf("save result: %w", err)
	}

	if err := s.Syncer.SyncResult(ctx, id); err != nil {
		slog.Warn("result saved locally but not mirrored", "result_id", id, "error", err)
	}

	stored, err := s.Store.GetResult(id)
	if err != nil {
		return model.CTestResult{}, "", fmt.Errorf("reload result: %w", err)
	}
	return stored, outcome.Feedback, nil
}
