package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/DaveyBK/c-test-intake-app/internal/handler"
	"github.com/DaveyBK/c-test-intake-app/internal/i18n"
	"github.com/DaveyBK/c-test-intake-app/internal/intake"
	"github.com/DaveyBK/c-test-intake-app/internal/model"
	"github.com/DaveyBK/c-test-intake-app/internal/store"
	"github.com/DaveyBK/c-test-intake-app/internal/syncer"
)

type fakeInventory struct {
	available bool
	students  []model.Student
	history   map[string][]model.HistoryEntry
	saved     []model.CTestResult
}

func (f *fakeInventory) IsAvailable(ctx context.Context) bool { return f.available }

func (f *fakeInventory) GetStudents(ctx context.Context, statusFilter string) ([]model.Student, error) {
	if statusFilter == "" {
		return f.students, nil
	}
	var out []model.Student
	for _, st := range f.students {
		if st.Status == statusFilter {
			out = append(out, st)
		}
	}
	return out, nil
}

func (f *fakeInventory) GetStudentHistory(ctx context.Context, studentID string) ([]model.HistoryEntry, error) {
	return f.history[studentID], nil
}

func (f *fakeInventory) SaveResult(ctx context.Context, r model.CTestResult) (int64, error) {
	if !f.available {
		return 0, errors.New("connection refused")
	}
	f.saved = append(f.saved, r)
	return int64(len(f.saved)), nil
}

func newTestServer(t *testing.T, inv *fakeInventory) (*httptest.Server, *store.Store) {
	t.Helper()
	if err := i18n.Init("en"); err != nil {
		t.Fatalf("i18n.Init: %v", err)
	}

	st, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	key := model.AnswerKey{
		Version: "v1",
		Items:   map[int]string{1: "yesterday", 2: "weather"},
	}
	if err := st.SaveAnswerKey(key); err != nil {
		t.Fatalf("save answer key: %v", err)
	}

	sy := syncer.New(st, inv, func() time.Time {
		return time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	})
	svc := intake.NewService(st, sy, true)

	r := chi.NewRouter()
	r.Use(i18n.Middleware("en"))
	handler.New(st, inv, svc, sy).Routes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, st
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func getJSON(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestSubmission(t *testing.T) {
	inv := &fakeInventory{available: true}
	srv, _ := newTestServer(t, inv)

	resp := postJSON(t, srv.URL+"/submissions",
		`{"student_id":"S001","test_version":"v1","text":"1. yesterday\n2. wether"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	var body struct {
		Result   model.CTestResult `json:"result"`
		Feedback string            `json:"feedback"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Result.NumCorrect != 1 {
		t.Errorf("correct = %d, want 1", body.Result.NumCorrect)
	}
	if body.Result.SyncStatus != model.SyncSynced {
		t.Errorf("sync status = %q, want synced", body.Result.SyncStatus)
	}
	if !strings.Contains(body.Feedback, "1/2") {
		t.Errorf("feedback missing count:\n%s", body.Feedback)
	}
	if len(inv.saved) != 1 {
		t.Errorf("mirrored %d results, want 1", len(inv.saved))
	}
}

func TestSubmissionBadRequests(t *testing.T) {
	srv, _ := newTestServer(t, &fakeInventory{available: true})

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"student_id":`},
		{"empty student", `{"student_id":"","test_version":"v1","text":"1. a"}`},
		{"unknown version", `{"student_id":"S001","test_version":"v9","text":"1. a"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+"/submissions", tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestGetResult(t *testing.T) {
	srv, st := newTestServer(t, &fakeInventory{available: true})

	id, err := st.SaveResult(model.CTestResult{
		StudentID: "S001", TestVersion: "v1",
		TestDate: time.Now().UTC(), NumItems: 2, NumCorrect: 2,
		Percentage: 100, Score: 5, PlacementLevel: "Advanced", Completed: true,
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	resp := getJSON(t, srv.URL+"/results/"+strconv.FormatInt(id, 10))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var got model.CTestResult
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != id || got.Score != 5 {
		t.Fatalf("got %+v", got)
	}

	if resp := getJSON(t, srv.URL+"/results/9999"); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing result: status = %d, want 404", resp.StatusCode)
	}
	if resp := getJSON(t, srv.URL+"/results/abc"); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad id: status = %d, want 400", resp.StatusCode)
	}
}

func TestStudentsFromSharedStore(t *testing.T) {
	inv := &fakeInventory{
		available: true,
		students: []model.Student{
			{StudentID: "S001", FirstName: "Anna", LastName: "Schmidt", Level: "B1", Status: "active"},
			{StudentID: "S002", FirstName: "Boris", LastName: "Ivanov", Level: "A2", Status: "inactive"},
		},
	}
	srv, st := newTestServer(t, inv)

	resp := getJSON(t, srv.URL+"/students")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var students []model.Student
	if err := json.NewDecoder(resp.Body).Decode(&students); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(students) != 2 {
		t.Fatalf("got %d students, want 2", len(students))
	}

	// The roster was cached for offline use.
	cached, err := st.CachedStudents()
	if err != nil {
		t.Fatalf("CachedStudents: %v", err)
	}
	if len(cached) != 2 {
		t.Fatalf("cached %d students, want 2", len(cached))
	}

	resp = getJSON(t, srv.URL+"/students?status=active")
	var active []model.Student
	if err := json.NewDecoder(resp.Body).Decode(&active); err != nil {
		t.Fatalf("decode filtered: %v", err)
	}
	if len(active) != 1 || active[0].StudentID != "S001" {
		t.Fatalf("filtered = %+v", active)
	}
}

func TestStudentsFallbackToCache(t *testing.T) {
	srv, st := newTestServer(t, &fakeInventory{available: false})

	if err := st.CacheStudents([]model.Student{
		{StudentID: "S001", FirstName: "Anna", LastName: "Schmidt", Status: "active"},
	}); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	resp := getJSON(t, srv.URL+"/students")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var students []model.Student
	if err := json.NewDecoder(resp.Body).Decode(&students); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(students) != 1 || students[0].StudentID != "S001" {
		t.Fatalf("students = %+v", students)
	}
}

func TestHistoryFallbackToLocal(t *testing.T) {
	srv, st := newTestServer(t, &fakeInventory{available: false})

	if _, err := st.SaveResult(model.CTestResult{
		StudentID: "S001", TestVersion: "v1",
		TestDate: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		NumItems: 2, NumCorrect: 1, Percentage: 50, Score: 2,
		PlacementLevel: "Pre-Intermediate", Completed: true,
	}); err != nil {
		t.Fatalf("save: %v", err)
	}

	resp := getJSON(t, srv.URL+"/students/S001/history")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var history []model.HistoryEntry
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(history) != 1 || history[0].Score != 2 {
		t.Fatalf("history = %+v", history)
	}
}

func TestSyncEndpoint(t *testing.T) {
	inv := &fakeInventory{available: false}
	srv, _ := newTestServer(t, inv)

	// A submission while the shared store is down stays queued.
	resp := postJSON(t, srv.URL+"/submissions",
		`{"student_id":"S001","test_version":"v1","text":"1. yesterday\n2. weather"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("submission status = %d, want 201", resp.StatusCode)
	}

	// Bring the shared store back and trigger a pass.
	inv.available = true
	resp = postJSON(t, srv.URL+"/sync", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sync status = %d, want 200", resp.StatusCode)
	}
	var sync struct {
		Synced int `json:"synced"`
		Failed int `json:"failed"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&sync); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sync.Synced != 1 || sync.Failed != 0 {
		t.Fatalf("synced=%d failed=%d, want 1/0", sync.Synced, sync.Failed)
	}
	if len(inv.saved) != 1 {
		t.Fatalf("mirrored %d results, want 1", len(inv.saved))
	}
}
