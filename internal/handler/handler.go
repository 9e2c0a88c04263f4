// Package handler exposes the intake pipeline over a JSON API.
package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/DaveyBK/c-test-intake-app/internal/intake"
	"github.com/DaveyBK/c-test-intake-app/internal/inventory"
	"github.com/DaveyBK/c-test-intake-app/internal/model"
	"github.com/DaveyBK/c-test-intake-app/internal/store"
	"github.com/DaveyBK/c-test-intake-app/internal/syncer"
)

// Inventory is the slice of the shared store bridge the API reads from.
type Inventory interface {
	IsAvailable(ctx context.Context) bool
	GetStudents(ctx context.Context, statusFilter string) ([]model.Student, error)
	GetStudentHistory(ctx context.Context, studentID string) ([]model.HistoryEntry, error)
}

// Handler holds shared dependencies for HTTP handlers. Inventory may be
// nil; student endpoints then serve from the local cache.
type Handler struct {
	store     *store.Store
	inventory Inventory
	intake    *intake.Service
	syncer    *syncer.Syncer
}

// New creates a new Handler.
func New(s *store.Store, inv Inventory, svc *intake.Service, sy *syncer.Syncer) *Handler {
	return &Handler{store: s, inventory: inv, intake: svc, syncer: sy}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/submissions", h.handleSubmission)
	r.Get("/results/{id}", h.handleResult)
	r.Get("/students", h.handleStudents)
	r.Get("/students/{studentID}/history", h.handleHistory)
	r.Post("/sync", h.handleSync)
}

type submissionResponse struct {
	Result   model.CTestResult `json:"result"`
	Feedback string            `json:"feedback"`
}

func (h *Handler) handleSubmission(w http.ResponseWriter, r *http.Request) {
	var sub intake.Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, feedback, err := h.intake.Process(r.Context(), sub)
	switch {
	case errors.Is(err, intake.ErrEmptyStudentID), errors.Is(err, intake.ErrUnknownVersion):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		slog.Error("process submission", "error", err)
		writeError(w, http.StatusInternalServerError, "could not process submission")
		return
	}

	writeJSON(w, http.StatusCreated, submissionResponse{Result: result, Feedback: feedback})
}

func (h *Handler) handleResult(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid result ID")
		return
	}

	result, err := h.store.GetResult(id)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "result not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleStudents(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")

	if h.inventory != nil && h.inventory.IsAvailable(r.Context()) {
		students, err := h.inventory.GetStudents(r.Context(), status)
		if err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		if err := h.store.CacheStudents(students); err != nil {
			slog.Warn("cache students", "error", err)
		}
		writeJSON(w, http.StatusOK, students)
		return
	}

	// Shared store down: serve the last known roster.
	students, err := h.store.CachedStudents()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if status != "" {
		filtered := students[:0]
		for _, st := range students {
			if st.Status == status {
				filtered = append(filtered, st)
			}
		}
		students = filtered
	}
	writeJSON(w, http.StatusOK, students)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentID")

	if h.inventory != nil && h.inventory.IsAvailable(r.Context()) {
		history, err := h.inventory.GetStudentHistory(r.Context(), studentID)
		if err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, history)
		return
	}

	// Fall back to locally stored results for this student.
	results, err := h.store.GetHistory(studentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	history := make([]model.HistoryEntry, 0, len(results))
	for _, res := range results {
		history = append(history, model.HistoryEntry{
			TestVersion:    res.TestVersion,
			TestDate:       res.TestDate,
			Score:          res.Score,
			PlacementLevel: res.PlacementLevel,
		})
	}
	writeJSON(w, http.StatusOK, history)
}

type syncResponse struct {
	Synced int `json:"synced"`
	Failed int `json:"failed"`
}

func (h *Handler) handleSync(w http.ResponseWriter, r *http.Request) {
	synced, failed, err := h.syncer.SyncPending(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, syncResponse{Synced: synced, Failed: failed})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

var _ Inventory = (*inventory.DB)(nil)
