package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/open-courseware/gradewatch/internal/analyzer"
	"github.com/open-courseware/gradewatch/internal/domain"
	"github.com/open-courseware/gradewatch/internal/report"
	"github.com/open-courseware/gradewatch/internal/repository"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo      domain.Repository
	cache     domain.Cache
	bus       domain.EventBus
	factors   *analyzer.FactorEngine
	assembler *report.Assembler
	version   string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, factors *analyzer.FactorEngine, assembler *report.Assembler, version string) *Handler {
	return &Handler{
		repo:      repo,
		cache:     cache,
		bus:       bus,
		factors:   factors,
		assembler: assembler,
		version:   version,
	}
}

// AssignmentRequest is the request body for POST /assignments.
type AssignmentRequest struct {
	ID       string                   `json:"id,omitempty"`
	Title    string                   `json:"title"`
	MaxScore float64                  `json:"maxScore"`
	Rubric   []domain.RubricCriterion `json:"rubric"`
}

// CreateAssignment handles POST /assignments.
func (h *Handler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	courseID := GetCourseID(ctx)

	var req AssignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.Title == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "title is required",
		})
		return
	}
	if req.MaxScore <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "maxScore must be positive",
		})
		return
	}

	id := req.ID
	if id == "" {
		id = uuid.New().String()
	}

	assignment := &domain.AssignmentContext{
		ID:        id,
		CourseID:  courseID,
		Title:     req.Title,
		MaxScore:  req.MaxScore,
		Rubric:    req.Rubric,
		CreatedAt: time.Now().UTC(),
	}

	if err := h.repo.SaveAssignment(ctx, courseID, assignment); err != nil {
		slog.Error("failed to save assignment", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save assignment",
		})
		return
	}

	writeJSON(w, http.StatusCreated, assignment)
}

// GetAssignment handles GET /assignments/{id}.
func (h *Handler) GetAssignment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	courseID := GetCourseID(ctx)
	assignmentID := chi.URLParam(r, "id")

	assignment, err := h.repo.GetAssignment(ctx, courseID, assignmentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "assignment not found",
			})
			return
		}
		slog.Error("failed to get assignment", "id", assignmentID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get assignment",
		})
		return
	}

	writeJSON(w, http.StatusOK, assignment)
}

// RecordSubmission handles POST /assignments/{id}/submissions.
func (h *Handler) RecordSubmission(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	courseID := GetCourseID(ctx)
	assignmentID := chi.URLParam(r, "id")

	var req domain.SubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.StudentID == "" || req.GraderID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "studentId and graderId are required",
		})
		return
	}
	if req.Score < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "score must not be negative",
		})
		return
	}
	if req.GradedStatus != "" && req.GradedStatus != domain.GradedStatusGraded && req.GradedStatus != domain.GradedStatusPending {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "gradedStatus must be graded or pending",
		})
		return
	}

	// Verify the assignment exists before accepting grades for it.
	if _, err := h.repo.GetAssignment(ctx, courseID, assignmentID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "assignment not found",
			})
			return
		}
		slog.Error("failed to get assignment", "id", assignmentID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get assignment",
		})
		return
	}

	sub := req.ToSubmission(courseID, assignmentID)
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}

	if err := h.repo.SaveSubmission(ctx, courseID, sub); err != nil {
		slog.Error("failed to save submission", "id", sub.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save submission",
		})
		return
	}

	writeJSON(w, http.StatusCreated, sub)
}

// AnalyzeResponse is the response for POST /assignments/{id}/analyze.
type AnalyzeResponse struct {
	Report   *domain.AnomalyReport `json:"report"`
	Metadata struct {
		TraceID  string `json:"traceId"`
		RunCount int64  `json:"runCount,omitempty"`
		TotalMs  int64  `json:"totalMs"`
		Version  string `json:"version"`
	} `json:"metadata"`
}

// Analyze handles POST /assignments/{id}/analyze. It runs a full analysis
// pass synchronously, persists the report, and publishes pipeline events.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	courseID := GetCourseID(ctx)
	traceID := GetTraceID(ctx)
	assignmentID := chi.URLParam(r, "id")

	assignment, err := h.repo.GetAssignment(ctx, courseID, assignmentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "assignment not found",
			})
			return
		}
		slog.Error("failed to get assignment", "id", assignmentID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get assignment",
		})
		return
	}

	submissions, err := h.repo.ListGradedSubmissions(ctx, courseID, assignmentID)
	if err != nil {
		slog.Error("failed to list submissions", "assignment_id", assignmentID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load submissions",
		})
		return
	}

	rpt, err := h.assembler.Analyze(ctx, assignment, submissions)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientData) || errors.Is(err, domain.ErrMissingRubric) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"error": err.Error(),
			})
			return
		}
		slog.Error("analysis failed", "assignment_id", assignmentID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "analysis failed",
		})
		return
	}

	if err := h.repo.SaveReport(ctx, courseID, rpt); err != nil {
		slog.Error("failed to save report", "report_id", rpt.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save report",
		})
		return
	}

	var runCount int64
	if h.cache != nil {
		if err := h.cache.SetReportSummary(ctx, courseID, assignmentID, rpt.ToSummary(), 15*time.Minute); err != nil {
			slog.Warn("failed to cache report summary", "report_id", rpt.ID, "error", err)
		}
		runCount, _ = h.cache.IncrementCounter(ctx, courseID, "analysis:"+assignmentID, time.Hour)
	}

	if h.bus != nil {
		payload, _ := json.Marshal(rpt)
		if err := h.bus.Publish(ctx, courseID, domain.TopicReportCreated, payload); err != nil {
			slog.Error("failed to publish report", "report_id", rpt.ID, "error", err)
		}
		if rpt.HasFindings() {
			if err := h.bus.Publish(ctx, courseID, domain.TopicReportFlagged, payload); err != nil {
				slog.Error("failed to publish flagged report", "report_id", rpt.ID, "error", err)
			}
		}
	}

	resp := AnalyzeResponse{Report: rpt}
	resp.Metadata.TraceID = traceID
	resp.Metadata.RunCount = runCount
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// GetLatestReport handles GET /assignments/{id}/report.
func (h *Handler) GetLatestReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	courseID := GetCourseID(ctx)
	assignmentID := chi.URLParam(r, "id")

	rpt, err := h.repo.GetLatestReport(ctx, courseID, assignmentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "no report for assignment",
			})
			return
		}
		slog.Error("failed to get latest report", "assignment_id", assignmentID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get report",
		})
		return
	}

	writeJSON(w, http.StatusOK, rpt)
}

// GetReportSummary handles GET /assignments/{id}/report/summary.
// Serves from cache when warm, falling back to the repository.
func (h *Handler) GetReportSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	courseID := GetCourseID(ctx)
	assignmentID := chi.URLParam(r, "id")

	if h.cache != nil {
		if summary, err := h.cache.GetReportSummary(ctx, courseID, assignmentID); err == nil && summary != nil {
			writeJSON(w, http.StatusOK, summary)
			return
		}
	}

	rpt, err := h.repo.GetLatestReport(ctx, courseID, assignmentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "no report for assignment",
			})
			return
		}
		slog.Error("failed to get latest report", "assignment_id", assignmentID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get report",
		})
		return
	}

	summary := rpt.ToSummary()
	if h.cache != nil {
		_ = h.cache.SetReportSummary(ctx, courseID, assignmentID, summary, 15*time.Minute)
	}

	writeJSON(w, http.StatusOK, summary)
}

// GetReport handles GET /reports/{id}.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	courseID := GetCourseID(ctx)
	reportID := chi.URLParam(r, "id")

	rpt, err := h.repo.GetReport(ctx, courseID, reportID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "report not found",
			})
			return
		}
		slog.Error("failed to get report", "id", reportID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get report",
		})
		return
	}

	writeJSON(w, http.StatusOK, rpt)
}

// StatusRequest is the request body for PATCH /reports/{id}/status.
type StatusRequest struct {
	Status string `json:"status"`
}

// UpdateReportStatus handles PATCH /reports/{id}/status.
func (h *Handler) UpdateReportStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	courseID := GetCourseID(ctx)
	reportID := chi.URLParam(r, "id")

	var req StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if !domain.ValidReportStatus(req.Status) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "status must be pending, reviewed, or resolved",
		})
		return
	}

	if err := h.repo.UpdateReportStatus(ctx, courseID, reportID, req.Status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "report not found",
			})
			return
		}
		slog.Error("failed to update report status", "id", reportID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to update report status",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"id":     reportID,
		"status": req.Status,
	})
}

// ListFactors handles GET /factors, returning the factors loaded in the
// engine. Factors are loaded from the database at startup and can be
// reloaded via POST /factors/reload.
func (h *Handler) ListFactors(w http.ResponseWriter, r *http.Request) {
	loaded := h.factors.GetLoadedFactors()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"factors": loaded,
		"count":   len(loaded),
		"source":  "database",
	})
}

// GetFactor handles GET /factors/{id}.
func (h *Handler) GetFactor(w http.ResponseWriter, r *http.Request) {
	factorID := chi.URLParam(r, "id")

	for _, f := range h.factors.GetLoadedFactors() {
		if f.ID == factorID {
			writeJSON(w, http.StatusOK, f)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "factor not found",
	})
}

// FactorRequest is the request body for creating a custom risk factor.
type FactorRequest struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Expression  string  `json:"expression"`
	Weight      float64 `json:"weight"`
	Enabled     bool    `json:"enabled"`
}

// CreateFactor handles POST /factors. The expression is validated by the
// CEL engine before the factor is persisted.
func (h *Handler) CreateFactor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	courseID := GetCourseID(ctx)

	var req FactorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}
	if req.Weight <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "weight must be positive",
		})
		return
	}

	factor := &domain.RiskFactorConfig{
		ID:          req.ID,
		CourseID:    courseID,
		Name:        req.Name,
		Description: req.Description,
		Expression:  req.Expression,
		Weight:      req.Weight,
		Enabled:     req.Enabled,
	}

	if err := h.factors.ValidateFactor(factor); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	if err := h.repo.SaveRiskFactor(ctx, courseID, factor); err != nil {
		slog.Error("failed to save risk factor", "id", factor.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save factor",
		})
		return
	}

	slog.Info("risk factor created", "id", factor.ID, "name", factor.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"factor":  factor,
		"message": "Factor created. Call POST /factors/reload to apply changes.",
	})
}

// DeleteFactor handles DELETE /factors/{id} and auto-reloads the engine.
func (h *Handler) DeleteFactor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	courseID := GetCourseID(ctx)
	factorID := chi.URLParam(r, "id")

	if err := h.repo.DeleteRiskFactor(ctx, courseID, factorID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "factor not found",
			})
			return
		}
		slog.Error("failed to delete risk factor", "id", factorID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to delete factor",
		})
		return
	}

	// Auto-reload after delete
	factors, err := h.repo.ListRiskFactors(ctx, courseID)
	if err != nil {
		slog.Error("failed to reload factors after delete", "error", err)
	} else if err := h.factors.ReloadFactors(factors); err != nil {
		slog.Error("failed to reload factors into engine", "error", err)
	}

	slog.Info("risk factor deleted", "id", factorID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Factor deleted and engine reloaded.",
	})
}

// ReloadFactors handles POST /factors/reload, hot-reloading factors from
// the database without server restart.
func (h *Handler) ReloadFactors(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	courseID := GetCourseID(ctx)

	factors, err := h.repo.ListRiskFactors(ctx, courseID)
	if err != nil {
		slog.Error("failed to list factors from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load factors from database",
		})
		return
	}

	if err := h.factors.ReloadFactors(factors); err != nil {
		slog.Error("failed to reload factors into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload factors: " + err.Error(),
		})
		return
	}

	slog.Info("risk factors reloaded from database", "count", len(factors))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "factors reloaded successfully",
		"count":   len(factors),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
