// Package worker provides async analysis processing for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/open-courseware/gradewatch/internal/domain"
	"github.com/open-courseware/gradewatch/internal/report"
)

// Worker runs analysis passes asynchronously from the EventBus.
type Worker struct {
	bus       domain.EventBus
	repo      domain.Repository
	cache     domain.Cache
	assembler *report.Assembler

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// CourseIDs is the list of courses to process (empty = all via the
	// global subscription).
	CourseIDs []string
}

// NewWorker creates a new async worker. The cache may be nil.
func NewWorker(bus domain.EventBus, repo domain.Repository, cache domain.Cache, assembler *report.Assembler) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:       bus,
		repo:      repo,
		cache:     cache,
		assembler: assembler,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start begins processing analysis requests for the given courses.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.CourseIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, courseID := range cfg.CourseIDs {
		if err := w.startCourseWorker(courseID); err != nil {
			slog.Error("failed to start worker for course",
				"course_id", courseID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"course_count", len(cfg.CourseIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all courses (for testing/dev).
func (w *Worker) startGlobalWorker() error {
	// Subscribe using a special "global" course ID
	// In production, you'd want to subscribe with wildcards or JetStream
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicAnalysisRequested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startCourseWorker starts a worker for a specific course.
func (w *Worker) startCourseWorker(courseID string) error {
	sub, err := w.bus.Subscribe(w.ctx, courseID, domain.TopicAnalysisRequested, func(ctx context.Context, msg *domain.Message) error {
		return w.processRequest(ctx, courseID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("course worker started",
		"course_id", courseID,
		"topic", domain.TopicAnalysisRequested,
	)

	return nil
}

// handleMessage handles messages from the global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processRequest(ctx, msg.CourseID, msg)
}

// AnalysisRequest is the message payload requesting an analysis pass.
type AnalysisRequest struct {
	AssignmentID string `json:"assignmentId"`
	CourseID     string `json:"courseId"`
	TraceID      string `json:"traceId,omitempty"`
}

// processRequest runs one analysis pass for an assignment and persists
// and publishes the resulting report.
func (w *Worker) processRequest(ctx context.Context, courseID string, msg *domain.Message) error {
	start := time.Now()

	var req AnalysisRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		slog.Error("failed to parse analysis request",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Use message course if provided
	if req.CourseID != "" {
		courseID = req.CourseID
	}

	traceID := req.TraceID
	if traceID == "" {
		traceID = msg.ID
	}

	slog.Debug("processing analysis request",
		"assignment_id", req.AssignmentID,
		"course_id", courseID,
		"trace_id", traceID,
	)

	assignment, err := w.repo.GetAssignment(ctx, courseID, req.AssignmentID)
	if err != nil {
		slog.Error("failed to load assignment",
			"assignment_id", req.AssignmentID,
			"error", err,
		)
		return err
	}

	submissions, err := w.repo.ListGradedSubmissions(ctx, courseID, req.AssignmentID)
	if err != nil {
		slog.Error("failed to load submissions",
			"assignment_id", req.AssignmentID,
			"error", err,
		)
		return err
	}

	rpt, err := w.assembler.Analyze(ctx, assignment, submissions)
	if err != nil {
		// Precondition failures are expected while a class is still being
		// graded; log and drop rather than retry.
		if errors.Is(err, domain.ErrInsufficientData) || errors.Is(err, domain.ErrMissingRubric) {
			slog.Info("analysis skipped",
				"assignment_id", req.AssignmentID,
				"reason", err,
			)
			return nil
		}
		slog.Error("analysis failed",
			"assignment_id", req.AssignmentID,
			"error", err,
		)
		return err
	}

	if err := w.repo.SaveReport(ctx, courseID, rpt); err != nil {
		slog.Error("failed to save report",
			"report_id", rpt.ID,
			"error", err,
		)
		return err
	}

	if w.cache != nil {
		if err := w.cache.SetReportSummary(ctx, courseID, req.AssignmentID, rpt.ToSummary(), 15*time.Minute); err != nil {
			slog.Warn("failed to cache report summary",
				"report_id", rpt.ID,
				"error", err,
			)
		}
	}

	resultPayload, _ := json.Marshal(rpt)
	if err := w.bus.Publish(ctx, courseID, domain.TopicReportCreated, resultPayload); err != nil {
		slog.Error("failed to publish report",
			"report_id", rpt.ID,
			"error", err,
		)
	}

	if rpt.HasFindings() {
		if err := w.bus.Publish(ctx, courseID, domain.TopicReportFlagged, resultPayload); err != nil {
			slog.Error("failed to publish flagged report",
				"report_id", rpt.ID,
				"error", err,
			)
		}
	}

	slog.Info("analysis completed",
		"assignment_id", req.AssignmentID,
		"course_id", courseID,
		"report_id", rpt.ID,
		"total_grades", rpt.TotalGrades,
		"regrade_risks", len(rpt.RegradeRisks),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
