package worker

import (
	"context"
	"encoding/json"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/open-courseware/gradewatch/internal/bus"
	"github.com/open-courseware/gradewatch/internal/domain"
	"github.com/open-courseware/gradewatch/internal/report"
	"github.com/open-courseware/gradewatch/internal/repository"
)

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "gradewatch-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	return repo
}

func seedAssignment(t *testing.T, repo domain.Repository, courseID, assignmentID string, scores map[string]float64) {
	t.Helper()
	ctx := context.Background()

	err := repo.SaveAssignment(ctx, courseID, &domain.AssignmentContext{
		ID:       assignmentID,
		Title:    "Worker Test Assignment",
		MaxScore: 100,
		Rubric: []domain.RubricCriterion{
			{Name: "correctness", MaxPoints: 100},
		},
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("SaveAssignment failed: %v", err)
	}

	for id, score := range scores {
		err := repo.SaveSubmission(ctx, courseID, &domain.GradedSubmission{
			ID:           id,
			AssignmentID: assignmentID,
			StudentID:    "stu-" + id,
			GraderID:     "ta-a",
			Score:        score,
			GradedStatus: domain.GradedStatusGraded,
			GradedAt:     time.Now().UTC(),
			CreatedAt:    time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("SaveSubmission failed: %v", err)
		}
	}
}

func TestWorker(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	repo := newTestRepo(t)
	assembler := report.NewAssembler(domain.DefaultAnalysisConfig(), nil)

	t.Run("StartAndStop", func(t *testing.T) {
		w := NewWorker(eventBus, repo, nil, assembler)

		cfg := Config{
			CourseIDs: []string{"course-001"},
		}
		if err := w.Start(cfg); err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		stats := w.GetStats()
		if stats.SubscriptionCount != 1 {
			t.Errorf("expected 1 subscription, got %d", stats.SubscriptionCount)
		}

		if err := w.Stop(); err != nil {
			t.Errorf("Stop failed: %v", err)
		}

		stats = w.GetStats()
		if stats.SubscriptionCount != 0 {
			t.Errorf("expected 0 subscriptions after stop, got %d", stats.SubscriptionCount)
		}
	})

	t.Run("ProcessAnalysisRequest", func(t *testing.T) {
		courseID := "course-run"
		seedAssignment(t, repo, courseID, "hw-001", map[string]float64{
			"sub-001": 80, "sub-002": 82, "sub-003": 78, "sub-004": 81, "sub-005": 79,
		})

		w := NewWorker(eventBus, repo, nil, assembler)
		w.Start(Config{CourseIDs: []string{courseID}})
		defer w.Stop()

		var reportReceived atomic.Bool
		var reportPayload []byte

		eventBus.Subscribe(context.Background(), courseID, domain.TopicReportCreated, func(ctx context.Context, msg *domain.Message) error {
			reportPayload = msg.Payload
			reportReceived.Store(true)
			return nil
		})

		// Allow subscriptions to be active
		time.Sleep(50 * time.Millisecond)

		req := AnalysisRequest{
			AssignmentID: "hw-001",
			CourseID:     courseID,
			TraceID:      "trace-001",
		}
		payload, _ := json.Marshal(req)
		if err := eventBus.Publish(context.Background(), courseID, domain.TopicAnalysisRequested, payload); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}

		// Wait for processing
		time.Sleep(100 * time.Millisecond)

		if !reportReceived.Load() {
			t.Fatal("expected report to be published")
		}

		var rpt domain.AnomalyReport
		if err := json.Unmarshal(reportPayload, &rpt); err != nil {
			t.Fatalf("failed to parse report: %v", err)
		}
		if rpt.AssignmentID != "hw-001" {
			t.Errorf("expected assignment 'hw-001', got '%s'", rpt.AssignmentID)
		}
		if rpt.TotalGrades != 5 {
			t.Errorf("expected 5 grades, got %d", rpt.TotalGrades)
		}

		// Report should also be persisted
		saved, err := repo.GetLatestReport(context.Background(), courseID, "hw-001")
		if err != nil {
			t.Fatalf("GetLatestReport failed: %v", err)
		}
		if saved.ID != rpt.ID {
			t.Errorf("expected saved report %s, got %s", rpt.ID, saved.ID)
		}
	})

	t.Run("FlaggedTopicOnFindings", func(t *testing.T) {
		courseID := "course-flagged"
		// Two 40s from a single harsh pattern in a cohort of 80s.
		seedAssignment(t, repo, courseID, "hw-002", map[string]float64{
			"sub-001": 40, "sub-002": 40,
			"sub-003": 80, "sub-004": 80, "sub-005": 80,
			"sub-006": 80, "sub-007": 80, "sub-008": 80,
			"sub-009": 80, "sub-010": 80,
		})

		// Split graders so severity has something to flag.
		ctx := context.Background()
		for _, id := range []string{"sub-001", "sub-002"} {
			repo.SaveSubmission(ctx, courseID, &domain.GradedSubmission{
				ID: id, AssignmentID: "hw-002",
				StudentID: "stu-" + id, GraderID: "ta-harsh", Score: 40,
				GradedStatus: domain.GradedStatusGraded,
				GradedAt:     time.Now().UTC(), CreatedAt: time.Now().UTC(),
			})
		}

		w := NewWorker(eventBus, repo, nil, assembler)
		w.Start(Config{CourseIDs: []string{courseID}})
		defer w.Stop()

		var flagged atomic.Bool
		eventBus.Subscribe(ctx, courseID, domain.TopicReportFlagged, func(ctx context.Context, msg *domain.Message) error {
			flagged.Store(true)
			return nil
		})

		time.Sleep(50 * time.Millisecond)

		payload, _ := json.Marshal(AnalysisRequest{AssignmentID: "hw-002", CourseID: courseID})
		eventBus.Publish(ctx, courseID, domain.TopicAnalysisRequested, payload)

		time.Sleep(100 * time.Millisecond)

		if !flagged.Load() {
			t.Error("expected flagged topic for anomalous cohort")
		}
	})

	t.Run("InsufficientDataSkipped", func(t *testing.T) {
		courseID := "course-early"
		seedAssignment(t, repo, courseID, "hw-003", map[string]float64{
			"sub-001": 80, "sub-002": 82,
		})

		w := NewWorker(eventBus, repo, nil, assembler)
		w.Start(Config{CourseIDs: []string{courseID}})
		defer w.Stop()

		var published atomic.Bool
		eventBus.Subscribe(context.Background(), courseID, domain.TopicReportCreated, func(ctx context.Context, msg *domain.Message) error {
			published.Store(true)
			return nil
		})

		time.Sleep(50 * time.Millisecond)

		payload, _ := json.Marshal(AnalysisRequest{AssignmentID: "hw-003", CourseID: courseID})
		eventBus.Publish(context.Background(), courseID, domain.TopicAnalysisRequested, payload)

		time.Sleep(100 * time.Millisecond)

		if published.Load() {
			t.Error("expected no report while grading is incomplete")
		}
	})

	t.Run("MultiCourse", func(t *testing.T) {
		w := NewWorker(eventBus, repo, nil, assembler)

		cfg := Config{
			CourseIDs: []string{"course-a", "course-b"},
		}
		w.Start(cfg)
		defer w.Stop()

		stats := w.GetStats()
		if stats.SubscriptionCount != 2 {
			t.Errorf("expected 2 subscriptions for 2 courses, got %d", stats.SubscriptionCount)
		}
	})
}

func TestAnalysisRequestParsing(t *testing.T) {
	req := AnalysisRequest{
		AssignmentID: "hw-123",
		CourseID:     "course-001",
		TraceID:      "trace-456",
	}

	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var parsed AnalysisRequest
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if parsed.AssignmentID != req.AssignmentID {
		t.Errorf("expected AssignmentID '%s', got '%s'", req.AssignmentID, parsed.AssignmentID)
	}
	if parsed.TraceID != req.TraceID {
		t.Errorf("expected TraceID '%s', got '%s'", req.TraceID, parsed.TraceID)
	}
}
