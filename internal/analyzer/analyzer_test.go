package analyzer

import (
	"testing"
	"time"

	"github.com/open-courseware/gradewatch/internal/domain"
	"github.com/open-courseware/gradewatch/internal/stats"
)

// sub builds a graded submission for analyzer tests.
func sub(id, studentID, graderID string, score float64) *domain.GradedSubmission {
	return &domain.GradedSubmission{
		ID:           id,
		CourseID:     "course-001",
		AssignmentID: "hw-001",
		StudentID:    studentID,
		GraderID:     graderID,
		Score:        score,
		GradedStatus: domain.GradedStatusGraded,
		GradedAt:     time.Now().UTC(),
	}
}

// snapshot builds an analysis snapshot over the given submissions with
// summary statistics computed from their total scores.
func snapshot(t *testing.T, maxScore float64, subs []*domain.GradedSubmission) *Snapshot {
	t.Helper()

	scores := make([]float64, len(subs))
	for i, s := range subs {
		scores[i] = s.Score
	}
	summary, err := stats.Summarize(scores)
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}

	return &Snapshot{
		Assignment: &domain.AssignmentContext{
			ID:       "hw-001",
			CourseID: "course-001",
			Title:    "Homework 1",
			MaxScore: maxScore,
			Rubric: []domain.RubricCriterion{
				{Name: "correctness", MaxPoints: maxScore / 2},
				{Name: "style", MaxPoints: maxScore / 2},
			},
		},
		Submissions: subs,
		Summary:     summary,
	}
}
