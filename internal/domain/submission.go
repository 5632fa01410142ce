package domain

import (
	"time"
)

// Grading states for a submission. Only graded submissions enter analysis.
const (
	GradedStatusGraded  = "graded"
	GradedStatusPending = "pending"
)

// GradedSubmission is one student's scored work for an assignment.
// The engine treats it as read-only input: scores are trusted as recorded
// by the grading workflow and never re-validated here.
type GradedSubmission struct {
	ID           string `json:"id"`
	CourseID     string `json:"courseId"`
	AssignmentID string `json:"assignmentId"`

	StudentID string `json:"studentId"`
	GraderID  string `json:"graderId"`

	// Total score awarded, 0 <= Score <= assignment max.
	Score float64 `json:"score"`

	// Points awarded per rubric criterion, keyed by criterion name.
	// A submission may lack entries for criteria it was not scored on.
	CriterionScores map[string]float64 `json:"criterionScores,omitempty"`

	GradedStatus string    `json:"gradedStatus"`
	GradedAt     time.Time `json:"gradedAt"`
	CreatedAt    time.Time `json:"createdAt"`
}

// IsGraded reports whether the submission is eligible for analysis.
func (s *GradedSubmission) IsGraded() bool {
	return s.GradedStatus == GradedStatusGraded
}

// RubricCriterion is one named criterion of an assignment's rubric.
type RubricCriterion struct {
	Name      string  `json:"name"`
	MaxPoints float64 `json:"maxPoints"`
}

// AssignmentContext describes the assignment whose grades are analyzed:
// its maximum achievable score and the ordered rubric criteria used to
// label criterion-level findings.
type AssignmentContext struct {
	ID        string            `json:"id"`
	CourseID  string            `json:"courseId"`
	Title     string            `json:"title"`
	MaxScore  float64           `json:"maxScore"`
	Rubric    []RubricCriterion `json:"rubric"`
	CreatedAt time.Time         `json:"createdAt"`
}

// HasRubric reports whether a rubric is attached. Analysis refuses to run
// without one.
func (a *AssignmentContext) HasRubric() bool {
	return len(a.Rubric) > 0
}

// SubmissionRequest is the API payload for recording a graded submission.
type SubmissionRequest struct {
	ID              string             `json:"id,omitempty"`
	StudentID       string             `json:"studentId"`
	GraderID        string             `json:"graderId"`
	Score           float64            `json:"score"`
	CriterionScores map[string]float64 `json:"criterionScores,omitempty"`
	GradedStatus    string             `json:"gradedStatus,omitempty"`
}

// ToSubmission converts a request to a GradedSubmission domain object.
func (r *SubmissionRequest) ToSubmission(courseID, assignmentID string) *GradedSubmission {
	now := time.Now().UTC()
	status := r.GradedStatus
	if status == "" {
		status = GradedStatusGraded
	}
	return &GradedSubmission{
		ID:              r.ID,
		CourseID:        courseID,
		AssignmentID:    assignmentID,
		StudentID:       r.StudentID,
		GraderID:        r.GraderID,
		Score:           r.Score,
		CriterionScores: r.CriterionScores,
		GradedStatus:    status,
		GradedAt:        now,
		CreatedAt:       now,
	}
}
