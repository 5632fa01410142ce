// Package analyzer implements the grading anomaly analyzers: grader
// severity bias, score outliers, rubric criterion inconsistency, and
// regrade risk. Each analyzer is a stateless function over the same
// immutable snapshot; none of them mutates submission data, so they can
// run in parallel within one analysis pass.
package analyzer

import (
	"github.com/open-courseware/gradewatch/internal/domain"
)

// Snapshot is the immutable input of one analysis pass: the assignment
// context, its graded submissions, and the summary statistics computed
// once over their total scores.
type Snapshot struct {
	Assignment  *domain.AssignmentContext
	Submissions []*domain.GradedSubmission
	Summary     domain.SummaryStatistics
}
