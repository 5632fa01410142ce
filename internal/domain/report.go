package domain

import (
	"time"
)

// SummaryStatistics are the assignment-wide aggregates every analyzer
// consumes. Population statistics (divisor N), computed once per run.
type SummaryStatistics struct {
	TotalGrades  int     `json:"totalGrades"`
	AverageScore float64 `json:"averageScore"`
	StdDev       float64 `json:"stdDev"`
}

// Severity labels for grader bias findings.
const (
	SeverityTooHarsh   = "too_harsh"
	SeverityTooLenient = "too_lenient"
)

// TASeverityFinding flags a grader whose average score deviates abnormally
// from the assignment mean. Deviation is measured in standard-deviation
// units of the overall distribution, not the grader's own variance.
type TASeverityFinding struct {
	GraderID   string  `json:"graderId"`
	GraderMean float64 `json:"graderMean"`
	GradeCount int     `json:"gradeCount"`
	Deviation  float64 `json:"deviation"`
	Severity   string  `json:"severity"`
}

// OutlierFinding flags a single score far from the assignment mean.
// It is a property of the score alone, independent of the grader.
type OutlierFinding struct {
	SubmissionID string  `json:"submissionId"`
	StudentID    string  `json:"studentId"`
	Score        float64 `json:"score"`
	ZScore       float64 `json:"zScore"`
	GraderID     string  `json:"graderId"`
}

// CriterionFinding flags a rubric criterion with abnormally high dispersion
// across graders and submissions.
type CriterionFinding struct {
	Criterion string  `json:"criterion"`
	Mean      float64 `json:"mean"`
	StdDev    float64 `json:"stdDev"`
	CV        float64 `json:"cv"`

	// Submissions whose score on this criterion is itself an outlier
	// within the criterion's own distribution.
	InconsistentSubmissionIDs []string `json:"inconsistentSubmissionIds"`
}

// Built-in regrade risk factor tags, in evaluation order.
const (
	FactorLowScore           = "unusually_low_score"
	FactorOutlier            = "statistical_outlier"
	FactorHarshGrader        = "harsh_grader"
	FactorNearBoundaryPrefix = "near_boundary_"
)

// RegradeRisk estimates how likely a submission's grade should be revisited,
// as an additive score in [0,100] with the contributing factor tags in the
// order they were evaluated.
type RegradeRisk struct {
	SubmissionID string   `json:"submissionId"`
	StudentID    string   `json:"studentId"`
	Score        float64  `json:"score"`
	RiskScore    float64  `json:"riskScore"`
	RiskFactors  []string `json:"riskFactors"`
	GraderID     string   `json:"graderId"`
}

// Report lifecycle statuses. A report starts pending; transitions are made
// by a reviewing actor, not by the engine.
const (
	ReportStatusPending  = "pending"
	ReportStatusReviewed = "reviewed"
	ReportStatusResolved = "resolved"
)

// ValidReportStatus reports whether s is a known lifecycle status.
func ValidReportStatus(s string) bool {
	switch s {
	case ReportStatusPending, ReportStatusReviewed, ReportStatusResolved:
		return true
	}
	return false
}

// AnomalyReport is the immutable output of one analysis run. Its JSON shape
// is the wire contract exposed unchanged by any API layer. Re-running
// analysis produces a new report rather than mutating a previous one.
type AnomalyReport struct {
	ID           string `json:"id"`
	CourseID     string `json:"courseId"`
	AssignmentID string `json:"assignmentId"`

	SummaryStatistics

	SeverityFindings  []TASeverityFinding `json:"severityFindings"`
	OutlierFindings   []OutlierFinding    `json:"outlierFindings"`
	CriterionFindings []CriterionFinding  `json:"criterionFindings"`
	RegradeRisks      []RegradeRisk       `json:"regradeRisks"`

	GeneratedAt time.Time `json:"generatedAt"`
	Status      string    `json:"status"`
}

// HasFindings reports whether any analyzer produced a signal.
func (r *AnomalyReport) HasFindings() bool {
	return len(r.SeverityFindings) > 0 ||
		len(r.OutlierFindings) > 0 ||
		len(r.CriterionFindings) > 0 ||
		len(r.RegradeRisks) > 0
}

// ToSummary extracts the cacheable headline of a report.
func (r *AnomalyReport) ToSummary() *ReportSummary {
	return &ReportSummary{
		ReportID:     r.ID,
		AssignmentID: r.AssignmentID,
		TotalGrades:  r.TotalGrades,
		AverageScore: r.AverageScore,
		RiskCount:    len(r.RegradeRisks),
		Status:       r.Status,
		GeneratedAt:  r.GeneratedAt.Format(time.RFC3339),
	}
}
