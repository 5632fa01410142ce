// Package report assembles anomaly reports from the individual analyzers.
package report

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/open-courseware/gradewatch/internal/analyzer"
	"github.com/open-courseware/gradewatch/internal/domain"
	"github.com/open-courseware/gradewatch/internal/stats"
)

var tracer = otel.Tracer("gradewatch-report")

// Assembler runs one full analysis pass over an assignment's graded
// submissions and produces an immutable AnomalyReport. It is safe for
// concurrent use; all per-run state lives on the stack.
type Assembler struct {
	cfg     domain.AnalysisConfig
	factors *analyzer.FactorEngine
}

// NewAssembler creates an assembler. The factor engine may be nil, in
// which case only the built-in risk factors apply.
func NewAssembler(cfg domain.AnalysisConfig, factors *analyzer.FactorEngine) *Assembler {
	return &Assembler{cfg: cfg, factors: factors}
}

// Analyze validates preconditions, computes summary statistics, runs the
// severity, outlier, and criterion analyzers concurrently, then scores
// regrade risk from their outputs.
//
// Pending submissions are excluded before the validity floor is checked;
// they never block analysis of the graded remainder. Precondition failures
// return a nil report and one of domain.ErrInsufficientData or
// domain.ErrMissingRubric.
func (a *Assembler) Analyze(ctx context.Context, assignment *domain.AssignmentContext, submissions []*domain.GradedSubmission) (*domain.AnomalyReport, error) {
	_, span := tracer.Start(ctx, "report.analyze")
	defer span.End()

	graded := make([]*domain.GradedSubmission, 0, len(submissions))
	for _, sub := range submissions {
		if sub.IsGraded() {
			graded = append(graded, sub)
		}
	}

	if len(graded) < domain.MinGradedSubmissions {
		return nil, fmt.Errorf("%w: have %d, need %d", domain.ErrInsufficientData, len(graded), domain.MinGradedSubmissions)
	}
	if !assignment.HasRubric() {
		return nil, fmt.Errorf("%w: assignment %s", domain.ErrMissingRubric, assignment.ID)
	}

	scores := make([]float64, len(graded))
	for i, sub := range graded {
		scores[i] = sub.Score
	}
	summary, err := stats.Summarize(scores)
	if err != nil {
		return nil, err
	}

	snap := &analyzer.Snapshot{
		Assignment:  assignment,
		Submissions: graded,
		Summary:     summary,
	}

	// Severity, outlier, and criterion analysis are independent reads of
	// the snapshot. Risk scoring needs the first two, so it runs after.
	var (
		wg        sync.WaitGroup
		severity  []domain.TASeverityFinding
		outliers  []domain.OutlierFinding
		criterion []domain.CriterionFinding
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		severity = analyzer.DetectSeverity(snap, a.cfg)
	}()
	go func() {
		defer wg.Done()
		outliers = analyzer.DetectOutliers(snap, a.cfg)
	}()
	go func() {
		defer wg.Done()
		criterion = analyzer.AnalyzeCriteria(snap, a.cfg)
	}()
	wg.Wait()

	risks := analyzer.ScoreRegradeRisk(snap, analyzer.RiskInputs{
		Outliers:     analyzer.OutlierSet(outliers),
		HarshGraders: analyzer.HarshGraders(severity),
	}, a.factors, a.cfg)
	risks = analyzer.FilterRisks(risks, a.cfg.MinRiskScore)

	rpt := &domain.AnomalyReport{
		ID:                uuid.New().String(),
		CourseID:          assignment.CourseID,
		AssignmentID:      assignment.ID,
		SummaryStatistics: summary,
		SeverityFindings:  severity,
		OutlierFindings:   outliers,
		CriterionFindings: criterion,
		RegradeRisks:      risks,
		GeneratedAt:       time.Now().UTC(),
		Status:            domain.ReportStatusPending,
	}

	span.SetAttributes(
		attribute.String("assignment.id", assignment.ID),
		attribute.Int("report.total_grades", summary.TotalGrades),
		attribute.Int("report.regrade_risks", len(risks)),
	)

	return rpt, nil
}
