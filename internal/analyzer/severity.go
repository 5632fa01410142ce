package analyzer

import (
	"math"
	"sort"

	"github.com/open-courseware/gradewatch/internal/domain"
	"github.com/open-courseware/gradewatch/internal/stats"
)

// DetectSeverity flags graders whose mean score deviates abnormally from
// the assignment mean. Deviation is measured against the overall
// distribution's spread, not the grader's own variance, so a grader who is
// consistently shifted is caught even with low internal variance.
//
// Findings are ordered by descending |deviation|, ties broken by grader id
// ascending for determinism.
func DetectSeverity(snap *Snapshot, cfg domain.AnalysisConfig) []domain.TASeverityFinding {
	byGrader := make(map[string][]float64)
	for _, sub := range snap.Submissions {
		byGrader[sub.GraderID] = append(byGrader[sub.GraderID], sub.Score)
	}

	findings := make([]domain.TASeverityFinding, 0)
	for graderID, scores := range byGrader {
		graderMean, err := stats.Mean(scores)
		if err != nil {
			// No grades for this grader; nothing to measure.
			continue
		}

		deviation := stats.ZScore(graderMean, snap.Summary.AverageScore, snap.Summary.StdDev)
		if math.Abs(deviation) <= cfg.SeverityThreshold {
			continue
		}

		severity := domain.SeverityTooLenient
		if deviation < 0 {
			severity = domain.SeverityTooHarsh
		}

		findings = append(findings, domain.TASeverityFinding{
			GraderID:   graderID,
			GraderMean: graderMean,
			GradeCount: len(scores),
			Deviation:  deviation,
			Severity:   severity,
		})
	}

	sort.Slice(findings, func(i, j int) bool {
		di, dj := math.Abs(findings[i].Deviation), math.Abs(findings[j].Deviation)
		if di != dj {
			return di > dj
		}
		return findings[i].GraderID < findings[j].GraderID
	})

	return findings
}

// HarshGraders returns the set of grader ids flagged too_harsh, for use by
// the regrade risk scorer.
func HarshGraders(findings []domain.TASeverityFinding) map[string]bool {
	harsh := make(map[string]bool)
	for _, f := range findings {
		if f.Severity == domain.SeverityTooHarsh {
			harsh[f.GraderID] = true
		}
	}
	return harsh
}
