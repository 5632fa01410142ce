package analyzer

import (
	"math"
	"sort"

	"github.com/open-courseware/gradewatch/internal/domain"
	"github.com/open-courseware/gradewatch/internal/stats"
)

// AnalyzeCriteria detects rubric criteria with abnormally high dispersion
// across graders and submissions. A criterion-specific outlier check within
// each flagged criterion captures grading noise that a total-score check
// misses, e.g. a grader harsh only on "documentation".
//
// Submissions missing a criterion are excluded from that criterion's
// sample, not treated as zero. Criteria with fewer than two scored
// instances are skipped: no variance is definable. Findings follow the
// rubric's criterion order.
func AnalyzeCriteria(snap *Snapshot, cfg domain.AnalysisConfig) []domain.CriterionFinding {
	findings := make([]domain.CriterionFinding, 0)

	for _, criterion := range snap.Assignment.Rubric {
		values := make([]float64, 0, len(snap.Submissions))
		ids := make([]string, 0, len(snap.Submissions))
		for _, sub := range snap.Submissions {
			v, ok := sub.CriterionScores[criterion.Name]
			if !ok {
				continue
			}
			values = append(values, v)
			ids = append(ids, sub.ID)
		}

		if len(values) < 2 {
			continue
		}

		mean, err := stats.Mean(values)
		if err != nil {
			continue
		}
		stdDev := stats.PopulationStdDev(values, mean)
		cv := stats.CoefficientOfVariation(stdDev, mean)
		if cv <= cfg.CVThreshold {
			continue
		}

		inconsistent := make([]string, 0)
		for i, v := range values {
			if math.Abs(stats.ZScore(v, mean, stdDev)) > cfg.OutlierThreshold {
				inconsistent = append(inconsistent, ids[i])
			}
		}
		sort.Strings(inconsistent)

		findings = append(findings, domain.CriterionFinding{
			Criterion:                 criterion.Name,
			Mean:                      mean,
			StdDev:                    stdDev,
			CV:                        cv,
			InconsistentSubmissionIDs: inconsistent,
		})
	}

	return findings
}
