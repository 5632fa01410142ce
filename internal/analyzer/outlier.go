package analyzer

import (
	"math"
	"sort"

	"github.com/open-courseware/gradewatch/internal/domain"
	"github.com/open-courseware/gradewatch/internal/stats"
)

// DetectOutliers flags submissions whose total score lies more than the
// configured number of standard deviations from the assignment mean. This
// is a property of the score alone, independent of who graded it.
//
// Findings are ordered by descending |z-score|, ties broken by submission
// id ascending for determinism.
func DetectOutliers(snap *Snapshot, cfg domain.AnalysisConfig) []domain.OutlierFinding {
	findings := make([]domain.OutlierFinding, 0)
	for _, sub := range snap.Submissions {
		z := stats.ZScore(sub.Score, snap.Summary.AverageScore, snap.Summary.StdDev)
		if math.Abs(z) <= cfg.OutlierThreshold {
			continue
		}
		findings = append(findings, domain.OutlierFinding{
			SubmissionID: sub.ID,
			StudentID:    sub.StudentID,
			Score:        sub.Score,
			ZScore:       z,
			GraderID:     sub.GraderID,
		})
	}

	sort.Slice(findings, func(i, j int) bool {
		zi, zj := math.Abs(findings[i].ZScore), math.Abs(findings[j].ZScore)
		if zi != zj {
			return zi > zj
		}
		return findings[i].SubmissionID < findings[j].SubmissionID
	})

	return findings
}

// OutlierSet returns the flagged submission ids, for use by the regrade
// risk scorer.
func OutlierSet(findings []domain.OutlierFinding) map[string]bool {
	set := make(map[string]bool, len(findings))
	for _, f := range findings {
		set[f.SubmissionID] = true
	}
	return set
}
