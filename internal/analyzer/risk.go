package analyzer

import (
	"math"
	"sort"
	"strconv"

	"github.com/open-courseware/gradewatch/internal/domain"
	"github.com/open-courseware/gradewatch/internal/stats"
)

// RiskInputs carries the upstream analyzer signals the risk scorer combines.
type RiskInputs struct {
	// Outliers is the submission id set flagged by DetectOutliers.
	Outliers map[string]bool

	// HarshGraders is the grader id set flagged too_harsh by DetectSeverity.
	HarshGraders map[string]bool
}

// ScoreRegradeRisk produces one RegradeRisk per submission. Factors are
// independent and cumulative, evaluated in a fixed order (low score,
// outlier, harsh grader, boundary, then custom factors) with the total
// capped at 100. The result includes zero-risk submissions; callers filter
// and order the reported list.
func ScoreRegradeRisk(snap *Snapshot, in RiskInputs, factors *FactorEngine, cfg domain.AnalysisConfig) []domain.RegradeRisk {
	boundary, window := scaledBoundary(snap.Assignment.MaxScore, cfg)
	boundaryTag := domain.FactorNearBoundaryPrefix + strconv.FormatFloat(boundary, 'f', -1, 64)
	graderDeviation, graderCount := graderDeviations(snap)

	risks := make([]domain.RegradeRisk, 0, len(snap.Submissions))
	for _, sub := range snap.Submissions {
		var score float64
		tags := make([]string, 0, 4)

		// Below the mean by more than one standard deviation. Independent
		// of the outlier threshold.
		if snap.Summary.AverageScore-sub.Score > snap.Summary.StdDev {
			score += cfg.Weights.LowScore
			tags = append(tags, domain.FactorLowScore)
		}

		if in.Outliers[sub.ID] {
			score += cfg.Weights.Outlier
			tags = append(tags, domain.FactorOutlier)
		}

		if in.HarshGraders[sub.GraderID] {
			score += cfg.Weights.HarshGrader
			tags = append(tags, domain.FactorHarshGrader)
		}

		if math.Abs(sub.Score-boundary) <= window {
			score += cfg.Weights.NearBoundary
			tags = append(tags, boundaryTag)
		}

		if factors != nil {
			activation := map[string]any{
				"score":            sub.Score,
				"mean":             snap.Summary.AverageScore,
				"std_dev":          snap.Summary.StdDev,
				"z_score":          stats.ZScore(sub.Score, snap.Summary.AverageScore, snap.Summary.StdDev),
				"max_score":        snap.Assignment.MaxScore,
				"boundary":         boundary,
				"grader_deviation": graderDeviation[sub.GraderID],
				"grade_count":      int64(graderCount[sub.GraderID]),
				"is_outlier":       in.Outliers[sub.ID],
				"harsh_grader":     in.HarshGraders[sub.GraderID],
				"grader_id":        sub.GraderID,
			}
			for _, hit := range factors.Evaluate(activation) {
				score += hit.Weight
				tags = append(tags, hit.Tag)
			}
		}

		if score > 100 {
			score = 100
		}

		risks = append(risks, domain.RegradeRisk{
			SubmissionID: sub.ID,
			StudentID:    sub.StudentID,
			Score:        sub.Score,
			RiskScore:    score,
			RiskFactors:  tags,
			GraderID:     sub.GraderID,
		})
	}

	sort.Slice(risks, func(i, j int) bool {
		if risks[i].RiskScore != risks[j].RiskScore {
			return risks[i].RiskScore > risks[j].RiskScore
		}
		return risks[i].SubmissionID < risks[j].SubmissionID
	})

	return risks
}

// FilterRisks returns the risks exceeding the configured minimum,
// preserving order. This is the list the report carries.
func FilterRisks(risks []domain.RegradeRisk, minScore float64) []domain.RegradeRisk {
	kept := make([]domain.RegradeRisk, 0, len(risks))
	for _, r := range risks {
		if r.RiskScore > minScore {
			kept = append(kept, r)
		}
	}
	return kept
}

// scaledBoundary converts the configured 100-point-scale boundary and
// window to the assignment's own scale.
func scaledBoundary(maxScore float64, cfg domain.AnalysisConfig) (boundary, window float64) {
	scale := 1.0
	if maxScore > 0 && maxScore != 100 {
		scale = maxScore / 100
	}
	return cfg.PassBoundary * scale, cfg.BoundaryWindow * scale
}

// graderDeviations computes each grader's mean deviation from the overall
// distribution and grade count, for custom factor expressions.
func graderDeviations(snap *Snapshot) (map[string]float64, map[string]int) {
	byGrader := make(map[string][]float64)
	for _, sub := range snap.Submissions {
		byGrader[sub.GraderID] = append(byGrader[sub.GraderID], sub.Score)
	}

	deviations := make(map[string]float64, len(byGrader))
	counts := make(map[string]int, len(byGrader))
	for graderID, scores := range byGrader {
		mean, err := stats.Mean(scores)
		if err != nil {
			continue
		}
		deviations[graderID] = stats.ZScore(mean, snap.Summary.AverageScore, snap.Summary.StdDev)
		counts[graderID] = len(scores)
	}
	return deviations, counts
}
