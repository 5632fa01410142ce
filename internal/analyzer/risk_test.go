package analyzer

import (
	"testing"

	"github.com/open-courseware/gradewatch/internal/domain"
)

func TestScoreRegradeRisk(t *testing.T) {
	cfg := domain.DefaultAnalysisConfig()

	t.Run("LowScoreFactor", func(t *testing.T) {
		// The 20 sits more than one std-dev below the mean of 78.3; the
		// rest sit above it.
		subs := []*domain.GradedSubmission{
			sub("s-01", "stu-01", "ta-a", 90),
			sub("s-02", "stu-02", "ta-a", 88),
			sub("s-03", "stu-03", "ta-b", 92),
			sub("s-04", "stu-04", "ta-b", 91),
			sub("s-05", "stu-05", "ta-c", 89),
			sub("s-06", "stu-06", "ta-c", 20),
		}
		snap := snapshot(t, 100, subs)

		risks := ScoreRegradeRisk(snap, RiskInputs{}, nil, cfg)
		if len(risks) != len(subs) {
			t.Fatalf("expected %d risks, got %d", len(subs), len(risks))
		}

		top := risks[0]
		if top.SubmissionID != "s-06" {
			t.Fatalf("expected s-06 first, got %s", top.SubmissionID)
		}
		if top.RiskScore != cfg.Weights.LowScore {
			t.Errorf("expected risk %v, got %v", cfg.Weights.LowScore, top.RiskScore)
		}
		if len(top.RiskFactors) != 1 || top.RiskFactors[0] != domain.FactorLowScore {
			t.Errorf("expected factors [%s], got %v", domain.FactorLowScore, top.RiskFactors)
		}
	})

	t.Run("OutlierAndHarshGraderFactors", func(t *testing.T) {
		subs := []*domain.GradedSubmission{
			sub("s-01", "stu-01", "ta-harsh", 90),
			sub("s-02", "stu-02", "ta-b", 91),
			sub("s-03", "stu-03", "ta-b", 89),
		}
		snap := snapshot(t, 100, subs)

		in := RiskInputs{
			Outliers:     map[string]bool{"s-01": true},
			HarshGraders: map[string]bool{"ta-harsh": true},
		}
		risks := ScoreRegradeRisk(snap, in, nil, cfg)

		top := risks[0]
		if top.SubmissionID != "s-01" {
			t.Fatalf("expected s-01 first, got %s", top.SubmissionID)
		}
		want := cfg.Weights.Outlier + cfg.Weights.HarshGrader
		if top.RiskScore != want {
			t.Errorf("expected risk %v, got %v", want, top.RiskScore)
		}
		if len(top.RiskFactors) != 2 ||
			top.RiskFactors[0] != domain.FactorOutlier ||
			top.RiskFactors[1] != domain.FactorHarshGrader {
			t.Errorf("unexpected factor order: %v", top.RiskFactors)
		}
	})

	t.Run("BoundaryScalesWithMaxScore", func(t *testing.T) {
		// Max score 50 puts the boundary at 30 with a 2.5-point window:
		// 32 is inside, 34 is not.
		subs := []*domain.GradedSubmission{
			sub("s-01", "stu-01", "ta-a", 32),
			sub("s-02", "stu-02", "ta-b", 34),
		}
		snap := snapshot(t, 50, subs)

		risks := ScoreRegradeRisk(snap, RiskInputs{}, nil, cfg)

		byID := make(map[string]domain.RegradeRisk, len(risks))
		for _, r := range risks {
			byID[r.SubmissionID] = r
		}

		near := byID["s-01"]
		if near.RiskScore != cfg.Weights.NearBoundary {
			t.Errorf("expected risk %v for s-01, got %v", cfg.Weights.NearBoundary, near.RiskScore)
		}
		if len(near.RiskFactors) != 1 || near.RiskFactors[0] != "near_boundary_30" {
			t.Errorf("expected factors [near_boundary_30], got %v", near.RiskFactors)
		}
		if far := byID["s-02"]; far.RiskScore != 0 {
			t.Errorf("expected zero risk for s-02, got %v", far.RiskScore)
		}
	})

	t.Run("CustomFactorsAfterBuiltins", func(t *testing.T) {
		engine, err := NewFactorEngine()
		if err != nil {
			t.Fatalf("NewFactorEngine failed: %v", err)
		}
		defer engine.Close()

		err = engine.LoadFactor(&domain.RiskFactorConfig{
			ID:         "cf-1",
			Name:       "extreme_low",
			Expression: "z_score < -2.0",
			Weight:     60,
			Enabled:    true,
		})
		if err != nil {
			t.Fatalf("LoadFactor failed: %v", err)
		}

		subs := []*domain.GradedSubmission{
			sub("s-01", "stu-01", "ta-a", 90),
			sub("s-02", "stu-02", "ta-a", 88),
			sub("s-03", "stu-03", "ta-b", 92),
			sub("s-04", "stu-04", "ta-b", 91),
			sub("s-05", "stu-05", "ta-c", 89),
			sub("s-06", "stu-06", "ta-c", 20),
		}
		snap := snapshot(t, 100, subs)

		in := RiskInputs{Outliers: map[string]bool{"s-06": true}}
		risks := ScoreRegradeRisk(snap, in, engine, cfg)

		top := risks[0]
		if top.SubmissionID != "s-06" {
			t.Fatalf("expected s-06 first, got %s", top.SubmissionID)
		}
		// 30 + 30 + 60 = 120, capped at 100 with all three tags kept.
		if top.RiskScore != 100 {
			t.Errorf("expected capped risk 100, got %v", top.RiskScore)
		}
		want := []string{domain.FactorLowScore, domain.FactorOutlier, "extreme_low"}
		if len(top.RiskFactors) != len(want) {
			t.Fatalf("expected %d factors, got %v", len(want), top.RiskFactors)
		}
		for i, tag := range want {
			if top.RiskFactors[i] != tag {
				t.Errorf("factor %d: expected %s, got %s", i, tag, top.RiskFactors[i])
			}
		}
	})

	t.Run("OrderedByRiskThenID", func(t *testing.T) {
		subs := []*domain.GradedSubmission{
			sub("s-03", "stu-03", "ta-a", 80),
			sub("s-01", "stu-01", "ta-a", 80),
			sub("s-02", "stu-02", "ta-b", 80),
		}
		snap := snapshot(t, 100, subs)

		risks := ScoreRegradeRisk(snap, RiskInputs{}, nil, cfg)
		for i, want := range []string{"s-01", "s-02", "s-03"} {
			if risks[i].SubmissionID != want {
				t.Errorf("position %d: expected %s, got %s", i, want, risks[i].SubmissionID)
			}
		}
	})
}

func TestFilterRisks(t *testing.T) {
	risks := []domain.RegradeRisk{
		{SubmissionID: "s-01", RiskScore: 60},
		{SubmissionID: "s-02", RiskScore: 15},
		{SubmissionID: "s-03", RiskScore: 0},
	}

	t.Run("ZeroRiskExcluded", func(t *testing.T) {
		kept := FilterRisks(risks, 0)
		if len(kept) != 2 {
			t.Fatalf("expected 2 risks, got %d", len(kept))
		}
		for _, r := range kept {
			if r.RiskScore <= 0 {
				t.Errorf("zero-risk submission %s kept", r.SubmissionID)
			}
		}
	})

	t.Run("FloorIsExclusive", func(t *testing.T) {
		kept := FilterRisks(risks, 15)
		if len(kept) != 1 || kept[0].SubmissionID != "s-01" {
			t.Errorf("expected only s-01 above 15, got %v", kept)
		}
	})
}
