//go:build integration
// +build integration

// Package integration provides end-to-end tests for the Gradewatch anomaly engine.
//
// These tests verify the COMPLETE analysis pipeline:
//
//	Assignment → Submissions → Analyzers → Risk Scoring → Anomaly Report
//
// Run with: go test -tags=integration -v ./tests/integration/...
//
// UNDERSTANDING THE DOMAIN:
//
// 1. ASSIGNMENT: A piece of coursework with a max score and a rubric
//    (named criteria, each worth some points)
//
// 2. SUBMISSION: One student's graded work, recorded with the grader who
//    scored it and optional per-criterion scores
//
// 3. ANALYZERS: Three independent passes over the graded cohort:
//   - Severity: graders whose average deviates > 1.5 std-devs from the mean
//   - Outliers: scores more than 2 std-devs from the mean
//   - Criteria: rubric criteria with coefficient of variation > 0.3
//
// 4. REGRADE RISK: Additive factor score per submission, capped at 100:
//   - unusually_low_score (+30), statistical_outlier (+30),
//     harsh_grader (+25), near_boundary_<N> (+15), plus custom CEL factors
//
// 5. REPORT: Immutable snapshot of one analysis run, status starts "pending"
//
// Analysis requires at least 5 graded submissions and a rubric; the tests
// below exercise those preconditions as well.
package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

// TestConfig holds test environment configuration
type TestConfig struct {
	BaseURL  string
	CourseID string
}

func getTestConfig() TestConfig {
	baseURL := os.Getenv("GRADEWATCH_TEST_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return TestConfig{
		BaseURL:  baseURL,
		CourseID: "test-course",
	}
}

// ============================================================================
// API Request/Response Types (matching Gradewatch's API contract)
// ============================================================================

type AssignmentRequest struct {
	ID       string      `json:"id"`
	Title    string      `json:"title"`
	MaxScore float64     `json:"maxScore"`
	Rubric   []Criterion `json:"rubric"`
}

type Criterion struct {
	Name      string  `json:"name"`
	MaxPoints float64 `json:"maxPoints"`
}

type SubmissionRequest struct {
	ID              string             `json:"id"`
	StudentID       string             `json:"studentId"`
	GraderID        string             `json:"graderId"`
	Score           float64            `json:"score"`
	CriterionScores map[string]float64 `json:"criterionScores,omitempty"`
	GradedStatus    string             `json:"gradedStatus,omitempty"`
}

// AnalyzeResponse is what POST /assignments/{id}/analyze returns
type AnalyzeResponse struct {
	Report struct {
		ID               string  `json:"id"`
		AssignmentID     string  `json:"assignmentId"`
		TotalGrades      int     `json:"totalGrades"`
		AverageScore     float64 `json:"averageScore"`
		StdDev           float64 `json:"stdDev"`
		Status           string  `json:"status"`
		SeverityFindings []struct {
			GraderID  string  `json:"graderId"`
			Deviation float64 `json:"deviation"`
			Severity  string  `json:"severity"`
		} `json:"severityFindings"`
		OutlierFindings []struct {
			SubmissionID string  `json:"submissionId"`
			ZScore       float64 `json:"zScore"`
		} `json:"outlierFindings"`
		RegradeRisks []struct {
			SubmissionID string   `json:"submissionId"`
			RiskScore    float64  `json:"riskScore"`
			RiskFactors  []string `json:"riskFactors"`
		} `json:"regradeRisks"`
	} `json:"report"`
	Metadata struct {
		TraceID  string `json:"traceId"`
		RunCount int64  `json:"runCount"`
		TotalMs  int64  `json:"totalMs"`
		Version  string `json:"version"`
	} `json:"metadata"`
}

// ============================================================================
// Test Helper Functions
// ============================================================================

func postJSON(t *testing.T, config TestConfig, path string, payload any, wantStatus int) []byte {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}

	httpReq, err := http.NewRequest("POST", config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Course-ID", config.CourseID)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}

	if resp.StatusCode != wantStatus {
		t.Fatalf("Expected status %d, got %d: %s", wantStatus, resp.StatusCode, string(respBody))
	}

	return respBody
}

// seedCohort creates an assignment and a set of graded submissions.
// Scores are keyed by submission id; graders assigns each submission's grader.
func seedCohort(t *testing.T, config TestConfig, assignmentID string, scores map[string]float64, graders map[string]string) {
	t.Helper()

	postJSON(t, config, "/assignments", AssignmentRequest{
		ID:       assignmentID,
		Title:    "Integration " + assignmentID,
		MaxScore: 100,
		Rubric: []Criterion{
			{Name: "correctness", MaxPoints: 60},
			{Name: "style", MaxPoints: 40},
		},
	}, http.StatusCreated)

	for id, score := range scores {
		grader := graders[id]
		if grader == "" {
			grader = "ta-default"
		}
		postJSON(t, config, "/assignments/"+assignmentID+"/submissions", SubmissionRequest{
			ID:        id,
			StudentID: "student-" + id,
			GraderID:  grader,
			Score:     score,
		}, http.StatusCreated)
	}
}

func analyze(t *testing.T, config TestConfig, assignmentID string) AnalyzeResponse {
	t.Helper()

	body := postJSON(t, config, "/assignments/"+assignmentID+"/analyze", struct{}{}, http.StatusOK)

	var result AnalyzeResponse
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("Failed to unmarshal response: %v (body: %s)", err, string(body))
	}
	return result
}

// ============================================================================
// SCENARIO 1: Uniform Cohort (No Anomalies)
// ============================================================================

func TestUniformCohort_NoFindings(t *testing.T) {
	/*
	   SCENARIO: Six submissions scored 78-82 by three graders

	   EXPECTED BEHAVIOR:
	   - No grader deviates > 1.5 std-devs from the mean
	   - No score is more than 2 std-devs out
	   - Zero-risk submissions are filtered from the regrade list

	   FINAL REPORT: empty findings, status "pending"
	*/
	config := getTestConfig()

	seedCohort(t, config, "int-uniform",
		map[string]float64{
			"u-01": 80, "u-02": 82, "u-03": 78,
			"u-04": 81, "u-05": 79, "u-06": 80,
		},
		map[string]string{
			"u-01": "ta-a", "u-02": "ta-a", "u-03": "ta-b",
			"u-04": "ta-b", "u-05": "ta-c", "u-06": "ta-c",
		})

	result := analyze(t, config, "int-uniform")

	if result.Report.TotalGrades != 6 {
		t.Errorf("Expected 6 grades, got %d", result.Report.TotalGrades)
	}
	if len(result.Report.SeverityFindings) != 0 {
		t.Errorf("Expected no severity findings, got %v", result.Report.SeverityFindings)
	}
	if len(result.Report.OutlierFindings) != 0 {
		t.Errorf("Expected no outliers, got %v", result.Report.OutlierFindings)
	}
	if result.Report.Status != "pending" {
		t.Errorf("Expected pending status, got %s", result.Report.Status)
	}

	t.Logf("✓ Uniform cohort clean: grades=%d, mean=%.1f", result.Report.TotalGrades, result.Report.AverageScore)
}

// ============================================================================
// SCENARIO 2: Harsh Grader Detection
// ============================================================================

func TestHarshGrader_Flagged(t *testing.T) {
	/*
	   SCENARIO: ta-harsh scores two submissions at 40 while eight others
	   sit at 80. Overall mean 72, std-dev 16, so ta-harsh's average
	   deviates by exactly -2.0 std-devs.

	   EXPECTED BEHAVIOR:
	   - Severity finding: ta-harsh, severity "too_harsh"
	   - Both of ta-harsh's submissions carry regrade risk
	     (unusually_low_score + harsh_grader = 55)
	*/
	config := getTestConfig()

	scores := map[string]float64{"h-01": 40, "h-02": 40}
	graders := map[string]string{"h-01": "ta-harsh", "h-02": "ta-harsh"}
	for i := 3; i <= 10; i++ {
		id := fmt.Sprintf("h-%02d", i)
		scores[id] = 80
		graders[id] = "ta-fair"
	}
	seedCohort(t, config, "int-harsh", scores, graders)

	result := analyze(t, config, "int-harsh")

	if len(result.Report.SeverityFindings) != 1 {
		t.Fatalf("Expected 1 severity finding, got %d", len(result.Report.SeverityFindings))
	}
	f := result.Report.SeverityFindings[0]
	if f.GraderID != "ta-harsh" || f.Severity != "too_harsh" {
		t.Errorf("Expected ta-harsh/too_harsh, got %s/%s", f.GraderID, f.Severity)
	}

	riskByID := map[string]float64{}
	for _, r := range result.Report.RegradeRisks {
		riskByID[r.SubmissionID] = r.RiskScore
	}
	if riskByID["h-01"] < 50 || riskByID["h-02"] < 50 {
		t.Errorf("Expected compound risk for harsh grader's submissions, got %v", riskByID)
	}

	t.Logf("✓ Harsh grader flagged: deviation=%.2f, risks=%d", f.Deviation, len(result.Report.RegradeRisks))
}

// ============================================================================
// SCENARIO 3: Score Outlier Detection
// ============================================================================

func TestScoreOutlier_Flagged(t *testing.T) {
	/*
	   SCENARIO: One submission at 20 in a cohort of five near 90

	   EXPECTED BEHAVIOR:
	   - Outlier finding for the 20 (z ≈ -2.23)
	   - Its regrade risk includes both unusually_low_score and
	     statistical_outlier (total 60)
	*/
	config := getTestConfig()

	seedCohort(t, config, "int-outlier",
		map[string]float64{
			"o-01": 90, "o-02": 88, "o-03": 92,
			"o-04": 91, "o-05": 89, "o-06": 20,
		},
		map[string]string{
			"o-01": "ta-a", "o-02": "ta-a", "o-03": "ta-b",
			"o-04": "ta-b", "o-05": "ta-c", "o-06": "ta-c",
		})

	result := analyze(t, config, "int-outlier")

	if len(result.Report.OutlierFindings) != 1 {
		t.Fatalf("Expected 1 outlier, got %d", len(result.Report.OutlierFindings))
	}
	if result.Report.OutlierFindings[0].SubmissionID != "o-06" {
		t.Errorf("Expected o-06 flagged, got %s", result.Report.OutlierFindings[0].SubmissionID)
	}

	var outlierRisk float64
	var tags []string
	for _, r := range result.Report.RegradeRisks {
		if r.SubmissionID == "o-06" {
			outlierRisk = r.RiskScore
			tags = r.RiskFactors
		}
	}
	if outlierRisk != 60 {
		t.Errorf("Expected risk 60 for outlier, got %.0f (factors %v)", outlierRisk, tags)
	}

	t.Logf("✓ Outlier flagged: z=%.2f, risk=%.0f", result.Report.OutlierFindings[0].ZScore, outlierRisk)
}

// ============================================================================
// SCENARIO 4: Analysis Preconditions
// ============================================================================

func TestTooFewGrades_Rejected(t *testing.T) {
	/*
	   SCENARIO: Analysis with only 3 graded submissions

	   EXPECTED: HTTP 422 Unprocessable Entity (floor is 5 graded)
	*/
	config := getTestConfig()

	seedCohort(t, config, "int-early",
		map[string]float64{"e-01": 80, "e-02": 82, "e-03": 78},
		map[string]string{})

	postJSON(t, config, "/assignments/int-early/analyze", struct{}{}, http.StatusUnprocessableEntity)

	t.Logf("✓ Precondition test passed: 3 grades → HTTP 422")
}

func TestMissingCourseHeader_Error(t *testing.T) {
	/*
	   SCENARIO: Request without X-Course-ID header

	   EXPECTED: HTTP 400 Bad Request (course is a required field, not auth)
	*/
	config := getTestConfig()

	body, _ := json.Marshal(AssignmentRequest{ID: "int-nocourse", Title: "x", MaxScore: 100})
	httpReq, _ := http.NewRequest("POST", config.BaseURL+"/assignments", bytes.NewReader(body))
	httpReq.Header.Set("Content-Type", "application/json")
	// NO X-Course-ID header!

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing course header, got %d", resp.StatusCode)
	}

	t.Logf("✓ Validation test passed: missing course → HTTP %d", resp.StatusCode)
}

// ============================================================================
// SCENARIO 5: Response Metadata Verification
// ============================================================================

func TestResponseMetadata(t *testing.T) {
	/*
	   SCENARIO: Verify the analyze response includes all required metadata

	   This ensures the API contract is stable for clients.
	*/
	config := getTestConfig()

	seedCohort(t, config, "int-meta",
		map[string]float64{
			"m-01": 80, "m-02": 82, "m-03": 78, "m-04": 81, "m-05": 79,
		},
		map[string]string{})

	result := analyze(t, config, "int-meta")

	if result.Report.ID == "" {
		t.Error("Missing report.id")
	}
	if result.Report.AssignmentID != "int-meta" {
		t.Errorf("Expected assignmentId int-meta, got %s", result.Report.AssignmentID)
	}
	if result.Metadata.TraceID == "" {
		t.Error("Missing metadata.traceId")
	}
	if result.Metadata.RunCount < 1 {
		t.Errorf("Expected runCount >= 1, got %d", result.Metadata.RunCount)
	}
	// Note: TotalMs can be 0 for very fast operations (sub-millisecond)
	if result.Metadata.TotalMs < 0 {
		t.Error("Invalid metadata.totalMs (negative)")
	}

	// Re-running analysis produces a new report, never mutates the old one
	second := analyze(t, config, "int-meta")
	if second.Report.ID == result.Report.ID {
		t.Error("Expected a new report id on rerun")
	}

	t.Logf("✓ Metadata complete: reportId=%s, traceId=%s, runCount=%d, totalMs=%d",
		result.Report.ID[:8], result.Metadata.TraceID[:8], result.Metadata.RunCount, result.Metadata.TotalMs)
}
