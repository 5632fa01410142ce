// Benchmark tool for testing Gradewatch against synthetic grading cohorts.
//
// Usage:
//   go run cmd/benchmark/main.go -url http://localhost:8080 -assignments 20
//
// This tool:
//  1. Generates synthetic cohorts with a known harsh grader and injected
//     outlier scores
//  2. Loads each cohort through the API and runs an analysis pass
//  3. Checks whether the injected anomalies were flagged
//  4. Reports detection rates and analysis latency
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"time"
)

// AssignmentRequest mirrors the API request for POST /assignments.
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

// SubmissionRequest mirrors the API request for recording a submission.
type SubmissionRequest struct {
	ID              string             `json:"id"`
	StudentID       string             `json:"studentId"`
	GraderID        string             `json:"graderId"`
	Score           float64            `json:"score"`
	CriterionScores map[string]float64 `json:"criterionScores"`
}

// AnalyzeResponse carries the fields of the report the benchmark inspects.
type AnalyzeResponse struct {
	Report struct {
		ID               string `json:"id"`
		TotalGrades      int    `json:"totalGrades"`
		SeverityFindings []struct {
			GraderID string `json:"graderId"`
			Severity string `json:"severity"`
		} `json:"severityFindings"`
		OutlierFindings []struct {
			SubmissionID string `json:"submissionId"`
		} `json:"outlierFindings"`
		RegradeRisks []struct {
			SubmissionID string  `json:"submissionId"`
			RiskScore    float64 `json:"riskScore"`
		} `json:"regradeRisks"`
	} `json:"report"`
	Metadata struct {
		TotalMs int64 `json:"totalMs"`
	} `json:"metadata"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	mu sync.Mutex

	AssignmentsRun  int
	HarshDetected   int
	OutliersPlanted int
	OutliersFound   int
	RisksReported   int
	Errors          int

	AnalyzeMs []int64
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Gradewatch base URL")
	courseID := flag.String("course", "benchmark-course", "Course ID for requests")
	assignments := flag.Int("assignments", 10, "Number of synthetic assignments")
	students := flag.Int("students", 60, "Students per assignment")
	graders := flag.Int("graders", 4, "Graders per assignment")
	harshBias := flag.Float64("harsh-bias", -20, "Score shift applied by the harsh grader")
	seed := flag.Int64("seed", 42, "Random seed")
	verbose := flag.Bool("verbose", false, "Print each assignment result")
	flag.Parse()

	fmt.Println("Gradewatch benchmark - synthetic cohort anomaly detection")
	fmt.Printf("  URL:         %s\n", *baseURL)
	fmt.Printf("  Course:      %s\n", *courseID)
	fmt.Printf("  Assignments: %d\n", *assignments)
	fmt.Printf("  Students:    %d\n", *students)
	fmt.Printf("  Graders:     %d (one biased by %.0f)\n", *graders, *harshBias)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: gradewatch not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure the server is running:")
		fmt.Println("  go run cmd/gradewatch/main.go")
		os.Exit(1)
	}
	fmt.Println("server is healthy, starting run")

	rng := rand.New(rand.NewSource(*seed))
	client := &http.Client{Timeout: 30 * time.Second}
	metrics := &Metrics{}

	start := time.Now()
	for i := 0; i < *assignments; i++ {
		runAssignment(client, *baseURL, *courseID, i, *students, *graders, *harshBias, rng, metrics, *verbose)
	}
	printResults(metrics, time.Since(start))
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// runAssignment loads one synthetic cohort and analyzes it. Grader 0 is
// the harsh grader; two submissions get far-out scores planted.
func runAssignment(client *http.Client, baseURL, courseID string, idx, students, graders int, harshBias float64, rng *rand.Rand, m *Metrics, verbose bool) {
	assignmentID := fmt.Sprintf("bench-a%03d", idx)

	assignment := AssignmentRequest{
		ID:       assignmentID,
		Title:    fmt.Sprintf("Benchmark Assignment %d", idx),
		MaxScore: 100,
		Rubric: []Criterion{
			{Name: "correctness", MaxPoints: 50},
			{Name: "style", MaxPoints: 25},
			{Name: "documentation", MaxPoints: 25},
		},
	}
	if err := postJSON(client, baseURL+"/assignments", courseID, assignment, nil); err != nil {
		m.mu.Lock()
		m.Errors++
		m.mu.Unlock()
		return
	}

	plantedOutliers := map[string]bool{}
	for s := 0; s < students; s++ {
		graderID := fmt.Sprintf("ta-%d", s%graders)
		score := 75 + rng.NormFloat64()*6
		if s%graders == 0 {
			score += harshBias
		}

		subID := fmt.Sprintf("%s-s%03d", assignmentID, s)
		// Plant two extreme scores per cohort.
		if s == students-1 || s == students-2 {
			score = 5
			plantedOutliers[subID] = true
		}
		if score < 0 {
			score = 0
		}
		if score > 100 {
			score = 100
		}

		sub := SubmissionRequest{
			ID:        subID,
			StudentID: fmt.Sprintf("student-%03d", s),
			GraderID:  graderID,
			Score:     score,
			CriterionScores: map[string]float64{
				"correctness":   score * 0.5,
				"style":         score * 0.25,
				"documentation": score * 0.25,
			},
		}
		if err := postJSON(client, baseURL+"/assignments/"+assignmentID+"/submissions", courseID, sub, nil); err != nil {
			m.mu.Lock()
			m.Errors++
			m.mu.Unlock()
		}
	}

	var result AnalyzeResponse
	if err := postJSON(client, baseURL+"/assignments/"+assignmentID+"/analyze", courseID, struct{}{}, &result); err != nil {
		m.mu.Lock()
		m.Errors++
		m.mu.Unlock()
		return
	}

	harshFound := false
	for _, f := range result.Report.SeverityFindings {
		if f.GraderID == "ta-0" && f.Severity == "too_harsh" {
			harshFound = true
		}
	}
	outliersFound := 0
	for _, f := range result.Report.OutlierFindings {
		if plantedOutliers[f.SubmissionID] {
			outliersFound++
		}
	}

	m.mu.Lock()
	m.AssignmentsRun++
	if harshFound {
		m.HarshDetected++
	}
	m.OutliersPlanted += len(plantedOutliers)
	m.OutliersFound += outliersFound
	m.RisksReported += len(result.Report.RegradeRisks)
	m.AnalyzeMs = append(m.AnalyzeMs, result.Metadata.TotalMs)
	m.mu.Unlock()

	if verbose {
		fmt.Printf("  %s | grades: %3d | harsh found: %-5v | outliers: %d/%d | risks: %3d | %d ms\n",
			assignmentID,
			result.Report.TotalGrades,
			harshFound,
			outliersFound, len(plantedOutliers),
			len(result.Report.RegradeRisks),
			result.Metadata.TotalMs,
		)
	}
}

func postJSON(client *http.Client, url, courseID string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Course-ID", courseID)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\nBENCHMARK RESULTS")
	fmt.Printf("  Assignments run:   %d\n", m.AssignmentsRun)
	fmt.Printf("  Errors:            %d\n", m.Errors)

	fmt.Println("\nDETECTION")
	if m.AssignmentsRun > 0 {
		fmt.Printf("  Harsh grader:      %d / %d (%.1f%%)\n",
			m.HarshDetected, m.AssignmentsRun, 100*float64(m.HarshDetected)/float64(m.AssignmentsRun))
	}
	if m.OutliersPlanted > 0 {
		fmt.Printf("  Planted outliers:  %d / %d (%.1f%%)\n",
			m.OutliersFound, m.OutliersPlanted, 100*float64(m.OutliersFound)/float64(m.OutliersPlanted))
	}
	fmt.Printf("  Regrade risks:     %d total\n", m.RisksReported)

	fmt.Println("\nPERFORMANCE")
	fmt.Printf("  Total duration:    %v\n", duration.Round(time.Millisecond))
	if len(m.AnalyzeMs) > 0 {
		var sum, max int64
		for _, ms := range m.AnalyzeMs {
			sum += ms
			if ms > max {
				max = ms
			}
		}
		fmt.Printf("  Analyze latency:   avg %.1f ms, max %d ms\n",
			float64(sum)/float64(len(m.AnalyzeMs)), max)
	}
	fmt.Println()
}
