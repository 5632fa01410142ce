// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/open-courseware/gradewatch/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveAssignment upserts an assignment with course isolation.
func (r *SQLRepository) SaveAssignment(ctx context.Context, courseID string, a *domain.AssignmentContext) error {
	if courseID == "" {
		return fmt.Errorf("%w: courseID is required", ErrInvalidInput)
	}

	rubric, _ := json.Marshal(a.Rubric)

	query := `
		INSERT INTO assignments (
			id, course_id, title, max_score, rubric, created_at
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, course_id) DO UPDATE SET
			title = excluded.title,
			max_score = excluded.max_score,
			rubric = excluded.rubric
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		a.ID, courseID, a.Title, a.MaxScore, string(rubric), a.CreatedAt,
	)
	return err
}

// GetAssignment retrieves an assignment by ID with course isolation.
func (r *SQLRepository) GetAssignment(ctx context.Context, courseID string, assignmentID string) (*domain.AssignmentContext, error) {
	if courseID == "" {
		return nil, fmt.Errorf("%w: courseID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, course_id, title, max_score, rubric, created_at
		FROM assignments
		WHERE course_id = ? AND id = ?
	`

	var a domain.AssignmentContext
	var rubric string

	err := r.db.QueryRowContext(ctx, r.rebind(query), courseID, assignmentID).Scan(
		&a.ID, &a.CourseID, &a.Title, &a.MaxScore, &rubric, &a.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if rubric != "" {
		if err := json.Unmarshal([]byte(rubric), &a.Rubric); err != nil {
			return nil, fmt.Errorf("failed to parse rubric for %s: %w", a.ID, err)
		}
	}

	return &a, nil
}

// SaveSubmission upserts a graded submission with course isolation.
// A regraded submission replaces the earlier row with the same id.
func (r *SQLRepository) SaveSubmission(ctx context.Context, courseID string, s *domain.GradedSubmission) error {
	if courseID == "" {
		return fmt.Errorf("%w: courseID is required", ErrInvalidInput)
	}

	criterionScores, _ := json.Marshal(s.CriterionScores)

	query := `
		INSERT INTO submissions (
			id, course_id, assignment_id, student_id, grader_id,
			score, criterion_scores, graded_status, graded_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, course_id) DO UPDATE SET
			student_id = excluded.student_id,
			grader_id = excluded.grader_id,
			score = excluded.score,
			criterion_scores = excluded.criterion_scores,
			graded_status = excluded.graded_status,
			graded_at = excluded.graded_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		s.ID, courseID, s.AssignmentID, s.StudentID, s.GraderID,
		s.Score, string(criterionScores), s.GradedStatus,
		s.GradedAt, s.CreatedAt,
	)
	return err
}

// ListGradedSubmissions retrieves the graded submissions for an assignment
// with course isolation. Pending submissions are filtered at the query.
func (r *SQLRepository) ListGradedSubmissions(ctx context.Context, courseID string, assignmentID string) ([]*domain.GradedSubmission, error) {
	if courseID == "" {
		return nil, fmt.Errorf("%w: courseID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, course_id, assignment_id, student_id, grader_id,
			   score, criterion_scores, graded_status, graded_at, created_at
		FROM submissions
		WHERE course_id = ? AND assignment_id = ? AND graded_status = ?
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), courseID, assignmentID, domain.GradedStatusGraded)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var submissions []*domain.GradedSubmission
	for rows.Next() {
		var s domain.GradedSubmission
		var criterionScores sql.NullString

		if err := rows.Scan(
			&s.ID, &s.CourseID, &s.AssignmentID, &s.StudentID, &s.GraderID,
			&s.Score, &criterionScores, &s.GradedStatus, &s.GradedAt, &s.CreatedAt,
		); err != nil {
			return nil, err
		}

		if criterionScores.Valid && criterionScores.String != "" {
			json.Unmarshal([]byte(criterionScores.String), &s.CriterionScores)
		}

		submissions = append(submissions, &s)
	}

	return submissions, rows.Err()
}

// SaveReport stores a report as a single atomic insert. Reports are
// immutable aside from status transitions; reruns insert new rows.
func (r *SQLRepository) SaveReport(ctx context.Context, courseID string, report *domain.AnomalyReport) error {
	if courseID == "" {
		return fmt.Errorf("%w: courseID is required", ErrInvalidInput)
	}

	severity, _ := json.Marshal(report.SeverityFindings)
	outliers, _ := json.Marshal(report.OutlierFindings)
	criteria, _ := json.Marshal(report.CriterionFindings)
	risks, _ := json.Marshal(report.RegradeRisks)

	query := `
		INSERT INTO reports (
			id, course_id, assignment_id, total_grades, average_score, std_dev,
			severity_findings, outlier_findings, criterion_findings, regrade_risks,
			generated_at, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		report.ID, courseID, report.AssignmentID,
		report.TotalGrades, report.AverageScore, report.StdDev,
		string(severity), string(outliers), string(criteria), string(risks),
		report.GeneratedAt, report.Status,
	)
	return err
}

// GetReport retrieves a report by ID with course isolation.
func (r *SQLRepository) GetReport(ctx context.Context, courseID string, reportID string) (*domain.AnomalyReport, error) {
	if courseID == "" {
		return nil, fmt.Errorf("%w: courseID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, course_id, assignment_id, total_grades, average_score, std_dev,
			   severity_findings, outlier_findings, criterion_findings, regrade_risks,
			   generated_at, status
		FROM reports
		WHERE course_id = ? AND id = ?
	`

	return r.scanReport(r.db.QueryRowContext(ctx, r.rebind(query), courseID, reportID))
}

// GetLatestReport retrieves the most recent report for an assignment.
func (r *SQLRepository) GetLatestReport(ctx context.Context, courseID string, assignmentID string) (*domain.AnomalyReport, error) {
	if courseID == "" {
		return nil, fmt.Errorf("%w: courseID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, course_id, assignment_id, total_grades, average_score, std_dev,
			   severity_findings, outlier_findings, criterion_findings, regrade_risks,
			   generated_at, status
		FROM reports
		WHERE course_id = ? AND assignment_id = ?
		ORDER BY generated_at DESC
		LIMIT 1
	`

	return r.scanReport(r.db.QueryRowContext(ctx, r.rebind(query), courseID, assignmentID))
}

func (r *SQLRepository) scanReport(row *sql.Row) (*domain.AnomalyReport, error) {
	var report domain.AnomalyReport
	var severity, outliers, criteria, risks string

	err := row.Scan(
		&report.ID, &report.CourseID, &report.AssignmentID,
		&report.TotalGrades, &report.AverageScore, &report.StdDev,
		&severity, &outliers, &criteria, &risks,
		&report.GeneratedAt, &report.Status,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	json.Unmarshal([]byte(severity), &report.SeverityFindings)
	json.Unmarshal([]byte(outliers), &report.OutlierFindings)
	json.Unmarshal([]byte(criteria), &report.CriterionFindings)
	json.Unmarshal([]byte(risks), &report.RegradeRisks)

	return &report, nil
}

// UpdateReportStatus transitions a report's review status.
func (r *SQLRepository) UpdateReportStatus(ctx context.Context, courseID string, reportID string, status string) error {
	if courseID == "" {
		return fmt.Errorf("%w: courseID is required", ErrInvalidInput)
	}
	if !domain.ValidReportStatus(status) {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}

	query := `
		UPDATE reports
		SET status = ?
		WHERE course_id = ? AND id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), status, courseID, reportID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// SaveRiskFactor upserts a custom risk factor configuration.
func (r *SQLRepository) SaveRiskFactor(ctx context.Context, courseID string, factor *domain.RiskFactorConfig) error {
	if courseID == "" {
		return fmt.Errorf("%w: courseID is required", ErrInvalidInput)
	}

	enabled := 0
	if factor.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO risk_factors (
			id, course_id, name, description, expression, weight, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, course_id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			weight = excluded.weight,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		factor.ID, courseID, factor.Name, factor.Description,
		factor.Expression, factor.Weight, enabled,
		now, now,
	)
	return err
}

// ListRiskFactors retrieves the active risk factors for a course.
func (r *SQLRepository) ListRiskFactors(ctx context.Context, courseID string) ([]*domain.RiskFactorConfig, error) {
	if courseID == "" {
		return nil, fmt.Errorf("%w: courseID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, course_id, name, description, expression, weight, enabled
		FROM risk_factors
		WHERE course_id = ? AND enabled = 1
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var factors []*domain.RiskFactorConfig
	for rows.Next() {
		var f domain.RiskFactorConfig
		var description sql.NullString
		var enabled int

		if err := rows.Scan(
			&f.ID, &f.CourseID, &f.Name, &description,
			&f.Expression, &f.Weight, &enabled,
		); err != nil {
			return nil, err
		}

		f.Description = description.String
		f.Enabled = enabled == 1
		factors = append(factors, &f)
	}

	return factors, rows.Err()
}

// DeleteRiskFactor soft-deletes a risk factor by setting enabled = 0.
func (r *SQLRepository) DeleteRiskFactor(ctx context.Context, courseID string, factorID string) error {
	if courseID == "" {
		return fmt.Errorf("%w: courseID is required", ErrInvalidInput)
	}

	query := `
		UPDATE risk_factors
		SET enabled = 0, updated_at = ?
		WHERE course_id = ? AND id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), time.Now().UTC(), courseID, factorID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
