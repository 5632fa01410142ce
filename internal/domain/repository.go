// Package domain defines the core interfaces and types for Gradewatch.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence. It is both the
// grade data loader the engine reads from and the report store it writes
// to. All methods require courseID for strict per-course isolation.
type Repository interface {
	// Assignment operations
	SaveAssignment(ctx context.Context, courseID string, a *AssignmentContext) error
	GetAssignment(ctx context.Context, courseID string, assignmentID string) (*AssignmentContext, error)

	// Submission operations. ListGradedSubmissions is the loader contract:
	// it returns only submissions whose graded_status is "graded".
	SaveSubmission(ctx context.Context, courseID string, s *GradedSubmission) error
	ListGradedSubmissions(ctx context.Context, courseID string, assignmentID string) ([]*GradedSubmission, error)

	// Report operations. SaveReport is a single atomic write: a partially
	// assembled report is never visible to readers.
	SaveReport(ctx context.Context, courseID string, report *AnomalyReport) error
	GetReport(ctx context.Context, courseID string, reportID string) (*AnomalyReport, error)
	GetLatestReport(ctx context.Context, courseID string, assignmentID string) (*AnomalyReport, error)
	UpdateReportStatus(ctx context.Context, courseID string, reportID string, status string) error

	// Custom risk factor configuration operations
	SaveRiskFactor(ctx context.Context, courseID string, factor *RiskFactorConfig) error
	ListRiskFactors(ctx context.Context, courseID string) ([]*RiskFactorConfig, error)
	DeleteRiskFactor(ctx context.Context, courseID string, factorID string) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
