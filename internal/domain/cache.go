package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations.
// Supports two-phase caching: local LRU (Community) + Redis (Pro).
// All methods require courseID for strict per-course isolation.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, courseID string, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, courseID string, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, courseID string, key string) error

	// GetReportSummary retrieves a cached report headline for an assignment.
	GetReportSummary(ctx context.Context, courseID string, assignmentID string) (*ReportSummary, error)

	// SetReportSummary caches the headline of the latest report.
	SetReportSummary(ctx context.Context, courseID string, assignmentID string, summary *ReportSummary, ttl time.Duration) error

	// IncrementCounter atomically increments a counter and returns new value.
	// Used to count analysis runs per assignment in a time window.
	IncrementCounter(ctx context.Context, courseID string, key string, window time.Duration) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// ReportSummary is the cached headline of an assignment's latest report.
type ReportSummary struct {
	ReportID     string  `json:"reportId"`
	AssignmentID string  `json:"assignmentId"`
	TotalGrades  int     `json:"totalGrades"`
	AverageScore float64 `json:"avg"`
	RiskCount    int     `json:"riskCount"`
	Status       string  `json:"status"`
	GeneratedAt  string  `json:"generatedAt"`
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings (Community tier)
	LocalMaxSize int
	LocalTTL     time.Duration

	// Redis settings (Pro tier)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Two-phase settings
	EnableTwoPhase bool // If true, check local first, then Redis
}
