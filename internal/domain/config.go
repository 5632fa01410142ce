package domain

import "time"

// Config holds the complete Gradewatch configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines feature availability
	Tier Tier `json:"tier"`

	// Analysis thresholds and risk weights
	Analysis AnalysisConfig `json:"analysis"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// AnalysisConfig collects every documented threshold of the anomaly engine
// so they are passed explicitly into the assembler rather than hard-coded
// across analyzers.
type AnalysisConfig struct {
	// SeverityThreshold is the |deviation| (in overall std-dev units) above
	// which a grader is flagged. Strict: exactly at the threshold does not
	// flag.
	SeverityThreshold float64 `json:"severityThreshold"`

	// OutlierThreshold is the |z-score| above which a score is flagged,
	// both for totals and within a single criterion's distribution.
	OutlierThreshold float64 `json:"outlierThreshold"`

	// CVThreshold is the coefficient of variation above which a rubric
	// criterion is flagged as inconsistently graded.
	CVThreshold float64 `json:"cvThreshold"`

	// PassBoundary is the pass/fail boundary on a 100-point scale; scaled
	// proportionally when the assignment max differs from 100.
	PassBoundary float64 `json:"passBoundary"`

	// BoundaryWindow is the near-boundary distance on a 100-point scale,
	// scaled the same way as PassBoundary.
	BoundaryWindow float64 `json:"boundaryWindow"`

	// MinRiskScore is the exclusive floor for including a submission in the
	// report's regrade-risk list.
	MinRiskScore float64 `json:"minRiskScore"`

	// Weights of the built-in risk factors.
	Weights RiskWeights `json:"weights"`
}

// RiskWeights are the additive contributions of the built-in regrade risk
// factors. The sum is capped at 100 regardless of how many factors fire.
type RiskWeights struct {
	LowScore     float64 `json:"lowScore"`
	Outlier      float64 `json:"outlier"`
	HarshGrader  float64 `json:"harshGrader"`
	NearBoundary float64 `json:"nearBoundary"`
}

// DefaultAnalysisConfig returns the documented default thresholds.
func DefaultAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		SeverityThreshold: 1.5,
		OutlierThreshold:  2.0,
		CVThreshold:       0.3,
		PassBoundary:      60,
		BoundaryWindow:    5,
		MinRiskScore:      0,
		Weights: RiskWeights{
			LowScore:     30,
			Outlier:      30,
			HarshGrader:  25,
			NearBoundary: 15,
		},
	}
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool   `json:"enabled"`
	ServiceName  string `json:"serviceName"`
	ExporterType string `json:"exporterType"` // stdout, otlp, jaeger
	Endpoint     string `json:"endpoint"`
}

// Tier represents the product tier.
type Tier string

const (
	// TierCommunity is the free tier with SQLite + channels
	TierCommunity Tier = "community"

	// TierPro is the paid tier with PostgreSQL + NATS + Redis
	TierPro Tier = "pro"

	// TierEnterprise includes multi-node, SSO, etc.
	TierEnterprise Tier = "enterprise"
)

// DefaultConfig returns a default configuration for Community tier:
// SQLite storage, in-memory LRU cache, channel event bus.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier:     TierCommunity,
		Analysis: DefaultAnalysisConfig(),
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./gradewatch.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "gradewatch",
		},
	}
}

// ProConfig returns a configuration for Pro tier:
// PostgreSQL storage, Redis two-phase cache, NATS event bus.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "gradewatch",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
