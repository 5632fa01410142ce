package analyzer

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/open-courseware/gradewatch/internal/domain"
)

// FactorEngine evaluates operator-defined CEL risk factor expressions
// against each submission, extending the built-in regrade risk factors.
// Expressions must return bool; a true result adds the factor's weight and
// tag to the submission's risk. Loaded factors can be hot-reloaded from
// the database without restarting the service.
type FactorEngine struct {
	mu       sync.RWMutex
	env      *cel.Env
	compiled map[string]*compiledFactor
}

type compiledFactor struct {
	config  *domain.RiskFactorConfig
	program cel.Program
}

// FactorHit is one custom factor that fired for a submission.
type FactorHit struct {
	Tag    string
	Weight float64
}

// NewFactorEngine creates an engine with the submission activation
// variables declared. See domain.RiskFactorConfig for the variable list.
func NewFactorEngine() (*FactorEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("score", cel.DoubleType),
		cel.Variable("mean", cel.DoubleType),
		cel.Variable("std_dev", cel.DoubleType),
		cel.Variable("z_score", cel.DoubleType),
		cel.Variable("max_score", cel.DoubleType),
		cel.Variable("boundary", cel.DoubleType),
		cel.Variable("grader_deviation", cel.DoubleType),
		cel.Variable("grade_count", cel.IntType),
		cel.Variable("is_outlier", cel.BoolType),
		cel.Variable("harsh_grader", cel.BoolType),
		cel.Variable("grader_id", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &FactorEngine{
		env:      env,
		compiled: make(map[string]*compiledFactor),
	}, nil
}

// ValidateFactor compiles a factor without mutating the loaded set.
func (e *FactorEngine) ValidateFactor(cfg *domain.RiskFactorConfig) error {
	if cfg == nil {
		return fmt.Errorf("factor config is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileFactor(cfg)
	return err
}

// LoadFactor compiles and loads a single factor.
func (e *FactorEngine) LoadFactor(cfg *domain.RiskFactorConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileFactor(cfg)
	if err != nil {
		return err
	}

	e.compiled[cfg.ID] = compiled

	return nil
}

// LoadFactors compiles and loads the enabled factors.
func (e *FactorEngine) LoadFactors(configs []*domain.RiskFactorConfig) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadFactor(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadFactors replaces the loaded set atomically. This enables
// hot-reloading of factors from the database.
func (e *FactorEngine) ReloadFactors(configs []*domain.RiskFactorConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := make(map[string]*compiledFactor)
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		compiled, err := e.compileFactor(cfg)
		if err != nil {
			return err
		}
		next[cfg.ID] = compiled
	}

	e.compiled = next

	return nil
}

// Evaluate runs every loaded factor against one submission's activation
// variables and returns the hits in factor id order. Expressions that fail
// at runtime are skipped rather than failing the analysis.
func (e *FactorEngine) Evaluate(activation map[string]any) []FactorHit {
	e.mu.RLock()
	factors := make([]*compiledFactor, 0, len(e.compiled))
	for _, f := range e.compiled {
		factors = append(factors, f)
	}
	e.mu.RUnlock()

	if len(factors) == 0 {
		return nil
	}

	sort.Slice(factors, func(i, j int) bool {
		return factors[i].config.ID < factors[j].config.ID
	})

	hits := make([]FactorHit, 0, len(factors))
	for _, f := range factors {
		out, _, err := f.program.Eval(activation)
		if err != nil {
			continue
		}
		if fired, ok := out.(types.Bool); ok && bool(fired) {
			hits = append(hits, FactorHit{
				Tag:    f.config.Name,
				Weight: f.config.Weight,
			})
		}
	}

	return hits
}

// FactorCount returns the number of loaded factors.
func (e *FactorEngine) FactorCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiled)
}

// GetLoadedFactors returns the currently loaded factor configurations.
func (e *FactorEngine) GetLoadedFactors() []*domain.RiskFactorConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	configs := make([]*domain.RiskFactorConfig, 0, len(e.compiled))
	for _, f := range e.compiled {
		configs = append(configs, f.config)
	}
	return configs
}

// Close clears the loaded factors.
func (e *FactorEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiled = make(map[string]*compiledFactor)
	return nil
}

func (e *FactorEngine) compileFactor(cfg *domain.RiskFactorConfig) (*compiledFactor, error) {
	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile factor %s: %w", cfg.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("factor %s: expression must return bool, got %s", cfg.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for factor %s: %w", cfg.ID, err)
	}

	return &compiledFactor{
		config:  cfg,
		program: program,
	}, nil
}
