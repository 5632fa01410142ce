package domain

// RiskFactorConfig defines a custom regrade risk factor. The expression is
// a CEL predicate over a submission's statistics; when it evaluates true,
// the factor's weight is added to the submission's risk score (still capped
// at 100) and its name is appended to the risk-factor tags after the
// built-in factors.
type RiskFactorConfig struct {
	ID          string `json:"id"`
	CourseID    string `json:"courseId"`
	Name        string `json:"name"`
	Description string `json:"description"`

	// CEL expression. Available variables: score, mean, std_dev, z_score,
	// max_score, boundary, grader_deviation, grade_count, is_outlier,
	// harsh_grader, grader_id.
	Expression string `json:"expression"`

	// Weight added to the risk score when the expression holds.
	Weight float64 `json:"weight"`

	// Whether the factor is active
	Enabled bool `json:"enabled"`
}
