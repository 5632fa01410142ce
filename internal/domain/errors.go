package domain

import "errors"

// MinGradedSubmissions is the statistical validity floor: analysis refuses
// to run on fewer graded submissions than this.
const MinGradedSubmissions = 5

// Engine error kinds. Precondition failures abort the whole run; no partial
// report is produced or persisted.
var (
	// ErrInsufficientData: fewer than MinGradedSubmissions graded
	// submissions. Callers should surface "not enough grades for
	// statistical analysis yet".
	ErrInsufficientData = errors.New("not enough graded submissions for statistical analysis")

	// ErrMissingRubric: no rubric attached to the assignment.
	ErrMissingRubric = errors.New("assignment has no rubric")

	// ErrEmptyInput: an analyzer received zero eligible samples. Internal;
	// treated as "skip" at the criterion level, never propagated to callers.
	ErrEmptyInput = errors.New("empty input")
)
