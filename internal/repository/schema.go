package repository

// Schema definitions for the Gradewatch database.
// Compatible with both SQLite and PostgreSQL.

const schemaAssignments = `
CREATE TABLE IF NOT EXISTS assignments (
    id TEXT NOT NULL,
    course_id TEXT NOT NULL,
    title TEXT NOT NULL,
    max_score REAL NOT NULL,
    rubric TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, course_id)
);

CREATE INDEX IF NOT EXISTS idx_assignments_course ON assignments(course_id);
`

const schemaSubmissions = `
CREATE TABLE IF NOT EXISTS submissions (
    id TEXT NOT NULL,
    course_id TEXT NOT NULL,
    assignment_id TEXT NOT NULL,
    student_id TEXT NOT NULL,
    grader_id TEXT NOT NULL,
    score REAL NOT NULL,
    criterion_scores TEXT,
    graded_status TEXT NOT NULL,
    graded_at TIMESTAMP NOT NULL,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, course_id)
);

CREATE INDEX IF NOT EXISTS idx_submissions_course ON submissions(course_id);
CREATE INDEX IF NOT EXISTS idx_submissions_assignment ON submissions(course_id, assignment_id);
CREATE INDEX IF NOT EXISTS idx_submissions_status ON submissions(course_id, assignment_id, graded_status);
`

const schemaReports = `
CREATE TABLE IF NOT EXISTS reports (
    id TEXT PRIMARY KEY,
    course_id TEXT NOT NULL,
    assignment_id TEXT NOT NULL,
    total_grades INTEGER NOT NULL,
    average_score REAL NOT NULL,
    std_dev REAL NOT NULL,
    severity_findings TEXT NOT NULL,
    outlier_findings TEXT NOT NULL,
    criterion_findings TEXT NOT NULL,
    regrade_risks TEXT NOT NULL,
    generated_at TIMESTAMP NOT NULL,
    status TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reports_course ON reports(course_id);
CREATE INDEX IF NOT EXISTS idx_reports_assignment ON reports(course_id, assignment_id);
CREATE INDEX IF NOT EXISTS idx_reports_generated ON reports(course_id, assignment_id, generated_at);
`

const schemaRiskFactors = `
CREATE TABLE IF NOT EXISTS risk_factors (
    id TEXT NOT NULL,
    course_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    expression TEXT NOT NULL,
    weight REAL NOT NULL DEFAULT 10.0,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, course_id)
);

CREATE INDEX IF NOT EXISTS idx_risk_factors_course ON risk_factors(course_id);
CREATE INDEX IF NOT EXISTS idx_risk_factors_enabled ON risk_factors(course_id, enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaAssignments,
		schemaSubmissions,
		schemaReports,
		schemaRiskFactors,
	}
}
