package store

import "fmt"

// Migrate applies all pending schema migrations in order, recording each
// applied version in schema_version, following the teacher's
// internal/state/db.go pattern.
func (db *DB) Migrate() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Outcomes},
		{2, migrationV2Tasks},
		{3, migrationV3Workers},
		{4, migrationV4Progress},
		{5, migrationV5Observations},
		{6, migrationV6Escalations},
		{7, migrationV7Capabilities},
		{8, migrationV8Reviews},
		{9, migrationV9Analysis},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}

	return nil
}

const migrationV1Outcomes = `
CREATE TABLE IF NOT EXISTS outcomes (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	parent_id TEXT,
	brief TEXT,
	intent TEXT NOT NULL DEFAULT '{}',
	design TEXT NOT NULL DEFAULT '{}',
	status TEXT NOT NULL DEFAULT 'active',
	capability_ready TEXT NOT NULL DEFAULT 'not_started',
	convergence TEXT NOT NULL DEFAULT '{}',
	working_dir TEXT,
	work_branch TEXT,
	git_mode TEXT NOT NULL DEFAULT 'none',
	parallel INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	modified_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_outcomes_parent_id ON outcomes(parent_id);
CREATE INDEX IF NOT EXISTS idx_outcomes_status ON outcomes(status);
`

const migrationV2Tasks = `
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	outcome_id TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT,
	task_intent TEXT NOT NULL DEFAULT '{}',
	task_approach TEXT NOT NULL DEFAULT '{}',
	priority INTEGER NOT NULL DEFAULT 0,
	attempts INTEGER NOT NULL DEFAULT 0,
	max_attempts INTEGER NOT NULL DEFAULT 3,
	phase TEXT NOT NULL DEFAULT 'execution',
	capability_type TEXT,
	depends_on TEXT NOT NULL DEFAULT '[]',
	required_capabilities TEXT NOT NULL DEFAULT '[]',
	status TEXT NOT NULL DEFAULT 'pending',
	claimant TEXT,
	from_review INTEGER NOT NULL DEFAULT 0,
	review_cycle INTEGER NOT NULL DEFAULT 0,
	creation_cycle INTEGER NOT NULL DEFAULT 0,
	error TEXT,
	created_at DATETIME NOT NULL,
	modified_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_outcome_id ON tasks(outcome_id);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_tasks_claimant ON tasks(claimant);
CREATE INDEX IF NOT EXISTS idx_tasks_phase ON tasks(phase);
`

const migrationV3Workers = `
CREATE TABLE IF NOT EXISTS workers (
	id TEXT PRIMARY KEY,
	outcome_id TEXT NOT NULL,
	name TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'idle',
	current_task_id TEXT,
	iteration INTEGER NOT NULL DEFAULT 0,
	cost REAL NOT NULL DEFAULT 0.0,
	progress_summary TEXT,
	branch_name TEXT,
	last_observation_id TEXT,
	started_at DATETIME NOT NULL,
	stopped_at DATETIME,
	created_at DATETIME NOT NULL,
	modified_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_workers_outcome_id ON workers(outcome_id);
CREATE INDEX IF NOT EXISTS idx_workers_status ON workers(status);
`

const migrationV4Progress = `
CREATE TABLE IF NOT EXISTS progress_entries (
	id TEXT PRIMARY KEY,
	worker_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	iteration INTEGER NOT NULL,
	task_id TEXT,
	content TEXT NOT NULL,
	raw_llm_output TEXT,
	observation_id TEXT,
	compacted INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_progress_worker_id ON progress_entries(worker_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_progress_worker_seq ON progress_entries(worker_id, seq);
`

const migrationV5Observations = `
CREATE TABLE IF NOT EXISTS observations (
	id TEXT PRIMARY KEY,
	worker_id TEXT NOT NULL,
	iteration INTEGER NOT NULL,
	task_id TEXT NOT NULL,
	alignment_score INTEGER NOT NULL,
	quality TEXT NOT NULL,
	on_track INTEGER NOT NULL,
	discoveries TEXT NOT NULL DEFAULT '[]',
	drift TEXT NOT NULL DEFAULT '[]',
	issues TEXT NOT NULL DEFAULT '[]',
	has_ambiguity INTEGER NOT NULL DEFAULT 0,
	ambiguity TEXT,
	task_complete INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_observations_worker_id ON observations(worker_id);
CREATE INDEX IF NOT EXISTS idx_observations_task_id ON observations(task_id);
`

const migrationV6Escalations = `
CREATE TABLE IF NOT EXISTS escalations (
	id TEXT PRIMARY KEY,
	outcome_id TEXT NOT NULL,
	trigger_type TEXT NOT NULL,
	question TEXT NOT NULL DEFAULT '{}',
	affected_tasks TEXT NOT NULL DEFAULT '[]',
	status TEXT NOT NULL DEFAULT 'pending',
	selected_option_id TEXT,
	user_context TEXT,
	auto_resolve_confidence REAL,
	incorporated INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	resolved_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_escalations_outcome_id ON escalations(outcome_id);
CREATE INDEX IF NOT EXISTS idx_escalations_status ON escalations(status);
`

const migrationV7Capabilities = `
CREATE TABLE IF NOT EXISTS capabilities (
	id TEXT PRIMARY KEY,
	outcome_id TEXT NOT NULL,
	name TEXT NOT NULL,
	type TEXT NOT NULL,
	kind TEXT NOT NULL,
	description TEXT,
	triggers TEXT NOT NULL DEFAULT '[]',
	path TEXT NOT NULL,
	required_env_keys TEXT NOT NULL DEFAULT '[]',
	status TEXT NOT NULL DEFAULT 'planned',
	built_by_task_id TEXT,
	created_at DATETIME NOT NULL,
	modified_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_capabilities_outcome_id ON capabilities(outcome_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_capabilities_outcome_ref ON capabilities(outcome_id, type, name);
`

const migrationV8Reviews = `
CREATE TABLE IF NOT EXISTS review_cycles (
	id TEXT PRIMARY KEY,
	outcome_id TEXT NOT NULL,
	cycle_index INTEGER NOT NULL,
	criteria_only INTEGER NOT NULL DEFAULT 0,
	findings TEXT NOT NULL DEFAULT '[]',
	issues TEXT NOT NULL DEFAULT '[]',
	issues_found INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_review_cycles_outcome_id ON review_cycles(outcome_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_review_cycles_outcome_index ON review_cycles(outcome_id, cycle_index);
`

const migrationV9Analysis = `
CREATE TABLE IF NOT EXISTS analysis_jobs (
	id TEXT PRIMARY KEY,
	outcome_id TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	progress TEXT,
	result TEXT NOT NULL DEFAULT '{}',
	error TEXT,
	created_at DATETIME NOT NULL,
	started_at DATETIME,
	finished_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_analysis_jobs_outcome_id ON analysis_jobs(outcome_id);
CREATE INDEX IF NOT EXISTS idx_analysis_jobs_status ON analysis_jobs(status);
`
