package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    mode TEXT NOT NULL,
    query TEXT,
    location TEXT,
    own_url TEXT,
    language TEXT,
    keyword_count INTEGER DEFAULT 0,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS run_sources (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    slot INTEGER NOT NULL,
    url TEXT,
    title TEXT,
    rank INTEGER,
    status TEXT NOT NULL,
    error TEXT,
    word_count INTEGER DEFAULT 0,
    keyword_count INTEGER DEFAULT 0,
    PRIMARY KEY (run_id, slot)
);

CREATE TABLE IF NOT EXISTS run_keywords (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    phrase TEXT NOT NULL,
    score REAL NOT NULL,
    rank INTEGER,
    occurrences TEXT NOT NULL,
    total_occurrences INTEGER NOT NULL,
    max_occurrence INTEGER NOT NULL,
    max_source TEXT,
    PRIMARY KEY (run_id, position)
);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "source entities and run listing index",
		Up: func(tx *sql.Tx) error {
			var count int
			if err := tx.QueryRow(
				"SELECT COUNT(*) FROM pragma_table_info('run_sources') WHERE name = 'entities'",
			).Scan(&count); err != nil {
				return err
			}
			if count == 0 {
				if _, err := tx.Exec("ALTER TABLE run_sources ADD COLUMN entities TEXT"); err != nil {
					return err
				}
			}
			_, err := tx.Exec("CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)")
			return err
		},
	},
}

// latestVersion returns the highest migration version.
func latestVersion() int {
	return migrations[len(migrations)-1].Version
}
