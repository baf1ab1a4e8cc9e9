package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	invocation_id TEXT NOT NULL UNIQUE,
	ts            INTEGER NOT NULL,
	profile       TEXT,
	command       TEXT NOT NULL,
	args          TEXT NOT NULL DEFAULT '[]',
	outcome       TEXT NOT NULL CHECK(outcome IN ('success', 'error')),
	error_kind    TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	duration_ms   INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_audit_log_ts ON audit_log(ts);
CREATE INDEX IF NOT EXISTS idx_audit_log_command ON audit_log(command);
CREATE INDEX IF NOT EXISTS idx_audit_log_outcome ON audit_log(outcome);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_audit_log_profile_ts
	ON audit_log(profile, ts);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
