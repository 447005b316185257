// Package file provides a standalone, single-process persistence backend
// backed by embedded sqlite — for running the Job & Authorization Engine
// without a Postgres instance (§2 deployment modes). The teacher's go.mod
// already pulled in modernc.org/sqlite as a direct dependency; nothing in
// goclaw actually imported it. This package is where it gets used.
package file

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	agent_id TEXT,
	channel_id TEXT,
	caller_user TEXT,
	caller_agent_id TEXT,
	action_kind TEXT,
	resource_id TEXT,
	status TEXT,
	effective_clearance INTEGER,
	approved_by_user_id TEXT,
	approved_by_agent_id TEXT,
	script_text TEXT,
	working_directory TEXT,
	shell_kind TEXT,
	transcription_model_id TEXT,
	transcription_device_id TEXT,
	language TEXT,
	result_data TEXT,
	error_log TEXT,
	log_entries TEXT,
	transcription_segments TEXT,
	created_at DATETIME,
	started_at DATETIME,
	completed_at DATETIME
);

CREATE TABLE IF NOT EXISTS chat_histories (
	channel_id TEXT PRIMARY KEY,
	messages TEXT
);
`

// OpenDB opens (creating if necessary) the sqlite file at path and applies
// the embedded schema.
func OpenDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite serializes writers; avoid pool contention
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}
