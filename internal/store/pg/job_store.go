package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/jobauth/internal/authz"
	"github.com/nextlevelbuilder/jobauth/internal/job"
	"github.com/nextlevelbuilder/jobauth/pkg/protocol"
)

// JobStore implements job.Store. LogEntries and TranscriptionSegments are
// stored as JSONB arrays rather than child tables — they are append-only and
// always read back whole with their owning Job (§3, §8), so there is no
// query that benefits from normalizing them out.
type JobStore struct {
	db *sql.DB
}

func NewJobStore(db *sql.DB) *JobStore {
	return &JobStore{db: db}
}

func (s *JobStore) Create(ctx context.Context, j *job.Job) error {
	logJSON, segJSON, err := marshalJobChildren(j)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO jobs (
			id, agent_id, channel_id, caller_user, caller_agent_id,
			action_kind, resource_id, status, effective_clearance,
			approved_by_user_id, approved_by_agent_id,
			script_text, working_directory, shell_kind,
			transcription_model_id, transcription_device_id, language,
			result_data, error_log, log_entries, transcription_segments,
			created_at, started_at, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)`,
		j.ID, j.AgentID, j.ChannelID, nilStr(j.CallerUser), nilJobUUID(j.CallerAgentID),
		string(j.ActionKind), nilJobUUID(j.ResourceID), string(j.Status), int(j.EffectiveClearance),
		nilStr(j.ApprovedByUserID), nilJobUUID(j.ApprovedByAgentID),
		nilStr(j.ScriptText), nilStr(j.WorkingDirectory), nilStr(j.ShellKind),
		nilJobUUID(j.TranscriptionModelID), nilStr(j.TranscriptionDeviceID), nilStr(j.Language),
		nilStr(j.ResultData), nilStr(j.ErrorLog), logJSON, segJSON,
		j.CreatedAt, j.StartedAt, j.CompletedAt,
	)
	return err
}

func (s *JobStore) Update(ctx context.Context, j *job.Job) error {
	logJSON, segJSON, err := marshalJobChildren(j)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE jobs SET
			status = $1, effective_clearance = $2,
			approved_by_user_id = $3, approved_by_agent_id = $4,
			result_data = $5, error_log = $6,
			log_entries = $7, transcription_segments = $8,
			started_at = $9, completed_at = $10
		 WHERE id = $11`,
		string(j.Status), int(j.EffectiveClearance),
		nilStr(j.ApprovedByUserID), nilJobUUID(j.ApprovedByAgentID),
		nilStr(j.ResultData), nilStr(j.ErrorLog),
		logJSON, segJSON,
		j.StartedAt, j.CompletedAt, j.ID,
	)
	return err
}

func (s *JobStore) Get(ctx context.Context, id uuid.UUID) (*job.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, agent_id, channel_id, caller_user, caller_agent_id,
			action_kind, resource_id, status, effective_clearance,
			approved_by_user_id, approved_by_agent_id,
			script_text, working_directory, shell_kind,
			transcription_model_id, transcription_device_id, language,
			result_data, error_log, log_entries, transcription_segments,
			created_at, started_at, completed_at
		 FROM jobs WHERE id = $1`, id)
	return scanJob(row)
}

// ListStuckTranscriptions implements the restart reconciliation query
// (§4.6): every transcription job left in Queued or Executing.
func (s *JobStore) ListStuckTranscriptions(ctx context.Context) ([]*job.Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, agent_id, channel_id, caller_user, caller_agent_id,
			action_kind, resource_id, status, effective_clearance,
			approved_by_user_id, approved_by_agent_id,
			script_text, working_directory, shell_kind,
			transcription_model_id, transcription_device_id, language,
			result_data, error_log, log_entries, transcription_segments,
			created_at, started_at, completed_at
		 FROM jobs
		 WHERE status IN ('Queued', 'Executing')
		   AND action_kind IN ('TranscribeFromAudioDevice', 'TranscribeFromAudioStream', 'TranscribeFromAudioFile')`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*job.Job
	for rows.Next() {
		j, err := scanJobRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row *sql.Row) (*job.Job, error) {
	return scanJobGeneric(row)
}

func scanJobRows(rows *sql.Rows) (*job.Job, error) {
	return scanJobGeneric(rows)
}

func scanJobGeneric(r rowScanner) (*job.Job, error) {
	var j job.Job
	var callerUser, approvedByUserID, scriptText, workingDirectory, shellKind, deviceID, language, resultData, errorLog *string
	var callerAgentID, resourceID, approvedByAgentID, transcriptionModelID *uuid.UUID
	var actionKind, status string
	var effectiveClearance int
	var logJSON, segJSON []byte

	err := r.Scan(
		&j.ID, &j.AgentID, &j.ChannelID, &callerUser, &callerAgentID,
		&actionKind, &resourceID, &status, &effectiveClearance,
		&approvedByUserID, &approvedByAgentID,
		&scriptText, &workingDirectory, &shellKind,
		&transcriptionModelID, &deviceID, &language,
		&resultData, &errorLog, &logJSON, &segJSON,
		&j.CreatedAt, &j.StartedAt, &j.CompletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job: not found")
	}
	if err != nil {
		return nil, err
	}

	j.CallerUser = derefStr(callerUser)
	j.CallerAgentID = derefUUID(callerAgentID)
	j.ActionKind = protocol.ActionKind(actionKind)
	j.ResourceID = derefUUID(resourceID)
	j.Status = job.Status(status)
	j.EffectiveClearance = authz.Clearance(effectiveClearance)
	j.ApprovedByUserID = derefStr(approvedByUserID)
	j.ApprovedByAgentID = derefUUID(approvedByAgentID)
	j.ScriptText = derefStr(scriptText)
	j.WorkingDirectory = derefStr(workingDirectory)
	j.ShellKind = derefStr(shellKind)
	j.TranscriptionModelID = derefUUID(transcriptionModelID)
	j.TranscriptionDeviceID = derefStr(deviceID)
	j.Language = derefStr(language)
	j.ResultData = derefStr(resultData)
	j.ErrorLog = derefStr(errorLog)

	if len(logJSON) > 0 {
		if err := json.Unmarshal(logJSON, &j.LogEntries); err != nil {
			return nil, fmt.Errorf("job: unmarshal log entries: %w", err)
		}
	}
	if len(segJSON) > 0 {
		if err := json.Unmarshal(segJSON, &j.TranscriptionSegments); err != nil {
			return nil, fmt.Errorf("job: unmarshal transcription segments: %w", err)
		}
	}

	return &j, nil
}

func marshalJobChildren(j *job.Job) (logJSON, segJSON []byte, err error) {
	logJSON, err = json.Marshal(j.LogEntries)
	if err != nil {
		return nil, nil, fmt.Errorf("job: marshal log entries: %w", err)
	}
	segJSON, err = json.Marshal(j.TranscriptionSegments)
	if err != nil {
		return nil, nil, fmt.Errorf("job: marshal transcription segments: %w", err)
	}
	return logJSON, segJSON, nil
}

func nilJobUUID(u uuid.UUID) *uuid.UUID {
	if u == uuid.Nil {
		return nil
	}
	return &u
}
