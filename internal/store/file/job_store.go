package file

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/jobauth/internal/authz"
	"github.com/nextlevelbuilder/jobauth/internal/job"
	"github.com/nextlevelbuilder/jobauth/pkg/protocol"
)

const timeLayout = time.RFC3339Nano

// JobStore implements job.Store against the embedded sqlite schema. Same
// column shape as store/pg.JobStore; timestamps are stored as RFC3339Nano
// text rather than relying on the sqlite driver's native time handling.
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
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		j.ID.String(), j.AgentID.String(), j.ChannelID.String(), nilStr(j.CallerUser), nilUUIDStr(j.CallerAgentID),
		string(j.ActionKind), nilUUIDStr(j.ResourceID), string(j.Status), int(j.EffectiveClearance),
		nilStr(j.ApprovedByUserID), nilUUIDStr(j.ApprovedByAgentID),
		nilStr(j.ScriptText), nilStr(j.WorkingDirectory), nilStr(j.ShellKind),
		nilUUIDStr(j.TranscriptionModelID), nilStr(j.TranscriptionDeviceID), nilStr(j.Language),
		nilStr(j.ResultData), nilStr(j.ErrorLog), logJSON, segJSON,
		j.CreatedAt.Format(timeLayout), formatTimePtr(j.StartedAt), formatTimePtr(j.CompletedAt),
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
			status = ?, effective_clearance = ?,
			approved_by_user_id = ?, approved_by_agent_id = ?,
			result_data = ?, error_log = ?,
			log_entries = ?, transcription_segments = ?,
			started_at = ?, completed_at = ?
		 WHERE id = ?`,
		string(j.Status), int(j.EffectiveClearance),
		nilStr(j.ApprovedByUserID), nilUUIDStr(j.ApprovedByAgentID),
		nilStr(j.ResultData), nilStr(j.ErrorLog),
		logJSON, segJSON,
		formatTimePtr(j.StartedAt), formatTimePtr(j.CompletedAt), j.ID.String(),
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
		 FROM jobs WHERE id = ?`, id.String())
	return scanJob(row)
}

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
		j, err := scanJob(rows)
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

func scanJob(r rowScanner) (*job.Job, error) {
	var j job.Job
	var idStr, agentIDStr, channelIDStr string
	var callerUser, approvedByUserID, scriptText, workingDirectory, shellKind, deviceID, language, resultData, errorLog *string
	var callerAgentID, resourceID, approvedByAgentID, transcriptionModelID *string
	var actionKind, status string
	var effectiveClearance int
	var logJSON, segJSON *string
	var createdAt string
	var startedAt, completedAt *string

	err := r.Scan(
		&idStr, &agentIDStr, &channelIDStr, &callerUser, &callerAgentID,
		&actionKind, &resourceID, &status, &effectiveClearance,
		&approvedByUserID, &approvedByAgentID,
		&scriptText, &workingDirectory, &shellKind,
		&transcriptionModelID, &deviceID, &language,
		&resultData, &errorLog, &logJSON, &segJSON,
		&createdAt, &startedAt, &completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job: not found")
	}
	if err != nil {
		return nil, err
	}

	j.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	j.AgentID, err = uuid.Parse(agentIDStr)
	if err != nil {
		return nil, err
	}
	j.ChannelID, err = uuid.Parse(channelIDStr)
	if err != nil {
		return nil, err
	}

	j.CallerUser = derefStr(callerUser)
	j.CallerAgentID = parseUUIDPtr(callerAgentID)
	j.ActionKind = protocol.ActionKind(actionKind)
	j.ResourceID = parseUUIDPtr(resourceID)
	j.Status = job.Status(status)
	j.EffectiveClearance = authz.Clearance(effectiveClearance)
	j.ApprovedByUserID = derefStr(approvedByUserID)
	j.ApprovedByAgentID = parseUUIDPtr(approvedByAgentID)
	j.ScriptText = derefStr(scriptText)
	j.WorkingDirectory = derefStr(workingDirectory)
	j.ShellKind = derefStr(shellKind)
	j.TranscriptionModelID = parseUUIDPtr(transcriptionModelID)
	j.TranscriptionDeviceID = derefStr(deviceID)
	j.Language = derefStr(language)
	j.ResultData = derefStr(resultData)
	j.ErrorLog = derefStr(errorLog)

	if logJSON != nil && *logJSON != "" {
		if err := json.Unmarshal([]byte(*logJSON), &j.LogEntries); err != nil {
			return nil, fmt.Errorf("job: unmarshal log entries: %w", err)
		}
	}
	if segJSON != nil && *segJSON != "" {
		if err := json.Unmarshal([]byte(*segJSON), &j.TranscriptionSegments); err != nil {
			return nil, fmt.Errorf("job: unmarshal transcription segments: %w", err)
		}
	}

	j.CreatedAt, err = time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("job: parse created_at: %w", err)
	}
	j.StartedAt, err = parseTimePtr(startedAt)
	if err != nil {
		return nil, fmt.Errorf("job: parse started_at: %w", err)
	}
	j.CompletedAt, err = parseTimePtr(completedAt)
	if err != nil {
		return nil, fmt.Errorf("job: parse completed_at: %w", err)
	}

	return &j, nil
}

func marshalJobChildren(j *job.Job) (logJSON, segJSON string, err error) {
	logBytes, err := json.Marshal(j.LogEntries)
	if err != nil {
		return "", "", fmt.Errorf("job: marshal log entries: %w", err)
	}
	segBytes, err := json.Marshal(j.TranscriptionSegments)
	if err != nil {
		return "", "", fmt.Errorf("job: marshal transcription segments: %w", err)
	}
	return string(logBytes), string(segBytes), nil
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nilStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nilUUIDStr(u uuid.UUID) *string {
	if u == uuid.Nil {
		return nil
	}
	s := u.String()
	return &s
}

func parseUUIDPtr(s *string) uuid.UUID {
	if s == nil || *s == "" {
		return uuid.Nil
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return uuid.Nil
	}
	return id
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(timeLayout)
	return &s
}

func parseTimePtr(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse(timeLayout, *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
