package chatloop

import (
	"context"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/jobauth/internal/job"
	"github.com/nextlevelbuilder/jobauth/internal/providers"
	"github.com/nextlevelbuilder/jobauth/pkg/protocol"
)

// SandboxResolver looks up a container's id by the name a tool call names
// directly (§4.7 step 3a: "sandbox name lookup when no resource id is
// supplied").
type SandboxResolver interface {
	ResolveContainerByName(ctx context.Context, name string) (uuid.UUID, error)
}

// translate converts one model tool call into a job.SubmitRequest (§4.7
// step 3a).
func (l *Loop) translate(ctx context.Context, channelID uuid.UUID, caller job.SubmitRequest, tc providers.ToolCall) (job.SubmitRequest, error) {
	kind, ok := ActionKindForTool(tc.Name)
	if !ok {
		kind = protocol.ActionKind(tc.Name)
	}

	req := caller
	req.ChannelID = channelID
	req.ActionKind = kind

	if rid, ok := tc.Arguments["resourceId"].(string); ok && rid != "" {
		if parsed, err := uuid.Parse(rid); err == nil {
			req.ResourceID = parsed
		}
	}
	if req.ResourceID == uuid.Nil && l.sandboxes != nil {
		if name, ok := tc.Arguments["sandbox"].(string); ok && name != "" {
			if id, err := l.sandboxes.ResolveContainerByName(ctx, name); err == nil {
				req.ResourceID = id
			}
		}
	}

	if script, ok := tc.Arguments["command"].(string); ok {
		req.ScriptText = script
	} else if script, ok := tc.Arguments["script"].(string); ok {
		req.ScriptText = script
	} else if url, ok := tc.Arguments["url"].(string); ok {
		req.ScriptText = url
	} else if query, ok := tc.Arguments["query"].(string); ok {
		req.ScriptText = query
	}
	if wd, ok := tc.Arguments["workingDirectory"].(string); ok {
		req.WorkingDirectory = wd
	}
	if shellKind, ok := tc.Arguments["shellKind"].(string); ok {
		req.ShellKind = shellKind
	}
	if lang, ok := tc.Arguments["language"].(string); ok {
		req.Language = lang
	}
	if deviceID, ok := tc.Arguments["deviceId"].(string); ok {
		req.TranscriptionDeviceID = deviceID
	}

	return req, nil
}
