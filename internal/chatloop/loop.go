package chatloop

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/jobauth/internal/authz"
	"github.com/nextlevelbuilder/jobauth/internal/job"
	"github.com/nextlevelbuilder/jobauth/internal/providers"
	"github.com/nextlevelbuilder/jobauth/internal/telemetry"
	"github.com/nextlevelbuilder/jobauth/pkg/protocol"
)

// HistoryStore persists the chat transcript for a channel: the user message
// is appended after the loop completes, once, and the assistant message
// stores the concatenated text output (§4.7).
type HistoryStore interface {
	AppendMessages(ctx context.Context, channelID uuid.UUID, messages []providers.Message) error
	History(ctx context.Context, channelID uuid.UUID) ([]providers.Message, error)
}

// Loop drives one user message through round-tripped model calls, dispatching
// every tool call as a Job submission (§4.7).
type Loop struct {
	provider  providers.Provider
	jobs      *job.Manager
	evaluator *authz.Evaluator
	history   HistoryStore
	sandboxes SandboxResolver // optional
	tools     []providers.ToolDefinition
}

func NewLoop(provider providers.Provider, jobs *job.Manager, evaluator *authz.Evaluator, history HistoryStore, tools []providers.ToolDefinition) *Loop {
	return &Loop{provider: provider, jobs: jobs, evaluator: evaluator, history: history, tools: tools}
}

// SetSandboxResolver wires the optional sandbox-name lookup used when a tool
// call names a sandbox by name rather than a resourceId.
func (l *Loop) SetSandboxResolver(r SandboxResolver) { l.sandboxes = r }

// History returns the persisted transcript for a channel, for chat.history
// callers that want the log without submitting a new message.
func (l *Loop) History(ctx context.Context, channelID uuid.UUID) ([]providers.Message, error) {
	return l.history.History(ctx, channelID)
}

// Request is one user message submitted to the loop.
type Request struct {
	ChannelID        uuid.UUID
	ChannelContextID uuid.UUID
	AgentOverride    uuid.UUID
	SessionUserID    string
	UserMessage      string
	Stream           bool
	OnEvent          func(event protocol.ChatEvent, payload any)
	Approve          ApprovalCallback
}

// Response is the loop's final output (§4.7).
type Response struct {
	Text  string
	Jobs  []Snapshot
	Turns int
}

// Run implements §4.7: streaming and non-streaming share one round loop,
// differing only in how the model call is made.
func (l *Loop) Run(ctx context.Context, req Request) (*Response, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "chatloop.Run")
	span.SetAttributes(attribute.String("channel_id", req.ChannelID.String()))
	defer span.End()

	history, err := l.history.History(ctx, req.ChannelID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load history")
		return nil, fmt.Errorf("chatloop: load history: %w", err)
	}
	messages := append(append([]providers.Message{}, history...), providers.Message{
		Role:    "user",
		Content: req.UserMessage,
	})

	var snapshots []Snapshot
	var finalText string
	unresolved := false

	round := 0
	for round < roundCap {
		round++
		resp, err := l.callModel(ctx, messages, req)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "model call")
			return nil, fmt.Errorf("chatloop: model call: %w", err)
		}

		if len(resp.ToolCalls) == 0 {
			finalText = resp.Content
			break
		}

		messages = append(messages, providers.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		results, jobs, roundUnresolved, err := l.runToolCalls(ctx, req, resp.ToolCalls)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "tool calls")
			return nil, err
		}
		messages = append(messages, results...)
		snapshots = append(snapshots, jobs...)
		unresolved = unresolved || roundUnresolved
		finalText = resp.Content
	}

	if unresolved {
		resp, err := l.callModel(ctx, messages, req)
		if err == nil {
			finalText = resp.Content
		}
	}

	if err := l.history.AppendMessages(ctx, req.ChannelID, []providers.Message{
		{Role: "user", Content: req.UserMessage},
		{Role: "assistant", Content: finalText},
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist history")
		return nil, fmt.Errorf("chatloop: persist history: %w", err)
	}

	if req.OnEvent != nil {
		req.OnEvent(protocol.EventComplete, finalText)
	}

	span.SetAttributes(attribute.Int("turns", round), attribute.Int("jobs", len(snapshots)))
	return &Response{Text: finalText, Jobs: snapshots, Turns: round}, nil
}

func (l *Loop) callModel(ctx context.Context, messages []providers.Message, req Request) (*providers.ChatResponse, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "chatloop.callModel")
	span.SetAttributes(attribute.Bool("stream", req.Stream), attribute.Int("messages", len(messages)))
	defer span.End()

	chatReq := providers.ChatRequest{Messages: messages, Tools: l.tools}

	var resp *providers.ChatResponse
	var err error
	if !req.Stream {
		resp, err = l.provider.Chat(ctx, chatReq)
	} else {
		resp, err = l.provider.ChatStream(ctx, chatReq, func(chunk providers.StreamChunk) {
			if req.OnEvent != nil && chunk.Content != "" {
				req.OnEvent(protocol.EventTextDelta, chunk.Content)
			}
		})
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider call")
		return nil, err
	}
	return resp, nil
}

// indexedToolOutcome preserves each tool call's original position so
// messages are appended back in a deterministic order once every goroutine
// in the round has finished (§4.7 step 3, §5 ordering guarantees).
type indexedToolOutcome struct {
	index   int
	message providers.Message
	snap    *Snapshot
	pending bool
}

// runToolCalls executes every tool call in the round concurrently via
// errgroup, then folds the results back in submission order.
func (l *Loop) runToolCalls(ctx context.Context, req Request, calls []providers.ToolCall) ([]providers.Message, []Snapshot, bool, error) {
	outcomes := make([]indexedToolOutcome, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	for i, tc := range calls {
		i, tc := i, tc
		g.Go(func() error {
			outcome, err := l.runOneToolCall(gctx, req, tc)
			if err != nil {
				return err
			}
			outcome.index = i
			outcomes[i] = outcome
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, false, err
	}

	sort.Slice(outcomes, func(a, b int) bool { return outcomes[a].index < outcomes[b].index })

	var messages []providers.Message
	var snaps []Snapshot
	unresolved := false
	for _, o := range outcomes {
		messages = append(messages, o.message)
		if o.snap != nil {
			snaps = append(snaps, *o.snap)
		}
		if o.pending {
			unresolved = true
		}
	}
	return messages, snaps, unresolved, nil
}

// runOneToolCall implements §4.7 steps 3a-3d for a single tool call: the
// chat loop never raises from a tool call (§7) — a failed job still yields
// a tool-result message so the model can adapt.
func (l *Loop) runOneToolCall(ctx context.Context, req Request, tc providers.ToolCall) (indexedToolOutcome, error) {
	submitReq := job.SubmitRequest{
		ChannelContextID: req.ChannelContextID,
		AgentOverride:    req.AgentOverride,
		CallerUserID:     req.SessionUserID,
	}
	translated, err := l.translate(ctx, req.ChannelID, submitReq, tc)
	if err != nil {
		return toolErrorOutcome(tc, err), nil
	}

	if req.OnEvent != nil {
		req.OnEvent(protocol.EventToolStart, tc.Name)
	}

	j, err := l.jobs.Submit(ctx, translated)
	if err != nil {
		return toolErrorOutcome(tc, err), nil
	}

	pending := false
	if j.Status == job.StatusAwaitingApproval {
		pending = true
		result := l.evaluator.Evaluate(ctx, authz.Request{
			AgentID:    j.AgentID,
			ActionKind: j.ActionKind,
			ResourceID: j.ResourceID,
			Caller:     authz.Caller{UserID: req.SessionUserID},
		})

		if result.Verdict == authz.VerdictApproved {
			if req.OnEvent != nil {
				req.OnEvent(protocol.EventApprovalRequired, j.ID)
			}
			approve := req.Approve != nil && req.Approve(j)
			if req.OnEvent != nil {
				req.OnEvent(protocol.EventApprovalDecision, approve)
			}
			if approve {
				j, err = l.jobs.Approve(ctx, j.ID, authz.Caller{UserID: req.SessionUserID})
			} else {
				j, err = l.jobs.Cancel(ctx, j.ID)
			}
		} else {
			j, err = l.jobs.Cancel(ctx, j.ID)
		}
		if err != nil {
			return toolErrorOutcome(tc, err), nil
		}
		pending = j.Status == job.StatusAwaitingApproval
	}

	snap := snapshotOf(j)
	return indexedToolOutcome{
		message: toolResultMessage(tc, j),
		snap:    &snap,
		pending: pending,
	}, nil
}

func toolResultMessage(tc providers.ToolCall, j *job.Job) providers.Message {
	status := string(j.Status)
	content := fmt.Sprintf("status=%s result=%s error=%s", status, j.ResultData, j.ErrorLog)
	return providers.Message{
		Role:       "tool",
		Content:    content,
		ToolCallID: tc.ID,
	}
}

func toolErrorOutcome(tc providers.ToolCall, err error) indexedToolOutcome {
	return indexedToolOutcome{
		message: providers.Message{
			Role:       "tool",
			Content:    fmt.Sprintf("status=Failed result= error=%s", err.Error()),
			ToolCallID: tc.ID,
		},
	}
}
