package chatloop

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/jobauth/internal/authz"
	"github.com/nextlevelbuilder/jobauth/internal/job"
	"github.com/nextlevelbuilder/jobauth/internal/providers"
	"github.com/nextlevelbuilder/jobauth/pkg/protocol"
)

// --- fakes ---

type fakeHistory struct {
	messages []providers.Message
}

func (h *fakeHistory) AppendMessages(_ context.Context, _ uuid.UUID, messages []providers.Message) error {
	h.messages = append(h.messages, messages...)
	return nil
}

func (h *fakeHistory) History(_ context.Context, _ uuid.UUID) ([]providers.Message, error) {
	return nil, nil
}

// fakeProvider serves one scripted response per call, in order; the last
// response is replayed for any call beyond the script's length.
type fakeProvider struct {
	responses []providers.ChatResponse
	calls     int
}

func (p *fakeProvider) next() providers.ChatResponse {
	i := p.calls
	if i >= len(p.responses) {
		i = len(p.responses) - 1
	}
	p.calls++
	return p.responses[i]
}

func (p *fakeProvider) Chat(_ context.Context, _ providers.ChatRequest) (*providers.ChatResponse, error) {
	r := p.next()
	return &r, nil
}

func (p *fakeProvider) ChatStream(_ context.Context, _ providers.ChatRequest, _ func(providers.StreamChunk)) (*providers.ChatResponse, error) {
	r := p.next()
	return &r, nil
}

func (p *fakeProvider) DefaultModel() string { return "fake-model" }
func (p *fakeProvider) Name() string         { return "fake" }

// --- job.Manager fixtures, reusing the same fakes job/manager_test.go uses ---

type fakeJobStore struct {
	jobs map[uuid.UUID]*job.Job
}

func newFakeJobStore() *fakeJobStore { return &fakeJobStore{jobs: make(map[uuid.UUID]*job.Job)} }

func (s *fakeJobStore) Create(_ context.Context, j *job.Job) error {
	s.jobs[j.ID] = j
	return nil
}
func (s *fakeJobStore) Get(_ context.Context, id uuid.UUID) (*job.Job, error) {
	j, ok := s.jobs[id]
	if !ok {
		return nil, errNotFound
	}
	return j, nil
}
func (s *fakeJobStore) Update(_ context.Context, j *job.Job) error {
	s.jobs[j.ID] = j
	return nil
}
func (s *fakeJobStore) ListStuckTranscriptions(_ context.Context) ([]*job.Job, error) { return nil, nil }

type simpleError string

func (e simpleError) Error() string { return string(e) }

const errNotFound = simpleError("not found")

type fakeAgentResolver struct{ agentID uuid.UUID }

func (r *fakeAgentResolver) ResolveAgent(_ context.Context, _ uuid.UUID, override uuid.UUID) (uuid.UUID, error) {
	if override != uuid.Nil {
		return override, nil
	}
	return r.agentID, nil
}

type fakeExecutor struct {
	result string
	err    error
}

func (e *fakeExecutor) Dispatch(_ context.Context, _ *job.Job) (string, error) {
	return e.result, e.err
}

type nullStopper struct{}

func (nullStopper) Stop(uuid.UUID) error { return nil }

type testPermissionLoader struct {
	agents   map[uuid.UUID]*authz.Agent
	users    map[string]*authz.User
	permSets map[uuid.UUID]*authz.PermissionSet
}

func (l testPermissionLoader) Agent(_ context.Context, id uuid.UUID) (*authz.Agent, error) {
	return l.agents[id], nil
}
func (l testPermissionLoader) User(_ context.Context, id string) (*authz.User, error) {
	return l.users[id], nil
}
func (l testPermissionLoader) PermissionSetByRole(_ context.Context, roleID uuid.UUID) (*authz.PermissionSet, error) {
	return l.permSets[roleID], nil
}

type testChannelLoader struct{ l testPermissionLoader }

func (c testChannelLoader) Channel(_ context.Context, _ uuid.UUID) (*authz.Channel, error) { return nil, nil }
func (c testChannelLoader) ChannelContext(_ context.Context, _ uuid.UUID) (*authz.ChannelContext, error) {
	return nil, nil
}
func (c testChannelLoader) RoleByAgent(_ context.Context, agentID uuid.UUID) (*authz.Role, error) {
	a := c.l.agents[agentID]
	if a == nil || a.RoleID == uuid.Nil {
		return nil, nil
	}
	return &authz.Role{ID: a.RoleID, PermissionSetID: a.RoleID}, nil
}
func (c testChannelLoader) PermissionSetByID(_ context.Context, id uuid.UUID) (*authz.PermissionSet, error) {
	return c.l.permSets[id], nil
}

// buildManager wires an authz.Evaluator + job.Manager pair with a single
// agent whose role holds whatever grants the test needs.
func buildManager(t *testing.T, grants map[protocol.ResourceCategory][]authz.Grant, exec job.Executor) (*job.Manager, *authz.Evaluator, uuid.UUID) {
	t.Helper()
	agentID := uuid.New()
	roleID := uuid.New()
	loader := testPermissionLoader{
		agents:   map[uuid.UUID]*authz.Agent{agentID: {ID: agentID, RoleID: roleID}},
		users:    map[string]*authz.User{},
		permSets: map[uuid.UUID]*authz.PermissionSet{roleID: {Grants: grants}},
	}
	evaluator := authz.NewEvaluator(loader)
	resolver := authz.NewResolver(testChannelLoader{l: loader})
	preauth := authz.NewPreAuthChecker(testChannelLoader{l: loader})
	mgr := job.NewManager(newFakeJobStore(), &fakeAgentResolver{agentID: agentID}, resolver, evaluator, preauth, exec, nullStopper{})
	return mgr, evaluator, agentID
}

func TestRun_TextOnlyResponseSkipsToolDispatch(t *testing.T) {
	mgr, evaluator, _ := buildManager(t, nil, &fakeExecutor{})
	provider := &fakeProvider{responses: []providers.ChatResponse{
		{Content: "hello there"},
	}}
	history := &fakeHistory{}
	loop := NewLoop(provider, mgr, evaluator, history, nil)

	resp, err := loop.Run(context.Background(), Request{ChannelID: uuid.New(), UserMessage: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "hello there" {
		t.Fatalf("expected text 'hello there', got %q", resp.Text)
	}
	if len(resp.Jobs) != 0 {
		t.Fatalf("expected no jobs, got %d", len(resp.Jobs))
	}
	if resp.Turns != 1 {
		t.Fatalf("expected exactly 1 round, got %d", resp.Turns)
	}
}

func TestRun_ToolCallSubmitsJobAndResolvesLoop(t *testing.T) {
	resourceID := uuid.New()
	grants := map[protocol.ResourceCategory][]authz.Grant{
		protocol.CategorySkill: {{ResourceID: resourceID, Clearance: authz.ClearanceLevel5Independent}},
	}
	mgr, evaluator, _ := buildManager(t, grants, &fakeExecutor{result: "skill output"})
	provider := &fakeProvider{responses: []providers.ChatResponse{
		{
			ToolCalls: []providers.ToolCall{
				{ID: "call-1", Name: "access_skill", Arguments: map[string]interface{}{"resourceId": resourceID.String()}},
			},
		},
		{Content: "done"},
	}}
	history := &fakeHistory{}
	loop := NewLoop(provider, mgr, evaluator, history, nil)

	resp, err := loop.Run(context.Background(), Request{ChannelID: uuid.New(), UserMessage: "use the skill"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Jobs) != 1 {
		t.Fatalf("expected exactly one job snapshot, got %d", len(resp.Jobs))
	}
	if resp.Jobs[0].Status != job.StatusCompleted {
		t.Fatalf("expected the job to complete inline, got %v", resp.Jobs[0].Status)
	}
	if resp.Text != "done" {
		t.Fatalf("expected final text 'done', got %q", resp.Text)
	}
}

func TestRun_AwaitingApprovalAutoCancelsWhenCallerCannotSatisfy(t *testing.T) {
	resourceID := uuid.New()
	grants := map[protocol.ResourceCategory][]authz.Grant{
		protocol.CategoryWebsite: {{ResourceID: resourceID, Clearance: authz.ClearanceLevel3PermittedAgent}},
	}
	mgr, evaluator, _ := buildManager(t, grants, &fakeExecutor{result: "page"})
	provider := &fakeProvider{responses: []providers.ChatResponse{
		{
			ToolCalls: []providers.ToolCall{
				{ID: "call-1", Name: "web_fetch", Arguments: map[string]interface{}{"resourceId": resourceID.String(), "url": "http://example.com"}},
			},
		},
		{Content: "could not fetch"},
	}}
	history := &fakeHistory{}
	loop := NewLoop(provider, mgr, evaluator, history, nil)

	resp, err := loop.Run(context.Background(), Request{
		ChannelID:     uuid.New(),
		SessionUserID: "alice", // holds no role at all, so Level 3 can never be satisfied
		UserMessage:   "fetch it",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Jobs) != 1 {
		t.Fatalf("expected exactly one job snapshot, got %d", len(resp.Jobs))
	}
	if resp.Jobs[0].Status != job.StatusCancelled {
		t.Fatalf("expected auto-cancel when the caller cannot satisfy Level 3, got %v", resp.Jobs[0].Status)
	}
}

func TestRun_RoundCapForcesExit(t *testing.T) {
	mgr, evaluator, _ := buildManager(t, nil, &fakeExecutor{})
	responses := make([]providers.ChatResponse, 0, roundCap+2)
	for i := 0; i < roundCap+2; i++ {
		responses = append(responses, providers.ChatResponse{
			Content: "still working",
			ToolCalls: []providers.ToolCall{
				{ID: "call", Name: "access_skill", Arguments: map[string]interface{}{}},
			},
		})
	}
	provider := &fakeProvider{responses: responses}
	history := &fakeHistory{}
	loop := NewLoop(provider, mgr, evaluator, history, nil)

	resp, err := loop.Run(context.Background(), Request{ChannelID: uuid.New(), UserMessage: "loop forever"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Turns != roundCap {
		t.Fatalf("expected the loop to stop at the round cap of %d, got %d", roundCap, resp.Turns)
	}
}

func TestRun_PersistsUserAndAssistantMessagesOnce(t *testing.T) {
	mgr, evaluator, _ := buildManager(t, nil, &fakeExecutor{})
	provider := &fakeProvider{responses: []providers.ChatResponse{{Content: "reply"}}}
	history := &fakeHistory{}
	loop := NewLoop(provider, mgr, evaluator, history, nil)

	if _, err := loop.Run(context.Background(), Request{ChannelID: uuid.New(), UserMessage: "hi"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history.messages) != 2 {
		t.Fatalf("expected exactly one user + one assistant message persisted, got %d", len(history.messages))
	}
	if history.messages[0].Role != "user" || history.messages[1].Role != "assistant" {
		t.Fatalf("expected [user, assistant] order, got [%s, %s]", history.messages[0].Role, history.messages[1].Role)
	}
}
