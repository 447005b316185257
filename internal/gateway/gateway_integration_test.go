package gateway_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/jobauth/internal/bus"
	"github.com/nextlevelbuilder/jobauth/internal/chatloop"
	"github.com/nextlevelbuilder/jobauth/internal/config"
	"github.com/nextlevelbuilder/jobauth/internal/gateway"
	"github.com/nextlevelbuilder/jobauth/internal/gateway/methods"
	"github.com/nextlevelbuilder/jobauth/internal/job"
	"github.com/nextlevelbuilder/jobauth/internal/providers"
	"github.com/nextlevelbuilder/jobauth/pkg/protocol"
)

type noToolCallProvider struct{}

func (noToolCallProvider) Chat(_ context.Context, _ providers.ChatRequest) (*providers.ChatResponse, error) {
	return &providers.ChatResponse{Content: "hello from the model"}, nil
}
func (noToolCallProvider) ChatStream(_ context.Context, _ providers.ChatRequest, _ func(providers.StreamChunk)) (*providers.ChatResponse, error) {
	return &providers.ChatResponse{Content: "hello from the model"}, nil
}
func (noToolCallProvider) DefaultModel() string { return "fake" }
func (noToolCallProvider) Name() string         { return "fake" }

type memHistory struct {
	byChannel map[uuid.UUID][]providers.Message
}

func newMemHistory() *memHistory { return &memHistory{byChannel: make(map[uuid.UUID][]providers.Message)} }

func (h *memHistory) AppendMessages(_ context.Context, channelID uuid.UUID, messages []providers.Message) error {
	h.byChannel[channelID] = append(h.byChannel[channelID], messages...)
	return nil
}
func (h *memHistory) History(_ context.Context, channelID uuid.UUID) ([]providers.Message, error) {
	return h.byChannel[channelID], nil
}

type stubJobStore struct{}

func (stubJobStore) Create(context.Context, *job.Job) error         { return nil }
func (stubJobStore) Get(context.Context, uuid.UUID) (*job.Job, error) {
	return nil, simpleError("not found")
}
func (stubJobStore) Update(context.Context, *job.Job) error                    { return nil }
func (stubJobStore) ListStuckTranscriptions(context.Context) ([]*job.Job, error) { return nil, nil }

type simpleError string

func (e simpleError) Error() string { return string(e) }

func Test_Gateway_ChatSendRoundTrip(t *testing.T) {
	loop := chatloop.NewLoop(noToolCallProvider{}, nil, nil, newMemHistory(), nil)
	cfg := config.Default()
	b := bus.New()

	srv := gateway.NewServer(cfg, b, loop, stubJobStore{})
	methods.NewChatMethods(loop).Register(srv.Router())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	addr, start := gateway.StartTestServer(srv, ctx)
	go start()
	time.Sleep(50 * time.Millisecond)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	params, _ := json.Marshal(map[string]string{
		"channel_id": uuid.New().String(),
		"message":    "hi there",
	})
	req := protocol.RequestFrame{ID: "req-1", Method: protocol.MethodChatSend, Params: params}
	if err := conn.WriteJSON(req); err != nil {
		t.Fatalf("write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var resp protocol.ResponseFrame
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read: %v", err)
	}

	if resp.ID != "req-1" || resp.Error != nil {
		t.Fatalf("expected a successful response for req-1, got %+v", resp)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok || result["text"] != "hello from the model" {
		t.Fatalf("expected the model's text in the response, got %+v", resp.Result)
	}
}
