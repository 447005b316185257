// Package methods holds the gateway's RPC method handlers, one file per
// domain surface, each registering itself against a *gateway.MethodRouter.
package methods

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/jobauth/internal/chatloop"
	"github.com/nextlevelbuilder/jobauth/internal/gateway"
	"github.com/nextlevelbuilder/jobauth/internal/job"
	"github.com/nextlevelbuilder/jobauth/pkg/protocol"
)

// ChatMethods drives one user message through the chat loop per chat.send
// call, streaming text_delta/tool_start/approval_* events back to the
// calling client as the loop's OnEvent callback fires.
type ChatMethods struct {
	loop *chatloop.Loop
}

func NewChatMethods(loop *chatloop.Loop) *ChatMethods {
	return &ChatMethods{loop: loop}
}

// Register binds chat.send and chat.history against router.
func (m *ChatMethods) Register(router *gateway.MethodRouter) {
	router.Register(protocol.MethodChatSend, m.handleSend)
	router.Register(protocol.MethodChatHistory, m.handleHistory)
}

type sendParams struct {
	ChannelID        string `json:"channel_id"`
	ChannelContextID string `json:"channel_context_id"`
	AgentOverride    string `json:"agent_override"`
	UserID           string `json:"user_id"`
	Message          string `json:"message"`
	Stream           bool   `json:"stream"`
}

func (m *ChatMethods) handleSend(ctx context.Context, client *gateway.Client, req *protocol.RequestFrame) {
	var p sendParams
	if req.Params != nil {
		if err := json.Unmarshal(req.Params, &p); err != nil {
			client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInvalidRequest, "malformed params"))
			return
		}
	}

	channelID, err := uuid.Parse(p.ChannelID)
	if err != nil {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInvalidRequest, "invalid channel_id"))
		return
	}

	var agentOverride uuid.UUID
	if p.AgentOverride != "" {
		agentOverride, err = uuid.Parse(p.AgentOverride)
		if err != nil {
			client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInvalidRequest, "invalid agent_override"))
			return
		}
	}
	var channelContextID uuid.UUID
	if p.ChannelContextID != "" {
		channelContextID, _ = uuid.Parse(p.ChannelContextID)
	}

	chatReq := chatloop.Request{
		ChannelID:        channelID,
		ChannelContextID: channelContextID,
		AgentOverride:    agentOverride,
		SessionUserID:    p.UserID,
		UserMessage:      p.Message,
		Stream:           p.Stream,
		OnEvent: func(event protocol.ChatEvent, payload any) {
			client.SendEvent(*protocol.NewEvent(string(event), payload))
		},
		Approve: func(j *job.Job) bool {
			// A clearance-approved job still needs a human in the loop
			// (§4.4): the RPC caller is that human, so send the approval
			// prompt and synchronously wait isn't possible over one RPC
			// call — jobs.approve/jobs.cancel resolve it out-of-band, and
			// chat.send treats it as not-yet-approved for this response.
			return false
		},
	}

	resp, err := m.loop.Run(ctx, chatReq)
	if err != nil {
		slog.Error("chat.send", "error", err)
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInternal, err.Error()))
		return
	}

	client.SendResponse(protocol.NewOKResponse(req.ID, map[string]interface{}{
		"text":  resp.Text,
		"turns": resp.Turns,
		"jobs":  resp.Jobs,
	}))
}

type historyParams struct {
	ChannelID string `json:"channel_id"`
}

func (m *ChatMethods) handleHistory(ctx context.Context, client *gateway.Client, req *protocol.RequestFrame) {
	var p historyParams
	if req.Params != nil {
		json.Unmarshal(req.Params, &p)
	}

	channelID, err := uuid.Parse(p.ChannelID)
	if err != nil {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInvalidRequest, "invalid channel_id"))
		return
	}

	messages, err := m.loop.History(ctx, channelID)
	if err != nil {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInternal, err.Error()))
		return
	}

	client.SendResponse(protocol.NewOKResponse(req.ID, map[string]interface{}{"messages": messages}))
}
