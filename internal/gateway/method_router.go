package gateway

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nextlevelbuilder/jobauth/pkg/protocol"
)

// HandlerFunc answers one RPC request for a connected Client.
type HandlerFunc func(ctx context.Context, client *Client, req *protocol.RequestFrame)

// MethodRouter dispatches incoming RequestFrames by method name. Method
// packages (internal/gateway/methods) register their handlers against it
// at startup rather than the Server knowing about every RPC method itself.
type MethodRouter struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewMethodRouter builds an empty router. The server argument is accepted
// for symmetry with method packages that close over it, but the router
// itself only needs the handler table.
func NewMethodRouter(_ *Server) *MethodRouter {
	return &MethodRouter{handlers: make(map[string]HandlerFunc)}
}

// Register binds method to handler, overwriting any prior registration.
func (r *MethodRouter) Register(method string, handler HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[method] = handler
}

// Dispatch looks up req.Method and invokes its handler, or answers
// ErrInvalidRequest when no such method is registered.
func (r *MethodRouter) Dispatch(ctx context.Context, client *Client, req *protocol.RequestFrame) {
	r.mu.RLock()
	handler, ok := r.handlers[req.Method]
	r.mu.RUnlock()

	if !ok {
		slog.Warn("gateway unknown method", "method", req.Method, "client", client.id)
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInvalidRequest, "unknown method: "+req.Method))
		return
	}
	handler(ctx, client, req)
}
