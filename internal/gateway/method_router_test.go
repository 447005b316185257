package gateway

import (
	"context"
	"testing"

	"github.com/nextlevelbuilder/jobauth/pkg/protocol"
)

func Test_MethodRouter_DispatchesRegisteredMethod(t *testing.T) {
	r := NewMethodRouter(nil)
	called := false
	r.Register("ping", func(ctx context.Context, client *Client, req *protocol.RequestFrame) {
		called = true
	})

	r.Dispatch(context.Background(), &Client{id: "test", send: make(chan interface{}, 1), done: make(chan struct{})}, &protocol.RequestFrame{ID: "1", Method: "ping"})

	if !called {
		t.Fatalf("expected registered handler to run")
	}
}

func Test_MethodRouter_UnknownMethodReturnsError(t *testing.T) {
	r := NewMethodRouter(nil)
	c := &Client{id: "test", send: make(chan interface{}, 1), done: make(chan struct{})}

	r.Dispatch(context.Background(), c, &protocol.RequestFrame{ID: "1", Method: "does.not.exist"})

	select {
	case msg := <-c.send:
		resp, ok := msg.(*protocol.ResponseFrame)
		if !ok || resp.Error == nil || resp.Error.Code != protocol.ErrInvalidRequest {
			t.Fatalf("expected an invalid_request error response, got %+v", msg)
		}
	default:
		t.Fatalf("expected a response to be queued")
	}
}

func Test_MethodRouter_LaterRegistrationOverwrites(t *testing.T) {
	r := NewMethodRouter(nil)
	var which string
	r.Register("m", func(ctx context.Context, client *Client, req *protocol.RequestFrame) { which = "first" })
	r.Register("m", func(ctx context.Context, client *Client, req *protocol.RequestFrame) { which = "second" })

	r.Dispatch(context.Background(), &Client{id: "c", send: make(chan interface{}, 1), done: make(chan struct{})}, &protocol.RequestFrame{ID: "1", Method: "m"})

	if which != "second" {
		t.Fatalf("expected later registration to win, got %q", which)
	}
}
