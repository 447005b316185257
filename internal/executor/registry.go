// Package executor implements the Executor Registry (§4.5): one handler per
// action kind, dispatched by the job.Manager once a submission clears
// authorization. Handlers return textual resultData or an error; the
// Manager converts an error into the job's terminal Failed state.
package executor

import (
	"context"
	"fmt"

	"github.com/nextlevelbuilder/jobauth/internal/job"
	"github.com/nextlevelbuilder/jobauth/pkg/protocol"
)

// Handler executes one Job to completion and returns its resultData.
type Handler interface {
	Execute(ctx context.Context, j *job.Job) (string, error)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, j *job.Job) (string, error)

func (f HandlerFunc) Execute(ctx context.Context, j *job.Job) (string, error) { return f(ctx, j) }

// Registry dispatches a Job to its action-kind handler; it implements
// job.Executor.
type Registry struct {
	handlers map[protocol.ActionKind]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[protocol.ActionKind]Handler)}
}

// Register binds a handler to an action kind, overwriting any prior binding.
func (r *Registry) Register(kind protocol.ActionKind, h Handler) {
	r.handlers[kind] = h
}

// Dispatch implements job.Executor.
func (r *Registry) Dispatch(ctx context.Context, j *job.Job) (string, error) {
	h, ok := r.handlers[j.ActionKind]
	if !ok {
		return "", fmt.Errorf("executor: no handler registered for action kind %s", j.ActionKind)
	}
	return h.Execute(ctx, j)
}
