// Package sandbox provides the container-backed execution environment used
// by the dangerous-shell executor (§4.5) and by the Safe-DSL compiler (§6):
// a Manager hands out per-key Sandbox handles, and a Registrar binds a
// container row's name to the root path Docker (or an equivalent driver)
// mounts as its workspace.
package sandbox

import (
	"context"
	"errors"
)

// ErrSandboxDisabled is returned by Manager.Get when sandboxing is turned off
// for the calling deployment; callers fall back to host execution.
var ErrSandboxDisabled = errors.New("sandbox: disabled")

// ExecResult is the outcome of running a command inside a Sandbox.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Sandbox is a single running container, keyed by the caller's sandbox key.
type Sandbox interface {
	ID() string
	Exec(ctx context.Context, argv []string, cwd string) (ExecResult, error)
}

// Manager hands out Sandbox handles and registers new containers (the
// external provisioner named in §6).
type Manager interface {
	// Get returns (creating if necessary) the Sandbox for the given key,
	// mounting workspace as its root. ErrSandboxDisabled means no sandbox
	// backend is configured.
	Get(ctx context.Context, key string, workspace string) (Sandbox, error)

	// Register binds sandboxName to rootPath, making it resolvable by
	// future Get calls that use sandboxName as the key (§6 registrar).
	Register(ctx context.Context, sandboxName, rootPath string) error
}

// FsBridge routes filesystem tool calls (read_file/write_file/list_files)
// through a Sandbox's mounted workspace instead of the host filesystem.
type FsBridge struct {
	sandboxID string
	root      string
}

func NewFsBridge(sandboxID, root string) *FsBridge {
	return &FsBridge{sandboxID: sandboxID, root: root}
}

func (b *FsBridge) SandboxID() string { return b.sandboxID }
func (b *FsBridge) Root() string      { return b.root }
