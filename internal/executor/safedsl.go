package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/jobauth/internal/job"
	"github.com/nextlevelbuilder/jobauth/internal/sandbox"
	"github.com/nextlevelbuilder/jobauth/pkg/protocol"
)

// SafeDSLHandler implements §4.5's Safe-DSL execution: requires a non-empty
// script payload and a resource pointing to a container of kind
// SandboxedDSL. Compiles within that sandbox's workspace, executes, and
// aggregates per-step status into a human-readable summary.
type SafeDSLHandler struct {
	containers ContainerStore
	sandboxes  sandbox.Manager
	opts       sandbox.CompileOptions
}

func NewSafeDSLHandler(containers ContainerStore, sandboxes sandbox.Manager, opts sandbox.CompileOptions) *SafeDSLHandler {
	return &SafeDSLHandler{containers: containers, sandboxes: sandboxes, opts: opts}
}

func (h *SafeDSLHandler) Execute(ctx context.Context, j *job.Job) (string, error) {
	if strings.TrimSpace(j.ScriptText) == "" {
		return "", fmt.Errorf("safe-dsl: script is required")
	}
	if j.ResourceID == uuid.Nil {
		return "", fmt.Errorf("safe-dsl: resource is required")
	}

	container, err := h.containers.GetContainer(ctx, j.ResourceID)
	if err != nil || container == nil {
		return "", fmt.Errorf("safe-dsl: resolve container: %w", err)
	}
	if container.Kind != protocol.ContainerSandboxedDSL {
		return "", fmt.Errorf("safe-dsl: resource %s is not a SandboxedDSL container", container.Name)
	}

	sb, err := h.sandboxes.Get(ctx, container.Name, container.RootPath)
	if err != nil {
		return "", fmt.Errorf("safe-dsl: acquire sandbox: %w", err)
	}

	compiled, err := sandbox.Compile(j.ScriptText, sb, container.RootPath, h.opts)
	if err != nil {
		return "", fmt.Errorf("safe-dsl: compile: %w", err)
	}

	report, err := compiled.Execute(ctx)
	if err != nil {
		return "", fmt.Errorf("safe-dsl: execute: %w", err)
	}

	summary := summarizeReport(report)
	if !report.AllSucceeded {
		return "", fmt.Errorf("safe-dsl: %s", summary)
	}
	return summary, nil
}

func summarizeReport(r sandbox.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d/%d steps succeeded in %s\n", succeeded(r), len(r.Steps), r.TotalDuration)
	for _, s := range r.Steps {
		status := "ok"
		if !s.Success {
			status = "FAILED: " + s.Error
		}
		fmt.Fprintf(&b, "  [%d] %s — %s (attempts=%d, %s)\n", s.Index, s.Verb, status, s.Attempts, s.Duration)
	}
	return b.String()
}

func succeeded(r sandbox.Report) int {
	n := 0
	for _, s := range r.Steps {
		if s.Success {
			n++
		}
	}
	return n
}
