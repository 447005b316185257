package executor

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"regexp"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/jobauth/internal/job"
	"github.com/nextlevelbuilder/jobauth/internal/sandbox"
	"github.com/nextlevelbuilder/jobauth/pkg/protocol"
)

// defaultDenyPatterns rejects destructive, exfiltrating, and
// privilege-escalating commands before they ever reach a real interpreter —
// defense-in-depth alongside the sandbox's own hardening, not a substitute
// for it.
var defaultDenyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\brm\s+-[rf]{1,2}\b`),
	regexp.MustCompile(`\b(mkfs|diskpart)\b|\bformat\s`),
	regexp.MustCompile(`\bdd\s+if=`),
	regexp.MustCompile(`\b(shutdown|reboot|poweroff)\b`),
	regexp.MustCompile(`:\(\)\s*\{.*\};\s*:`), // fork bomb
	regexp.MustCompile(`\bcurl\b.*\|\s*(ba)?sh\b`),
	regexp.MustCompile(`\bwget\b.*-O\s*-\s*\|\s*(ba)?sh\b`),
	regexp.MustCompile(`/dev/tcp/`),
	regexp.MustCompile(`\b(nc|ncat|netcat)\b.*-[el]\b`),
	regexp.MustCompile(`\bsocat\b`),
	regexp.MustCompile(`\bsudo\b`),
	regexp.MustCompile(`\bsu\s+-`),
	regexp.MustCompile(`\b(mount|umount)\b`),
	regexp.MustCompile(`\bLD_PRELOAD\s*=`),
	regexp.MustCompile(`/var/run/docker\.sock|docker\.(sock|socket)`),
	regexp.MustCompile(`\b(killall|pkill)\b`),
	regexp.MustCompile(`\bcrontab\b`),
}

// ShellHandler implements §4.5's Dangerous-shell execution.
type ShellHandler struct {
	systemUsers SystemUserStore
	sandboxes   sandbox.Manager // nil = always run on host
	timeout     func() context.Context
	deny        []*regexp.Regexp
}

func NewShellHandler(systemUsers SystemUserStore, sandboxes sandbox.Manager) *ShellHandler {
	return &ShellHandler{systemUsers: systemUsers, sandboxes: sandboxes, deny: defaultDenyPatterns}
}

func (h *ShellHandler) Execute(ctx context.Context, j *job.Job) (string, error) {
	if j.ScriptText == "" {
		return "", fmt.Errorf("dangerous-shell: script is required")
	}
	if j.ResourceID == uuid.Nil {
		return "", fmt.Errorf("dangerous-shell: system-user resource is required")
	}
	argv0, flags, ok := protocol.ShellKind(j.ShellKind).Interpreter()
	if !ok {
		return "", fmt.Errorf("dangerous-shell: unknown shell kind %q", j.ShellKind)
	}

	for _, pattern := range h.deny {
		if pattern.MatchString(j.ScriptText) {
			return "", fmt.Errorf("dangerous-shell: command denied by safety policy: matches %s", pattern.String())
		}
	}

	systemUser, err := h.systemUsers.GetSystemUser(ctx, j.ResourceID)
	if err != nil || systemUser == nil {
		return "", fmt.Errorf("dangerous-shell: resolve system user: %w", err)
	}

	cwd := j.WorkingDirectory
	if cwd == "" {
		cwd = systemUser.WorkingDirectory
	}
	if cwd == "" {
		cwd = systemUser.SandboxRoot
	}
	if cwd == "" {
		cwd, _ = os.Getwd()
	}

	if h.sandboxes != nil {
		return h.executeInSandbox(ctx, argv0, flags, j.ScriptText, cwd)
	}
	return h.executeOnHost(ctx, argv0, flags, j.ScriptText, cwd)
}

func (h *ShellHandler) executeOnHost(ctx context.Context, argv0 string, flags []string, script, cwd string) (string, error) {
	args := append(append([]string{}, flags...), script)
	cmd := exec.CommandContext(ctx, argv0, args...)
	cmd.Dir = cwd

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("dangerous-shell: %s", stderr.String())
	}
	return stdout.String(), nil
}

func (h *ShellHandler) executeInSandbox(ctx context.Context, argv0 string, flags []string, script, cwd string) (string, error) {
	sb, err := h.sandboxes.Get(ctx, cwd, cwd)
	if err != nil {
		if err == sandbox.ErrSandboxDisabled {
			return h.executeOnHost(ctx, argv0, flags, script, cwd)
		}
		slog.Warn("dangerous-shell: sandbox unavailable, falling back to host", "error", err)
		return h.executeOnHost(ctx, argv0, flags, script, cwd)
	}

	argv := append(append([]string{argv0}, flags...), script)
	result, err := sb.Exec(ctx, argv, cwd)
	if err != nil {
		return "", fmt.Errorf("dangerous-shell: sandbox exec: %w", err)
	}
	if result.ExitCode != 0 {
		return "", fmt.Errorf("dangerous-shell: %s", result.Stderr)
	}
	return result.Stdout, nil
}
