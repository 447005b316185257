package sandbox

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// dslVerbs is the closed set of operations the safe-DSL may perform. Unlike
// the dangerous-shell executor, there is no interpreter process and no deny
// list: a script can only ever do what a verb here implements.
var dslVerbs = map[string]bool{
	"write": true, // write <path> <content...>
	"read":  true, // read <path>
	"mkdir": true, // mkdir <path>
	"copy":  true, // copy <src> <dst>
	"run":   true, // run <allow-listed binary> <args...>
}

// CompileOptions configures a Compile call.
type CompileOptions struct {
	// AllowedBinaries restricts what a "run" step may execute; empty means
	// "run" steps are rejected outright.
	AllowedBinaries []string
	MaxRetries      int
}

// step is one compiled line of the script.
type step struct {
	index int
	verb  string
	args  []string
}

// Compiled is a script ready for Execute.
type Compiled struct {
	steps     []step
	workspace string
	sandbox   Sandbox
	opts      CompileOptions
}

// Compile parses script into a sequence of steps and validates every verb
// against the allow-list up front — a script either compiles entirely or
// not at all; there is no partial compilation (§6 compile/execute split).
func Compile(script string, sb Sandbox, workspace string, opts CompileOptions) (*Compiled, error) {
	var steps []step
	for i, line := range strings.Split(script, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		verb := fields[0]
		if !dslVerbs[verb] {
			return nil, fmt.Errorf("sandbox: unknown verb %q at line %d", verb, i+1)
		}
		if verb == "run" && !allowedBinary(opts.AllowedBinaries, fields[1:]) {
			return nil, fmt.Errorf("sandbox: binary not allow-listed at line %d", i+1)
		}
		steps = append(steps, step{index: len(steps), verb: verb, args: fields[1:]})
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("sandbox: script has no executable steps")
	}
	return &Compiled{steps: steps, workspace: workspace, sandbox: sb, opts: opts}, nil
}

func allowedBinary(allowed []string, args []string) bool {
	if len(args) == 0 {
		return false
	}
	for _, a := range allowed {
		if a == args[0] {
			return true
		}
	}
	return false
}

// StepResult is the outcome of one compiled step.
type StepResult struct {
	Index    int
	Verb     string
	Success  bool
	Attempts int
	Duration time.Duration
	Error    string
}

// Report is the aggregate outcome of Execute (§6).
type Report struct {
	AllSucceeded  bool
	Steps         []StepResult
	TotalDuration time.Duration
}

// Execute runs every compiled step in order, attempting each step up to
// MaxRetries times in total (at least once) before recording it as failed.
// Execution stops at the first step that exhausts its attempts; later steps
// are not attempted.
func (c *Compiled) Execute(ctx context.Context) (Report, error) {
	start := time.Now()
	var results []StepResult
	allOK := true

	for _, s := range c.steps {
		stepStart := time.Now()
		attempts := 0
		var lastErr error

		maxAttempts := c.opts.MaxRetries
		if maxAttempts < 1 {
			maxAttempts = 1
		}
		for attempts < maxAttempts {
			attempts++
			if err := ctx.Err(); err != nil {
				lastErr = err
				break
			}
			lastErr = c.runStep(ctx, s)
			if lastErr == nil {
				break
			}
		}

		result := StepResult{
			Index:    s.index,
			Verb:     s.verb,
			Success:  lastErr == nil,
			Attempts: attempts,
			Duration: time.Since(stepStart),
		}
		if lastErr != nil {
			result.Error = lastErr.Error()
			allOK = false
		}
		results = append(results, result)
		if lastErr != nil {
			break
		}
	}

	return Report{AllSucceeded: allOK, Steps: results, TotalDuration: time.Since(start)}, nil
}

func (c *Compiled) runStep(ctx context.Context, s step) error {
	switch s.verb {
	case "write":
		if len(s.args) < 1 {
			return fmt.Errorf("write requires a path")
		}
		path := s.args[0]
		content := strings.Join(s.args[1:], " ")
		_, err := c.sandbox.Exec(ctx, []string{"sh", "-c", `printf '%s' "$1" > "$2"`, "sh", content, path}, c.workspace)
		return err
	case "read":
		if len(s.args) < 1 {
			return fmt.Errorf("read requires a path")
		}
		result, err := c.sandbox.Exec(ctx, []string{"cat", s.args[0]}, c.workspace)
		if err != nil {
			return err
		}
		if result.ExitCode != 0 {
			return fmt.Errorf("read failed: %s", result.Stderr)
		}
		return nil
	case "mkdir":
		if len(s.args) < 1 {
			return fmt.Errorf("mkdir requires a path")
		}
		result, err := c.sandbox.Exec(ctx, []string{"mkdir", "-p", s.args[0]}, c.workspace)
		if err != nil {
			return err
		}
		if result.ExitCode != 0 {
			return fmt.Errorf("mkdir failed: %s", result.Stderr)
		}
		return nil
	case "copy":
		if len(s.args) < 2 {
			return fmt.Errorf("copy requires src and dst")
		}
		result, err := c.sandbox.Exec(ctx, []string{"cp", s.args[0], s.args[1]}, c.workspace)
		if err != nil {
			return err
		}
		if result.ExitCode != 0 {
			return fmt.Errorf("copy failed: %s", result.Stderr)
		}
		return nil
	case "run":
		result, err := c.sandbox.Exec(ctx, s.args, c.workspace)
		if err != nil {
			return err
		}
		if result.ExitCode != 0 {
			return fmt.Errorf("run failed: %s", result.Stderr)
		}
		return nil
	default:
		return fmt.Errorf("unreachable verb %q", s.verb)
	}
}
