package sandbox

import (
	"context"
	"testing"
)

type fakeSandbox struct {
	execErr error
	exit    int
}

func (s *fakeSandbox) ID() string { return "fake" }

func (s *fakeSandbox) Exec(_ context.Context, _ []string, _ string) (ExecResult, error) {
	if s.execErr != nil {
		return ExecResult{}, s.execErr
	}
	return ExecResult{ExitCode: s.exit}, nil
}

func TestCompile_RejectsUnknownVerb(t *testing.T) {
	_, err := Compile("frobnicate /tmp/x", &fakeSandbox{}, "/workspace", CompileOptions{})
	if err == nil {
		t.Fatalf("expected an error for an unknown verb")
	}
}

func TestCompile_RejectsUnlistedBinary(t *testing.T) {
	_, err := Compile("run rm -rf /", &fakeSandbox{}, "/workspace", CompileOptions{AllowedBinaries: []string{"ls"}})
	if err == nil {
		t.Fatalf("expected an error for a non-allow-listed binary")
	}
}

func TestCompile_EmptyScriptRejected(t *testing.T) {
	_, err := Compile("  \n  # comment only\n", &fakeSandbox{}, "/workspace", CompileOptions{})
	if err == nil {
		t.Fatalf("expected an error for a script with no steps")
	}
}

func TestExecute_AllStepsSucceed(t *testing.T) {
	compiled, err := Compile("mkdir /tmp/a\nrun ls -la", &fakeSandbox{}, "/workspace", CompileOptions{AllowedBinaries: []string{"ls"}, MaxRetries: 1})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	report, err := compiled.Execute(context.Background())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !report.AllSucceeded {
		t.Fatalf("expected all steps to succeed, got %+v", report.Steps)
	}
	if len(report.Steps) != 2 {
		t.Fatalf("expected 2 step results, got %d", len(report.Steps))
	}
}

func TestExecute_StepFailureStopsAndAggregatesError(t *testing.T) {
	compiled, err := Compile("mkdir /tmp/a\nmkdir /tmp/b", &fakeSandbox{exit: 1}, "/workspace", CompileOptions{MaxRetries: 2})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	report, err := compiled.Execute(context.Background())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if report.AllSucceeded {
		t.Fatalf("expected failure to be recorded")
	}
	if len(report.Steps) != 1 {
		t.Fatalf("expected execution to stop after the first failing step, got %d results", len(report.Steps))
	}
	if report.Steps[0].Attempts != 2 {
		t.Fatalf("expected 2 attempts before giving up, got %d", report.Steps[0].Attempts)
	}
}
