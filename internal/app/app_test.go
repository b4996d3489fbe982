package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	gantryerrors "gantry/internal/errors"
)

func writeDeclaration(t *testing.T, dir, stagesYAML string) string {
	t.Helper()
	content := fmt.Sprintf(`
apiVersion: v1
kind: Pipeline
metadata:
  name: test-pipeline
  description: In-process facade test
spec:
  workdir: %s
  stages:
%s`, dir, stagesYAML)

	path := filepath.Join(dir, "gantry.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write declaration: %s", err)
	}
	return path
}

func TestRun_DryRun(t *testing.T) {
	withTempWorkdir(t)
	workdir := t.TempDir()
	path := writeDeclaration(t, workdir, `
    - name: analyze
      run: ["sh", "-c", "echo analyzing > analyzed.txt"]
    - name: build
      run: ["sh", "-c", "echo building"]
`)

	if err := Run(context.Background(), path, RunOptions{DryRun: true}); err != nil {
		t.Fatalf("Unexpected error: %s", err)
	}

	// Dry run must invoke no tool and write no state
	if _, err := os.Stat(filepath.Join(workdir, "analyzed.txt")); !os.IsNotExist(err) {
		t.Error("Expected no tool invocation in dry run")
	}
	if _, err := os.Stat(StateFileName); !os.IsNotExist(err) {
		t.Error("Expected no state file after dry run")
	}
}

func TestRun_CompletesAndCleansUpState(t *testing.T) {
	withTempWorkdir(t)
	workdir := t.TempDir()
	path := writeDeclaration(t, workdir, `
    - name: scan
      run: ["sh", "-c", "echo 'no findings'"]
      report: scan-report.txt
    - name: build
      run: ["sh", "-c", "echo built"]
`)

	if err := Run(context.Background(), path, RunOptions{}); err != nil {
		t.Fatalf("Unexpected error: %s", err)
	}

	data, err := os.ReadFile(filepath.Join(workdir, "scan-report.txt"))
	if err != nil {
		t.Fatalf("Expected scan report to be written: %s", err)
	}
	if !strings.Contains(string(data), "no findings") {
		t.Errorf("Unexpected report content: %q", string(data))
	}

	if _, err := os.Stat(StateFileName); !os.IsNotExist(err) {
		t.Error("Expected state file to be removed after completion")
	}
}

func TestRun_RetainState(t *testing.T) {
	withTempWorkdir(t)
	workdir := t.TempDir()
	path := writeDeclaration(t, workdir, `
    - name: build
      run: ["sh", "-c", "true"]
`)

	if err := Run(context.Background(), path, RunOptions{RetainState: true}); err != nil {
		t.Fatalf("Unexpected error: %s", err)
	}

	if _, err := os.Stat(StateFileName); err != nil {
		t.Errorf("Expected state file to be retained: %s", err)
	}
}

func TestRun_NonGatedFailureAbortsAndResumes(t *testing.T) {
	withTempWorkdir(t)
	workdir := t.TempDir()
	marker := filepath.Join(workdir, "marker")
	path := writeDeclaration(t, workdir, fmt.Sprintf(`
    - name: prepare
      run: ["sh", "-c", "echo prepared"]
    - name: flaky
      run: ["sh", "-c", "test -f %s"]
`, marker))

	// First run aborts at the flaky stage
	err := Run(context.Background(), path, RunOptions{})
	if err == nil {
		t.Fatal("Expected error but got none")
	}
	var gerr *gantryerrors.GantryError
	if !errors.As(err, &gerr) || !errors.Is(gerr.Type, gantryerrors.ErrStageFailed) {
		t.Errorf("Expected stage failure error, got: %s", err)
	}

	state, loadErr := loadState()
	if loadErr != nil || state == nil {
		t.Fatalf("Expected state file after aborted run, got state=%v err=%v", state, loadErr)
	}
	if len(state.CompletedStages) != 1 || state.CompletedStages[0] != "prepare" {
		t.Errorf("Expected completed stages [prepare], got %v", state.CompletedStages)
	}

	// Second run resumes past prepare and succeeds
	if err := os.WriteFile(marker, []byte("ok"), 0644); err != nil {
		t.Fatalf("Failed to create marker: %s", err)
	}
	if err := Run(context.Background(), path, RunOptions{}); err != nil {
		t.Fatalf("Expected resumed run to succeed, got: %s", err)
	}
	if _, err := os.Stat(StateFileName); !os.IsNotExist(err) {
		t.Error("Expected state file to be removed after resumed completion")
	}
}

func TestRun_GatedFailureWithAutoApprove(t *testing.T) {
	withTempWorkdir(t)
	workdir := t.TempDir()
	path := writeDeclaration(t, workdir, `
    - name: scan
      run: ["sh", "-c", "echo 'findings: 3'; exit 1"]
      report: scan-report.txt
      gate:
        prompt: "Scan reported findings. Proceed?"
        okLabel: proceed
    - name: build
      run: ["sh", "-c", "echo built > built.txt"]
`)

	if err := Run(context.Background(), path, RunOptions{AutoApprove: true}); err != nil {
		t.Fatalf("Expected auto-approved run to complete, got: %s", err)
	}

	if _, err := os.Stat(filepath.Join(workdir, "built.txt")); err != nil {
		t.Errorf("Expected build stage to run after approved gate: %s", err)
	}
	if _, err := os.Stat(filepath.Join(workdir, "scan-report.txt")); err != nil {
		t.Errorf("Expected scan report despite failure: %s", err)
	}
}

func TestRun_GatedFailureDeclinedWithoutTerminal(t *testing.T) {
	// Test processes have no TTY on stdin, so the factory selects the
	// fail-closed approver.
	withTempWorkdir(t)
	workdir := t.TempDir()
	path := writeDeclaration(t, workdir, `
    - name: scan
      run: ["sh", "-c", "exit 1"]
      gate:
        prompt: "Proceed?"
    - name: build
      run: ["sh", "-c", "echo built > built.txt"]
`)

	err := Run(context.Background(), path, RunOptions{})
	if err == nil {
		t.Fatal("Expected error but got none")
	}
	var gerr *gantryerrors.GantryError
	if !errors.As(err, &gerr) || !errors.Is(gerr.Type, gantryerrors.ErrGateDeclined) {
		t.Errorf("Expected gate declined error, got: %s", err)
	}
	if _, err := os.Stat(filepath.Join(workdir, "built.txt")); !os.IsNotExist(err) {
		t.Error("Expected build stage not to run after declined gate")
	}
}

func TestRun_InvalidDeclaration(t *testing.T) {
	withTempWorkdir(t)

	err := Run(context.Background(), "/nonexistent/gantry.yaml", RunOptions{})
	if err == nil {
		t.Fatal("Expected error but got none")
	}
	if !strings.Contains(err.Error(), "pipeline file not found") {
		t.Errorf("Unexpected error: %s", err)
	}
	var gerr *gantryerrors.GantryError
	if !errors.As(err, &gerr) || !errors.Is(gerr.Type, gantryerrors.ErrPipelineNotFound) {
		t.Errorf("Expected pipeline-not-found error kind, got: %s", err)
	}
}

func TestRun_CorruptStateFile(t *testing.T) {
	withTempWorkdir(t)

	if err := os.WriteFile(StateFileName, []byte("not json"), 0644); err != nil {
		t.Fatalf("Failed to write state file: %s", err)
	}

	err := Run(context.Background(), "gantry.yaml", RunOptions{})
	if err == nil {
		t.Fatal("Expected error but got none")
	}
	var gerr *gantryerrors.GantryError
	if !errors.As(err, &gerr) || !errors.Is(gerr.Type, gantryerrors.ErrFileSystemFailed) {
		t.Errorf("Expected filesystem error kind, got: %s", err)
	}
}

func TestRun_NotifyMisconfigured(t *testing.T) {
	withTempWorkdir(t)
	t.Setenv("GITLAB_PRIVATE_TOKEN", "")
	workdir := t.TempDir()
	content := fmt.Sprintf(`
apiVersion: v1
kind: Pipeline
metadata:
  name: test-pipeline
spec:
  workdir: %s
  notify:
    provider: gitlab
    url: https://gitlab.example.com
    project: group/app
    sha: abc123
  stages:
    - name: build
      run: ["sh", "-c", "true"]
`, workdir)
	path := filepath.Join(workdir, "gantry.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write declaration: %s", err)
	}

	err := Run(context.Background(), path, RunOptions{})
	if err == nil {
		t.Fatal("Expected error but got none")
	}
	var gerr *gantryerrors.GantryError
	if !errors.As(err, &gerr) || !errors.Is(gerr.Type, gantryerrors.ErrNotifyFailed) {
		t.Errorf("Expected notify error kind, got: %s", err)
	}
}

func TestRun_StateMismatchRejected(t *testing.T) {
	withTempWorkdir(t)
	workdir := t.TempDir()
	path := writeDeclaration(t, workdir, `
    - name: build
      run: ["sh", "-c", "true"]
`)

	stale := newState(path, "run-old")
	stale.MarkCompleted("no-longer-declared")
	if err := saveState(stale); err != nil {
		t.Fatalf("saveState failed: %s", err)
	}

	err := Run(context.Background(), path, RunOptions{})
	if err == nil {
		t.Fatal("Expected error but got none")
	}
	var gerr *gantryerrors.GantryError
	if !errors.As(err, &gerr) || !errors.Is(gerr.Type, gantryerrors.ErrConfigInvalid) {
		t.Errorf("Expected config error for state mismatch, got: %s", err)
	}
}
