package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"gantry/pkg/pipeline"
)

// commandStage runs a host command as one pipeline stage. Output is
// streamed to the log and optionally captured to the stage's report file.
type commandStage struct {
	spec    pipeline.StageSpec
	workdir string
	env     map[string]string
}

func newCommandStage(spec pipeline.StageSpec, workdir string, env map[string]string) *commandStage {
	return &commandStage{spec: spec, workdir: workdir, env: env}
}

func (s *commandStage) Name() string {
	return s.spec.Name
}

func (s *commandStage) Gate() *pipeline.Gate {
	return s.spec.Gate
}

func (s *commandStage) Execute(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, s.spec.Run[0], s.spec.Run[1:]...)
	cmd.Dir = s.workdir
	cmd.Env = mergedEnviron(s.env)

	// One pipe carries stdout and stderr interleaved, matching how the
	// container runtime streams combined output.
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start command %q: %w", s.spec.Run[0], err)
	}

	done := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		pw.Close()
		done <- err
	}()

	streamErr := streamOutput(pr, s.spec.Name, s.reportPath(), false)
	if streamErr != nil {
		// Nothing drains the pipe after a stream error; close the read end
		// so the command's writes fail and Wait can return.
		pr.CloseWithError(streamErr)
	}
	waitErr := <-done

	if waitErr != nil {
		return fmt.Errorf("command %q failed: %w", s.spec.Run[0], waitErr)
	}
	return streamErr
}

func (s *commandStage) reportPath() string {
	if s.spec.Report == "" {
		return ""
	}
	return filepath.Join(s.workdir, s.spec.Report)
}

// mergedEnviron layers the pipeline and stage environment over the process
// environment. Values are passed through opaquely; tool tokens and API keys
// are the tools' business.
func mergedEnviron(env map[string]string) []string {
	merged := os.Environ()
	for key, value := range env {
		merged = append(merged, fmt.Sprintf("%s=%s", key, value))
	}
	return merged
}

// mergeEnv combines the pipeline-level and stage-level environment maps,
// stage values winning.
func mergeEnv(base, override map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}
