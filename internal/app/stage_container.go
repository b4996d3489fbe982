package app

import (
	"context"
	"fmt"
	"path/filepath"

	gantryerrors "gantry/internal/errors"
	"gantry/pkg/pipeline"
	"gantry/pkg/runtime"
)

const (
	// ContainerWorkingDirectory is where the pipeline working tree is
	// mounted inside stage containers.
	ContainerWorkingDirectory = "/workspace"
)

// containerStage runs the stage command inside a container image through
// the container runtime, mounting the working tree at /workspace. The
// runtime is obtained lazily so dry runs and resumed runs that skip every
// container stage never need a reachable daemon.
type containerStage struct {
	spec       pipeline.StageSpec
	getRuntime func() (runtime.ContainerRuntime, error)
	workdir    string
	env        map[string]string
}

func newContainerStage(spec pipeline.StageSpec, getRuntime func() (runtime.ContainerRuntime, error), workdir string, env map[string]string) *containerStage {
	return &containerStage{spec: spec, getRuntime: getRuntime, workdir: workdir, env: env}
}

func (s *containerStage) Name() string {
	return s.spec.Name
}

func (s *containerStage) Gate() *pipeline.Gate {
	return s.spec.Gate
}

func (s *containerStage) Execute(ctx context.Context) error {
	containerRuntime, err := s.getRuntime()
	if err != nil {
		return gantryerrors.NewRuntimeError(
			"Container runtime unavailable",
			err.Error(),
			"Check that the Docker daemon is running and reachable",
			err,
		)
	}

	if err := containerRuntime.PullImage(ctx, s.spec.Container.Image); err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}

	absWorkdir, err := filepath.Abs(s.workdir)
	if err != nil {
		return fmt.Errorf("failed to resolve working directory: %w", err)
	}

	opts := runtime.RunOptions{
		Image:   s.spec.Container.Image,
		Command: s.spec.Container.Command,
		VolumeMounts: map[string]string{
			absWorkdir: ContainerWorkingDirectory,
		},
		EnvVars:          s.env,
		WorkingDirectory: ContainerWorkingDirectory,
	}

	reader, err := containerRuntime.RunContainer(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to run container: %w", err)
	}

	if err := streamOutput(reader, s.spec.Name, s.reportPath(), true); err != nil {
		reader.Close() // Best effort cleanup
		return err
	}

	// Close waits for the container; a non-zero exit surfaces here.
	if err := reader.Close(); err != nil {
		return fmt.Errorf("container command failed: %w", err)
	}

	return nil
}

func (s *containerStage) reportPath() string {
	if s.spec.Report == "" {
		return ""
	}
	return filepath.Join(s.workdir, s.spec.Report)
}
