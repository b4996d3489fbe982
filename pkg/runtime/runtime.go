package runtime

import (
	"context"
	"io"
)

// RunOptions defines the parameters for running a container.
type RunOptions struct {
	Image            string
	Command          []string
	VolumeMounts     map[string]string
	EnvVars          map[string]string
	WorkingDirectory string
}

// ContainerRuntime defines the contract for container operations.
// RunContainer returns a reader streaming the combined container output.
// Closing the reader waits for the container to finish and reports a
// non-zero exit as an error.
type ContainerRuntime interface {
	PullImage(ctx context.Context, image string) error
	RunContainer(ctx context.Context, opts RunOptions) (io.ReadCloser, error)
}
