package app

import (
	"context"

	"gantry/pkg/pipeline"
)

// Stage represents a single unit of pipeline work wrapping one external
// tool invocation. Each stage implementation provides a name, its optional
// approval gate, and execution logic.
type Stage interface {
	Name() string
	Gate() *pipeline.Gate
	Execute(ctx context.Context) error
}
