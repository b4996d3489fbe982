package app

import (
	"fmt"

	"gantry/internal/gate"
	dockerruntime "gantry/internal/runtime"
	"gantry/internal/run"
	"gantry/internal/scm"
	"gantry/internal/source"
	"gantry/internal/ui"
	"gantry/pkg/pipeline"
	pkgruntime "gantry/pkg/runtime"
)

// StageFactory builds the stage implementations, approver, and notifier a
// run needs from the pipeline declaration. This decouples the orchestrator
// from concrete stage backends; the container runtime is only created when
// a declared stage actually needs one.
type StageFactory struct {
	containerRuntime pkgruntime.ContainerRuntime
}

// NewStageFactory creates a new instance of StageFactory.
func NewStageFactory() *StageFactory {
	return &StageFactory{}
}

// BuildStages turns the declaration into an ordered stage list plus the
// matching run-record declarations. A checkout block becomes the implicit
// first stage.
func (f *StageFactory) BuildStages(p *pipeline.Pipeline, workdir string) ([]Stage, []run.StageDecl, error) {
	var stages []Stage
	var decls []run.StageDecl

	if p.Spec.Checkout != nil {
		stages = append(stages, newCheckoutStage(p.Spec.Checkout, source.NewGitCloner(), workdir))
		decls = append(decls, run.StageDecl{Name: CheckoutStageName})
	}

	for _, spec := range p.Spec.Stages {
		env := mergeEnv(p.Spec.Env, spec.Env)

		var stage Stage
		if spec.Container != nil {
			stage = newContainerStage(spec, f.getContainerRuntime, workdir, env)
		} else {
			stage = newCommandStage(spec, workdir, env)
		}

		stages = append(stages, stage)
		decls = append(decls, run.StageDecl{Name: spec.Name, Gated: spec.HasGate()})
	}

	return stages, decls, nil
}

// getContainerRuntime lazily creates the Docker runtime, shared by every
// container stage in the run.
func (f *StageFactory) getContainerRuntime() (pkgruntime.ContainerRuntime, error) {
	if f.containerRuntime != nil {
		return f.containerRuntime, nil
	}
	rt, err := dockerruntime.NewDockerRuntime()
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker runtime: %w", err)
	}
	f.containerRuntime = rt
	return rt, nil
}

// GetApprover returns the approver matching how the run was invoked:
// auto-approve answers every gate, an attached terminal prompts the
// operator, and an unattended run without auto-approve fails closed.
func (f *StageFactory) GetApprover(autoApprove bool) gate.Approver {
	if autoApprove {
		return &gate.AutoApprover{Decision: gate.DecisionProceed}
	}
	if ui.IsInteractive() {
		return gate.NewConsoleApprover()
	}
	return &gate.NonInteractiveApprover{}
}

// GetNotifier returns the commit-status notifier for the declaration, or
// nil when no notify block is configured.
func (f *StageFactory) GetNotifier(cfg *pipeline.Notify) (scm.Notifier, error) {
	if cfg == nil {
		return nil, nil
	}
	switch cfg.Provider {
	case "gitlab":
		notifier, err := scm.NewGitLabNotifier(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create GitLab notifier: %w", err)
		}
		return notifier, nil
	default:
		return nil, fmt.Errorf("unsupported notify provider: %s", cfg.Provider)
	}
}
