package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	gantryerrors "gantry/internal/errors"
	"gantry/internal/parser"
	"gantry/internal/run"
	"gantry/internal/scm"
)

const (
	// Color codes for console output
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorPurple = "\033[35m"
	ColorCyan   = "\033[36m"
	ColorWhite  = "\033[37m"
)

// RunOptions controls how the pipeline run is executed.
type RunOptions struct {
	DryRun      bool
	AutoApprove bool
	RetainState bool
}

// Run orchestrates one end-to-end pipeline execution: parse the
// declaration, build the stage list, resume from a prior checkpoint if one
// exists, and walk the stages through the executor. This function
// implements the Facade pattern over all internal components.
func Run(ctx context.Context, pipelinePath string, opts RunOptions) error {
	slog.Info("Starting Gantry run", "pipelinePath", pipelinePath, "dryRun", opts.DryRun)

	// Load existing state or create new state
	state, err := loadState()
	if err != nil {
		return gantryerrors.NewFileSystemError(
			"Failed to load execution state",
			err.Error(),
			fmt.Sprintf("Remove %s if it is corrupt and re-run", StateFileName),
			err,
		)
	}

	var isResume bool
	if state == nil {
		runID := uuid.New().String()
		state = newState(pipelinePath, runID)
		slog.Info("Starting new pipeline run", "runId", runID, "pipelinePath", pipelinePath)
	} else {
		isResume = true
		slog.Info("Resuming pipeline run", "runId", state.RunID, "completedStages", len(state.CompletedStages))
	}

	if opts.DryRun {
		fmt.Printf("%s🔍 DRY RUN MODE - No actual changes will be made%s\n", ColorYellow, ColorReset)
		fmt.Println()
	}

	if _, statErr := os.Stat(pipelinePath); os.IsNotExist(statErr) {
		return gantryerrors.NewPipelineError(
			"Pipeline declaration not found",
			fmt.Sprintf("no file at %s", pipelinePath),
			"Check the --file path",
			fmt.Errorf("pipeline file not found: %s", pipelinePath),
		)
	}

	// Parse the pipeline declaration
	p, err := parser.Parse(pipelinePath)
	if err != nil {
		return gantryerrors.NewParseError(
			"Failed to load pipeline declaration",
			err.Error(),
			"Check the pipeline file path and YAML structure",
			err,
		)
	}
	slog.Info("Pipeline declaration parsed", "name", p.Metadata.Name, "stages", len(p.Spec.Stages))

	workdir := p.Spec.Workdir
	if workdir == "" {
		workdir = "."
	}
	absWorkdir, err := filepath.Abs(workdir)
	if err != nil {
		return fmt.Errorf("failed to resolve working directory: %w", err)
	}

	// Build stages, approver, and notifier
	factory := NewStageFactory()
	stages, decls, err := factory.BuildStages(p, absWorkdir)
	if err != nil {
		return gantryerrors.NewConfigError(
			"Failed to assemble pipeline stages",
			err.Error(),
			"Check the stage declarations and that required backends are available",
			err,
		)
	}

	approver := factory.GetApprover(opts.AutoApprove)

	notifier, err := factory.GetNotifier(p.Spec.Notify)
	if err != nil {
		return gantryerrors.NewNotifyError(
			"Failed to configure status notification",
			err.Error(),
			"Check the notify block and GITLAB_PRIVATE_TOKEN",
			err,
		)
	}

	// Build the per-invocation run record
	r := run.New(state.RunID, p.Metadata.Name, decls)

	// Resume: skip stages completed in a prior invocation
	declaredNames := make([]string, len(decls))
	for i, d := range decls {
		declaredNames[i] = d.Name
	}
	if isResume {
		if err := state.matchesDeclaration(declaredNames); err != nil {
			return gantryerrors.NewConfigError(
				"State file does not match the pipeline declaration",
				err.Error(),
				fmt.Sprintf("Remove %s to start a fresh run", StateFileName),
				err,
			)
		}
		fmt.Printf("%s📋 State file found. Resuming from stage: %s%s\n", ColorYellow, state.NextStage(declaredNames), ColorReset)
		fmt.Println()
		for range state.CompletedStages {
			if err := r.Skip(r.Current); err != nil {
				return fmt.Errorf("failed to apply resume state: %w", err)
			}
		}
		for _, name := range state.CompletedStages {
			fmt.Printf("%s⏭️  Stage %s (skipped - already completed)%s\n", ColorGreen, name, ColorReset)
		}
	}

	publish(notifier, p.Metadata.Name, r.Status)

	checkpoint := func(stageName string) error {
		state.MarkCompleted(stageName)
		if opts.DryRun {
			return nil
		}
		return saveState(state)
	}

	executor := NewExecutor(approver, opts.DryRun, checkpoint)
	execErr := executor.Execute(ctx, r, stages)

	publish(notifier, p.Metadata.Name, r.Status)

	if execErr != nil {
		slog.Error("Pipeline run aborted", "runId", r.ID, "status", r.Status, "error", execErr)
		return execErr
	}

	// Clean up or retain the state file on success
	if !opts.DryRun {
		if opts.RetainState {
			if err := saveState(state); err != nil {
				slog.Warn("Failed to save final state", "error", err)
			} else {
				slog.Info("State file retained for auditing", "file", StateFileName)
			}
		} else {
			if err := removeStateFile(); err != nil {
				slog.Warn("Failed to clean up state file", "error", err)
			}
		}
	}

	if opts.DryRun {
		fmt.Printf("%s🎉 DRY RUN COMPLETED - All stages simulated successfully!%s\n", ColorGreen, ColorReset)
		fmt.Printf("%sNo tools were invoked and no reports were written.%s\n", ColorYellow, ColorReset)
	} else {
		fmt.Printf("%s🎉 PIPELINE RUN COMPLETED SUCCESSFULLY!%s\n", ColorGreen, ColorReset)
		fmt.Printf("%s✨ Pipeline '%s' finished with status: %s%s\n", ColorWhite, p.Metadata.Name, r.Status, ColorReset)
	}

	slog.Info("Pipeline run completed", "runId", r.ID, "pipeline", p.Metadata.Name, "status", r.Status, "dryRun", opts.DryRun)
	return nil
}

// publish reports the run status to the notifier when one is configured.
// Notification is best effort and never alters run control flow.
func publish(notifier scm.Notifier, pipelineName string, status run.Status) {
	if notifier == nil {
		return
	}
	if err := notifier.Publish(pipelineName, status); err != nil {
		slog.Warn("Failed to publish run status", "pipeline", pipelineName, "status", status, "error", err)
	}
}
