package app

import (
	"context"
	"fmt"
	"log/slog"

	gantryerrors "gantry/internal/errors"
	"gantry/internal/gate"
	"gantry/internal/run"
)

// Executor walks the run record through the declared stages strictly in
// order. A non-gated failure aborts the run immediately; a gated failure
// suspends the run on the approver until the operator decides.
type Executor struct {
	approver     gate.Approver
	dryRun       bool
	onCheckpoint func(stageName string) error
}

// NewExecutor creates an executor. onCheckpoint is called after each stage
// reaches a terminal status so the caller can persist resume state; it may
// be nil.
func NewExecutor(approver gate.Approver, dryRun bool, onCheckpoint func(stageName string) error) *Executor {
	return &Executor{
		approver:     approver,
		dryRun:       dryRun,
		onCheckpoint: onCheckpoint,
	}
}

// Execute runs the remaining stages of r. The stage slice must align with
// the run record, one implementation per declared stage.
func (e *Executor) Execute(ctx context.Context, r *run.PipelineRun, stages []Stage) error {
	if len(stages) != len(r.Stages) {
		return fmt.Errorf("stage list does not match run record: %d stages vs %d records", len(stages), len(r.Stages))
	}

	for !r.Done() {
		i := r.Current
		stage := stages[i]

		if err := r.Begin(i); err != nil {
			return fmt.Errorf("cannot begin stage %q: %w", stage.Name(), err)
		}

		fmt.Printf("%s🚧 Stage %d/%d: %s%s\n", ColorCyan, i+1, len(stages), stage.Name(), ColorReset)
		slog.Info("Stage started", "runId", r.ID, "stage", stage.Name(), "index", i)

		if e.dryRun {
			e.simulateStage(r, i, stage)
			continue
		}

		execErr := stage.Execute(ctx)
		if execErr == nil {
			if err := r.Succeed(i); err != nil {
				return err
			}
			fmt.Printf("%s✅ Stage %s succeeded%s\n", ColorGreen, stage.Name(), ColorReset)
			slog.Info("Stage succeeded", "runId", r.ID, "stage", stage.Name())
			if err := e.checkpoint(stage.Name()); err != nil {
				return err
			}
			continue
		}

		if err := r.Fail(i); err != nil {
			return err
		}
		slog.Error("Stage failed", "runId", r.ID, "stage", stage.Name(), "error", execErr)

		g := stage.Gate()
		if g == nil {
			// Fatal: no retry, no remediation. Later stages stay pending.
			return gantryerrors.NewStageError(
				fmt.Sprintf("Stage '%s' failed", stage.Name()),
				execErr.Error(),
				"Inspect the stage output in the log and re-run; completed stages will be skipped",
				execErr,
			)
		}

		// Gated failure: suspend the run on the approver. Abort is always
		// a real option; an approver error resolves as decline.
		fmt.Printf("%s⏸️  Stage %s failed; awaiting operator approval%s\n", ColorYellow, stage.Name(), ColorReset)
		slog.Info("Stage awaiting approval", "runId", r.ID, "stage", stage.Name())

		decision, decideErr := e.approver.Decide(ctx, gate.Request{
			Stage:   stage.Name(),
			Prompt:  g.Prompt,
			OKLabel: g.OKLabel,
		})
		if decideErr != nil || decision != gate.DecisionProceed {
			if err := r.Resolve(i, false, string(gate.DecisionAbort)); err != nil {
				return err
			}
			slog.Info("Operator declined approval gate", "runId", r.ID, "stage", stage.Name(), "error", decideErr)
			if decideErr == nil {
				decideErr = execErr
			}
			return gantryerrors.NewGateDeclinedError(
				fmt.Sprintf("Run aborted at stage '%s'", stage.Name()),
				fmt.Sprintf("Stage failed and the approval gate was declined: %s", execErr),
				"Fix the reported findings and re-run the pipeline",
				decideErr,
			)
		}

		if err := r.Resolve(i, true, string(decision)); err != nil {
			return err
		}
		fmt.Printf("%s⚠️  Operator approved continuing past failed stage %s%s\n", ColorYellow, stage.Name(), ColorReset)
		slog.Warn("Operator approved continuing past failed stage", "runId", r.ID, "stage", stage.Name(), "decision", decision)
		if err := e.checkpoint(stage.Name()); err != nil {
			return err
		}
	}

	return nil
}

// simulateStage marks a stage successful without invoking its tool.
func (e *Executor) simulateStage(r *run.PipelineRun, i int, stage Stage) {
	fmt.Printf("%s🔍 DRY RUN: Would execute stage '%s'%s\n", ColorYellow, stage.Name(), ColorReset)
	if g := stage.Gate(); g != nil {
		fmt.Printf("%s🔍 DRY RUN: Would pause for approval if stage fails: %q%s\n", ColorYellow, g.Prompt, ColorReset)
	}
	// Succeed cannot fail here: the stage was just moved to running.
	_ = r.Succeed(i)
}

func (e *Executor) checkpoint(stageName string) error {
	if e.onCheckpoint == nil {
		return nil
	}
	if err := e.onCheckpoint(stageName); err != nil {
		return fmt.Errorf("failed to save state after stage %q: %w", stageName, err)
	}
	return nil
}
