package gate

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Decision is the operator choice for a paused run.
type Decision string

const (
	DecisionProceed Decision = "proceed"
	DecisionAbort   Decision = "abort"
)

// Request carries the approval prompt presented to the operator.
type Request struct {
	Stage   string
	Prompt  string
	OKLabel string
}

// Approver supplies the operator decision for an approval gate. The
// executor blocks on Decide; implementations range from a terminal prompt
// to a scripted decision sequence in tests.
type Approver interface {
	Decide(ctx context.Context, req Request) (Decision, error)
}

// ConsoleApprover prompts on the terminal and blocks until the operator
// answers. There is deliberately no timeout: a gated run waits as long as
// the operator does.
type ConsoleApprover struct {
	in  io.Reader
	out io.Writer
}

// NewConsoleApprover creates an approver reading decisions from stdin.
func NewConsoleApprover() *ConsoleApprover {
	return &ConsoleApprover{in: os.Stdin, out: os.Stderr}
}

// Decide presents the prompt and reads lines until the operator gives a
// recognizable answer. The read runs in a goroutine so cancellation of the
// surrounding run still unblocks the suspension point.
func (a *ConsoleApprover) Decide(ctx context.Context, req Request) (Decision, error) {
	okLabel := req.OKLabel
	if okLabel == "" {
		okLabel = string(DecisionProceed)
	}

	type answer struct {
		decision Decision
		err      error
	}
	ch := make(chan answer, 1)

	go func() {
		scanner := bufio.NewScanner(a.in)
		for {
			fmt.Fprintf(a.out, "%s [%s/abort] (default: %s): ", req.Prompt, okLabel, okLabel)
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil {
					ch <- answer{DecisionAbort, fmt.Errorf("failed to read approval decision: %w", err)}
					return
				}
				// EOF with no answer: fail closed.
				ch <- answer{DecisionAbort, fmt.Errorf("approval input closed before a decision for stage %q", req.Stage)}
				return
			}
			switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
			case "", strings.ToLower(okLabel), "proceed", "y", "yes":
				ch <- answer{DecisionProceed, nil}
				return
			case "abort", "n", "no":
				ch <- answer{DecisionAbort, nil}
				return
			default:
				fmt.Fprintf(a.out, "Unrecognized answer. Enter '%s' or 'abort'.\n", okLabel)
			}
		}
	}()

	select {
	case ans := <-ch:
		return ans.decision, ans.err
	case <-ctx.Done():
		return DecisionAbort, ctx.Err()
	}
}

// AutoApprover answers every gate with a fixed decision. Used by
// --auto-approve; every bypassed gate is logged.
type AutoApprover struct {
	Decision Decision
}

func (a *AutoApprover) Decide(_ context.Context, req Request) (Decision, error) {
	slog.Warn("Approval gate auto-answered", "stage", req.Stage, "decision", a.Decision)
	return a.Decision, nil
}

// NonInteractiveApprover declines every gate. Selected when no terminal is
// attached and --auto-approve was not given, so an unattended run fails
// closed instead of hanging.
type NonInteractiveApprover struct{}

func (a *NonInteractiveApprover) Decide(_ context.Context, req Request) (Decision, error) {
	slog.Warn("Approval gate declined: no terminal attached", "stage", req.Stage)
	return DecisionAbort, nil
}
