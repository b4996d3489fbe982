package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"gantry/internal/app"
	gantryerrors "gantry/internal/errors"
	"gantry/internal/parser"
)

// version is set at build time via ldflags
var version = "dev"

var rootCmd = &cobra.Command{
	Use:     "gantry",
	Short:   "Gantry - gated pipeline executor for external DevOps tools",
	Version: version,
	Long: `Gantry runs a declared, ordered list of pipeline stages - shell commands
and containerized tool invocations - strictly in sequence, with interactive
approval gates after fallible security-scan stages.`,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the declared pipeline stages in order",
	Long: `Run executes every declared stage strictly in declaration order. A stage
failure aborts the run unless the stage carries an approval gate, in which
case the run pauses for an operator decision. Progress is checkpointed so an
interrupted run resumes past completed stages.`,
	Run: func(cmd *cobra.Command, args []string) {
		file, _ := cmd.Flags().GetString("file")
		if file == "" {
			fmt.Fprintln(os.Stderr, "Error: --file flag is required")
			os.Exit(1)
		}

		dryRun, _ := cmd.Flags().GetBool("dry-run")
		autoApprove, _ := cmd.Flags().GetBool("auto-approve")
		retainState, _ := cmd.Flags().GetBool("retain-state")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		opts := app.RunOptions{
			DryRun:      dryRun,
			AutoApprove: autoApprove,
			RetainState: retainState,
		}
		if err := app.Run(ctx, file, opts); err != nil {
			gantryerrors.HandleError(err)
			os.Exit(1)
		}
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Parse and validate a pipeline declaration",
	Long: `Validate reads the pipeline YAML file and checks its structure without
executing any stage.`,
	Run: func(cmd *cobra.Command, args []string) {
		file, _ := cmd.Flags().GetString("file")
		if file == "" {
			fmt.Fprintln(os.Stderr, "Error: --file flag is required")
			os.Exit(1)
		}

		p, err := parser.Parse(file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			os.Exit(1)
		}

		fmt.Printf("Pipeline '%s' is valid: %d stages declared\n", p.Metadata.Name, len(p.Spec.Stages))
	},
}

var stagesCmd = &cobra.Command{
	Use:   "stages",
	Short: "List the declared stages and their gates",
	Run: func(cmd *cobra.Command, args []string) {
		file, _ := cmd.Flags().GetString("file")
		if file == "" {
			fmt.Fprintln(os.Stderr, "Error: --file flag is required")
			os.Exit(1)
		}

		p, err := parser.Parse(file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			os.Exit(1)
		}

		position := 1
		if p.Spec.Checkout != nil {
			fmt.Printf("%d. %s (implicit)\n", position, app.CheckoutStageName)
			position++
		}
		for _, stage := range p.Spec.Stages {
			marker := ""
			if stage.HasGate() {
				marker = " [gated]"
			}
			fmt.Printf("%d. %s%s\n", position, stage.Name, marker)
			position++
		}
	},
}

func init() {
	runCmd.Flags().StringP("file", "f", "", "Path to the pipeline YAML file (required)")
	runCmd.Flags().Bool("dry-run", false, "Simulate the run without invoking any tool")
	runCmd.Flags().Bool("auto-approve", false, "Answer 'proceed' at every approval gate")
	runCmd.Flags().Bool("retain-state", false, "Keep the state file after successful completion for auditing purposes")
	if err := runCmd.MarkFlagRequired("file"); err != nil {
		slog.Error("Failed to mark file flag as required for run command", "error", err)
	}
	rootCmd.AddCommand(runCmd)

	validateCmd.Flags().StringP("file", "f", "", "Path to the pipeline YAML file (required)")
	if err := validateCmd.MarkFlagRequired("file"); err != nil {
		slog.Error("Failed to mark file flag as required for validate command", "error", err)
	}
	rootCmd.AddCommand(validateCmd)

	stagesCmd.Flags().StringP("file", "f", "", "Path to the pipeline YAML file (required)")
	if err := stagesCmd.MarkFlagRequired("file"); err != nil {
		slog.Error("Failed to mark file flag as required for stages command", "error", err)
	}
	rootCmd.AddCommand(stagesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
