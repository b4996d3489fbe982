package app

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gantry/internal/runtime"
)

// streamOutput forwards stage output lines to the structured log and, when
// reportPath is set, writes the raw lines to the report file. The report
// content stays opaque: it is written for the operator, never parsed.
func streamOutput(reader io.Reader, stageName, reportPath string, scrub bool) error {
	var report *os.File
	if reportPath != "" {
		f, err := os.OpenFile(reportPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			return fmt.Errorf("failed to create report file %s: %w", reportPath, err)
		}
		defer f.Close()
		report = f
	}

	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		line := scanner.Text()

		if report != nil {
			if _, err := fmt.Fprintln(report, line); err != nil {
				return fmt.Errorf("failed to write report file %s: %w", reportPath, err)
			}
		}

		logLine := line
		if scrub {
			logLine = runtime.CleanLogLine(line)
		}
		if logLine != "" {
			slog.Info("Stage output", "stage", stageName, "line", logLine)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading stage output: %w", err)
	}

	return nil
}
