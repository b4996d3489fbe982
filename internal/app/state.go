package app

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// ExecutionState is the resume checkpoint for a Gantry run. It records the
// stages that reached a terminal status, in order, so an interrupted run
// can skip them on the next invocation.
type ExecutionState struct {
	SchemaVersion   string    `json:"schema_version"`
	RunID           string    `json:"run_id"`
	PipelinePath    string    `json:"pipeline_path"`
	CompletedStages []string  `json:"completed_stages"`
	CreatedAt       time.Time `json:"created_at"`
	LastUpdatedAt   time.Time `json:"last_updated_at"`
}

const (
	StateFileName      = ".gantry.state.json"
	StateSchemaVersion = "1.0"
)

// loadState attempts to load the execution state from the state file.
// Returns nil if the file doesn't exist (fresh start).
func loadState() (*ExecutionState, error) {
	if _, err := os.Stat(StateFileName); os.IsNotExist(err) {
		return nil, nil // Fresh start - no state file exists
	}

	data, err := os.ReadFile(StateFileName)
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var state ExecutionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}

	return &state, nil
}

// saveState persists the execution state to the state file.
func saveState(state *ExecutionState) error {
	state.LastUpdatedAt = time.Now()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize state: %w", err)
	}

	if err := os.WriteFile(StateFileName, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}

	return nil
}

// newState creates a new execution state for a fresh run
func newState(pipelinePath, runID string) *ExecutionState {
	now := time.Now()
	return &ExecutionState{
		SchemaVersion: StateSchemaVersion,
		RunID:         runID,
		PipelinePath:  pipelinePath,
		CreatedAt:     now,
		LastUpdatedAt: now,
	}
}

// MarkCompleted appends a stage to the completed list.
func (s *ExecutionState) MarkCompleted(stageName string) {
	s.CompletedStages = append(s.CompletedStages, stageName)
}

// NextStage returns the name of the first stage a resumed run would
// execute, given the declared stage order.
func (s *ExecutionState) NextStage(declared []string) string {
	if s == nil || len(s.CompletedStages) == 0 {
		if len(declared) == 0 {
			return ""
		}
		return declared[0]
	}
	if len(s.CompletedStages) >= len(declared) {
		return "completed"
	}
	return declared[len(s.CompletedStages)]
}

// matchesDeclaration verifies the completed-stage prefix still lines up
// with the declared order. A declaration edit mid-run invalidates resume.
func (s *ExecutionState) matchesDeclaration(declared []string) error {
	if len(s.CompletedStages) > len(declared) {
		return fmt.Errorf("state file records %d completed stages but the pipeline declares only %d", len(s.CompletedStages), len(declared))
	}
	for i, name := range s.CompletedStages {
		if declared[i] != name {
			return fmt.Errorf("state file stage %q does not match declared stage %q at position %d", name, declared[i], i+1)
		}
	}
	return nil
}

// removeStateFile removes the state file after successful completion
func removeStateFile() error {
	if _, err := os.Stat(StateFileName); os.IsNotExist(err) {
		return nil // File doesn't exist, nothing to remove
	}

	if err := os.Remove(StateFileName); err != nil {
		return fmt.Errorf("failed to remove state file: %w", err)
	}

	return nil
}
