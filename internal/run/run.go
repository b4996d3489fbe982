package run

import (
	"fmt"
	"time"
)

// StageStatus represents the lifecycle status of a single stage record.
type StageStatus string

const (
	StagePending          StageStatus = "pending"
	StageRunning          StageStatus = "running"
	StageAwaitingApproval StageStatus = "awaiting_approval"
	StageSucceeded        StageStatus = "succeeded"
	StageFailed           StageStatus = "failed"
	StageSkipped          StageStatus = "skipped"
)

// Status represents the overall status of one pipeline run.
type Status string

const (
	RunRunning   Status = "running"
	RunCompleted Status = "completed"
	RunAborted   Status = "aborted"
)

// StageRecord tracks one declared stage through a run. Decision holds the
// operator's textual choice when an approval gate resolved the stage.
type StageRecord struct {
	Name     string
	Gated    bool
	Status   StageStatus
	Decision string
}

// PipelineRun is the per-invocation execution record. It is created fresh
// for every invocation, mutated only by the executor, and discarded after
// completion. The state file checkpoints progress between invocations; the
// run record itself is never persisted.
type PipelineRun struct {
	ID        string
	Pipeline  string
	Stages    []StageRecord
	Current   int
	Status    Status
	CreatedAt time.Time
}

// StageDecl is the minimal declaration the run record needs per stage.
type StageDecl struct {
	Name  string
	Gated bool
}

// New creates a PipelineRun with every stage pending and the run running.
func New(id, pipelineName string, decls []StageDecl) *PipelineRun {
	stages := make([]StageRecord, len(decls))
	for i, d := range decls {
		stages[i] = StageRecord{Name: d.Name, Gated: d.Gated, Status: StagePending}
	}
	return &PipelineRun{
		ID:        id,
		Pipeline:  pipelineName,
		Stages:    stages,
		Current:   0,
		Status:    RunRunning,
		CreatedAt: time.Now(),
	}
}

// Begin transitions stage i from pending to running. Stages execute
// strictly in declaration order: a stage may only begin when it is the
// current stage and every earlier stage is terminal.
func (r *PipelineRun) Begin(i int) error {
	if err := r.checkIndex(i); err != nil {
		return err
	}
	if r.Status != RunRunning {
		return fmt.Errorf("run is %s, cannot begin stage %q", r.Status, r.Stages[i].Name)
	}
	if i != r.Current {
		return fmt.Errorf("stage %q is out of order: current stage is %q", r.Stages[i].Name, r.Stages[r.Current].Name)
	}
	if r.Stages[i].Status != StagePending {
		return fmt.Errorf("stage %q is %s, expected pending", r.Stages[i].Name, r.Stages[i].Status)
	}
	r.Stages[i].Status = StageRunning
	return nil
}

// Succeed marks a running stage as succeeded and advances the run.
func (r *PipelineRun) Succeed(i int) error {
	if err := r.checkRunning(i); err != nil {
		return err
	}
	r.Stages[i].Status = StageSucceeded
	r.advance()
	return nil
}

// Fail records a stage action failure. A gated stage moves to
// awaiting_approval and the run pauses for an operator decision; a
// non-gated failure is fatal and aborts the run immediately.
func (r *PipelineRun) Fail(i int) error {
	if err := r.checkRunning(i); err != nil {
		return err
	}
	if r.Stages[i].Gated {
		r.Stages[i].Status = StageAwaitingApproval
		return nil
	}
	r.Stages[i].Status = StageFailed
	r.Status = RunAborted
	return nil
}

// Resolve applies the operator decision to a stage awaiting approval.
// Proceed marks the stage terminal and the run continues; decline fails
// the stage and aborts the run. The textual decision is retained on the
// stage record either way.
func (r *PipelineRun) Resolve(i int, proceed bool, decision string) error {
	if err := r.checkIndex(i); err != nil {
		return err
	}
	if r.Stages[i].Status != StageAwaitingApproval {
		return fmt.Errorf("stage %q is %s, expected awaiting_approval", r.Stages[i].Name, r.Stages[i].Status)
	}
	r.Stages[i].Decision = decision
	if proceed {
		r.Stages[i].Status = StageSucceeded
		r.advance()
		return nil
	}
	r.Stages[i].Status = StageFailed
	r.Status = RunAborted
	return nil
}

// Skip marks the current pending stage as skipped (already completed in a
// prior invocation) and advances the run. Used only on resume.
func (r *PipelineRun) Skip(i int) error {
	if err := r.checkIndex(i); err != nil {
		return err
	}
	if i != r.Current || r.Stages[i].Status != StagePending {
		return fmt.Errorf("stage %q cannot be skipped", r.Stages[i].Name)
	}
	r.Stages[i].Status = StageSkipped
	r.advance()
	return nil
}

// advance moves Current past the finished stage and completes the run when
// every stage is terminal.
func (r *PipelineRun) advance() {
	r.Current++
	if r.Current >= len(r.Stages) {
		r.Status = RunCompleted
	}
}

// Done reports whether the run reached a terminal status.
func (r *PipelineRun) Done() bool {
	return r.Status == RunCompleted || r.Status == RunAborted
}

// StatusSequence returns the per-stage statuses in declaration order.
func (r *PipelineRun) StatusSequence() []StageStatus {
	seq := make([]StageStatus, len(r.Stages))
	for i, s := range r.Stages {
		seq[i] = s.Status
	}
	return seq
}

func (r *PipelineRun) checkIndex(i int) error {
	if i < 0 || i >= len(r.Stages) {
		return fmt.Errorf("stage index %d out of range (%d stages)", i, len(r.Stages))
	}
	return nil
}

func (r *PipelineRun) checkRunning(i int) error {
	if err := r.checkIndex(i); err != nil {
		return err
	}
	if r.Stages[i].Status != StageRunning {
		return fmt.Errorf("stage %q is %s, expected running", r.Stages[i].Name, r.Stages[i].Status)
	}
	return nil
}
