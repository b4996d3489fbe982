package run

import (
	"reflect"
	"testing"
)

func fiveStageDecls() []StageDecl {
	return []StageDecl{
		{Name: "checkout"},
		{Name: "analyze"},
		{Name: "scan", Gated: true},
		{Name: "build"},
		{Name: "push"},
	}
}

func TestNew_AllStagesPending(t *testing.T) {
	r := New("run-1", "test", fiveStageDecls())

	if r.Status != RunRunning {
		t.Errorf("Expected run status %s, got %s", RunRunning, r.Status)
	}
	if r.Current != 0 {
		t.Errorf("Expected current index 0, got %d", r.Current)
	}
	for i, s := range r.Stages {
		if s.Status != StagePending {
			t.Errorf("Stage %d expected pending, got %s", i, s.Status)
		}
	}
}

func TestBegin_EnforcesDeclarationOrder(t *testing.T) {
	r := New("run-1", "test", fiveStageDecls())

	if err := r.Begin(1); err == nil {
		t.Error("Expected error when beginning a stage out of order")
	}
	if err := r.Begin(0); err != nil {
		t.Errorf("Unexpected error beginning current stage: %s", err)
	}
	if err := r.Begin(0); err == nil {
		t.Error("Expected error when beginning an already running stage")
	}
}

func TestNonGatedFailure_AbortsRun(t *testing.T) {
	r := New("run-1", "test", fiveStageDecls())

	if err := r.Begin(0); err != nil {
		t.Fatalf("Begin failed: %s", err)
	}
	if err := r.Fail(0); err != nil {
		t.Fatalf("Fail failed: %s", err)
	}

	if r.Status != RunAborted {
		t.Errorf("Expected run status %s, got %s", RunAborted, r.Status)
	}
	if r.Stages[0].Status != StageFailed {
		t.Errorf("Expected stage status %s, got %s", StageFailed, r.Stages[0].Status)
	}

	// No later stage may enter running after an abort.
	if err := r.Begin(1); err == nil {
		t.Error("Expected error when beginning a stage after run aborted")
	}
	for i := 1; i < len(r.Stages); i++ {
		if r.Stages[i].Status != StagePending {
			t.Errorf("Stage %d expected pending after abort, got %s", i, r.Stages[i].Status)
		}
	}
}

func TestGatedFailure_AwaitsApproval(t *testing.T) {
	r := New("run-1", "test", []StageDecl{{Name: "scan", Gated: true}})

	if err := r.Begin(0); err != nil {
		t.Fatalf("Begin failed: %s", err)
	}
	if err := r.Fail(0); err != nil {
		t.Fatalf("Fail failed: %s", err)
	}

	if r.Stages[0].Status != StageAwaitingApproval {
		t.Errorf("Expected stage status %s, got %s", StageAwaitingApproval, r.Stages[0].Status)
	}
	if r.Status != RunRunning {
		t.Errorf("Expected run still %s while awaiting approval, got %s", RunRunning, r.Status)
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name          string
		proceed       bool
		wantStage     StageStatus
		wantRun       Status
		wantNextBegin bool
	}{
		{
			name:          "Proceed continues the run",
			proceed:       true,
			wantStage:     StageSucceeded,
			wantRun:       RunRunning,
			wantNextBegin: true,
		},
		{
			name:          "Decline aborts the run",
			proceed:       false,
			wantStage:     StageFailed,
			wantRun:       RunAborted,
			wantNextBegin: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New("run-1", "test", []StageDecl{
				{Name: "scan", Gated: true},
				{Name: "build"},
			})
			if err := r.Begin(0); err != nil {
				t.Fatalf("Begin failed: %s", err)
			}
			if err := r.Fail(0); err != nil {
				t.Fatalf("Fail failed: %s", err)
			}

			decision := "abort"
			if tt.proceed {
				decision = "proceed"
			}
			if err := r.Resolve(0, tt.proceed, decision); err != nil {
				t.Fatalf("Resolve failed: %s", err)
			}

			if r.Stages[0].Status != tt.wantStage {
				t.Errorf("Expected stage status %s, got %s", tt.wantStage, r.Stages[0].Status)
			}
			if r.Stages[0].Decision != decision {
				t.Errorf("Expected recorded decision %q, got %q", decision, r.Stages[0].Decision)
			}
			if r.Status != tt.wantRun {
				t.Errorf("Expected run status %s, got %s", tt.wantRun, r.Status)
			}

			err := r.Begin(1)
			if tt.wantNextBegin && err != nil {
				t.Errorf("Expected next stage to begin, got error: %s", err)
			}
			if !tt.wantNextBegin && err == nil {
				t.Error("Expected next stage begin to fail after abort")
			}
		})
	}
}

func TestResolve_RequiresAwaitingApproval(t *testing.T) {
	r := New("run-1", "test", fiveStageDecls())

	if err := r.Resolve(2, true, "proceed"); err == nil {
		t.Error("Expected error resolving a stage that is not awaiting approval")
	}
}

func TestSkip_AdvancesOnResume(t *testing.T) {
	r := New("run-1", "test", fiveStageDecls())

	if err := r.Skip(0); err != nil {
		t.Fatalf("Skip failed: %s", err)
	}
	if r.Stages[0].Status != StageSkipped {
		t.Errorf("Expected stage status %s, got %s", StageSkipped, r.Stages[0].Status)
	}
	if r.Current != 1 {
		t.Errorf("Expected current index 1, got %d", r.Current)
	}
}

func TestCompletion(t *testing.T) {
	r := New("run-1", "test", []StageDecl{{Name: "a"}, {Name: "b"}})

	for i := 0; i < 2; i++ {
		if err := r.Begin(i); err != nil {
			t.Fatalf("Begin(%d) failed: %s", i, err)
		}
		if err := r.Succeed(i); err != nil {
			t.Fatalf("Succeed(%d) failed: %s", i, err)
		}
	}

	if r.Status != RunCompleted {
		t.Errorf("Expected run status %s, got %s", RunCompleted, r.Status)
	}
	if !r.Done() {
		t.Error("Expected Done() after completion")
	}
}

// Re-running an identical definition with identical stage outcomes must
// yield an identical status sequence.
func TestIdenticalOutcomes_YieldIdenticalStatusSequence(t *testing.T) {
	execute := func() []StageStatus {
		r := New("run-x", "test", fiveStageDecls())
		for !r.Done() {
			i := r.Current
			if err := r.Begin(i); err != nil {
				t.Fatalf("Begin(%d) failed: %s", i, err)
			}
			if r.Stages[i].Name == "scan" {
				if err := r.Fail(i); err != nil {
					t.Fatalf("Fail(%d) failed: %s", i, err)
				}
				if err := r.Resolve(i, true, "proceed"); err != nil {
					t.Fatalf("Resolve(%d) failed: %s", i, err)
				}
				continue
			}
			if err := r.Succeed(i); err != nil {
				t.Fatalf("Succeed(%d) failed: %s", i, err)
			}
		}
		return r.StatusSequence()
	}

	first := execute()
	second := execute()

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Expected identical status sequences, got %v and %v", first, second)
	}
}
