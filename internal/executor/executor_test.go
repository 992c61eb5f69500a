package executor

import (
	"context"
	"testing"
	"time"
)

func TestExecutor_CompletesSuccessfully(t *testing.T) {
	e := New()
	snap := e.SubmitSync(context.Background(), "t1", "echo", []string{"echo", "hello"}, "", 5*time.Second)
	if snap.Status != StatusCompleted {
		t.Fatalf("status = %v, want completed", snap.Status)
	}
	if snap.Stdout != "hello\n" {
		t.Errorf("stdout = %q", snap.Stdout)
	}
	if snap.ExitCode == nil || *snap.ExitCode != 0 {
		t.Errorf("exit code = %v, want 0", snap.ExitCode)
	}
}

func TestExecutor_NonzeroExitIsFailed(t *testing.T) {
	e := New()
	snap := e.SubmitSync(context.Background(), "t2", "false", []string{"sh", "-c", "exit 3"}, "", 5*time.Second)
	if snap.Status != StatusFailed {
		t.Fatalf("status = %v, want failed", snap.Status)
	}
	if snap.ExitCode == nil || *snap.ExitCode != 3 {
		t.Errorf("exit code = %v, want 3", snap.ExitCode)
	}
}

func TestExecutor_Timeout(t *testing.T) {
	e := New()
	snap := e.SubmitSync(context.Background(), "t3", "sleep", []string{"sleep", "5"}, "", 100*time.Millisecond)
	if snap.Status != StatusTimeout {
		t.Fatalf("status = %v, want timeout", snap.Status)
	}
}

func TestExecutor_Cancel(t *testing.T) {
	e := New()
	h := e.Submit("t4", "sleep", []string{"sleep", "5"}, "", 30*time.Second)
	time.Sleep(50 * time.Millisecond)
	if err := e.Cancel("t4"); err != nil {
		t.Fatal(err)
	}
	snap := <-h.Done
	if snap.Status != StatusKilled {
		t.Fatalf("status = %v, want killed", snap.Status)
	}
}

func TestExecutor_StdinPiped(t *testing.T) {
	e := New()
	snap := e.SubmitSync(context.Background(), "t5", "cat", []string{"cat"}, "piped input\n", 5*time.Second)
	if snap.Stdout != "piped input\n" {
		t.Errorf("stdout = %q", snap.Stdout)
	}
}

func TestTask_TerminalIsOneWay(t *testing.T) {
	task := &Task{ID: "x"}
	task.finish(StatusCompleted, nil)
	code := 7
	task.finish(StatusFailed, &code) // must be ignored
	if task.snapshot().Status != StatusCompleted {
		t.Errorf("terminal status was overwritten")
	}
}
