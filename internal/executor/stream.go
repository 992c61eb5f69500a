package executor

import (
	"context"
	"time"
)

// StreamFrame is one delta frame delivered to a task-stream reader, mapping
// 1:1 onto pkg/protocol.TaskStreamFrame.
type StreamFrame struct {
	Type       string // protocol.TaskFrame{Stdout,Stderr,Done}
	Data       string
	Status     string
	ReturnCode *int
}

// pollInterval is how often a streaming reader checks for new output and
// terminal status (§4.D: "Polling readers observe tasks via fixed-interval
// polling until a terminal status is seen").
const pollInterval = 150 * time.Millisecond

// Stream delivers incremental stdout/stderr deltas for taskID on frames,
// position-based so no byte is ever delivered twice, and finishes with a
// single terminal "done" frame carrying the final status and exit code.
// It returns once the done frame has been sent or ctx is cancelled.
func (e *Executor) Stream(ctx context.Context, taskID string, frames chan<- StreamFrame) {
	defer close(frames)
	task, ok := e.Registry.get(taskID)
	if !ok {
		return
	}

	var stdoutPos, stderrPos int
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		stdout, stderr := task.outputSince(stdoutPos, stderrPos)
		stdoutPos += len(stdout)
		stderrPos += len(stderr)
		if len(stdout) > 0 {
			select {
			case frames <- StreamFrame{Type: "stdout", Data: string(stdout)}:
			case <-ctx.Done():
				return
			}
		}
		if len(stderr) > 0 {
			select {
			case frames <- StreamFrame{Type: "stderr", Data: string(stderr)}:
			case <-ctx.Done():
				return
			}
		}

		snap := task.snapshot()
		if snap.Status.IsTerminal() {
			select {
			case frames <- StreamFrame{Type: "done", Status: string(snap.Status), ReturnCode: snap.ExitCode}:
			case <-ctx.Done():
			}
			return
		}
	}
}

// Poll blocks until taskID reaches a terminal status or ctx is cancelled,
// returning the final snapshot. This backs the fixed-interval-polling
// getter (§4.D) for callers that don't need a websocket.
func (e *Executor) Poll(ctx context.Context, taskID string) Snapshot {
	task, ok := e.Registry.get(taskID)
	if !ok {
		return Snapshot{}
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		snap := task.snapshot()
		if snap.Status.IsTerminal() {
			return snap
		}
		select {
		case <-ctx.Done():
			return task.snapshot()
		case <-ticker.C:
		}
	}
}
