// Package scheduler implements the Scheduler (§4.H): a time-driven
// dispatcher supporting one-shot and cron-recurring tool runs, surviving
// restart by re-arming every non-terminal job from its persisted state.
package scheduler

import "time"

// ScheduleType distinguishes a one-shot job from a recurring one (§3).
type ScheduleType string

const (
	ScheduleOnce ScheduleType = "once"
	ScheduleCron ScheduleType = "cron"
)

// Status is a Job's lifecycle state (§3).
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusDisabled  Status = "disabled"
)

// Job is one scheduled tool run (§3), persisted on every mutation.
type Job struct {
	ID         string                 `json:"id"`
	SessionID  string                 `json:"session_id"`
	ToolName   string                 `json:"tool_name"`
	Parameters map[string]interface{} `json:"parameters"`
	Type       ScheduleType           `json:"type"`
	RunAt      time.Time              `json:"run_at,omitempty"`
	CronExpr   string                 `json:"cron_expr,omitempty"`
	Label      string                 `json:"label"`
	CreatedAt  time.Time              `json:"created_at"`
	LastRun    *time.Time             `json:"last_run,omitempty"`
	NextRun    *time.Time             `json:"next_run,omitempty"`
	Status     Status                 `json:"status"`
	RunCount   int                    `json:"run_count"`
	Creator    string                 `json:"creator,omitempty"`
}

// armable reports whether a reloaded job should be re-armed at startup
// (§4.H: "for each job not in status completed, disabled, failed, or
// running, the scheduler re-arms the appropriate trigger").
func (j *Job) armable() bool {
	switch j.Status {
	case StatusCompleted, StatusDisabled, StatusFailed, StatusRunning:
		return false
	default:
		return true
	}
}
