package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/google/uuid"
)

// Dispatcher is the collaborator a fired job is handed to: it must invoke
// the executor pipeline exactly as the operator's own tool-execution
// endpoint would (§4.H: "identical event logging, broadcasting, result
// polling, scope enforcement").
type Dispatcher interface {
	Dispatch(ctx context.Context, sessionID, toolName string, params map[string]interface{}) error
}

// Scheduler re-arms every persisted, non-terminal job on Start and fires
// them against Dispatcher as their triggers come due.
type Scheduler struct {
	store      *store
	dispatcher Dispatcher

	mu      sync.Mutex
	jobs    map[string]*Job
	timers  map[string]*time.Timer
	stopped bool
}

// New constructs a Scheduler backed by path (schedules.json). Call Start to
// load persisted jobs and arm their triggers.
func New(path string, dispatcher Dispatcher) *Scheduler {
	return &Scheduler{
		store:      newStore(path),
		dispatcher: dispatcher,
		jobs:       map[string]*Job{},
		timers:     map[string]*time.Timer{},
	}
}

// Start loads persisted jobs and re-arms every armable one (§4.H).
func (s *Scheduler) Start() error {
	jobs, err := s.store.load()
	if err != nil {
		return err
	}
	s.mu.Lock()
	for _, j := range jobs {
		s.jobs[j.ID] = j
	}
	s.mu.Unlock()

	for _, j := range jobs {
		if j.armable() {
			s.arm(j)
		}
	}
	slog.Info("scheduler.started", "jobs_loaded", len(jobs))
	return nil
}

// Stop cancels every armed timer without altering job status, so a
// restart resumes them (§5 shutdown: "stops the scheduler").
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = map[string]*time.Timer{}
}

func (s *Scheduler) persistLocked() error {
	jobs := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	return s.store.save(jobs)
}

// Create validates and registers a new job, then arms its trigger.
func (s *Scheduler) Create(sessionID, toolName string, params map[string]interface{}, schedType ScheduleType, runAt time.Time, cronExpr, label, creator string) (*Job, error) {
	if schedType == ScheduleCron {
		if !gronx.IsValid(cronExpr) {
			return nil, fmt.Errorf("scheduler: invalid cron expression %q", cronExpr)
		}
	}
	j := &Job{
		ID: uuid.New().String()[:12], SessionID: sessionID, ToolName: toolName,
		Parameters: params, Type: schedType, RunAt: runAt, CronExpr: cronExpr,
		Label: label, CreatedAt: time.Now(), Status: StatusScheduled, Creator: creator,
	}
	s.mu.Lock()
	s.jobs[j.ID] = j
	err := s.persistLocked()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	s.arm(j)
	return j, nil
}

// Get returns the job for id.
func (s *Scheduler) Get(id string) (*Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	return j, ok
}

// List returns every job.
func (s *Scheduler) List() []*Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j)
	}
	return out
}

// Delete unregisters and disarms a job.
func (s *Scheduler) Delete(id string) error {
	s.mu.Lock()
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
	delete(s.jobs, id)
	err := s.persistLocked()
	s.mu.Unlock()
	return err
}

// Disable pauses a job's trigger without deleting it (§4.H).
func (s *Scheduler) Disable(id string) error {
	s.mu.Lock()
	j, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("scheduler: unknown job %s", id)
	}
	j.Status = StatusDisabled
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
	err := s.persistLocked()
	s.mu.Unlock()
	return err
}

// Enable re-arms a disabled job (§4.H).
func (s *Scheduler) Enable(id string) error {
	s.mu.Lock()
	j, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("scheduler: unknown job %s", id)
	}
	j.Status = StatusScheduled
	err := s.persistLocked()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.arm(j)
	return nil
}

// Update unregisters and re-arms a job's trigger after changing its
// schedule (§4.H: "Updating the trigger unregisters and re-arms it").
func (s *Scheduler) Update(id string, schedType ScheduleType, runAt time.Time, cronExpr string) error {
	if schedType == ScheduleCron && !gronx.IsValid(cronExpr) {
		return fmt.Errorf("scheduler: invalid cron expression %q", cronExpr)
	}
	s.mu.Lock()
	j, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("scheduler: unknown job %s", id)
	}
	if t, armed := s.timers[id]; armed {
		t.Stop()
		delete(s.timers, id)
	}
	j.Type = schedType
	j.RunAt = runAt
	j.CronExpr = cronExpr
	err := s.persistLocked()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if j.armable() {
		s.arm(j)
	}
	return nil
}

// RunNow forces a completed/failed/disabled job back to scheduled and
// fires it immediately (§4.H manual run-now action).
func (s *Scheduler) RunNow(id string) error {
	s.mu.Lock()
	j, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("scheduler: unknown job %s", id)
	}
	j.Status = StatusScheduled
	err := s.persistLocked()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	go s.fire(j)
	return nil
}

// arm schedules the next fire for j. A past-due "once" trigger fires
// immediately rather than being silently dropped (§4.H, §9).
func (s *Scheduler) arm(j *Job) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	var delay time.Duration
	switch j.Type {
	case ScheduleOnce:
		delay = time.Until(j.RunAt)
		if delay < 0 {
			delay = 0
		}
	case ScheduleCron:
		next, err := gronx.NextTickAfter(j.CronExpr, time.Now(), false)
		if err != nil {
			slog.Error("scheduler.bad_cron", "job_id", j.ID, "expr", j.CronExpr, "error", err)
			s.markFailed(j)
			return
		}
		j.NextRun = &next
		delay = time.Until(next)
		if delay < 0 {
			delay = 0
		}
	}

	timer := time.AfterFunc(delay, func() { s.fire(j) })
	s.mu.Lock()
	s.timers[j.ID] = timer
	s.mu.Unlock()
}

func (s *Scheduler) markFailed(j *Job) {
	s.mu.Lock()
	j.Status = StatusFailed
	_ = s.persistLocked()
	s.mu.Unlock()
}

// fire transitions a job scheduled -> running -> {completed|failed},
// invokes the dispatcher exactly as the operator's own endpoint would, and
// (for cron jobs) re-arms the next occurrence (§4.H, §7 error kind 5:
// recurring jobs remain registered and retry on the next trigger).
func (s *Scheduler) fire(j *Job) {
	s.mu.Lock()
	j.Status = StatusRunning
	now := time.Now()
	j.LastRun = &now
	_ = s.persistLocked()
	s.mu.Unlock()

	ctx := context.Background()
	err := s.dispatcher.Dispatch(ctx, j.SessionID, j.ToolName, j.Parameters)

	s.mu.Lock()
	j.RunCount++
	if err != nil {
		slog.Error("scheduler.job_failed", "job_id", j.ID, "error", err)
		if j.Type == ScheduleCron {
			// A recurring job must remain registered and retry on its next
			// trigger (§7 error kind 5) rather than dying terminally failed.
			j.Status = StatusScheduled
		} else {
			j.Status = StatusFailed
		}
	} else if j.Type == ScheduleOnce {
		j.Status = StatusCompleted
	} else {
		j.Status = StatusScheduled
	}
	_ = s.persistLocked()
	s.mu.Unlock()

	if j.Type == ScheduleCron {
		s.arm(j)
	}
}
