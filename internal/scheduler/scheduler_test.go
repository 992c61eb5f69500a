package scheduler

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

type countingDispatcher struct {
	calls atomic.Int32
}

func (d *countingDispatcher) Dispatch(ctx context.Context, sessionID, toolName string, params map[string]interface{}) error {
	d.calls.Add(1)
	return nil
}

type failingDispatcher struct {
	calls atomic.Int32
}

func (d *failingDispatcher) Dispatch(ctx context.Context, sessionID, toolName string, params map[string]interface{}) error {
	d.calls.Add(1)
	return fmt.Errorf("dispatch failed")
}

func TestScheduler_OncePastDueFiresImmediately(t *testing.T) {
	dir := t.TempDir()
	d := &countingDispatcher{}
	s := New(filepath.Join(dir, "schedules.json"), d)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	_, err := s.Create("sess-1", "nmap", nil, ScheduleOnce, time.Now().Add(-time.Hour), "", "past due", "operator")
	if err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if d.calls.Load() > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if d.calls.Load() == 0 {
		t.Fatal("past-due once job never fired")
	}
}

func TestScheduler_InvalidCronRejected(t *testing.T) {
	dir := t.TempDir()
	d := &countingDispatcher{}
	s := New(filepath.Join(dir, "schedules.json"), d)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	_, err := s.Create("sess-1", "nmap", nil, ScheduleCron, time.Time{}, "not a cron expr", "bad", "operator")
	if err == nil {
		t.Fatal("expected invalid cron expression to be rejected")
	}
}

func TestScheduler_RunNowForcesReschedule(t *testing.T) {
	dir := t.TempDir()
	d := &countingDispatcher{}
	s := New(filepath.Join(dir, "schedules.json"), d)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	job, err := s.Create("sess-1", "nmap", nil, ScheduleOnce, time.Now().Add(time.Hour), "", "future", "operator")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.RunNow(job.ID); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got, _ := s.Get(job.ID); got.Status == StatusCompleted {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("run-now job never completed")
}

func TestScheduler_CronFailureStaysRegisteredAndRetries(t *testing.T) {
	dir := t.TempDir()
	d := &failingDispatcher{}
	s := New(filepath.Join(dir, "schedules.json"), d)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	job, err := s.Create("sess-1", "nmap", nil, ScheduleCron, time.Time{}, "* * * * *", "recurring", "operator")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.RunNow(job.ID); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if d.calls.Load() > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if d.calls.Load() == 0 {
		t.Fatal("cron job never fired")
	}

	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, _ := s.Get(job.ID)
		if got.Status == StatusFailed {
			t.Fatalf("recurring job transitioned to terminal failed status after a dispatch error; want it to stay %q", StatusScheduled)
		}
		if got.Status == StatusScheduled {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("cron job never returned to scheduled after a failed run")
}
