package cron

import (
	"context"
	"errors"
	"testing"
)

type fakePurger struct {
	purged int
	err    error
	calls  int
}

func (f *fakePurger) PurgeExpired(context.Context) (int, error) {
	f.calls++
	return f.purged, f.err
}

func TestPurgeJobDefaults(t *testing.T) {
	j := &PurgeJob{Store: &fakePurger{}}
	if j.Name() != "purge_expired" {
		t.Errorf("name = %q", j.Name())
	}
	if j.Schedule() != "0 3 * * *" {
		t.Errorf("schedule = %q", j.Schedule())
	}
}

func TestPurgeJobScheduleOverride(t *testing.T) {
	j := &PurgeJob{Store: &fakePurger{}, ScheduleExpr: "*/30 * * * *"}
	if j.Schedule() != "*/30 * * * *" {
		t.Errorf("schedule = %q", j.Schedule())
	}
}

func TestPurgeJobRun(t *testing.T) {
	p := &fakePurger{purged: 3}
	j := &PurgeJob{Store: p}
	if err := j.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if p.calls != 1 {
		t.Errorf("calls = %d", p.calls)
	}
}

func TestPurgeJobRunError(t *testing.T) {
	j := &PurgeJob{Store: &fakePurger{err: errors.New("db closed")}}
	if err := j.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestEngineJobDelegates(t *testing.T) {
	ran := false
	j := &EngineJob{
		JobName:      "consolidation",
		Runner:       func(context.Context) error { ran = true; return nil },
		ScheduleExpr: "30 3 * * *",
	}
	if j.Name() != "consolidation" || j.Schedule() != "30 3 * * *" {
		t.Errorf("job = %q %q", j.Name(), j.Schedule())
	}
	if err := j.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !ran {
		t.Error("runner not invoked")
	}
}

func TestRegisterJobRejectsDuplicates(t *testing.T) {
	s := NewScheduler(nil)
	if err := s.RegisterJob(&PurgeJob{Store: &fakePurger{}}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := s.RegisterJob(&PurgeJob{Store: &fakePurger{}}); err == nil {
		t.Fatal("duplicate name accepted")
	}
}

func TestStartRejectsInvalidSchedule(t *testing.T) {
	s := NewScheduler(nil)
	if err := s.RegisterJob(&EngineJob{
		JobName:      "broken",
		Runner:       func(context.Context) error { return nil },
		ScheduleExpr: "not a cron line",
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := s.Start(); err == nil {
		t.Fatal("expected schedule parse error")
	}
}

func TestTickSkipsWhileRunning(t *testing.T) {
	s := NewScheduler(nil)
	p := &fakePurger{}
	job := &PurgeJob{Store: p}
	if err := s.RegisterJob(job); err != nil {
		t.Fatalf("register: %v", err)
	}

	tick := s.tick(context.Background(), job)

	s.inRun[job.Name()].Lock()
	tick()
	if p.calls != 0 {
		t.Errorf("pass ran despite previous tick in flight: calls = %d", p.calls)
	}
	s.inRun[job.Name()].Unlock()

	tick()
	if p.calls != 1 {
		t.Errorf("calls = %d", p.calls)
	}
}

func TestSchedulerStartStop(t *testing.T) {
	s := NewScheduler(nil)
	if err := s.RegisterJob(&PurgeJob{Store: &fakePurger{}}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
