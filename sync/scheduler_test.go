package sync

import (
	"testing"
	"time"

	"github.com/robfig/cron/v3"
)

func TestNewScheduler(t *testing.T) {
	s := NewScheduler(nil)

	if s == nil {
		t.Fatal("NewScheduler returned nil")
	}
	if s.cron == nil {
		t.Error("cron instance should be initialized")
	}
	if s.orchestrator == nil {
		t.Error("orchestrator should be initialized")
	}
	if s.running {
		t.Error("scheduler should not be running before Start")
	}
}

func TestScheduleExpressions(t *testing.T) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

	tests := []struct {
		name string
		expr string
	}{
		{"nightly pipeline", "0 3 * * *"},
		{"hourly ticket sales", "0 * * * *"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parser.Parse(tt.expr); err != nil {
				t.Errorf("schedule %q does not parse: %v", tt.expr, err)
			}
		})
	}
}

func TestNightlySchedule_NextRunIsThreeAM(t *testing.T) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse("0 3 * * *")
	if err != nil {
		t.Fatal(err)
	}

	from := time.Date(2025, 10, 3, 22, 15, 0, 0, time.UTC)
	next := sched.Next(from)
	want := time.Date(2025, 10, 4, 3, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next nightly run = %v, want %v", next, want)
	}
}

func TestSchedulerStop_NotRunning(t *testing.T) {
	s := NewScheduler(nil)

	// Stop before Start should be a no-op, not a hang or panic
	s.Stop()

	if s.running {
		t.Error("scheduler should not be running")
	}
}

func TestGetOrchestrator(t *testing.T) {
	s := NewScheduler(nil)

	o := s.GetOrchestrator()
	if o == nil {
		t.Fatal("GetOrchestrator returned nil")
	}
	if o != s.orchestrator {
		t.Error("GetOrchestrator should return the scheduler's own orchestrator")
	}
}

func TestGetScheduler_Singleton(t *testing.T) {
	first := GetScheduler(nil)
	second := GetScheduler(nil)

	if first != second {
		t.Error("GetScheduler should return the same instance")
	}
}
