package sync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pocketbase/pocketbase/core"
	"github.com/robfig/cron/v3"
)

// Scheduler manages cron-based pipeline scheduling in serve mode
type Scheduler struct {
	app          core.App
	cron         *cron.Cron
	orchestrator *Orchestrator
	mu           sync.Mutex
	running      bool
}

// NewScheduler creates a new scheduler
func NewScheduler(app core.App) *Scheduler {
	return &Scheduler{
		app:          app,
		cron:         cron.New(),
		orchestrator: NewOrchestrator(app),
	}
}

// Start registers the pipeline jobs and starts the cron schedule
func (s *Scheduler) Start(configPath, outDir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	s.orchestrator.InitializeJobs(configPath, outDir)

	// Nightly full pipeline after the haunt closes
	_, err := s.cron.AddFunc("0 3 * * *", func() {
		slog.Info("Starting scheduled nightly pipeline")
		s.runNightly()
	})
	if err != nil {
		return fmt.Errorf("adding nightly schedule: %w", err)
	}

	// Ticket sales snapshot refreshes hourly during box-office hours
	_, err = s.cron.AddFunc("0 * * * *", func() {
		slog.Info("Starting scheduled ticket sales refresh")
		s.runTicketSales()
	})
	if err != nil {
		return fmt.Errorf("adding hourly schedule: %w", err)
	}

	s.cron.Start()
	s.running = true

	slog.Info("Pipeline scheduler started")
	return nil
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	slog.Info("Stopping pipeline scheduler")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false
	slog.Info("Pipeline scheduler stopped")
}

func (s *Scheduler) runNightly() {
	if err := s.orchestrator.RunNightly(context.Background()); err != nil {
		slog.Error("Nightly pipeline failed", "error", err)
	}
}

func (s *Scheduler) runTicketSales() {
	if err := s.orchestrator.RunSingleJob(context.Background(), "ticket-sales"); err != nil {
		slog.Error("Ticket sales refresh failed", "error", err)
	}
}

// TriggerNightly manually triggers the nightly sequence
func (s *Scheduler) TriggerNightly() {
	go s.runNightly()
}

// GetOrchestrator returns the orchestrator instance
func (s *Scheduler) GetOrchestrator() *Orchestrator {
	return s.orchestrator
}

// Global scheduler instance
var globalScheduler *Scheduler
var schedulerOnce sync.Once

// GetScheduler returns the global scheduler instance
func GetScheduler(app core.App) *Scheduler {
	schedulerOnce.Do(func() {
		globalScheduler = NewScheduler(app)
	})
	return globalScheduler
}

// StartPipelineScheduler starts the global scheduler
func StartPipelineScheduler(app core.App, configPath, outDir string) error {
	return GetScheduler(app).Start(configPath, outDir)
}
