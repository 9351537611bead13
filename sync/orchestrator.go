// Package sync loads normalized portal data into the PocketBase store.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pocketbase/pocketbase/core"

	"github.com/hauntworks/hauntsync/google"
)

const statusFailed = "failed"

// Nightly job order: groups before volunteers so memberships resolve,
// volunteers and events before participation so both parents exist.
var nightlyOrder = []string{"groups", "volunteers", "events", "participation", "ticket-sales"}

// Status represents the state of one pipeline job run
type Status struct {
	Job       string      `json:"job"`
	Status    string      `json:"status"`
	StartTime time.Time   `json:"start_time"`
	EndTime   *time.Time  `json:"end_time,omitempty"`
	Error     string      `json:"error,omitempty"`
	Summary   LoadSummary `json:"summary"`
}

// Orchestrator manages pipeline job execution in serve mode
type Orchestrator struct {
	app                 core.App
	jobs                map[string]Job
	mu                  sync.RWMutex
	runningJobs         map[string]*Status
	lastCompletedStatus map[string]*Status
	jobSpacing          time.Duration
	nightlyRunning      bool
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(app core.App) *Orchestrator {
	return &Orchestrator{
		app:                 app,
		jobs:                make(map[string]Job),
		runningJobs:         make(map[string]*Status),
		lastCompletedStatus: make(map[string]*Status),
		jobSpacing:          2 * time.Second,
	}
}

// RegisterJob registers a pipeline job
func (o *Orchestrator) RegisterJob(job Job) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.jobs[job.Name()] = job
	slog.Info("Registered pipeline job", "name", job.Name())
}

// InitializeJobs registers the standard pipeline jobs plus the optional
// Sheets roster export
func (o *Orchestrator) InitializeJobs(configPath, outDir string) {
	for _, name := range nightlyOrder {
		o.RegisterJob(NewPipelineJob(o.app, name, configPath, outDir, true, false))
	}

	if google.IsEnabled() {
		client, err := google.NewSheetsClient(context.Background())
		if err != nil {
			slog.Warn("Sheets export disabled due to client error", "error", err)
		} else if client != nil && google.GetSpreadsheetID() != "" {
			o.RegisterJob(NewSheetsExportJob(o.app, client, google.GetSpreadsheetID()))
			slog.Info("Sheets export job registered")
		}
	}
}

// IsRunning checks if a job is currently running
func (o *Orchestrator) IsRunning(job string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()

	status, exists := o.runningJobs[job]
	return exists && status.Status == "running"
}

// IsNightlyRunning returns whether the nightly sequence is in progress
func (o *Orchestrator) IsNightlyRunning() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.nightlyRunning
}

// GetRunningJobs returns all currently running job names
func (o *Orchestrator) GetRunningJobs() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()

	var running []string
	for name, status := range o.runningJobs {
		if status.Status == "running" {
			running = append(running, name)
		}
	}
	return running
}

// RunSingleJob starts one pipeline job in the background. The HTTP handler
// that triggered it returns immediately; status is polled separately.
func (o *Orchestrator) RunSingleJob(_ context.Context, jobName string) error {
	o.mu.RLock()
	job, exists := o.jobs[jobName]
	o.mu.RUnlock()

	if !exists {
		return fmt.Errorf("pipeline job not found: %s", jobName)
	}
	if o.IsRunning(jobName) {
		return fmt.Errorf("job already in progress: %s", jobName)
	}

	status := &Status{
		Job:       jobName,
		Status:    "running",
		StartTime: time.Now(),
	}

	o.mu.Lock()
	o.runningJobs[jobName] = status
	o.mu.Unlock()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Pipeline job panicked", "job", jobName, "panic", r)
				o.finishJob(jobName, statusFailed, fmt.Sprintf("panic: %v", r), LoadSummary{}, time.Now())
			}
		}()

		// Independent context so HTTP handler timeouts never cancel a
		// long-running scrape
		jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		err := job.Run(jobCtx)

		endTime := time.Now()
		summary := job.GetSummary()
		summary.Duration = int(endTime.Sub(status.StartTime).Seconds())

		if err != nil {
			slog.Error("Pipeline job failed", "job", jobName, "error", err)
			o.finishJob(jobName, statusFailed, err.Error(), summary, endTime)
		} else {
			slog.Info("Pipeline job completed", "job", jobName)
			o.finishJob(jobName, "success", "", summary, endTime)
		}
	}()

	return nil
}

// finishJob records a job's final state. Status fields are only written
// here, under the same lock that GetStatus and IsRunning read through.
func (o *Orchestrator) finishJob(jobName, state, errMsg string, summary LoadSummary, endTime time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()

	status, ok := o.runningJobs[jobName]
	if !ok {
		return
	}
	status.Status = state
	status.Error = errMsg
	status.Summary = summary
	status.EndTime = &endTime
	o.lastCompletedStatus[jobName] = status
	delete(o.runningJobs, jobName)
}

// RunNightly runs all pipeline jobs in dependency order, then the Sheets
// export if registered. Individual job failures don't stop the sequence.
func (o *Orchestrator) RunNightly(ctx context.Context) error {
	o.mu.Lock()
	if o.nightlyRunning {
		o.mu.Unlock()
		return fmt.Errorf("nightly sequence already in progress")
	}
	o.nightlyRunning = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.nightlyRunning = false
		o.mu.Unlock()
	}()

	jobNames := append([]string{}, nightlyOrder...)
	o.mu.RLock()
	if _, ok := o.jobs["sheets_export"]; ok {
		jobNames = append(jobNames, "sheets_export")
	}
	o.mu.RUnlock()

	slog.Info("Starting nightly pipeline sequence")

	for i, jobName := range jobNames {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if i > 0 {
			time.Sleep(o.jobSpacing)
		}

		slog.Info("Nightly pipeline: starting job",
			"job", jobName, "progress", fmt.Sprintf("%d/%d", i+1, len(jobNames)))

		if err := o.runJobAndWait(ctx, jobName); err != nil {
			slog.Error("Nightly pipeline: job failed", "job", jobName, "error", err)
			// Stage faults are isolated per job; continue the sequence
		} else {
			slog.Info("Nightly pipeline: job completed", "job", jobName)
		}
	}

	slog.Info("Nightly pipeline sequence completed")
	return nil
}

// runJobAndWait starts a job and blocks until it finishes
func (o *Orchestrator) runJobAndWait(ctx context.Context, jobName string) error {
	if err := o.RunSingleJob(ctx, jobName); err != nil {
		return err
	}

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !o.IsRunning(jobName) {
				o.mu.RLock()
				status := o.lastCompletedStatus[jobName]
				o.mu.RUnlock()

				if status != nil && status.Status == statusFailed {
					return fmt.Errorf("%s", status.Error)
				}
				return nil
			}
		}
	}
}

// GetStatus returns the status of a pipeline job
func (o *Orchestrator) GetStatus(jobName string) *Status {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if status, exists := o.runningJobs[jobName]; exists {
		statusCopy := *status
		return &statusCopy
	}
	if status, exists := o.lastCompletedStatus[jobName]; exists {
		statusCopy := *status
		return &statusCopy
	}
	return nil
}

// SetJobSpacing sets the delay between jobs in a sequence
func (o *Orchestrator) SetJobSpacing(duration time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.jobSpacing = duration
}
