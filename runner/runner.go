// Package runner serializes pipeline job executions with per-job file
// locks and keeps an append-only status log per job. Cron and manual
// invocations go through the same lock, so a second start of a job that
// is already running becomes a logged no-op instead of a duplicate run.
package runner

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/hauntworks/hauntsync/portal"
	hsync "github.com/hauntworks/hauntsync/sync"
)

// ErrAlreadyRunning is returned when the job's lock is held by another
// invocation. Callers treat it as a benign no-op.
var ErrAlreadyRunning = errors.New("job already running")

// Runner executes jobs under per-job file locks
type Runner struct {
	lockDir string
	logDir  string
}

// New creates a runner using the given lock and log directories
func New(lockDir, logDir string) *Runner {
	return &Runner{lockDir: lockDir, logDir: logDir}
}

// Run executes fn under the job's lock. If the lock is already held the
// run is skipped and ErrAlreadyRunning is returned. The lock is released
// on every exit path, including panics inside fn.
func (r *Runner) Run(job string, fn func() error) error {
	if err := os.MkdirAll(r.lockDir, 0o755); err != nil {
		return fmt.Errorf("creating lock dir: %w", err)
	}
	if err := os.MkdirAll(r.logDir, 0o755); err != nil {
		return fmt.Errorf("creating log dir: %w", err)
	}

	lock := flock.New(filepath.Join(r.lockDir, job+".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring lock for %s: %w", job, err)
	}
	if !locked {
		r.appendLog(job, "already running, skipped")
		slog.Info("Job already running, skipping", "job", job)
		return ErrAlreadyRunning
	}
	defer lock.Unlock()

	r.appendLog(job, "started")
	start := time.Now()

	runErr := runGuarded(fn)
	elapsed := time.Since(start).Round(time.Second)

	if runErr != nil {
		r.appendLog(job, fmt.Sprintf("failed after %s: %v", elapsed, runErr))
		return runErr
	}
	r.appendLog(job, fmt.Sprintf("completed in %s", elapsed))
	return nil
}

// runGuarded converts a panic inside fn into an error so the deferred
// unlock and the failure log line still happen
func runGuarded(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return fn()
}

// appendLog writes one timestamped line to the job's log file. Logging
// failures are reported but never abort the run.
func (r *Runner) appendLog(job, message string) {
	line := fmt.Sprintf("%s %s\n", time.Now().UTC().Format("2006-01-02T15:04:05Z"), message)
	path := filepath.Join(r.logDir, job+".log")

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		slog.Warn("Failed to open job log", "job", job, "error", err)
		return
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		slog.Warn("Failed to write job log", "job", job, "error", err)
	}
}

// ExitCode maps a job result to the process exit code. A held lock is a
// success so overlapping cron entries stay quiet.
func ExitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, ErrAlreadyRunning):
		return 0
	case portal.IsAuth(err):
		return 2
	case portal.IsExtraction(err):
		return 3
	case hsync.IsLoadError(err):
		return 4
	default:
		return 1
	}
}
