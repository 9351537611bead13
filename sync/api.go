package sync

import (
	"net/http"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

// requireAuth wraps a handler function to require authentication
func requireAuth(handler func(*core.RequestEvent) error) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		if e.Auth == nil {
			return apis.NewUnauthorizedError("Authentication required", nil)
		}
		return handler(e)
	}
}

// InitializePipelineAPI registers the pipeline trigger and status endpoints
// on the PocketBase router
func InitializePipelineAPI(app *pocketbase.PocketBase, e *core.ServeEvent) error {
	scheduler := GetScheduler(app)

	// Trigger a single pipeline job
	e.Router.POST("/api/hauntsync/run", requireAuth(func(e *core.RequestEvent) error {
		return handleRunJob(e, scheduler)
	}))

	// Trigger the full nightly sequence
	e.Router.POST("/api/hauntsync/nightly", requireAuth(func(e *core.RequestEvent) error {
		return handleRunNightly(e, scheduler)
	}))

	// Job status
	e.Router.GET("/api/hauntsync/status", requireAuth(func(e *core.RequestEvent) error {
		return handleStatus(e, scheduler)
	}))

	return nil
}

func handleRunJob(e *core.RequestEvent, scheduler *Scheduler) error {
	job := e.Request.URL.Query().Get("job")
	if job == "" {
		return e.JSON(http.StatusBadRequest, map[string]any{
			"error": "job query parameter is required",
		})
	}

	orchestrator := scheduler.GetOrchestrator()
	if err := orchestrator.RunSingleJob(e.Request.Context(), job); err != nil {
		return e.JSON(http.StatusConflict, map[string]any{
			"error": err.Error(),
		})
	}

	return e.JSON(http.StatusAccepted, map[string]any{
		"status": "started",
		"job":    job,
	})
}

func handleRunNightly(e *core.RequestEvent, scheduler *Scheduler) error {
	if scheduler.GetOrchestrator().IsNightlyRunning() {
		return e.JSON(http.StatusConflict, map[string]any{
			"error": "nightly sequence already in progress",
		})
	}

	scheduler.TriggerNightly()
	return e.JSON(http.StatusAccepted, map[string]any{
		"status": "started",
	})
}

func handleStatus(e *core.RequestEvent, scheduler *Scheduler) error {
	orchestrator := scheduler.GetOrchestrator()

	if job := e.Request.URL.Query().Get("job"); job != "" {
		status := orchestrator.GetStatus(job)
		if status == nil {
			return e.JSON(http.StatusNotFound, map[string]any{
				"error": "no status for job: " + job,
			})
		}
		return e.JSON(http.StatusOK, status)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"nightly_running": orchestrator.IsNightlyRunning(),
		"running_jobs":    orchestrator.GetRunningJobs(),
	})
}
