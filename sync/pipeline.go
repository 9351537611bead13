package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pocketbase/pocketbase/core"

	"github.com/hauntworks/hauntsync/etl"
	"github.com/hauntworks/hauntsync/extract"
	"github.com/hauntworks/hauntsync/portal"
)

// LoadError marks a failure in the load stage so callers can
// distinguish it from portal and extraction failures
type LoadError struct {
	Job string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Job, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// IsLoadError reports whether err was raised by the load stage
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

// RowLoader loads normalized rows into the store
type RowLoader interface {
	Name() string
	Load(ctx context.Context, rows *etl.NormalizedRows) error
	GetSummary() LoadSummary
}

// LoaderForJob returns the loader that owns a pipeline job's rows
func LoaderForJob(app core.App, job string, dryRun bool) (RowLoader, error) {
	switch job {
	case "volunteers":
		return NewVolunteersLoader(app, dryRun), nil
	case "groups":
		return NewGroupsLoader(app, dryRun), nil
	case "events":
		return NewEventsLoader(app, dryRun), nil
	case "participation":
		return NewSignupsLoader(app, dryRun), nil
	case "ticket-sales":
		return NewTicketSalesLoader(app, dryRun), nil
	default:
		return nil, fmt.Errorf("no loader for job %q", job)
	}
}

// Job is one runnable pipeline unit managed by the orchestrator
type Job interface {
	Name() string
	Run(ctx context.Context) error
	GetSummary() LoadSummary
}

// PipelineJob runs the full ETL for one report: portal session, report
// extraction, normalization, load. One browser session per run, always
// released.
type PipelineJob struct {
	app        core.App
	job        string
	configPath string
	outDir     string
	headless   bool
	dryRun     bool
	summary    LoadSummary
}

// NewPipelineJob creates a pipeline job for the named report
func NewPipelineJob(app core.App, job, configPath, outDir string, headless, dryRun bool) *PipelineJob {
	return &PipelineJob{
		app:        app,
		job:        job,
		configPath: configPath,
		outDir:     outDir,
		headless:   headless,
		dryRun:     dryRun,
	}
}

// Name returns the job name
func (p *PipelineJob) Name() string {
	return p.job
}

// GetSummary returns the load summary of the last run
func (p *PipelineJob) GetSummary() LoadSummary {
	return p.summary
}

// Run executes scrape, normalize and load for this job
func (p *PipelineJob) Run(ctx context.Context) error {
	spec, err := extract.SpecFor(p.job)
	if err != nil {
		return err
	}

	etlCfg, err := etl.LoadConfig(p.configPath)
	if err != nil {
		return err
	}
	mapping, err := etlCfg.MappingFor(p.job)
	if err != nil {
		return err
	}

	portalCfg, err := portal.ConfigFromEnv(spec.Portal)
	if err != nil {
		return err
	}
	portalCfg.Headless = p.headless
	portalCfg.DownloadDir = p.outDir

	session, err := portal.Open(ctx, portalCfg)
	if err != nil {
		return fmt.Errorf("open %s session: %w", spec.Portal, err)
	}
	defer session.Close()

	raw, err := extract.Report(ctx, session, spec)
	if err != nil {
		return err
	}

	rows, rejects := etl.Normalize(raw, mapping, p.job)
	if len(rejects) > 0 {
		slog.Warn("Rows rejected during normalization", "job", p.job, "count", len(rejects))
	}

	loader, err := LoaderForJob(p.app, p.job, p.dryRun)
	if err != nil {
		return err
	}
	if err := loader.Load(ctx, rows); err != nil {
		return &LoadError{Job: p.job, Err: err}
	}

	p.summary = loader.GetSummary()
	p.summary.Rejected += len(rejects)
	return nil
}
