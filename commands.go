package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/pocketbase/pocketbase"
	"github.com/spf13/cobra"

	"github.com/hauntworks/hauntsync/config"
	"github.com/hauntworks/hauntsync/etl"
	"github.com/hauntworks/hauntsync/extract"
	"github.com/hauntworks/hauntsync/images"
	"github.com/hauntworks/hauntsync/portal"
	"github.com/hauntworks/hauntsync/runner"
	hsync "github.com/hauntworks/hauntsync/sync"
)

const pipelineTimeout = 30 * time.Minute

// registerCommands attaches the pipeline CLI to the PocketBase root
// command
func registerCommands(app *pocketbase.PocketBase) {
	app.RootCmd.AddCommand(
		newScrapeCmd(),
		newNormalizeCmd(),
		newLoadCmd(app),
		newPipelineCmd(app),
		newMatchImagesCmd(app),
		newResetDataCmd(app),
	)
}

func newScrapeCmd() *cobra.Command {
	var headless bool
	var outDir string

	cmd := &cobra.Command{
		Use:   "scrape JOB",
		Short: "Log into the portal and download one report export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := extract.SpecFor(args[0])
			if err != nil {
				return err
			}
			if outDir == "" {
				outDir = config.PipelineFromEnv().OutDir
			}

			portalCfg, err := portal.ConfigFromEnv(spec.Portal)
			if err != nil {
				return err
			}
			portalCfg.Headless = headless
			portalCfg.DownloadDir = outDir

			ctx, cancel := context.WithTimeout(context.Background(), pipelineTimeout)
			defer cancel()

			session, err := portal.Open(ctx, portalCfg)
			if err != nil {
				return err
			}
			defer session.Close()

			raw, err := extract.Report(ctx, session, spec)
			if err != nil {
				return err
			}

			cmd.Printf("saved %s (%d rows)\n", raw.SourcePath, len(raw.Rows))
			return nil
		},
	}

	cmd.Flags().BoolVar(&headless, "headless", true, "run the browser headless")
	cmd.Flags().StringVar(&outDir, "out", "", "download directory (defaults to PIPELINE_OUT_DIR)")
	return cmd
}

func newNormalizeCmd() *cobra.Command {
	var csvPath, report, configPath string

	cmd := &cobra.Command{
		Use:   "normalize --csv FILE --report KIND",
		Short: "Rewrite a raw export with canonical headers",
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := extract.SpecFor(report)
			if err != nil {
				return err
			}
			etlCfg, err := etl.LoadConfig(configPath)
			if err != nil {
				return err
			}
			mapping, err := etlCfg.MappingFor(report)
			if err != nil {
				return err
			}

			raw, err := extract.ParseFile(csvPath, spec)
			if err != nil {
				return err
			}

			rows, rejects := etl.Normalize(raw, mapping, report)

			outPath := filepath.Join(filepath.Dir(csvPath), "replaced_"+filepath.Base(csvPath))
			out, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("creating %s: %w", outPath, err)
			}
			defer out.Close()
			if err := rows.WriteCSV(out); err != nil {
				return err
			}
			cmd.Printf("wrote %s (%d rows)\n", outPath, len(rows.Rows))

			if len(rejects) > 0 {
				rejPath := filepath.Join(filepath.Dir(csvPath), "rejects_"+filepath.Base(csvPath))
				rej, err := os.Create(rejPath)
				if err != nil {
					return fmt.Errorf("creating %s: %w", rejPath, err)
				}
				defer rej.Close()
				if err := etl.WriteRejectsCSV(rej, rejects); err != nil {
					return err
				}
				cmd.Printf("wrote %s (%d rejected rows)\n", rejPath, len(rejects))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&csvPath, "csv", "", "raw export file")
	cmd.Flags().StringVar(&report, "report", "", "report kind (volunteers, events, participation, groups, ticket-sales)")
	cmd.Flags().StringVar(&configPath, "config", etl.DefaultConfigPath, "header mapping config")
	cmd.MarkFlagRequired("csv")
	cmd.MarkFlagRequired("report")
	return cmd
}

func newLoadCmd(app *pocketbase.PocketBase) *cobra.Command {
	var csvPath, staticConfig string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "load JOB --csv FILE",
		Short: "Upsert a normalized export into the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job := args[0]
			ctx, cancel := context.WithTimeout(context.Background(), pipelineTimeout)
			defer cancel()

			if staticConfig != "" {
				if job != "groups" {
					return errors.New("--config is only valid for the groups job")
				}
				if csvPath != "" {
					return errors.New("pass exactly one of --csv or --config")
				}
				etlCfg, err := etl.LoadConfig(staticConfig)
				if err != nil {
					return err
				}
				if err := app.Bootstrap(); err != nil {
					return err
				}
				loader := hsync.NewGroupsLoader(app, dryRun)
				if err := loader.LoadStatic(ctx, etlCfg.StaticGroups); err != nil {
					return err
				}
				printSummary(cmd, job, loader.GetSummary())
				return nil
			}

			if csvPath == "" {
				return errors.New("--csv is required")
			}
			spec, err := extract.SpecFor(job)
			if err != nil {
				return err
			}
			raw, err := extract.ParseFile(csvPath, spec)
			if err != nil {
				return err
			}
			rows := &etl.NormalizedRows{Kind: job, Headers: raw.Headers, Rows: raw.Rows}

			if err := app.Bootstrap(); err != nil {
				return err
			}
			loader, err := hsync.LoaderForJob(app, job, dryRun)
			if err != nil {
				return err
			}
			if err := loader.Load(ctx, rows); err != nil {
				return err
			}
			printSummary(cmd, job, loader.GetSummary())
			return nil
		},
	}

	cmd.Flags().StringVar(&csvPath, "csv", "", "normalized export file")
	cmd.Flags().StringVar(&staticConfig, "config", "", "load the static group list from this config instead of a CSV (groups only)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report changes without saving")
	return cmd
}

func newPipelineCmd(app *pocketbase.PocketBase) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "pipeline JOB",
		Short: "Run the full scrape-normalize-load pipeline for one job",
		Long: "Runs one job end to end under the job lock. A run that finds the lock " +
			"held exits 0 without doing anything, so overlapping cron entries are safe.",
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			job := args[0]
			pcfg := config.PipelineFromEnv()

			err := func() error {
				if _, err := extract.SpecFor(job); err != nil {
					return err
				}
				if err := app.Bootstrap(); err != nil {
					return err
				}
				return runner.New(pcfg.LockDir, pcfg.LogDir).Run(job, func() error {
					ctx, cancel := context.WithTimeout(context.Background(), pipelineTimeout)
					defer cancel()
					p := hsync.NewPipelineJob(app, job, pcfg.ConfigPath, pcfg.OutDir, pcfg.Headless, dryRun)
					if err := p.Run(ctx); err != nil {
						return err
					}
					printSummary(cmd, job, p.GetSummary())
					return nil
				})
			}()

			if errors.Is(err, runner.ErrAlreadyRunning) {
				cmd.Printf("%s is already running, nothing to do\n", job)
				return
			}
			if code := runner.ExitCode(err); code != 0 {
				slog.Error("Pipeline failed", "job", job, "error", err, "exit_code", code)
				os.Exit(code)
			}
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "scrape and normalize but report the load instead of saving")
	return cmd
}

func newMatchImagesCmd(app *pocketbase.PocketBase) *cobra.Command {
	var dir, aliases string
	var commit, label, labelOverwrite bool

	cmd := &cobra.Command{
		Use:   "match-images --dir DIR",
		Short: "Match profile photos to volunteers by file name",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Bootstrap(); err != nil {
				return err
			}

			report, err := images.MatchAndLabel(app, dir, aliases, images.Options{
				Commit:         commit,
				Label:          label,
				LabelOverwrite: labelOverwrite,
			})
			if err != nil {
				return err
			}

			cmd.Printf("matched=%d aliased=%d missed=%d skipped=%d\n",
				report.Matched, report.Aliased, report.Missed, report.Skipped)
			for _, entry := range report.Entries {
				if entry.Status == images.StatusMissed {
					cmd.Printf("  miss: %s (%s)\n", entry.File, entry.Reason)
				}
			}
			if !commit {
				cmd.Println("dry run, nothing saved (use --commit)")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "directory of image files")
	cmd.Flags().StringVar(&aliases, "aliases", "", "CSV of token,email overrides for ambiguous files")
	cmd.Flags().BoolVar(&commit, "commit", false, "save matches to the store")
	cmd.Flags().BoolVar(&label, "label", false, "overlay the volunteer name onto matched images")
	cmd.Flags().BoolVar(&labelOverwrite, "label-overwrite", false, "label the original file instead of a sibling copy")
	cmd.MarkFlagRequired("dir")
	return cmd
}

func newResetDataCmd(app *pocketbase.PocketBase) *cobra.Command {
	var dryRun, yes bool

	cmd := &cobra.Command{
		Use:   "reset-data",
		Short: "Delete all scraped data, keeping operator accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !dryRun {
				interactive := isatty.IsTerminal(os.Stdin.Fd())
				ok, err := hsync.ConfirmReset(os.Stdin, cmd.OutOrStdout(), interactive, yes)
				if err != nil {
					return err
				}
				if !ok {
					cmd.Println("aborted")
					return nil
				}
			}

			if err := app.Bootstrap(); err != nil {
				return err
			}
			counts, err := hsync.ResetData(app, dryRun)
			if err != nil {
				return err
			}

			verb := "deleted"
			if dryRun {
				verb = "would delete"
			}
			for _, collection := range []string{"event_signups", "ticket_sales", "volunteers", "groups", "events"} {
				cmd.Printf("%s %d rows from %s\n", verb, counts.Deleted[collection], collection)
			}
			cmd.Printf("preserved %d operator accounts\n", counts.Preserved)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "count rows without deleting")
	cmd.Flags().BoolVar(&yes, "yes", false, "skip the confirmation prompt")
	return cmd
}

func printSummary(cmd *cobra.Command, job string, s hsync.LoadSummary) {
	cmd.Printf("%s: created=%d updated=%d skipped=%d rejected=%d errors=%d in %ds\n",
		job, s.Created, s.Updated, s.Skipped, s.Rejected, s.Errors, s.Duration)
}
