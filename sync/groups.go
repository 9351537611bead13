package sync

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/pocketbase/pocketbase/core"

	"github.com/hauntworks/hauntsync/etl"
)

// GroupsLoader upserts groups keyed by normalized name. A run feeds from
// exactly one source: a scraped export or the static config list.
type GroupsLoader struct {
	BaseLoader
}

// NewGroupsLoader creates a new groups loader
func NewGroupsLoader(app core.App, dryRun bool) *GroupsLoader {
	return &GroupsLoader{BaseLoader: NewBaseLoader(app, dryRun)}
}

// Name returns the loader name
func (l *GroupsLoader) Name() string {
	return "groups"
}

// Load upserts groups from a normalized export
func (l *GroupsLoader) Load(ctx context.Context, rows *etl.NormalizedRows) error {
	start := time.Now()
	slog.Info("Starting load", "loader", l.Name(), "rows", len(rows.Rows))

	existing, err := l.preloadGroups()
	if err != nil {
		return err
	}

	for _, row := range rows.Rows {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		name := etl.NormalizeGroupName(row["name"])
		if name == "" {
			l.Summary.Rejected++
			continue
		}

		points := 1
		if v := row["points"]; v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				points = n
			}
		}

		if err := l.upsertGroup(name, points, existing); err != nil {
			slog.Error("Group upsert failed", "group", name, "error", err)
			l.Summary.Errors++
		}
	}

	l.Summary.Duration = int(time.Since(start).Seconds())
	l.LogLoadComplete(l.Name())
	return nil
}

// LoadStatic upserts the hand-maintained group list from the ETL config
func (l *GroupsLoader) LoadStatic(ctx context.Context, groups []etl.StaticGroup) error {
	start := time.Now()
	slog.Info("Starting load", "loader", l.Name(), "source", "static config", "groups", len(groups))

	existing, err := l.preloadGroups()
	if err != nil {
		return err
	}

	for _, group := range groups {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if group.Name == "" {
			l.Summary.Rejected++
			continue
		}

		if err := l.upsertGroup(group.Name, group.Points, existing); err != nil {
			slog.Error("Group upsert failed", "group", group.Name, "error", err)
			l.Summary.Errors++
		}
	}

	l.Summary.Duration = int(time.Since(start).Seconds())
	l.LogLoadComplete(l.Name())
	return nil
}

func (l *GroupsLoader) preloadGroups() (map[string]*core.Record, error) {
	return l.PreloadByKey("groups", func(r *core.Record) (string, bool) {
		name := etl.NormalizeGroupName(r.GetString("name"))
		return name, name != ""
	})
}

func (l *GroupsLoader) upsertGroup(name string, points int, existing map[string]*core.Record) error {
	data := map[string]any{
		"name":   name,
		"points": points,
	}
	return l.Upsert("groups", name, data, existing, nil)
}
