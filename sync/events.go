package sync

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/pocketbase/pocketbase/core"

	"github.com/hauntworks/hauntsync/etl"
)

// EventsLoader upserts events keyed by name plus date
type EventsLoader struct {
	BaseLoader
}

// NewEventsLoader creates a new events loader
func NewEventsLoader(app core.App, dryRun bool) *EventsLoader {
	return &EventsLoader{BaseLoader: NewBaseLoader(app, dryRun)}
}

// Name returns the loader name
func (l *EventsLoader) Name() string {
	return "events"
}

// EventKey builds the composite natural key for an event
func EventKey(name, date string) string {
	return fmt.Sprintf("%s|%s", strings.ToLower(strings.TrimSpace(name)), strings.TrimSpace(date))
}

// Load upserts all normalized event rows
func (l *EventsLoader) Load(ctx context.Context, rows *etl.NormalizedRows) error {
	start := time.Now()
	slog.Info("Starting load", "loader", l.Name(), "rows", len(rows.Rows))

	existing, err := l.PreloadByKey("events", func(r *core.Record) (string, bool) {
		name := r.GetString("name")
		date := r.GetString("date")
		if name == "" || date == "" {
			return "", false
		}
		return EventKey(name, normalizeDateValue(date)), true
	})
	if err != nil {
		return err
	}

	for _, row := range rows.Rows {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		name := strings.TrimSpace(row["name"])
		date := row["date"]
		if name == "" || date == "" {
			l.Summary.Rejected++
			continue
		}

		data := buildEventData(row)
		key := EventKey(name, date)

		if err := l.Upsert("events", key, data, existing, nil); err != nil {
			slog.Error("Event upsert failed", "event", key, "error", err)
			l.Summary.Errors++
		}
	}

	l.Summary.Duration = int(time.Since(start).Seconds())
	l.LogLoadComplete(l.Name())
	return nil
}

// buildEventData maps a normalized row onto event record fields
func buildEventData(row map[string]string) map[string]any {
	data := map[string]any{
		"name": strings.TrimSpace(row["name"]),
		"date": row["date"],
	}

	if status := row["status"]; status != "" {
		data["status"] = status
	}
	for _, field := range []string{"capacity", "tickets_total"} {
		if v := row[field]; v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				data[field] = n
			}
		}
	}

	return data
}
