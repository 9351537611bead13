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

// SignupsLoader upserts event signups, the join between volunteers and
// events. Both parents must already exist; a signup is never created
// against a missing volunteer or event.
type SignupsLoader struct {
	BaseLoader
	Unresolved int
}

// NewSignupsLoader creates a new signups loader
func NewSignupsLoader(app core.App, dryRun bool) *SignupsLoader {
	return &SignupsLoader{BaseLoader: NewBaseLoader(app, dryRun)}
}

// Name returns the pipeline job name this loader serves.
func (l *SignupsLoader) Name() string {
	return "participation"
}

// Load upserts all normalized participation rows. Rows whose volunteer or
// event cannot be resolved are skipped with reason unresolved_parent.
func (l *SignupsLoader) Load(ctx context.Context, rows *etl.NormalizedRows) error {
	start := time.Now()
	slog.Info("Starting load", "loader", l.Name(), "rows", len(rows.Rows))

	volunteerIDs, err := l.preloadIDsByKey("volunteers", func(r *core.Record) (string, bool) {
		email := strings.ToLower(r.GetString("email"))
		return email, email != ""
	})
	if err != nil {
		return err
	}

	eventIDs, err := l.preloadIDsByKey("events", func(r *core.Record) (string, bool) {
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

	existing, err := l.PreloadByKey("event_signups", func(r *core.Record) (string, bool) {
		volunteer := r.GetString("volunteer")
		event := r.GetString("event")
		if volunteer == "" || event == "" {
			return "", false
		}
		return signupKey(volunteer, event), true
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

		email := strings.ToLower(strings.TrimSpace(row["email"]))
		eventKey := EventKey(row["event_name"], row["event_date"])

		volunteerID, volOK := volunteerIDs[email]
		eventID, evtOK := eventIDs[eventKey]
		if !volOK || !evtOK {
			slog.Warn("Skipping signup with unresolved parent",
				"reason", "unresolved_parent",
				"volunteer", email,
				"event", eventKey,
				"volunteer_found", volOK,
				"event_found", evtOK)
			l.Unresolved++
			l.Summary.Rejected++
			continue
		}

		data := buildSignupData(row)
		data["volunteer"] = volunteerID
		data["event"] = eventID

		if err := l.Upsert("event_signups", signupKey(volunteerID, eventID), data, existing, nil); err != nil {
			slog.Error("Signup upsert failed", "volunteer", email, "event", eventKey, "error", err)
			l.Summary.Errors++
		}
	}

	l.Summary.Duration = int(time.Since(start).Seconds())
	l.LogLoadComplete(l.Name())
	return nil
}

func signupKey(volunteerID, eventID string) string {
	return fmt.Sprintf("%s|%s", volunteerID, eventID)
}

// preloadIDsByKey maps natural keys to record IDs for parent resolution
func (l *SignupsLoader) preloadIDsByKey(
	collection string,
	keyFn func(*core.Record) (string, bool),
) (map[string]string, error) {
	records, err := l.App.FindRecordsByFilter(collection, "", "", 0, 0)
	if err != nil {
		return nil, fmt.Errorf("preloading %s: %w", collection, err)
	}

	ids := make(map[string]string, len(records))
	for _, record := range records {
		if key, ok := keyFn(record); ok {
			ids[key] = record.Id
		}
	}
	return ids, nil
}

// buildSignupData maps a normalized participation row onto signup fields.
// Parent relations are attached by the caller.
func buildSignupData(row map[string]string) map[string]any {
	data := map[string]any{}

	for _, field := range []string{"task", "slot_row", "slot_column", "start_time", "end_time"} {
		if value, ok := row[field]; ok {
			data[field] = value
		}
	}

	if v := row["hours"]; v != "" {
		if hours, err := strconv.ParseFloat(v, 64); err == nil {
			data["hours"] = hours
		}
	}
	if v := row["points"]; v != "" {
		if points, err := strconv.Atoi(v); err == nil {
			data["points"] = points
		}
	}

	boolSignupFields := []string{
		"signed_in", "confirmed", "waitlist", "conflict",
		"costume", "makeup", "under_18", "under_16",
	}
	for _, field := range boolSignupFields {
		if value, ok := row[field]; ok {
			data[field] = value == "true"
		}
	}

	return data
}
