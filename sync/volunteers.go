package sync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pocketbase/pocketbase/core"

	"github.com/hauntworks/hauntsync/etl"
)

// Volunteer fields the loader never overwrites: image_url belongs to the
// image matcher, is_operator to the admins.
var volunteerProtectedFields = []string{"image_url", "is_operator"}

// VolunteersLoader upserts volunteer rows keyed by case-folded email and
// resolves haunt-experience group names into group memberships.
type VolunteersLoader struct {
	BaseLoader
}

// NewVolunteersLoader creates a new volunteers loader
func NewVolunteersLoader(app core.App, dryRun bool) *VolunteersLoader {
	return &VolunteersLoader{BaseLoader: NewBaseLoader(app, dryRun)}
}

// Name returns the loader name
func (l *VolunteersLoader) Name() string {
	return "volunteers"
}

// Load upserts all normalized volunteer rows. Row-level problems aggregate
// into the summary; only store-level failures abort.
func (l *VolunteersLoader) Load(ctx context.Context, rows *etl.NormalizedRows) error {
	start := time.Now()
	slog.Info("Starting load", "loader", l.Name(), "rows", len(rows.Rows))

	existing, err := l.PreloadByKey("volunteers", func(r *core.Record) (string, bool) {
		email := strings.ToLower(r.GetString("email"))
		return email, email != ""
	})
	if err != nil {
		return err
	}

	groupIDs, err := l.preloadGroupIDs()
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
		if email == "" {
			l.Summary.Rejected++
			continue
		}

		data := buildVolunteerData(row)
		data["groups"] = l.resolveGroups(row["haunt_experience"], groupIDs, email)

		if err := l.Upsert("volunteers", email, data, existing, volunteerProtectedFields); err != nil {
			slog.Error("Volunteer upsert failed", "email", email, "error", err)
			l.Summary.Errors++
		}
	}

	l.Summary.Duration = int(time.Since(start).Seconds())
	l.LogLoadComplete(l.Name())
	return nil
}

// buildVolunteerData maps a normalized row onto volunteer record fields.
// Haunt experience is resolved separately into group relations.
func buildVolunteerData(row map[string]string) map[string]any {
	data := map[string]any{
		"email": strings.ToLower(strings.TrimSpace(row["email"])),
	}

	textFields := []string{
		"first_name", "last_name", "date_of_birth", "tshirt_size",
		"address", "city", "state", "zipcode", "country", "company",
		"phone1", "phone2", "ice_name", "ice_relationship", "ice_phone",
		"allergies", "referral_source",
	}
	for _, field := range textFields {
		if value, ok := row[field]; ok {
			data[field] = value
		}
	}

	for _, field := range []string{"wear_mask", "waiver", "email_blocked"} {
		if value, ok := row[field]; ok {
			data[field] = value == "true"
		}
	}

	return data
}

// preloadGroupIDs maps normalized group names to record IDs
func (l *VolunteersLoader) preloadGroupIDs() (map[string]string, error) {
	records, err := l.App.FindRecordsByFilter("groups", "", "", 0, 0)
	if err != nil {
		return nil, fmt.Errorf("preloading groups: %w", err)
	}

	ids := make(map[string]string, len(records))
	for _, record := range records {
		if name := etl.NormalizeGroupName(record.GetString("name")); name != "" {
			ids[name] = record.Id
		}
	}
	return ids, nil
}

// resolveGroups maps a haunt-experience cell to group record IDs. Unknown
// group names drop that membership, never the volunteer.
func (l *VolunteersLoader) resolveGroups(experience string, groupIDs map[string]string, email string) []string {
	var resolved []string
	for _, name := range etl.SplitGroupNames(experience) {
		id, ok := groupIDs[name]
		if !ok {
			slog.Warn("Unknown group in haunt experience", "group", name, "volunteer", email)
			continue
		}
		resolved = append(resolved, id)
	}
	return resolved
}
