package sync

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/pocketbase/pocketbase/core"
)

// Collections cleared by a reset, in dependency order: join and snapshot
// rows first, then the entities they reference.
var resetOrder = []string{"event_signups", "ticket_sales", "volunteers", "groups", "events"}

// ResetCounts reports how many rows were (or would be) deleted per
// collection, plus the operator accounts that were preserved.
type ResetCounts struct {
	Deleted   map[string]int
	Preserved int
	DryRun    bool
}

// ResetData deletes all pipeline-owned rows. Volunteers flagged
// is_operator survive. Dry-run computes counts with zero mutation;
// otherwise everything happens in one transaction.
func ResetData(app core.App, dryRun bool) (*ResetCounts, error) {
	counts := &ResetCounts{Deleted: make(map[string]int), DryRun: dryRun}

	plan := make(map[string][]*core.Record)
	for _, collection := range resetOrder {
		records, err := app.FindRecordsByFilter(collection, "", "", 0, 0)
		if err != nil {
			return nil, fmt.Errorf("loading %s for reset: %w", collection, err)
		}

		var targets []*core.Record
		for _, record := range records {
			if collection == "volunteers" && record.GetBool("is_operator") {
				counts.Preserved++
				continue
			}
			targets = append(targets, record)
		}
		plan[collection] = targets
		counts.Deleted[collection] = len(targets)
	}

	if dryRun {
		for _, collection := range resetOrder {
			slog.Info("Dry run: would delete", "collection", collection, "count", counts.Deleted[collection])
		}
		slog.Info("Dry run: operator accounts preserved", "count", counts.Preserved)
		return counts, nil
	}

	err := app.RunInTransaction(func(txApp core.App) error {
		for _, collection := range resetOrder {
			for _, record := range plan[collection] {
				if err := txApp.Delete(record); err != nil {
					return fmt.Errorf("deleting from %s: %w", collection, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reset transaction: %w", err)
	}

	for _, collection := range resetOrder {
		slog.Info("Reset deleted rows", "collection", collection, "count", counts.Deleted[collection])
	}
	slog.Info("Reset preserved operator accounts", "count", counts.Preserved)
	return counts, nil
}

// ConfirmReset decides whether a destructive reset may proceed. A --yes
// flag always confirms. Without it, an interactive stdin gets a y/N
// prompt; a non-interactive one refuses, so scripted runs must pass --yes
// explicitly.
func ConfirmReset(in io.Reader, out io.Writer, interactive, yes bool) (bool, error) {
	if yes {
		return true, nil
	}
	if !interactive {
		return false, fmt.Errorf("refusing to reset without --yes on non-interactive input")
	}

	fmt.Fprint(out, "This deletes all volunteer, event, signup and ticket data. Continue? [y/N] ")
	reader := bufio.NewReader(in)
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("reading confirmation: %w", err)
	}

	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
