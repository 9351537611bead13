// Package sync loads normalized portal data into the PocketBase store.
package sync

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/pocketbase/pocketbase/core"
)

// LoadSummary holds the outcome counts of one loader pass
type LoadSummary struct {
	Created  int `json:"created"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
	Rejected int `json:"rejected"`
	Errors   int `json:"errors"`
	Duration int `json:"duration"` // Duration in seconds
}

// BaseLoader provides common functionality for all loaders: natural-key
// preload, field-level merge upsert, and summary accounting. Loaders never
// delete records; stale rows simply stop being updated.
type BaseLoader struct {
	App     core.App
	DryRun  bool
	Summary LoadSummary
}

// NewBaseLoader creates a new base loader
func NewBaseLoader(app core.App, dryRun bool) BaseLoader {
	return BaseLoader{App: app, DryRun: dryRun}
}

// GetSummary returns the current summary
func (b *BaseLoader) GetSummary() LoadSummary {
	return b.Summary
}

// LogLoadComplete logs loader completion with standardized counts
func (b *BaseLoader) LogLoadComplete(name string) {
	slog.Info("Load complete",
		"loader", name,
		"dry_run", b.DryRun,
		"stats", fmt.Sprintf("created=%d, updated=%d, skipped=%d, rejected=%d, errors=%d",
			b.Summary.Created, b.Summary.Updated, b.Summary.Skipped, b.Summary.Rejected, b.Summary.Errors))
}

// PreloadByKey loads all records of a collection into a map keyed by the
// natural key. keyFn returns false for records that should not participate
// in matching.
func (b *BaseLoader) PreloadByKey(
	collection string,
	keyFn func(*core.Record) (string, bool),
) (map[string]*core.Record, error) {
	existing := make(map[string]*core.Record)

	records, err := b.App.FindRecordsByFilter(collection, "", "", 0, 0)
	if err != nil {
		return nil, fmt.Errorf("preloading %s: %w", collection, err)
	}

	for _, record := range records {
		if key, ok := keyFn(record); ok {
			existing[key] = record
		}
	}

	slog.Info("Preloaded existing records", "collection", collection, "count", len(existing))
	return existing, nil
}

// Upsert creates or merges one record by its natural key. On merge, only
// non-empty incoming fields overwrite, protected fields are never touched,
// and an unchanged record counts as skipped. Dry-run computes the same
// counts without saving.
func (b *BaseLoader) Upsert(
	collection string,
	key string,
	data map[string]any,
	existing map[string]*core.Record,
	protected []string,
) error {
	protectedSet := make(map[string]bool, len(protected))
	for _, field := range protected {
		protectedSet[field] = true
	}

	if record, ok := existing[key]; ok {
		needsUpdate := false
		for field, value := range data {
			if protectedSet[field] || isEmptyValue(value) {
				continue
			}
			if !FieldEquals(record.Get(field), value) {
				record.Set(field, value)
				needsUpdate = true
			}
		}

		if !needsUpdate {
			b.Summary.Skipped++
			return nil
		}
		if !b.DryRun {
			if err := b.App.Save(record); err != nil {
				return fmt.Errorf("updating %s record %q: %w", collection, key, err)
			}
		}
		b.Summary.Updated++
		return nil
	}

	col, err := b.App.FindCollectionByNameOrId(collection)
	if err != nil {
		return fmt.Errorf("finding collection %s: %w", collection, err)
	}

	record := core.NewRecord(col)
	for field, value := range data {
		record.Set(field, value)
	}
	if !b.DryRun {
		if err := b.App.Save(record); err != nil {
			return fmt.Errorf("creating %s record %q: %w", collection, key, err)
		}
	}
	// Record the create in the preload map either way, so a duplicate key
	// later in the batch merges instead of double-creating and dry-run
	// counts match a real run.
	existing[key] = record
	b.Summary.Created++
	return nil
}

// isEmptyValue reports whether an incoming field value carries no data and
// must not overwrite an existing value during merge
func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []string:
		return len(t) == 0
	default:
		return false
	}
}

// FieldEquals compares a stored field value against an incoming one,
// handling the type skew between SQLite reads and loader writes
//
//nolint:gocyclo // type comparison requires many branches
func FieldEquals(existingValue any, newValue any) bool {
	// nil vs empty string equivalence
	if (existingValue == nil && newValue == "") || (existingValue == "" && newValue == nil) {
		return true
	}
	if (existingValue == nil && newValue == 0) || (existingValue == 0 && newValue == nil) {
		return true
	}

	// Relation lists compare as sets
	if existingList, ok := toStringSlice(existingValue); ok {
		if newList, ok := toStringSlice(newValue); ok {
			return stringSetEqual(existingList, newList)
		}
	}

	// DateTime values stringify before comparison
	if stringer, ok := existingValue.(fmt.Stringer); ok {
		existingValue = stringer.String()
	}

	if existingStr, ok := existingValue.(string); ok {
		if newStr, ok := newValue.(string); ok {
			if looksLikeDate(existingStr) && looksLikeDate(newStr) {
				return normalizeDateValue(existingStr) == normalizeDateValue(newStr)
			}
			return existingStr == newStr
		}
	}

	// Numeric cross-type comparison (DB reads come back as float64)
	if existingFloat, ok := existingValue.(float64); ok {
		switch n := newValue.(type) {
		case int:
			return int(existingFloat) == n
		case float64:
			return existingFloat == n
		case bool:
			// SQLite stores BOOLEAN as 0/1
			return (existingFloat != 0) == n
		}
	}
	if existingInt, ok := existingValue.(int); ok {
		switch n := newValue.(type) {
		case float64:
			return existingInt == int(n)
		case int:
			return existingInt == n
		}
	}

	if existingBool, ok := existingValue.(bool); ok {
		switch n := newValue.(type) {
		case bool:
			return existingBool == n
		case float64:
			return existingBool == (n != 0)
		}
	}

	return existingValue == newValue
}

func toStringSlice(v any) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

func stringSetEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]int, len(a))
	for _, s := range a {
		set[s]++
	}
	for _, s := range b {
		set[s]--
		if set[s] < 0 {
			return false
		}
	}
	return true
}

func looksLikeDate(s string) bool {
	return strings.Contains(s, "-") && (strings.Contains(s, ":") || len(s) == 10)
}

// normalizeDateValue strips fractional seconds, timezone suffixes and the
// T separator so stored and incoming timestamps compare cleanly
func normalizeDateValue(dateStr string) string {
	result := dateStr

	if idx := strings.Index(result, "."); idx != -1 {
		endIdx := idx + 1
		for endIdx < len(result) && result[endIdx] >= '0' && result[endIdx] <= '9' {
			endIdx++
		}
		result = result[:idx] + result[endIdx:]
	}

	result = strings.Replace(result, "T", " ", 1)
	result = strings.TrimSuffix(result, "Z")

	if len(result) > 6 {
		lastSix := result[len(result)-6:]
		if (lastSix[0] == '+' || lastSix[0] == '-') && lastSix[3] == ':' {
			result = result[:len(result)-6]
		}
	}

	result = strings.TrimSpace(result)

	// A bare date and a midnight timestamp are the same instant
	result = strings.TrimSuffix(result, " 00:00:00")

	return result
}
