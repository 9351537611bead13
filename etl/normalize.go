package etl

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/hauntworks/hauntsync/extract"
)

// Reject reasons
const (
	ReasonMissingRequired = "missing_required"
	ReasonInvalidDate     = "invalid_date"
)

// Reject records one dropped row. Rejects are values in the summary, never
// errors that abort a batch.
type Reject struct {
	Row    int
	Field  string
	Reason string
	Value  string
}

// NormalizedRows is the canonical-schema output of a normalization pass
type NormalizedRows struct {
	Kind    string
	Headers []string
	Rows    []map[string]string
}

// Per-kind canonical field classes
var (
	requiredFields = map[string][]string{
		"volunteers":    {"email"},
		"events":        {"name", "date"},
		"participation": {"email", "event_name", "event_date"},
		"groups":        {"name"},
		"ticket-sales":  {"event_name", "event_date"},
	}
	dateFields = map[string][]string{
		"volunteers":    {"date_of_birth"},
		"events":        {"date"},
		"participation": {"event_date"},
		"ticket-sales":  {"event_date"},
	}
	boolFields = map[string][]string{
		"volunteers": {"wear_mask", "waiver", "email_blocked"},
		"participation": {
			"signed_in", "confirmed", "waitlist", "conflict",
			"costume", "makeup", "under_18", "under_16",
		},
	}
	emailFields = map[string][]string{
		"volunteers":    {"email", "ice_email"},
		"participation": {"email"},
	}
)

// Date layouts the portals emit, timestamp tails included
var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"01/02/2006 15:04",
	"01/02/2006 3:04 PM",
}

// Normalize maps a raw export onto the canonical schema for the given
// report kind. Unmapped columns are dropped with a one-time warning per
// header; rows failing a required-field or date check are rejected with a
// reason, never fatally.
func Normalize(raw *extract.RawTable, mapping map[string]string, kind string) (*NormalizedRows, []Reject) {
	out := &NormalizedRows{Kind: kind}
	var rejects []Reject

	// Canonical headers in original column order. When two raw columns map
	// to the same canonical field the first one wins and the rest are
	// dropped like unmapped columns.
	warned := make(map[string]bool)
	claimed := make(map[string]string)
	dropped := make(map[string]bool)
	for _, header := range raw.Headers {
		canonical, ok := mapping[header]
		if !ok {
			if !warned[header] {
				slog.Warn("Dropping unmapped column", "report", kind, "header", header)
				warned[header] = true
			}
			continue
		}
		if first, taken := claimed[canonical]; taken {
			dropped[header] = true
			if !warned[header] {
				slog.Warn("Dropping column with duplicate mapping",
					"report", kind, "header", header, "canonical", canonical, "kept", first)
				warned[header] = true
			}
			continue
		}
		claimed[canonical] = header
		out.Headers = append(out.Headers, canonical)
	}

	dateSet := fieldSet(dateFields[kind])
	boolSet := fieldSet(boolFields[kind])
	emailSet := fieldSet(emailFields[kind])

	for i, rawRow := range raw.Rows {
		rowNum := i + 2 // 1-based with header row

		row := make(map[string]string, len(out.Headers))
		reject := false
		for _, header := range raw.Headers {
			canonical, ok := mapping[header]
			if !ok || dropped[header] {
				continue
			}

			value := strings.TrimSpace(rawRow[header])
			switch {
			case emailSet[canonical]:
				value = strings.ToLower(value)
			case dateSet[canonical]:
				if value != "" {
					parsed, err := ParseDate(value)
					if err != nil {
						rejects = append(rejects, Reject{
							Row:    rowNum,
							Field:  canonical,
							Reason: ReasonInvalidDate,
							Value:  value,
						})
						reject = true
					}
					value = parsed
				}
			case boolSet[canonical]:
				value = formatBool(CoerceBool(value))
			}
			row[canonical] = value
		}
		if reject {
			continue
		}

		missing := false
		for _, field := range requiredFields[kind] {
			if row[field] == "" {
				rejects = append(rejects, Reject{
					Row:    rowNum,
					Field:  field,
					Reason: ReasonMissingRequired,
				})
				missing = true
				break
			}
		}
		if missing {
			continue
		}

		out.Rows = append(out.Rows, row)
	}

	return out, rejects
}

// ParseDate parses a portal date value and returns it in canonical
// YYYY-MM-DD form. Impossible calendar dates fail.
func ParseDate(value string) (string, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", fmt.Errorf("unparseable date %q", value)
}

// CoerceBool interprets the portals' assorted truthy spellings, including
// the waiver form's "I agree".
func CoerceBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "i agree", "true", "yes", "y", "1", "x", "checked":
		return true
	default:
		return false
	}
}

func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func fieldSet(fields []string) map[string]bool {
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}

// SplitGroupNames splits a haunt-experience cell into normalized group
// names. Empty segments are dropped.
func SplitGroupNames(value string) []string {
	var names []string
	for _, part := range strings.Split(value, ";") {
		name := NormalizeGroupName(part)
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

// WriteCSV writes the normalized rows with canonical headers
func (n *NormalizedRows) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(n.Headers); err != nil {
		return fmt.Errorf("write header row: %w", err)
	}
	record := make([]string, len(n.Headers))
	for _, row := range n.Rows {
		for i, header := range n.Headers {
			record[i] = row[header]
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteRejectsCSV writes the reject report
func WriteRejectsCSV(w io.Writer, rejects []Reject) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"row", "field", "reason", "value"}); err != nil {
		return fmt.Errorf("write header row: %w", err)
	}
	for _, r := range rejects {
		record := []string{fmt.Sprintf("%d", r.Row), r.Field, r.Reason, r.Value}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write reject: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}
