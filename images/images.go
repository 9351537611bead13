// Package images matches profile photo files against volunteers by the
// file-name convention first_last_pic.ext, optionally labels the photo
// with the volunteer's name, and records the image path on the
// volunteer. This is the only writer of the image_url field; portal
// loads never touch it.
package images

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pocketbase/pocketbase/core"
)

const imageURLPrefix = "/images/"

// Match statuses
const (
	StatusMatched = "matched"
	StatusAliased = "aliased"
	StatusMissed  = "missed"
	StatusSkipped = "skipped"
)

var allowedExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// Options controls what MatchAndLabel is allowed to mutate
type Options struct {
	// Commit writes matches to the store; false is a pure dry-run
	Commit bool
	// Label overlays the volunteer name onto matched images
	Label bool
	// LabelOverwrite writes the label onto the original file instead
	// of a sibling *_labeled copy
	LabelOverwrite bool
}

// Entry is the outcome for one file in the image directory
type Entry struct {
	File    string
	Status  string
	Email   string
	Reason  string
	Labeled string
}

// MatchReport summarizes one matching pass
type MatchReport struct {
	Matched int
	Aliased int
	Missed  int
	Skipped int
	Entries []Entry
}

// MatchAndLabel walks dir, resolves each image file to a volunteer and,
// with Commit, records the image path on the matched record. aliasPath
// may name a CSV of token,email overrides; the image_aliases collection
// is always consulted as well.
func MatchAndLabel(app core.App, dir, aliasPath string, opts Options) (*MatchReport, error) {
	byName, byEmail, err := loadVolunteers(app)
	if err != nil {
		return nil, err
	}
	aliases, err := loadAliases(app, aliasPath)
	if err != nil {
		return nil, err
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading image dir: %w", err)
	}

	report := &MatchReport{}
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		name := file.Name()
		if isLabeledOutput(name) {
			continue
		}

		entry := Entry{File: name}
		token := fileToken(name)

		first, last, parseErr := parseName(name)
		if parseErr != nil && !allowedExts[strings.ToLower(filepath.Ext(name))] {
			entry.Status = StatusSkipped
			entry.Reason = parseErr.Error()
			report.Skipped++
			report.Entries = append(report.Entries, entry)
			continue
		}

		email, status, reason := resolve(first, last, token, byName, aliases)
		if parseErr != nil && status == StatusMissed {
			status, reason = StatusSkipped, parseErr.Error()
		}

		entry.Status = status
		entry.Email = email
		entry.Reason = reason

		if email != "" {
			record, ok := byEmail[email]
			if !ok {
				entry.Status = StatusMissed
				entry.Email = ""
				entry.Reason = fmt.Sprintf("alias target %s not found", email)
			} else if opts.Commit {
				if err := commitMatch(app, record, name); err != nil {
					slog.Error("Failed to record image match", "file", name, "email", email, "error", err)
					entry.Status = StatusMissed
					entry.Reason = err.Error()
				} else if opts.Label {
					display := strings.TrimSpace(record.GetString("first_name") + " " + record.GetString("last_name"))
					labeled, err := labelImage(filepath.Join(dir, name), display, opts.LabelOverwrite)
					if err != nil {
						slog.Warn("Failed to label image", "file", name, "error", err)
					} else {
						entry.Labeled = filepath.Base(labeled)
					}
				}
			}
		}

		switch entry.Status {
		case StatusMatched:
			report.Matched++
		case StatusAliased:
			report.Aliased++
		case StatusMissed:
			report.Missed++
		case StatusSkipped:
			report.Skipped++
		}
		report.Entries = append(report.Entries, entry)
	}

	slog.Info("Image matching complete",
		"dir", dir,
		"matched", report.Matched,
		"aliased", report.Aliased,
		"missed", report.Missed,
		"skipped", report.Skipped,
		"dry_run", !opts.Commit)
	return report, nil
}

// parseName extracts the first/last name from a first_last_pic.ext file
// name. Extra underscore-separated tokens before the pic marker become
// parts of the last name.
func parseName(filename string) (first, last string, err error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExts[ext] {
		return "", "", fmt.Errorf("unsupported extension %q", ext)
	}

	base := strings.ToLower(strings.TrimSuffix(filename, filepath.Ext(filename)))
	parts := strings.Split(base, "_")
	if len(parts) < 3 || parts[len(parts)-1] != "pic" {
		return "", "", fmt.Errorf("%q does not follow the first_last_pic naming convention", filename)
	}

	first = parts[0]
	last = strings.Join(parts[1:len(parts)-1], " ")
	if first == "" || last == "" {
		return "", "", fmt.Errorf("%q has an empty name token", filename)
	}
	return first, last, nil
}

// fileToken is the alias lookup key for a file: the lowercased base
// name without extension
func fileToken(filename string) string {
	return strings.ToLower(strings.TrimSuffix(filename, filepath.Ext(filename)))
}

func nameKey(first, last string) string {
	return strings.ToLower(strings.TrimSpace(first)) + "|" + strings.ToLower(strings.TrimSpace(last))
}

// resolve picks the volunteer for a file. Exact name match wins; an
// ambiguous or missed name falls back to the alias table.
func resolve(first, last, token string, byName map[string][]string, aliases map[string]string) (email, status, reason string) {
	if first != "" {
		emails := byName[nameKey(first, last)]
		if len(emails) == 1 {
			return emails[0], StatusMatched, ""
		}
		if len(emails) > 1 {
			if email, ok := aliases[token]; ok {
				return email, StatusAliased, ""
			}
			return "", StatusMissed, fmt.Sprintf("%d volunteers named %s %s", len(emails), first, last)
		}
	}
	if email, ok := aliases[token]; ok {
		return email, StatusAliased, ""
	}
	return "", StatusMissed, "no matching volunteer"
}

func isLabeledOutput(filename string) bool {
	base := strings.ToLower(strings.TrimSuffix(filename, filepath.Ext(filename)))
	return strings.HasSuffix(base, "_labeled")
}

func commitMatch(app core.App, record *core.Record, filename string) error {
	url := imageURLPrefix + filename
	if record.GetString("image_url") == url {
		return nil
	}
	record.Set("image_url", url)
	return app.Save(record)
}

func loadVolunteers(app core.App) (byName map[string][]string, byEmail map[string]*core.Record, err error) {
	records, err := app.FindRecordsByFilter("volunteers", "", "", 0, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("loading volunteers: %w", err)
	}

	byName = make(map[string][]string)
	byEmail = make(map[string]*core.Record)
	for _, record := range records {
		email := strings.ToLower(record.GetString("email"))
		if email == "" {
			continue
		}
		byEmail[email] = record
		key := nameKey(record.GetString("first_name"), record.GetString("last_name"))
		if key != "|" {
			byName[key] = append(byName[key], email)
		}
	}
	return byName, byEmail, nil
}

// loadAliases merges the image_aliases collection with the optional CSV
// file; CSV rows win on conflicting tokens
func loadAliases(app core.App, csvPath string) (map[string]string, error) {
	aliases := make(map[string]string)

	records, err := app.FindRecordsByFilter("image_aliases", "", "", 0, 0)
	if err != nil {
		slog.Warn("Failed to load image_aliases collection", "error", err)
	} else {
		for _, record := range records {
			token := strings.ToLower(strings.TrimSpace(record.GetString("token")))
			email := strings.ToLower(strings.TrimSpace(record.GetString("email")))
			if token != "" && email != "" {
				aliases[token] = email
			}
		}
	}

	if csvPath == "" {
		return aliases, nil
	}
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, fmt.Errorf("opening alias file: %w", err)
	}
	defer f.Close()

	if err := readAliasCSV(f, aliases); err != nil {
		return nil, fmt.Errorf("parsing alias file %s: %w", csvPath, err)
	}
	return aliases, nil
}

func readAliasCSV(r io.Reader, aliases map[string]string) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if len(row) < 2 {
			continue
		}
		token := strings.ToLower(strings.TrimSpace(row[0]))
		email := strings.ToLower(strings.TrimSpace(row[1]))
		if token == "" || token == "token" || email == "" {
			continue
		}
		aliases[token] = email
	}
}
