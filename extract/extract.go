// Package extract pulls report exports out of a portal session and parses
// them into raw tables keyed by the portal's own headers.
package extract

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/hauntworks/hauntsync/portal"
)

// ReportSpec describes one portal report export
type ReportSpec struct {
	// Name identifies the report in logs, file names and errors
	Name string
	// Portal kind that serves this report
	Portal string
	// ViewID is the portal view holding the export control
	ViewID string
	// WaitSelector must be visible before the export is triggered
	WaitSelector string
	// Trigger is the selector of the export control
	Trigger string
	// MinRows is the minimum acceptable data row count; 0 disables the check
	MinRows int
}

// RawTable is a parsed export: the verbatim header row plus ordered rows of
// header -> cell text. No normalization has happened yet.
type RawTable struct {
	Report     string
	Headers    []string
	Rows       []map[string]string
	SourcePath string
}

// Report navigates the session to the report view, triggers the export,
// waits for the download and parses it. Incomplete exports return
// *portal.ExtractionError; partial data is never accepted.
func Report(ctx context.Context, session *portal.Session, spec ReportSpec) (*RawTable, error) {
	if err := session.NavigateTo(ctx, spec.ViewID); err != nil {
		return nil, fmt.Errorf("open report view %s: %w", spec.ViewID, err)
	}
	if spec.WaitSelector != "" {
		if err := session.WaitFor(ctx, spec.WaitSelector, 30*time.Second); err != nil {
			return nil, fmt.Errorf("report view %s not ready: %w", spec.ViewID, err)
		}
	}

	path, err := session.DownloadExport(ctx, spec.Trigger, spec.Name)
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", spec.Name, err)
	}

	table, err := ParseFile(path, spec)
	if err != nil {
		return nil, err
	}

	slog.Info("Report extracted", "report", spec.Name, "rows", len(table.Rows), "file", path)
	return table, nil
}

// ParseFile parses an already-downloaded export with the same
// completeness checks as Report
func ParseFile(path string, spec ReportSpec) (*RawTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open export: %w", err)
	}
	defer func() { _ = f.Close() }()

	table, err := Parse(f, spec)
	if err != nil {
		return nil, err
	}
	table.SourcePath = path
	return table, nil
}

// Parse reads CSV export data and enforces completeness: a header row must
// be present, every record must carry the full field count, and the row
// count must reach spec.MinRows when configured.
func Parse(r io.Reader, spec ReportSpec) (*RawTable, error) {
	reader := csv.NewReader(r)
	// FieldsPerRecord locks to the header width after the first read, so
	// short or ragged records fail the parse instead of silently shifting
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err == io.EOF {
		return nil, &portal.ExtractionError{Report: spec.Name, Reason: "export is empty"}
	}
	if err != nil {
		return nil, &portal.ExtractionError{Report: spec.Name, Reason: fmt.Sprintf("unreadable header row: %v", err)}
	}
	if len(headers) == 0 || (len(headers) == 1 && headers[0] == "") {
		return nil, &portal.ExtractionError{Report: spec.Name, Reason: "header row is blank"}
	}

	table := &RawTable{Report: spec.Name, Headers: headers}

	rowNum := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			return nil, &portal.ExtractionError{
				Report: spec.Name,
				Reason: fmt.Sprintf("malformed record at row %d: %v", rowNum, err),
			}
		}

		row := make(map[string]string, len(headers))
		for i, header := range headers {
			row[header] = record[i]
		}
		table.Rows = append(table.Rows, row)
	}

	if spec.MinRows > 0 && len(table.Rows) < spec.MinRows {
		return nil, &portal.ExtractionError{
			Report: spec.Name,
			Reason: fmt.Sprintf("%d rows, expected at least %d", len(table.Rows), spec.MinRows),
		}
	}

	return table, nil
}
