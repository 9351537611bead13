package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pocketbase/pocketbase/core"
	"google.golang.org/api/sheets/v4"
)

const (
	// Sheet tab names
	tabRoster  = "Roster"
	tabSignups = "Signups"
)

// SheetsWriter interface for writing to Google Sheets (enables mocking)
type SheetsWriter interface {
	WriteToSheet(ctx context.Context, spreadsheetID, sheetTab string, data [][]interface{}) error
	ClearSheet(ctx context.Context, spreadsheetID, sheetTab string) error
}

// RealSheetsWriter implements SheetsWriter using the Google Sheets API
type RealSheetsWriter struct {
	service *sheets.Service
}

// NewRealSheetsWriter creates a new RealSheetsWriter
func NewRealSheetsWriter(service *sheets.Service) *RealSheetsWriter {
	return &RealSheetsWriter{service: service}
}

// WriteToSheet writes data to a specific sheet tab
func (w *RealSheetsWriter) WriteToSheet(ctx context.Context, spreadsheetID, sheetTab string, data [][]interface{}) error {
	valueRange := &sheets.ValueRange{
		Values: data,
	}

	_, err := w.service.Spreadsheets.Values.Update(
		spreadsheetID,
		sheetTab+"!A1",
		valueRange,
	).ValueInputOption("RAW").Context(ctx).Do()

	return err
}

// ClearSheet clears all data from a sheet tab
func (w *RealSheetsWriter) ClearSheet(ctx context.Context, spreadsheetID, sheetTab string) error {
	_, err := w.service.Spreadsheets.Values.Clear(
		spreadsheetID,
		sheetTab+"!A:Z",
		&sheets.ClearValuesRequest{},
	).Context(ctx).Do()

	return err
}

// RosterRow is one volunteer line of the roster export
type RosterRow struct {
	Email      string
	FirstName  string
	LastName   string
	Phone      string
	TshirtSize string
	Waiver     bool
	Groups     string
}

// SignupRow is one line of the signup summary export
type SignupRow struct {
	Volunteer string
	Event     string
	EventDate string
	Task      string
	Hours     float64
	SignedIn  bool
}

// SheetsExportJob pushes the volunteer roster and signup summary to a
// Google Sheets spreadsheet as the pipeline tail step
type SheetsExportJob struct {
	app           core.App
	writer        SheetsWriter
	spreadsheetID string
	summary       LoadSummary
}

// NewSheetsExportJob creates the export job backed by the real Sheets API
func NewSheetsExportJob(app core.App, service *sheets.Service, spreadsheetID string) *SheetsExportJob {
	return &SheetsExportJob{
		app:           app,
		writer:        NewRealSheetsWriter(service),
		spreadsheetID: spreadsheetID,
	}
}

// Name returns the job name
func (g *SheetsExportJob) Name() string {
	return "sheets_export"
}

// GetSummary returns the export summary
func (g *SheetsExportJob) GetSummary() LoadSummary {
	return g.summary
}

// Run exports the roster and signup summary. Export failures never touch
// the store; the orchestrator logs them without aborting the sequence.
func (g *SheetsExportJob) Run(ctx context.Context) error {
	start := time.Now()
	slog.Info("Starting Sheets export", "spreadsheet_id", g.spreadsheetID)

	roster, err := g.loadRoster()
	if err != nil {
		return err
	}
	signups, err := g.loadSignups()
	if err != nil {
		return err
	}

	if err := g.export(ctx, roster, signups); err != nil {
		return err
	}

	g.summary = LoadSummary{
		Updated:  len(roster) + len(signups),
		Duration: int(time.Since(start).Seconds()),
	}
	slog.Info("Sheets export complete", "roster_rows", len(roster), "signup_rows", len(signups))
	return nil
}

func (g *SheetsExportJob) loadRoster() ([]RosterRow, error) {
	records, err := g.app.FindRecordsByFilter("volunteers", "", "last_name", 0, 0)
	if err != nil {
		return nil, fmt.Errorf("loading volunteers for export: %w", err)
	}

	groupNames := make(map[string]string)
	groups, err := g.app.FindRecordsByFilter("groups", "", "", 0, 0)
	if err != nil {
		return nil, fmt.Errorf("loading groups for export: %w", err)
	}
	for _, group := range groups {
		groupNames[group.Id] = group.GetString("name")
	}

	rows := make([]RosterRow, 0, len(records))
	for _, record := range records {
		names := ""
		for i, id := range record.GetStringSlice("groups") {
			if i > 0 {
				names += "; "
			}
			names += groupNames[id]
		}
		rows = append(rows, RosterRow{
			Email:      record.GetString("email"),
			FirstName:  record.GetString("first_name"),
			LastName:   record.GetString("last_name"),
			Phone:      record.GetString("phone1"),
			TshirtSize: record.GetString("tshirt_size"),
			Waiver:     record.GetBool("waiver"),
			Groups:     names,
		})
	}
	return rows, nil
}

func (g *SheetsExportJob) loadSignups() ([]SignupRow, error) {
	records, err := g.app.FindRecordsByFilter("event_signups", "", "", 0, 0)
	if err != nil {
		return nil, fmt.Errorf("loading signups for export: %w", err)
	}

	volunteerNames := make(map[string]string)
	volunteers, err := g.app.FindRecordsByFilter("volunteers", "", "", 0, 0)
	if err != nil {
		return nil, fmt.Errorf("loading volunteers for signup export: %w", err)
	}
	for _, v := range volunteers {
		volunteerNames[v.Id] = fmt.Sprintf("%s %s", v.GetString("first_name"), v.GetString("last_name"))
	}

	eventInfo := make(map[string]*core.Record)
	events, err := g.app.FindRecordsByFilter("events", "", "", 0, 0)
	if err != nil {
		return nil, fmt.Errorf("loading events for signup export: %w", err)
	}
	for _, e := range events {
		eventInfo[e.Id] = e
	}

	rows := make([]SignupRow, 0, len(records))
	for _, record := range records {
		row := SignupRow{
			Volunteer: volunteerNames[record.GetString("volunteer")],
			Task:      record.GetString("task"),
			Hours:     record.GetFloat("hours"),
			SignedIn:  record.GetBool("signed_in"),
		}
		if event, ok := eventInfo[record.GetString("event")]; ok {
			row.Event = event.GetString("name")
			row.EventDate = event.GetString("date")
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// export clears and rewrites both tabs
func (g *SheetsExportJob) export(ctx context.Context, roster []RosterRow, signups []SignupRow) error {
	rosterData := [][]interface{}{
		{"Email", "First Name", "Last Name", "Phone", "T-Shirt", "Waiver", "Groups"},
	}
	for _, r := range roster {
		rosterData = append(rosterData, []interface{}{
			r.Email, r.FirstName, r.LastName, r.Phone, r.TshirtSize, r.Waiver, r.Groups,
		})
	}

	signupData := [][]interface{}{
		{"Volunteer", "Event", "Date", "Task", "Hours", "Signed In"},
	}
	for _, s := range signups {
		signupData = append(signupData, []interface{}{
			s.Volunteer, s.Event, s.EventDate, s.Task, s.Hours, s.SignedIn,
		})
	}

	for tab, data := range map[string][][]interface{}{tabRoster: rosterData, tabSignups: signupData} {
		if err := g.writer.ClearSheet(ctx, g.spreadsheetID, tab); err != nil {
			return fmt.Errorf("clearing %s tab: %w", tab, err)
		}
		if err := g.writer.WriteToSheet(ctx, g.spreadsheetID, tab, data); err != nil {
			return fmt.Errorf("writing %s tab: %w", tab, err)
		}
	}
	return nil
}
