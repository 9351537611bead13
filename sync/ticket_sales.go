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

// TicketSalesLoader replaces the ticket sales snapshot wholesale. Sales
// figures are a point-in-time capture, so stale rows are deleted and the
// new export inserted inside one transaction.
type TicketSalesLoader struct {
	BaseLoader
}

// NewTicketSalesLoader creates a new ticket sales loader
func NewTicketSalesLoader(app core.App, dryRun bool) *TicketSalesLoader {
	return &TicketSalesLoader{BaseLoader: NewBaseLoader(app, dryRun)}
}

// Name returns the pipeline job name this loader serves.
func (l *TicketSalesLoader) Name() string {
	return "ticket-sales"
}

// Load replaces all ticket sales rows with the normalized export. Either
// the whole snapshot lands or none of it does.
func (l *TicketSalesLoader) Load(ctx context.Context, rows *etl.NormalizedRows) error {
	start := time.Now()
	slog.Info("Starting load", "loader", l.Name(), "rows", len(rows.Rows))

	capturedAt := time.Now().UTC().Format("2006-01-02 15:04:05")

	var inserts []map[string]any
	for _, row := range rows.Rows {
		name := strings.TrimSpace(row["event_name"])
		date := row["event_date"]
		if name == "" || date == "" {
			l.Summary.Rejected++
			continue
		}

		data := map[string]any{
			"event_name":  name,
			"event_date":  date,
			"captured_at": capturedAt,
		}
		if v := row["tickets_sold"]; v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				data["tickets_sold"] = n
			}
		}
		if v := row["gross_sales"]; v != "" {
			if amount, err := strconv.ParseFloat(strings.TrimPrefix(v, "$"), 64); err == nil {
				data["gross_sales"] = amount
			}
		}
		if v := row["scanned"]; v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				data["scanned"] = n
			}
		}
		inserts = append(inserts, data)
	}

	stale, err := l.App.FindRecordsByFilter("ticket_sales", "", "", 0, 0)
	if err != nil {
		return fmt.Errorf("loading existing ticket sales: %w", err)
	}

	if l.DryRun {
		l.Summary.Created = len(inserts)
		l.Summary.Duration = int(time.Since(start).Seconds())
		slog.Info("Dry run: would replace ticket sales snapshot",
			"delete", len(stale), "insert", len(inserts))
		l.LogLoadComplete(l.Name())
		return nil
	}

	err = l.App.RunInTransaction(func(txApp core.App) error {
		for _, record := range stale {
			if err := txApp.Delete(record); err != nil {
				return fmt.Errorf("deleting stale ticket sales row: %w", err)
			}
		}

		col, err := txApp.FindCollectionByNameOrId("ticket_sales")
		if err != nil {
			return fmt.Errorf("finding ticket_sales collection: %w", err)
		}

		for _, data := range inserts {
			record := core.NewRecord(col)
			for field, value := range data {
				record.Set(field, value)
			}
			if err := txApp.Save(record); err != nil {
				return fmt.Errorf("inserting ticket sales row: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replacing ticket sales snapshot: %w", err)
	}

	l.Summary.Created = len(inserts)
	l.Summary.Duration = int(time.Since(start).Seconds())
	l.LogLoadComplete(l.Name())
	return nil
}
