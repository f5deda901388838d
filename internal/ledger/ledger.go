// Package ledger is the append-only store of work records. Rows are plain
// string slices in the column order of domain.WorkRecord.Row so a
// spreadsheet and a SQLite table can back the same reports.
package ledger

import (
	"context"
	"log"
	"time"

	"worklogbot/internal/apperr"
	"worklogbot/internal/domain"
)

// Column positions of a ledger row.
const (
	ColTimestamp = iota
	ColEmployee
	ColCategory
	ColPhone
	ColNote
	ColStatus
	NumColumns
)

// Ledger is a row store. ReadAllRows returns rows in append order, including
// any header rows a human may have added.
type Ledger interface {
	AppendRow(ctx context.Context, row []string) error
	ReadAllRows(ctx context.Context) ([][]string, error)
}

// Writer appends work records to a Ledger.
type Writer struct {
	ledger Ledger
	loc    *time.Location
}

// NewWriter formats timestamps in loc; nil means UTC.
func NewWriter(l Ledger, loc *time.Location) *Writer {
	if loc == nil {
		loc = time.UTC
	}
	return &Writer{ledger: l, loc: loc}
}

func (w *Writer) Append(ctx context.Context, rec domain.WorkRecord) error {
	if rec.Status == "" {
		rec.Status = domain.StatusDone
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	row := rec.Row(w.loc)
	if err := w.ledger.AppendRow(ctx, row); err != nil {
		log.Printf("ledger append error employee=%q phone=%s category=%s: %v", rec.EmployeeName, rec.Phone, rec.Category, err)
		return apperr.Upstream("Could not save the record to the ledger.", err).WithOp("ledger.Append")
	}
	log.Printf("ledger append ok employee=%q phone=%s category=%s", rec.EmployeeName, rec.Phone, rec.Category)
	return nil
}

// Cell returns row[i] or "" when the row is short.
func Cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
