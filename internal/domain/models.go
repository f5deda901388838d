package domain

import (
	"strings"
	"time"
)

const StatusDone = "done"

// LedgerTimeLayout is how record timestamps are written to the ledger.
const LedgerTimeLayout = "2006-01-02 15:04:05"

// WorkRecord is one logged customer interaction. Phone is canonical.
type WorkRecord struct {
	Timestamp    time.Time
	EmployeeName string
	Category     CategoryCode
	Phone        string
	Note         string
	Status       string
}

// Row is the ledger column layout: timestamp, employee, code, phone, note, status.
func (r WorkRecord) Row(loc *time.Location) []string {
	ts := r.Timestamp
	if loc != nil {
		ts = ts.In(loc)
	}
	return []string{
		ts.Format(LedgerTimeLayout),
		r.EmployeeName,
		string(r.Category),
		r.Phone,
		r.Note,
		r.Status,
	}
}

// Contact is a CRM customer record; read-only here.
type Contact struct {
	ID        string
	FirstName string
	LastName  string
	Phones    []string
}

func (c Contact) DisplayName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Count is one group of a report, e.g. an employee and their record count.
type Count struct {
	Key     string
	Count   int
	Minutes int
}

// AggregateReport is rebuilt from the full ledger on every query.
type AggregateReport struct {
	Phone      string
	WindowDays int
	Since      time.Time
	Total      int
	// ByEmployee and ByCategory are in first-seen order; use Ranked for display.
	ByEmployee   []Count
	ByCategory   []Count
	HasDurations bool
	TotalMinutes int
	Recent       []WorkRecord
}
