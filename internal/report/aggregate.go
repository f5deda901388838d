// Package report rebuilds per-customer and team summaries from the ledger.
// Nothing is cached: every query re-reads every row.
package report

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
	"unicode"

	"worklogbot/internal/apperr"
	"worklogbot/internal/domain"
	"worklogbot/internal/ledger"
	"worklogbot/internal/phone"
)

const (
	RecentLimit = 5
	unknownKey  = "unknown"
)

type Aggregator struct {
	ledger  ledger.Ledger
	catalog *domain.Catalog
	loc     *time.Location
	now     func() time.Time
}

// NewAggregator reads rows from l. Timestamps without an offset are taken
// to be in loc.
func NewAggregator(l ledger.Ledger, catalog *domain.Catalog, loc *time.Location) *Aggregator {
	if catalog == nil {
		catalog = domain.DefaultCatalog()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{ledger: l, catalog: catalog, loc: loc, now: time.Now}
}

// Aggregate reports the records for one customer phone over the last days.
// An empty ledger or no matches yields a zero report, not an error.
func (a *Aggregator) Aggregate(ctx context.Context, canonical string, days int) (domain.AggregateReport, error) {
	want := phone.Clean(canonical)
	if want == "" {
		return domain.AggregateReport{}, apperr.Validation("Phone number must contain digits.").WithOp("report.Aggregate")
	}
	rep, err := a.aggregate(ctx, days, func(rowPhone string) bool {
		return phone.Clean(rowPhone) == want
	})
	rep.Phone = canonical
	return rep, err
}

// Summarize reports every record of the last days regardless of phone.
func (a *Aggregator) Summarize(ctx context.Context, days int) (domain.AggregateReport, error) {
	return a.aggregate(ctx, days, nil)
}

type indexedRecord struct {
	rec   domain.WorkRecord
	index int
}

func (a *Aggregator) aggregate(ctx context.Context, days int, match func(string) bool) (domain.AggregateReport, error) {
	if days < 0 {
		return domain.AggregateReport{}, apperr.Validation("Days must be zero or more.").WithOp("report.aggregate")
	}
	now := a.now().In(a.loc)
	rep := domain.AggregateReport{
		WindowDays:   days,
		Since:        now.Add(-time.Duration(days) * 24 * time.Hour),
		HasDurations: a.catalog.HasDurations(),
	}

	rows, err := a.ledger.ReadAllRows(ctx)
	if err != nil {
		log.Printf("report ledger-read error: %v", err)
		return rep, apperr.Upstream("Could not read the ledger.", err).WithOp("report.aggregate")
	}

	byEmployee := newCounter()
	byCategory := newCounter()
	var matched []indexedRecord
	skipped := 0

	for i, row := range rows {
		if isHeaderRow(row) {
			continue
		}
		ts, err := ledger.ParseTimestamp(ledger.Cell(row, ledger.ColTimestamp), a.loc)
		if err != nil {
			skipped++
			continue
		}
		if ts.Before(rep.Since) {
			continue
		}
		canonical, err := phone.Normalize(ledger.Cell(row, ledger.ColPhone))
		if err != nil {
			skipped++
			continue
		}
		if match != nil && !match(canonical) {
			continue
		}

		employee := strings.TrimSpace(ledger.Cell(row, ledger.ColEmployee))
		if employee == "" {
			employee = unknownKey
		}
		code := categoryKey(ledger.Cell(row, ledger.ColCategory))

		minutes, _ := a.catalog.Minutes(domain.ParseCategoryCode(code))
		rep.Total++
		rep.TotalMinutes += minutes
		byEmployee.add(employee, minutes)
		byCategory.add(code, minutes)

		matched = append(matched, indexedRecord{
			index: i,
			rec: domain.WorkRecord{
				Timestamp:    ts,
				EmployeeName: employee,
				Category:     domain.CategoryCode(code),
				Phone:        canonical,
				Note:         strings.TrimSpace(ledger.Cell(row, ledger.ColNote)),
				Status:       strings.TrimSpace(ledger.Cell(row, ledger.ColStatus)),
			},
		})
	}

	rep.ByEmployee = byEmployee.counts
	rep.ByCategory = byCategory.counts
	rep.Recent = mostRecent(matched, RecentLimit)

	if skipped > 0 {
		log.Printf("report skipped unparseable rows=%d total_rows=%d", skipped, len(rows))
	}
	return rep, nil
}

// isHeaderRow treats a row whose first cell is empty or has no digit as a
// header or a blank line.
func isHeaderRow(row []string) bool {
	first := strings.TrimSpace(ledger.Cell(row, ledger.ColTimestamp))
	if first == "" {
		return true
	}
	return !strings.ContainsFunc(first, unicode.IsDigit)
}

// categoryKey returns the code for known categories and the trimmed cell
// otherwise, so rows written with labels still group.
func categoryKey(cell string) string {
	cell = strings.TrimSpace(cell)
	if code := domain.ParseCategoryCode(cell); code != domain.CategoryUnrecognized {
		return string(code)
	}
	if cell == "" {
		return unknownKey
	}
	return cell
}

func mostRecent(records []indexedRecord, limit int) []domain.WorkRecord {
	sorted := make([]indexedRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].rec.Timestamp.Equal(sorted[j].rec.Timestamp) {
			return sorted[i].rec.Timestamp.After(sorted[j].rec.Timestamp)
		}
		return sorted[i].index > sorted[j].index
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	out := make([]domain.WorkRecord, 0, len(sorted))
	for _, r := range sorted {
		out = append(out, r.rec)
	}
	return out
}

// counter keeps counts in first-seen order.
type counter struct {
	pos    map[string]int
	counts []domain.Count
}

func newCounter() *counter {
	return &counter{pos: map[string]int{}}
}

func (c *counter) add(key string, minutes int) {
	i, ok := c.pos[key]
	if !ok {
		i = len(c.counts)
		c.pos[key] = i
		c.counts = append(c.counts, domain.Count{Key: key})
	}
	c.counts[i].Count++
	c.counts[i].Minutes += minutes
}

// Ranked returns counts by descending count, keeping first-seen order on ties.
func Ranked(counts []domain.Count) []domain.Count {
	out := make([]domain.Count, len(counts))
	copy(out, counts)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	return out
}

// FormatMinutes renders a duration like "1 h 25 min".
func FormatMinutes(m int) string {
	if m < 60 {
		return fmt.Sprintf("%d min", m)
	}
	if m%60 == 0 {
		return fmt.Sprintf("%d h", m/60)
	}
	return fmt.Sprintf("%d h %d min", m/60, m%60)
}
