package report

import (
	"fmt"
	"strings"
	"time"

	"worklogbot/internal/domain"
	"worklogbot/internal/phone"
)

const (
	noteDisplayRunes  = 120
	displayTimeLayout = "2006-01-02 15:04"
)

// RenderReport formats a customer report for chat.
func RenderReport(rep domain.AggregateReport, catalog *domain.Catalog, loc *time.Location) string {
	if catalog == nil {
		catalog = domain.DefaultCatalog()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Report for %s, last %s\n", phone.Display(rep.Phone), windowText(rep.WindowDays))
	if rep.Total == 0 {
		b.WriteString("No records for this customer in the selected period.")
		return b.String()
	}
	fmt.Fprintf(&b, "Total records: %d\n", rep.Total)
	writeCounts(&b, "By employee", rep.ByEmployee, rep.HasDurations, func(k string) string { return k })
	writeCounts(&b, "By category", rep.ByCategory, rep.HasDurations, func(k string) string { return categoryLabel(catalog, k) })
	if rep.HasDurations {
		fmt.Fprintf(&b, "\nEstimated time: %s\n", FormatMinutes(rep.TotalMinutes))
	}

	b.WriteString("\nRecent:\n")
	for _, r := range rep.Recent {
		fmt.Fprintf(&b, "• %s · %s · %s: %s\n",
			inLocation(r.Timestamp, loc).Format(displayTimeLayout),
			r.EmployeeName,
			categoryLabel(catalog, string(r.Category)),
			TruncateNote(r.Note, noteDisplayRunes))
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderDigest formats a team-wide summary.
func RenderDigest(rep domain.AggregateReport, catalog *domain.Catalog) string {
	if catalog == nil {
		catalog = domain.DefaultCatalog()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🗓 Team digest, last %s\n", windowText(rep.WindowDays))
	if rep.Total == 0 {
		b.WriteString("No records in this period.")
		return b.String()
	}
	fmt.Fprintf(&b, "Total records: %d\n", rep.Total)
	writeCounts(&b, "By employee", rep.ByEmployee, rep.HasDurations, func(k string) string { return k })
	writeCounts(&b, "By category", rep.ByCategory, rep.HasDurations, func(k string) string { return categoryLabel(catalog, k) })
	if rep.HasDurations {
		fmt.Fprintf(&b, "\nEstimated time: %s", FormatMinutes(rep.TotalMinutes))
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeCounts(b *strings.Builder, title string, counts []domain.Count, withMinutes bool, label func(string) string) {
	fmt.Fprintf(b, "\n%s:\n", title)
	for _, c := range Ranked(counts) {
		if withMinutes {
			fmt.Fprintf(b, "• %s: %d (%s)\n", label(c.Key), c.Count, FormatMinutes(c.Minutes))
		} else {
			fmt.Fprintf(b, "• %s: %d\n", label(c.Key), c.Count)
		}
	}
}

func categoryLabel(catalog *domain.Catalog, key string) string {
	code := domain.ParseCategoryCode(key)
	if code == domain.CategoryUnrecognized {
		return key
	}
	return catalog.Label(code)
}

func windowText(days int) string {
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}

func inLocation(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		return t
	}
	return t.In(loc)
}

// TruncateNote shortens s to at most n runes, marking the cut with "…".
func TruncateNote(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
