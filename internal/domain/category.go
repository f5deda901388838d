package domain

import (
	"fmt"
	"sort"
	"strings"
)

// CategoryCode tags the kind of customer interaction. The set is closed;
// anything else parses to CategoryUnrecognized.
type CategoryCode string

const (
	CategoryShortCall      CategoryCode = "CL1"
	CategoryMediumCall     CategoryCode = "CL2"
	CategoryLongCall       CategoryCode = "CL3"
	CategorySMS            CategoryCode = "SMS"
	CategorySecurity       CategoryCode = "SEC"
	CategoryConference     CategoryCode = "CNF"
	CategoryFirstContact   CategoryCode = "NEW"
	CategoryHistoryLight   CategoryCode = "HS1"
	CategoryHistoryMedium  CategoryCode = "HS2"
	CategoryHistoryComplex CategoryCode = "HS3"
	CategoryRepeatContact  CategoryCode = "REP"
	CategoryUnrecognized   CategoryCode = ""
)

// AllCategories lists every known code in display order.
var AllCategories = []CategoryCode{
	CategoryShortCall,
	CategoryMediumCall,
	CategoryLongCall,
	CategorySMS,
	CategorySecurity,
	CategoryConference,
	CategoryFirstContact,
	CategoryHistoryLight,
	CategoryHistoryMedium,
	CategoryHistoryComplex,
	CategoryRepeatContact,
}

func ParseCategoryCode(s string) CategoryCode {
	code := CategoryCode(strings.ToUpper(strings.TrimSpace(s)))
	if code.Known() {
		return code
	}
	return CategoryUnrecognized
}

func (c CategoryCode) Known() bool {
	switch c {
	case CategoryShortCall, CategoryMediumCall, CategoryLongCall, CategorySMS,
		CategorySecurity, CategoryConference, CategoryFirstContact,
		CategoryHistoryLight, CategoryHistoryMedium, CategoryHistoryComplex,
		CategoryRepeatContact:
		return true
	}
	return false
}

// DefaultLabel is the built-in human-readable name of the code.
func (c CategoryCode) DefaultLabel() string {
	switch c {
	case CategoryShortCall:
		return "Short calls"
	case CategoryMediumCall:
		return "Medium calls"
	case CategoryLongCall:
		return "Long calls"
	case CategorySMS:
		return "SMS"
	case CategorySecurity:
		return "Security follow-up"
	case CategoryConference:
		return "Conference"
	case CategoryFirstContact:
		return "First contact"
	case CategoryHistoryLight:
		return "History processing (light)"
	case CategoryHistoryMedium:
		return "History processing (medium)"
	case CategoryHistoryComplex:
		return "History processing (complex)"
	case CategoryRepeatContact:
		return "Repeat contact"
	default:
		return "Unrecognized category"
	}
}

// Catalog holds the configured labels and estimated durations. It is built
// once at startup and only read afterwards.
type Catalog struct {
	labels  map[CategoryCode]string
	minutes map[CategoryCode]int
}

// NewCatalog validates label overrides and the duration table. Both maps are
// keyed by category code; unknown codes are rejected.
func NewCatalog(labels map[string]string, minutes map[string]int) (*Catalog, error) {
	c := &Catalog{
		labels:  make(map[CategoryCode]string, len(AllCategories)),
		minutes: make(map[CategoryCode]int, len(minutes)),
	}
	for _, code := range AllCategories {
		c.labels[code] = code.DefaultLabel()
	}
	for raw, label := range labels {
		code := ParseCategoryCode(raw)
		if code == CategoryUnrecognized {
			return nil, fmt.Errorf("unknown category code %q in labels", raw)
		}
		if label = strings.TrimSpace(label); label != "" {
			c.labels[code] = label
		}
	}
	for raw, m := range minutes {
		code := ParseCategoryCode(raw)
		if code == CategoryUnrecognized {
			return nil, fmt.Errorf("unknown category code %q in durations", raw)
		}
		if m < 0 {
			return nil, fmt.Errorf("negative duration %d for %s", m, code)
		}
		c.minutes[code] = m
	}
	return c, nil
}

// DefaultCatalog uses the built-in labels and no duration table.
func DefaultCatalog() *Catalog {
	c, _ := NewCatalog(nil, nil)
	return c
}

func (c *Catalog) Label(code CategoryCode) string {
	if label, ok := c.labels[code]; ok {
		return label
	}
	return code.DefaultLabel()
}

// Minutes returns the estimated duration of one interaction of the code.
func (c *Catalog) Minutes(code CategoryCode) (int, bool) {
	m, ok := c.minutes[code]
	return m, ok
}

func (c *Catalog) HasDurations() bool {
	return len(c.minutes) > 0
}

// Codes returns the known codes as strings, sorted, for building parsers and help texts.
func (c *Catalog) Codes() []string {
	out := make([]string, 0, len(AllCategories))
	for _, code := range AllCategories {
		out = append(out, string(code))
	}
	sort.Strings(out)
	return out
}
