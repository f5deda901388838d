package domain

import (
	"testing"
	"time"
)

func TestParseCategoryCode(t *testing.T) {
	tests := []struct {
		in   string
		want CategoryCode
	}{
		{"CL1", CategoryShortCall},
		{"cl2", CategoryMediumCall},
		{" hs3 ", CategoryHistoryComplex},
		{"REP", CategoryRepeatContact},
		{"XYZ", CategoryUnrecognized},
		{"", CategoryUnrecognized},
	}
	for _, tt := range tests {
		if got := ParseCategoryCode(tt.in); got != tt.want {
			t.Errorf("ParseCategoryCode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEveryKnownCodeHasLabel(t *testing.T) {
	for _, code := range AllCategories {
		if !code.Known() {
			t.Fatalf("%s listed but not known", code)
		}
		if code.DefaultLabel() == CategoryUnrecognized.DefaultLabel() {
			t.Fatalf("%s has no label", code)
		}
	}
	if CategoryUnrecognized.Known() {
		t.Fatal("unrecognized code must not be known")
	}
}

func TestNewCatalog(t *testing.T) {
	c, err := NewCatalog(map[string]string{"cl1": "Дзвінки дрібні"}, map[string]int{"CL1": 3, "SMS": 1})
	if err != nil {
		t.Fatalf("NewCatalog failed: %v", err)
	}
	if got := c.Label(CategoryShortCall); got != "Дзвінки дрібні" {
		t.Fatalf("label override not applied: %q", got)
	}
	if got := c.Label(CategoryLongCall); got != "Long calls" {
		t.Fatalf("default label = %q", got)
	}
	if m, ok := c.Minutes(CategoryShortCall); !ok || m != 3 {
		t.Fatalf("Minutes(CL1) = %d,%v", m, ok)
	}
	if _, ok := c.Minutes(CategoryConference); ok {
		t.Fatal("CNF has no configured duration")
	}
	if !c.HasDurations() {
		t.Fatal("expected duration table")
	}

	if _, err := NewCatalog(map[string]string{"BAD": "x"}, nil); err == nil {
		t.Fatal("expected unknown label code to fail")
	}
	if _, err := NewCatalog(nil, map[string]int{"CL1": -1}); err == nil {
		t.Fatal("expected negative duration to fail")
	}
	if DefaultCatalog().HasDurations() {
		t.Fatal("default catalog has no durations")
	}
}

func TestDirectoryLookup(t *testing.T) {
	dir, err := NewDirectory([]Employee{
		{ChatUserID: "727013047", Name: "Andrii Ivanenko", CRMResponsibleID: 596},
		{ChatUserID: " U02ABC ", Name: "Tetiana", CRMResponsibleID: 594},
	}, 596)
	if err != nil {
		t.Fatalf("NewDirectory failed: %v", err)
	}

	e, ok := dir.Lookup("U02ABC", "ignored")
	if !ok || e.Name != "Tetiana" || e.CRMResponsibleID != 594 {
		t.Fatalf("unexpected lookup: %+v ok=%v", e, ok)
	}

	e, ok = dir.Lookup("999", "Guest User")
	if ok {
		t.Fatal("unknown user must not be found")
	}
	if e.Name != "Guest User" || e.CRMResponsibleID != 596 {
		t.Fatalf("unexpected fallback employee: %+v", e)
	}

	if _, err := NewDirectory([]Employee{{ChatUserID: "1"}, {ChatUserID: "1"}}, 0); err == nil {
		t.Fatal("expected duplicate ids to fail")
	}
}

func TestWorkRecordRow(t *testing.T) {
	kyiv := time.FixedZone("EET", 2*3600)
	rec := WorkRecord{
		Timestamp:    time.Date(2026, 3, 1, 10, 0, 5, 0, time.UTC),
		EmployeeName: "Alice",
		Category:     CategorySMS,
		Phone:        "+380631234567",
		Note:         "line one\nline two",
		Status:       StatusDone,
	}
	row := rec.Row(kyiv)
	want := []string{"2026-03-01 12:00:05", "Alice", "SMS", "+380631234567", "line one\nline two", "done"}
	if len(row) != len(want) {
		t.Fatalf("row len = %d", len(row))
	}
	for i := range want {
		if row[i] != want[i] {
			t.Fatalf("row[%d] = %q, want %q", i, row[i], want[i])
		}
	}
}
