package parser

import (
	"testing"

	"worklogbot/internal/apperr"
	"worklogbot/internal/domain"
)

func TestParseWorkMessage(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantCode domain.CategoryCode
		wantPh   string
		wantNote string
	}{
		{"canonical example", "CL1 0631234567 | client called back", domain.CategoryShortCall, "+380631234567", "client called back"},
		{"lowercase code", "sms +380631234567|sent reminder", domain.CategorySMS, "+380631234567", "sent reminder"},
		{"separators in phone", "CL3 (063) 123-45-67 | long talk", domain.CategoryLongCall, "+380631234567", "long talk"},
		{"history tier", "hs2 0501112233 | checked history", domain.CategoryHistoryMedium, "+380501112233", "checked history"},
		{"surrounding whitespace", "  REP 0631234567   |   again  ", domain.CategoryRepeatContact, "+380631234567", "again"},
		{"multiline note keeps interior", "NEW 0631234567 | first line\n  second line\n", domain.CategoryFirstContact, "+380631234567", "first line\n  second line"},
		{"pipe inside note", "CNF 0631234567 | a | b", domain.CategoryConference, "+380631234567", "a | b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, ok, err := ParseWorkMessage(tt.text)
			if err != nil || !ok {
				t.Fatalf("ParseWorkMessage(%q) ok=%v err=%v", tt.text, ok, err)
			}
			if msg.Category != tt.wantCode || msg.Phone != tt.wantPh || msg.Note != tt.wantNote {
				t.Fatalf("ParseWorkMessage(%q) = %+v", tt.text, msg)
			}
		})
	}
}

func TestParseWorkMessageIgnoresChatter(t *testing.T) {
	for _, text := range []string{
		"hello there",
		"",
		"CL1 0631234567 client called back",
		"XYZ 0631234567 | unknown code",
		"CL1 | no phone",
		"CL1 0631234567 |   ",
		"CL10631234567 | glued",
		"please log CL1 0631234567 | later",
	} {
		_, ok, err := ParseWorkMessage(text)
		if ok || err != nil {
			t.Fatalf("ParseWorkMessage(%q) ok=%v err=%v, want ignored", text, ok, err)
		}
	}
}

func TestParseWorkMessageBadPhone(t *testing.T) {
	_, ok, err := ParseWorkMessage("CL1 ( ) | note")
	if !ok {
		t.Fatal("line matches the grammar, ok must be true")
	}
	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseInfoCommand(t *testing.T) {
	tests := []struct {
		text     string
		wantPh   string
		wantDays int
	}{
		{"/info 0631234567, 7", "+380631234567", 7},
		{"/info +38 (063) 123-45-67 , 30", "+380631234567", 30},
		{"/info@worklog_bot 0631234567,0", "+380631234567", 0},
		{"/INFO 380631234567, 14", "+380631234567", 14},
	}
	for _, tt := range tests {
		q, ok, err := ParseInfoCommand(tt.text)
		if !ok || err != nil {
			t.Fatalf("ParseInfoCommand(%q) ok=%v err=%v", tt.text, ok, err)
		}
		if q.Phone != tt.wantPh || q.Days != tt.wantDays {
			t.Fatalf("ParseInfoCommand(%q) = %+v", tt.text, q)
		}
	}
}

func TestParseInfoCommandValidation(t *testing.T) {
	for _, text := range []string{
		"/info",
		"/info 0631234567",
		"/info 0631234567, -1",
		"/info 0631234567, seven",
		"/info abc, 7",
		"/info 0631234567, 7.5",
	} {
		_, ok, err := ParseInfoCommand(text)
		if !ok {
			t.Fatalf("ParseInfoCommand(%q) should be recognized as /info", text)
		}
		if !apperr.IsValidation(err) {
			t.Fatalf("ParseInfoCommand(%q) err=%v, want validation", text, err)
		}
		if got := apperr.UserMessage(err); got == "" {
			t.Fatalf("expected a user message for %q", text)
		}
	}

	if _, ok, _ := ParseInfoCommand("/information please"); ok {
		t.Fatal("/information is not /info")
	}
	if _, ok, _ := ParseInfoCommand("info 0631234567, 7"); ok {
		t.Fatal("missing slash is not a command")
	}
}
