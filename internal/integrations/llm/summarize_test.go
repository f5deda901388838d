package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"worklogbot/internal/domain"
)

var sampleRecords = []domain.WorkRecord{
	{Timestamp: time.Date(2026, 5, 10, 10, 0, 0, 0, time.UTC), EmployeeName: "Olena", Category: domain.CategoryShortCall, Note: "asked about invoice"},
	{Timestamp: time.Date(2026, 5, 9, 10, 0, 0, 0, time.UTC), EmployeeName: "Ivan", Category: domain.CategorySMS, Note: ""},
	{Timestamp: time.Date(2026, 5, 8, 10, 0, 0, 0, time.UTC), EmployeeName: "Ivan", Category: domain.CategoryFirstContact, Note: "new client"},
}

func TestNewSummarizerValidates(t *testing.T) {
	if _, err := NewSummarizer(Options{Provider: "gemini", APIKey: "k"}); err == nil {
		t.Fatal("unknown provider should fail")
	}
	if _, err := NewSummarizer(Options{Provider: "openai"}); err == nil {
		t.Fatal("missing key should fail")
	}
	s, err := NewSummarizer(Options{APIKey: "k"})
	if err != nil {
		t.Fatalf("NewSummarizer: %v", err)
	}
	if s.provider != ProviderAnthropic || s.model != defaultAnthropicModel {
		t.Fatalf("defaults = %s/%s", s.provider, s.model)
	}
	s, _ = NewSummarizer(Options{Provider: "OpenAI", APIKey: "k"})
	if s.model != defaultOpenAIModel {
		t.Fatalf("openai default model = %s", s.model)
	}
}

func TestBuildNotesPromptSkipsEmptyNotes(t *testing.T) {
	prompt := buildNotesPrompt(sampleRecords)
	if strings.Count(prompt, "\n- ") != 2 || !strings.Contains(prompt, "Olena | CL1: asked about invoice") || !strings.Contains(prompt, "new client") {
		t.Fatalf("prompt = %q", prompt)
	}
	if buildNotesPrompt([]domain.WorkRecord{{Note: "  "}}) != "" {
		t.Fatal("no notes should give an empty prompt")
	}
}

func TestSummarizeNotesWithoutNotesMakesNoCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}))
	defer srv.Close()
	s, _ := NewSummarizer(Options{Provider: ProviderOpenAI, APIKey: "k", BaseURL: srv.URL, HTTPClient: srv.Client()})
	text, _, err := s.SummarizeNotes(context.Background(), "+380631234567", nil)
	if err != nil || text != "" {
		t.Fatalf("text=%q err=%v", text, err)
	}
}

func TestSummarizeNotesOpenAI(t *testing.T) {
	var got openAIRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" || r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("unexpected request %s auth=%q", r.URL.Path, r.Header.Get("Authorization"))
		}
		json.NewDecoder(r.Body).Decode(&got)
		io.WriteString(w, `{"choices":[{"message":{"content":"  Customer asked about an invoice.  "}}],"usage":{"prompt_tokens":40,"completion_tokens":8}}`)
	}))
	defer srv.Close()

	s, _ := NewSummarizer(Options{Provider: ProviderOpenAI, APIKey: "sk-test", BaseURL: srv.URL + "/", HTTPClient: srv.Client()})
	text, usage, err := s.SummarizeNotes(context.Background(), "+380631234567", sampleRecords)
	if err != nil {
		t.Fatalf("SummarizeNotes: %v", err)
	}
	if text != "Customer asked about an invoice." || usage.InputTokens != 40 || usage.OutputTokens != 8 {
		t.Fatalf("text=%q usage=%+v", text, usage)
	}
	if got.Model != defaultOpenAIModel || len(got.Messages) != 2 || got.Messages[0].Role != "system" {
		t.Fatalf("request = %+v", got)
	}
	if strings.Contains(got.Messages[1].Content, "+380631234567") {
		t.Fatal("phone must not be sent to the model")
	}
}

func TestSummarizeNotesOpenAIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":{"message":"rate limited"}}`)
	}))
	defer srv.Close()

	s, _ := NewSummarizer(Options{Provider: ProviderOpenAI, APIKey: "k", BaseURL: srv.URL, HTTPClient: srv.Client()})
	if _, _, err := s.SummarizeNotes(context.Background(), "", sampleRecords); err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("expected api error, got %v", err)
	}
}

func TestSummarizeNotesAnthropic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") || r.Header.Get("X-Api-Key") != "ak-test" {
			t.Errorf("unexpected request %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4-5-20250929",
			"content":[{"type":"text","text":"New client, invoice question handled."}],
			"stop_reason":"end_turn",
			"usage":{"input_tokens":50,"output_tokens":9}
		}`)
	}))
	defer srv.Close()

	s, _ := NewSummarizer(Options{APIKey: "ak-test", BaseURL: srv.URL + "/", HTTPClient: srv.Client()})
	text, usage, err := s.SummarizeNotes(context.Background(), "+380631234567", sampleRecords)
	if err != nil {
		t.Fatalf("SummarizeNotes: %v", err)
	}
	if text != "New client, invoice question handled." || usage.InputTokens != 50 {
		t.Fatalf("text=%q usage=%+v", text, usage)
	}
}
