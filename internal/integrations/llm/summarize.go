// Package llm condenses a customer's recent notes into a short summary for
// /info replies. It is optional; callers treat every error as "no summary".
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"worklogbot/internal/domain"
	"worklogbot/internal/httpx"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"

	defaultAnthropicModel = "claude-sonnet-4-5-20250929"
	defaultOpenAIModel    = "gpt-4o-mini"
	defaultOpenAIURL      = "https://api.openai.com/v1/chat/completions"

	maxSummaryTokens = 300
	maxNotes         = 20
)

const systemPrompt = `You summarize a support team's interaction log for one customer.
Write 2-4 short sentences in plain text: what the customer needed, what was done, and anything still open.
Do not invent facts. Do not include phone numbers.`

type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

type Options struct {
	Provider string
	APIKey   string
	Model    string
	// BaseURL overrides the provider endpoint; empty means the public API.
	BaseURL    string
	HTTPClient *http.Client
}

type Summarizer struct {
	provider string
	apiKey   string
	model    string
	baseURL  string
	http     *http.Client
}

func NewSummarizer(opts Options) (*Summarizer, error) {
	provider := strings.ToLower(strings.TrimSpace(opts.Provider))
	if provider == "" {
		provider = ProviderAnthropic
	}
	if provider != ProviderAnthropic && provider != ProviderOpenAI {
		return nil, fmt.Errorf("unsupported llm provider %q", opts.Provider)
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("llm api key is empty for provider %s", provider)
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultAnthropicModel
		if provider == ProviderOpenAI {
			model = defaultOpenAIModel
		}
	}
	client := opts.HTTPClient
	if client == nil {
		client = httpx.ExternalHTTPClient()
	}
	return &Summarizer{
		provider: provider,
		apiKey:   opts.APIKey,
		model:    model,
		baseURL:  strings.TrimSpace(opts.BaseURL),
		http:     client,
	}, nil
}

// SummarizeNotes returns a short summary of records, newest first as given.
// Records without notes are skipped; with none left it returns "".
func (s *Summarizer) SummarizeNotes(ctx context.Context, customerPhone string, records []domain.WorkRecord) (string, Usage, error) {
	prompt := buildNotesPrompt(records)
	if prompt == "" {
		return "", Usage{}, nil
	}
	log.Printf("llm notes-summary provider=%s model=%s phone=%s records=%d", s.provider, s.model, customerPhone, len(records))

	var (
		text  string
		usage Usage
		err   error
	)
	switch s.provider {
	case ProviderOpenAI:
		text, usage, err = s.callOpenAI(ctx, prompt)
	default:
		text, usage, err = s.callAnthropic(ctx, prompt)
	}
	if err != nil {
		return "", usage, err
	}
	return strings.TrimSpace(text), usage, nil
}

func buildNotesPrompt(records []domain.WorkRecord) string {
	var b strings.Builder
	n := 0
	for _, r := range records {
		note := strings.TrimSpace(r.Note)
		if note == "" {
			continue
		}
		if n == maxNotes {
			break
		}
		fmt.Fprintf(&b, "- %s | %s | %s: %s\n", r.Timestamp.Format("2006-01-02"), r.EmployeeName, r.Category, note)
		n++
	}
	if n == 0 {
		return ""
	}
	return "Interaction log, newest first:\n" + b.String()
}

// --- Anthropic ---

func (s *Summarizer) callAnthropic(ctx context.Context, userPrompt string) (string, Usage, error) {
	opts := []option.RequestOption{
		option.WithAPIKey(s.apiKey),
		option.WithHTTPClient(s.http),
		option.WithMaxRetries(0),
	}
	if s.baseURL != "" {
		opts = append(opts, option.WithBaseURL(s.baseURL))
	}
	client := anthropic.NewClient(opts...)

	message, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: maxSummaryTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		log.Printf("llm anthropic error: %v", err)
		return "", Usage{}, fmt.Errorf("Anthropic API error: %w", err)
	}
	usage := Usage{InputTokens: message.Usage.InputTokens, OutputTokens: message.Usage.OutputTokens}

	for _, block := range message.Content {
		if block.Type == "text" {
			log.Printf("llm anthropic response size=%d tokens_in=%d tokens_out=%d", len(block.Text), usage.InputTokens, usage.OutputTokens)
			return block.Text, usage, nil
		}
	}
	return "", usage, fmt.Errorf("no text content in Anthropic response")
}

// --- OpenAI ---

type openAIRequest struct {
	Model     string          `json:"model"`
	Messages  []openAIMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (s *Summarizer) callOpenAI(ctx context.Context, userPrompt string) (string, Usage, error) {
	bodyBytes, err := json.Marshal(openAIRequest{
		Model: s.model,
		Messages: []openAIMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens: maxSummaryTokens,
	})
	if err != nil {
		return "", Usage{}, fmt.Errorf("marshaling request: %w", err)
	}

	endpoint := defaultOpenAIURL
	if s.baseURL != "" {
		endpoint = strings.TrimRight(s.baseURL, "/") + "/v1/chat/completions"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", Usage{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.http.Do(req)
	if err != nil {
		log.Printf("llm openai error: %v", err)
		return "", Usage{}, fmt.Errorf("OpenAI API error: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", Usage{}, fmt.Errorf("reading response: %w", err)
	}

	var openAIResp openAIResponse
	if err := json.Unmarshal(respBody, &openAIResp); err != nil {
		return "", Usage{}, fmt.Errorf("parsing OpenAI response: %w", err)
	}
	if openAIResp.Error != nil {
		log.Printf("llm openai api error: %s", openAIResp.Error.Message)
		return "", Usage{}, fmt.Errorf("OpenAI API error: %s", openAIResp.Error.Message)
	}
	if len(openAIResp.Choices) == 0 {
		return "", Usage{}, fmt.Errorf("no choices in OpenAI response")
	}

	usage := Usage{}
	if openAIResp.Usage != nil {
		usage.InputTokens = openAIResp.Usage.PromptTokens
		usage.OutputTokens = openAIResp.Usage.CompletionTokens
	}
	log.Printf("llm openai response size=%d tokens_in=%d tokens_out=%d", len(openAIResp.Choices[0].Message.Content), usage.InputTokens, usage.OutputTokens)
	return openAIResp.Choices[0].Message.Content, usage, nil
}
