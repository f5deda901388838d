package app

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/slack-go/slack"
	"google.golang.org/api/option"

	"worklogbot/internal/config"
	"worklogbot/internal/crm"
	"worklogbot/internal/digest"
	"worklogbot/internal/httpx"
	"worklogbot/internal/integrations/bitrix"
	"worklogbot/internal/integrations/llm"
	slackbot "worklogbot/internal/integrations/slack"
	"worklogbot/internal/integrations/telegram"
	"worklogbot/internal/ledger"
	"worklogbot/internal/report"
	"worklogbot/internal/worklog"
)

// OpenLedger opens the configured ledger backend. The returned close func is
// never nil.
func OpenLedger(ctx context.Context, cfg config.Config) (ledger.Ledger, func() error, error) {
	switch cfg.LedgerBackend {
	case config.LedgerSheets:
		creds := option.WithCredentialsFile(cfg.SheetsCredentialsFile)
		if cfg.SheetsCredentialsJSON != "" {
			creds = option.WithCredentialsJSON([]byte(cfg.SheetsCredentialsJSON))
		}
		l, err := ledger.NewSheetsLedger(ctx, cfg.SheetsSpreadsheetID, cfg.SheetsSheetName, creds)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("Ledger: Google Sheets spreadsheet=%s sheet=%s", cfg.SheetsSpreadsheetID, cfg.SheetsSheetName)
		return l, func() error { return nil }, nil
	default:
		l, err := ledger.OpenSQLite(cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("Ledger: SQLite at %s", cfg.DBPath)
		return l, l.Close, nil
	}
}

// NewAggregator builds the report aggregator over l using cfg's tables.
func NewAggregator(cfg config.Config, l ledger.Ledger) (*report.Aggregator, error) {
	catalog, err := cfg.Catalog()
	if err != nil {
		return nil, err
	}
	return report.NewAggregator(l, catalog, cfg.Location), nil
}

// NewService wires the message pipeline over l. The returned aggregator is
// shared with the digest.
func NewService(cfg config.Config, l ledger.Ledger) (*worklog.Service, *report.Aggregator, error) {
	dir, err := cfg.Directory()
	if err != nil {
		return nil, nil, fmt.Errorf("employee directory: %w", err)
	}
	catalog, err := cfg.Catalog()
	if err != nil {
		return nil, nil, fmt.Errorf("category tables: %w", err)
	}
	client, err := bitrix.NewClient(cfg.BitrixWebhookURL, httpx.ExternalHTTPClient())
	if err != nil {
		return nil, nil, err
	}
	agg := report.NewAggregator(l, catalog, cfg.Location)

	deps := worklog.Deps{
		Directory: dir,
		Catalog:   catalog,
		Resolver:  crm.NewResolver(client, cfg.CRMMaxPages),
		Tasks:     crm.NewLifecycle(client, catalog),
		Writer:    ledger.NewWriter(l, cfg.Location),
		Reports:   agg,
		Location:  cfg.Location,
	}
	if cfg.LLMSummaryEnabled {
		s, err := llm.NewSummarizer(summarizerOptions(cfg))
		if err != nil {
			return nil, nil, fmt.Errorf("notes summarizer: %w", err)
		}
		deps.Summarizer = s
		log.Printf("Notes summary enabled provider=%s", cfg.LLMProvider)
	}

	svc, err := worklog.NewService(deps)
	if err != nil {
		return nil, nil, err
	}
	return svc, agg, nil
}

func summarizerOptions(cfg config.Config) llm.Options {
	opts := llm.Options{
		Provider:   cfg.LLMProvider,
		Model:      cfg.LLMModel,
		HTTPClient: httpx.ExternalHTTPClient(),
	}
	switch cfg.LLMProvider {
	case llm.ProviderOpenAI:
		opts.APIKey = cfg.OpenAIAPIKey
	default:
		opts.APIKey = cfg.AnthropicAPIKey
	}
	return opts
}

// Serve runs the configured chat transport and the digest scheduler until
// ctx is cancelled.
func Serve(ctx context.Context, cfg config.Config) error {
	if err := cfg.ValidateServe(); err != nil {
		return err
	}
	appliedHTTPTimeout := httpx.ConfigureExternalHTTPClient(cfg.ExternalHTTPTimeoutSeconds)
	log.Printf(
		"Config loaded. Team=%s Transport=%s Employees=%d Ledger=%s Timezone=%s Digest=%q ExternalHTTPTimeout=%s",
		cfg.TeamName,
		cfg.ChatTransport,
		len(cfg.Employees),
		cfg.LedgerBackend,
		cfg.Timezone,
		cfg.DigestSchedule,
		appliedHTTPTimeout,
	)

	l, closeLedger, err := OpenLedger(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer closeLedger()

	svc, agg, err := NewService(cfg, l)
	if err != nil {
		return err
	}
	catalog, _ := cfg.Catalog()
	digestOpts := digest.Options{
		Schedule:   cfg.DigestSchedule,
		WindowDays: cfg.DigestWindowDays,
		Location:   cfg.Location,
		Catalog:    catalog,
	}

	switch cfg.ChatTransport {
	case config.TransportTelegram:
		api, err := telegram.NewAPI(cfg.TelegramBotToken)
		if err != nil {
			return err
		}
		var posters []digest.Poster
		if cfg.TelegramReportChatID != 0 {
			posters = append(posters, telegram.NewChatPoster(api, cfg.TelegramReportChatID))
		}
		digest.StartDigestScheduler(ctx, agg, digestOpts, posters)

		log.Println("Starting work log bot (telegram)...")
		return telegram.StartTelegramBot(ctx, api, svc, telegram.Options{
			AllowedChats: cfg.TelegramAllowedChatIDs,
			Debug:        cfg.TelegramDebug,
		})
	default:
		if unlikely := slackbot.UnlikelyUserIDs(cfg.EmployeeChatIDs()); len(unlikely) > 0 {
			log.Printf("WARNING: employees chat_user_id values do not look like Slack user ids: %s", strings.Join(unlikely, ", "))
		}
		api := slack.New(
			cfg.SlackBotToken,
			slack.OptionAppLevelToken(cfg.SlackAppToken),
		)
		var posters []digest.Poster
		if cfg.ReportChannelID != "" {
			posters = append(posters, slackbot.NewChannelPoster(api, cfg.ReportChannelID))
		}
		digest.StartDigestScheduler(ctx, agg, digestOpts, posters)

		log.Println("Starting work log bot (slack)...")
		return slackbot.StartSlackBot(ctx, api, svc, slackbot.Options{
			Channels: cfg.SlackChannelIDs,
			TeamName: cfg.TeamName,
		})
	}
}
