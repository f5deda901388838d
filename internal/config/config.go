package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"worklogbot/internal/digest"
	"worklogbot/internal/domain"
)

const defaultExternalHTTPTimeout = 30 * time.Second
const defaultExternalHTTPTimeoutSeconds = int(defaultExternalHTTPTimeout / time.Second)

const (
	TransportSlack    = "slack"
	TransportTelegram = "telegram"

	LedgerSQLite = "sqlite"
	LedgerSheets = "sheets"
)

type Employee struct {
	ChatUserID       string `yaml:"chat_user_id"`
	Name             string `yaml:"name"`
	CRMResponsibleID int    `yaml:"crm_responsible_id"`
}

type Config struct {
	ChatTransport string `yaml:"chat_transport"`

	SlackBotToken   string   `yaml:"slack_bot_token"`
	SlackAppToken   string   `yaml:"slack_app_token"`
	SlackChannelIDs []string `yaml:"slack_channel_ids"`

	TelegramBotToken       string  `yaml:"telegram_bot_token"`
	TelegramAllowedChatIDs []int64 `yaml:"telegram_allowed_chat_ids"`
	TelegramReportChatID   int64   `yaml:"telegram_report_chat_id"`
	TelegramDebug          bool    `yaml:"telegram_debug"`

	BitrixWebhookURL     string `yaml:"bitrix_webhook_url"`
	CRMMaxPages          int    `yaml:"crm_max_pages"`
	DefaultResponsibleID int    `yaml:"default_responsible_id"`

	LedgerBackend         string `yaml:"ledger_backend"`
	DBPath                string `yaml:"db_path"`
	SheetsSpreadsheetID   string `yaml:"sheets_spreadsheet_id"`
	SheetsSheetName       string `yaml:"sheets_sheet_name"`
	SheetsCredentialsFile string `yaml:"sheets_credentials_file"`
	SheetsCredentialsJSON string `yaml:"sheets_credentials_json"`

	Employees       []Employee        `yaml:"employees"`
	CategoryLabels  map[string]string `yaml:"category_labels"`
	CategoryMinutes map[string]int    `yaml:"category_minutes"`

	LLMSummaryEnabled bool   `yaml:"llm_summary_enabled"`
	LLMProvider       string `yaml:"llm_provider"`
	LLMModel          string `yaml:"llm_model"`
	AnthropicAPIKey   string `yaml:"anthropic_api_key"`
	OpenAIAPIKey      string `yaml:"openai_api_key"`

	DigestSchedule   string `yaml:"digest_schedule"`
	DigestWindowDays int    `yaml:"digest_window_days"`
	ReportChannelID  string `yaml:"report_channel_id"`

	ExternalHTTPTimeoutSeconds int    `yaml:"external_http_timeout_seconds"`
	Timezone                   string `yaml:"timezone"`
	TeamName                   string `yaml:"team_name"`

	Location *time.Location `yaml:"-"` // computed from Timezone, not from YAML
}

// LoadConfig is Load that exits the process on any config error.
func LoadConfig() Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("%v", err)
	}
	return cfg
}

// Load reads config.yaml (or CONFIG_PATH), applies env overrides and
// defaults, and validates everything the CLI subcommands share. Transport
// and CRM credentials are checked separately by ValidateServe.
func Load() (Config, error) {
	var cfg Config

	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("Error parsing %s: %v", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	envOverride(&cfg.ChatTransport, "CHAT_TRANSPORT")
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.SlackAppToken, "SLACK_APP_TOKEN")
	envOverrideList(&cfg.SlackChannelIDs, "SLACK_CHANNEL_IDS")
	envOverride(&cfg.TelegramBotToken, "TELEGRAM_BOT_TOKEN")
	envOverrideBool(&cfg.TelegramDebug, "TELEGRAM_DEBUG")
	envOverride(&cfg.BitrixWebhookURL, "BITRIX_WEBHOOK_URL")
	envOverride(&cfg.LedgerBackend, "LEDGER_BACKEND")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.SheetsSpreadsheetID, "SHEETS_SPREADSHEET_ID")
	envOverride(&cfg.SheetsSheetName, "SHEETS_SHEET_NAME")
	envOverride(&cfg.SheetsCredentialsFile, "GOOGLE_APPLICATION_CREDENTIALS")
	envOverride(&cfg.SheetsCredentialsJSON, "SHEETS_CREDENTIALS_JSON")
	envOverrideBool(&cfg.LLMSummaryEnabled, "LLM_SUMMARY_ENABLED")
	envOverride(&cfg.LLMProvider, "LLM_PROVIDER")
	envOverride(&cfg.LLMModel, "LLM_MODEL")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	envOverrideAllowEmpty(&cfg.DigestSchedule, "DIGEST_SCHEDULE")
	envOverride(&cfg.ReportChannelID, "REPORT_CHANNEL_ID")
	envOverride(&cfg.Timezone, "TIMEZONE")
	envOverride(&cfg.TeamName, "TEAM_NAME")

	for _, o := range []struct {
		field *int
		key   string
	}{
		{&cfg.CRMMaxPages, "CRM_MAX_PAGES"},
		{&cfg.DefaultResponsibleID, "DEFAULT_RESPONSIBLE_ID"},
		{&cfg.DigestWindowDays, "DIGEST_WINDOW_DAYS"},
		{&cfg.ExternalHTTPTimeoutSeconds, "EXTERNAL_HTTP_TIMEOUT_SECONDS"},
	} {
		if err := envOverrideInt(o.field, o.key); err != nil {
			return err
		}
	}
	if err := envOverrideInt64(&cfg.TelegramReportChatID, "TELEGRAM_REPORT_CHAT_ID"); err != nil {
		return err
	}
	if ids := os.Getenv("TELEGRAM_ALLOWED_CHAT_IDS"); ids != "" {
		cfg.TelegramAllowedChatIDs = nil
		for _, raw := range splitList(ids) {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid TELEGRAM_ALLOWED_CHAT_IDS entry '%s': %v", raw, err)
			}
			cfg.TelegramAllowedChatIDs = append(cfg.TelegramAllowedChatIDs, id)
		}
	}
	return nil
}

func applyDefaults(cfg *Config) {
	cfg.ChatTransport = strings.ToLower(strings.TrimSpace(cfg.ChatTransport))
	if cfg.ChatTransport == "" {
		cfg.ChatTransport = TransportSlack
	}
	cfg.LedgerBackend = strings.ToLower(strings.TrimSpace(cfg.LedgerBackend))
	if cfg.LedgerBackend == "" {
		cfg.LedgerBackend = LedgerSQLite
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./worklog.db"
	}
	if cfg.CRMMaxPages == 0 {
		cfg.CRMMaxPages = 50
	}
	if cfg.DefaultResponsibleID == 0 {
		cfg.DefaultResponsibleID = 1
	}
	if cfg.LLMProvider == "" {
		cfg.LLMProvider = "anthropic"
	}
	cfg.LLMProvider = strings.ToLower(strings.TrimSpace(cfg.LLMProvider))
	if cfg.DigestWindowDays == 0 {
		cfg.DigestWindowDays = 1
	}
	if cfg.ExternalHTTPTimeoutSeconds == 0 {
		cfg.ExternalHTTPTimeoutSeconds = defaultExternalHTTPTimeoutSeconds
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Local"
	}
	if cfg.TeamName == "" {
		cfg.TeamName = "the team"
	}
}

func validate(cfg *Config) error {
	switch cfg.ChatTransport {
	case TransportSlack, TransportTelegram:
	default:
		return fmt.Errorf("chat_transport must be 'slack' or 'telegram', got '%s'", cfg.ChatTransport)
	}

	switch cfg.LedgerBackend {
	case LedgerSQLite:
	case LedgerSheets:
		if strings.TrimSpace(cfg.SheetsSpreadsheetID) == "" {
			return fmt.Errorf("sheets_spreadsheet_id is required when ledger_backend=sheets")
		}
		if cfg.SheetsCredentialsFile == "" && cfg.SheetsCredentialsJSON == "" {
			return fmt.Errorf("sheets_credentials_file or sheets_credentials_json is required when ledger_backend=sheets")
		}
	default:
		return fmt.Errorf("ledger_backend must be 'sqlite' or 'sheets', got '%s'", cfg.LedgerBackend)
	}

	if cfg.LLMSummaryEnabled {
		switch cfg.LLMProvider {
		case "anthropic":
			if cfg.AnthropicAPIKey == "" {
				return fmt.Errorf("anthropic_api_key is required when llm_provider=anthropic")
			}
		case "openai":
			if cfg.OpenAIAPIKey == "" {
				return fmt.Errorf("openai_api_key is required when llm_provider=openai")
			}
		default:
			return fmt.Errorf("llm_provider must be 'anthropic' or 'openai', got '%s'", cfg.LLMProvider)
		}
	}

	if strings.EqualFold(cfg.Timezone, "Local") {
		cfg.Location = time.Local
	} else {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return fmt.Errorf("invalid timezone '%s': %v", cfg.Timezone, err)
		}
		cfg.Location = loc
	}

	if cfg.ExternalHTTPTimeoutSeconds < 5 {
		return fmt.Errorf("invalid external_http_timeout_seconds '%d': must be >= 5", cfg.ExternalHTTPTimeoutSeconds)
	}
	if cfg.CRMMaxPages < 1 {
		return fmt.Errorf("invalid crm_max_pages '%d': must be >= 1", cfg.CRMMaxPages)
	}
	if cfg.DefaultResponsibleID < 1 {
		return fmt.Errorf("invalid default_responsible_id '%d': must be >= 1", cfg.DefaultResponsibleID)
	}
	if cfg.DigestWindowDays < 1 {
		return fmt.Errorf("invalid digest_window_days '%d': must be >= 1", cfg.DigestWindowDays)
	}
	if strings.TrimSpace(cfg.DigestSchedule) != "" {
		if _, err := digest.ParseSchedule(cfg.DigestSchedule); err != nil {
			return err
		}
	}
	for i, e := range cfg.Employees {
		if e.CRMResponsibleID < 0 {
			return fmt.Errorf("employees[%d] (%s): crm_responsible_id must be >= 0", i, e.Name)
		}
	}
	if _, err := cfg.Directory(); err != nil {
		return fmt.Errorf("invalid employees: %v", err)
	}
	if _, err := cfg.Catalog(); err != nil {
		return fmt.Errorf("invalid category tables: %v", err)
	}
	return nil
}

// ValidateServe checks what the long-running bot needs beyond Load.
func (c Config) ValidateServe() error {
	required := map[string]string{"bitrix_webhook_url": c.BitrixWebhookURL}
	switch c.ChatTransport {
	case TransportSlack:
		required["slack_bot_token"] = c.SlackBotToken
		required["slack_app_token"] = c.SlackAppToken
	case TransportTelegram:
		required["telegram_bot_token"] = c.TelegramBotToken
	}
	for _, name := range []string{"bitrix_webhook_url", "slack_bot_token", "slack_app_token", "telegram_bot_token"} {
		if val, ok := required[name]; ok && val == "" {
			return fmt.Errorf("Required config '%s' is not set (via config.yaml or env var)", name)
		}
	}
	return nil
}

// Directory builds the employee directory. Employees without a CRM id use
// default_responsible_id.
func (c Config) Directory() (*domain.Directory, error) {
	employees := make([]domain.Employee, 0, len(c.Employees))
	for _, e := range c.Employees {
		id := e.CRMResponsibleID
		if id == 0 {
			id = c.DefaultResponsibleID
		}
		employees = append(employees, domain.Employee{
			ChatUserID:       e.ChatUserID,
			Name:             e.Name,
			CRMResponsibleID: id,
		})
	}
	return domain.NewDirectory(employees, c.DefaultResponsibleID)
}

func (c Config) Catalog() (*domain.Catalog, error) {
	return domain.NewCatalog(c.CategoryLabels, c.DurationTable())
}

// DurationTable returns category_minutes keyed by upper-cased code.
func (c Config) DurationTable() map[string]int {
	out := make(map[string]int, len(c.CategoryMinutes))
	for code, m := range c.CategoryMinutes {
		out[strings.ToUpper(strings.TrimSpace(code))] = m
	}
	return out
}

func (c Config) EmployeeChatIDs() []string {
	ids := make([]string, 0, len(c.Employees))
	for _, e := range c.Employees {
		ids = append(ids, e.ChatUserID)
	}
	return ids
}

func (c Config) TelegramConfigured() bool {
	return c.TelegramBotToken != ""
}

func (c Config) SlackConfigured() bool {
	return c.SlackBotToken != "" && c.SlackAppToken != ""
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideAllowEmpty(field *string, envKey string) {
	if val, ok := os.LookupEnv(envKey); ok {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}

func envOverrideInt64(field *int64, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}

func envOverrideBool(field *bool, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = strings.EqualFold(val, "true") || val == "1"
	}
}

func envOverrideList(field *[]string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = splitList(val)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
