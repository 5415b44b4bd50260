package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config is the top-level halobot configuration.
type Config struct {
	Halo             HaloConfig                `json:"halo"`
	Providers        map[string]ProviderConfig `json:"providers"`
	Connectors       ConnectorConfig           `json:"connectors"`
	API              APIConfig                 `json:"api"`
	Journal          JournalConfig             `json:"journal"`
	Session          SessionConfig             `json:"session"`
	SystemPromptFile string                    `json:"system_prompt_file,omitempty"`
}

// HaloConfig holds Halo ITSM connection settings.
type HaloConfig struct {
	AuthURL      string `json:"auth_url"`
	TicketURL    string `json:"ticket_url"`
	WebBaseURL   string `json:"web_base_url,omitempty"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// ProviderConfig holds LLM provider settings.
type ProviderConfig struct {
	Type       string `json:"type,omitempty"` // "openai" (default), "azure" or "anthropic"
	APIKey     string `json:"api_key"`
	BaseURL    string `json:"base_url,omitempty"`
	Model      string `json:"model"`
	Deployment string `json:"deployment,omitempty"`  // azure only
	APIVersion string `json:"api_version,omitempty"` // azure only
}

// ConnectorConfig holds settings for external platform connectors.
type ConnectorConfig struct {
	Telegram *TelegramConfig `json:"telegram,omitempty"`
	Slack    *SlackConfig    `json:"slack,omitempty"`
}

// TelegramConfig holds Telegram bot settings.
type TelegramConfig struct {
	Token     string  `json:"token"`
	AllowFrom []int64 `json:"allow_from,omitempty"`
}

// SlackConfig holds Slack Socket Mode settings.
type SlackConfig struct {
	BotToken string   `json:"bot_token"`
	AppToken string   `json:"app_token"`
	Channels []string `json:"channels,omitempty"`
}

// APIConfig holds REST API server settings.
type APIConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	Key  string `json:"api_key"`
}

// JournalConfig holds the submission journal settings.
// An empty path disables the journal.
type JournalConfig struct {
	Path string `json:"path,omitempty"`
}

// SessionConfig controls idle conversation expiry.
type SessionConfig struct {
	TTLMinutes    int    `json:"ttl_minutes,omitempty"`    // default 60
	SweepSchedule string `json:"sweep_schedule,omitempty"` // cron spec, default "@every 10m"
}

// Load reads configuration from a JSON file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromEnv builds a config from environment variables with HALOBOT_ prefix.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Halo: HaloConfig{
			AuthURL:      os.Getenv("HALOBOT_HALO_AUTH_URL"),
			TicketURL:    os.Getenv("HALOBOT_HALO_TICKET_URL"),
			WebBaseURL:   os.Getenv("HALOBOT_HALO_WEB_BASE_URL"),
			ClientID:     os.Getenv("HALOBOT_HALO_CLIENT_ID"),
			ClientSecret: os.Getenv("HALOBOT_HALO_CLIENT_SECRET"),
		},
		Providers: make(map[string]ProviderConfig),
		API: APIConfig{
			Host: getenv("HALOBOT_API_HOST", "0.0.0.0"),
			Port: getenvInt("HALOBOT_API_PORT", 8080),
			Key:  os.Getenv("HALOBOT_API_KEY"),
		},
		Journal: JournalConfig{
			Path: os.Getenv("HALOBOT_JOURNAL_PATH"),
		},
		SystemPromptFile: os.Getenv("HALOBOT_SYSTEM_PROMPT_FILE"),
	}

	// Default provider from env, first match wins
	if apiKey := os.Getenv("HALOBOT_AZURE_OPENAI_API_KEY"); apiKey != "" {
		cfg.Providers["default"] = ProviderConfig{
			Type:       "azure",
			APIKey:     apiKey,
			BaseURL:    os.Getenv("HALOBOT_AZURE_OPENAI_ENDPOINT"),
			Deployment: os.Getenv("HALOBOT_AZURE_OPENAI_DEPLOYMENT"),
			APIVersion: os.Getenv("HALOBOT_AZURE_OPENAI_API_VERSION"),
			Model:      getenv("HALOBOT_MODEL", "gpt-4o"),
		}
	} else if apiKey := os.Getenv("HALOBOT_OPENAI_API_KEY"); apiKey != "" {
		cfg.Providers["default"] = ProviderConfig{
			Type:    "openai",
			APIKey:  apiKey,
			BaseURL: os.Getenv("HALOBOT_OPENAI_BASE_URL"),
			Model:   getenv("HALOBOT_MODEL", "gpt-4o"),
		}
	} else if apiKey := os.Getenv("HALOBOT_ANTHROPIC_API_KEY"); apiKey != "" {
		cfg.Providers["default"] = ProviderConfig{
			Type:   "anthropic",
			APIKey: apiKey,
			Model:  getenv("HALOBOT_MODEL", "claude-sonnet-4-20250514"),
		}
	}

	// Telegram connector from env
	if token := os.Getenv("HALOBOT_TELEGRAM_TOKEN"); token != "" {
		cfg.Connectors.Telegram = &TelegramConfig{Token: token}
		if ids := os.Getenv("HALOBOT_TELEGRAM_ALLOW_FROM"); ids != "" {
			parsed, err := parseInt64List(ids)
			if err != nil {
				return nil, fmt.Errorf("config: HALOBOT_TELEGRAM_ALLOW_FROM: %w", err)
			}
			cfg.Connectors.Telegram.AllowFrom = parsed
		}
	}

	// Slack connector from env
	if botToken := os.Getenv("HALOBOT_SLACK_BOT_TOKEN"); botToken != "" {
		cfg.Connectors.Slack = &SlackConfig{
			BotToken: botToken,
			AppToken: os.Getenv("HALOBOT_SLACK_APP_TOKEN"),
		}
		if chans := os.Getenv("HALOBOT_SLACK_CHANNELS"); chans != "" {
			cfg.Connectors.Slack.Channels = parseStringList(chans)
		}
	}

	cfg.Session.TTLMinutes = getenvInt("HALOBOT_SESSION_TTL_MINUTES", 0)
	cfg.Session.SweepSchedule = os.Getenv("HALOBOT_SESSION_SWEEP_SCHEDULE")

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Session.TTLMinutes <= 0 {
		c.Session.TTLMinutes = 60
	}
	if c.Session.SweepSchedule == "" {
		c.Session.SweepSchedule = "@every 10m"
	}
	if c.API.Host == "" {
		c.API.Host = "0.0.0.0"
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
}

// Validate checks for required fields.
func (c *Config) Validate() error {
	var errs []string

	if c.Halo.AuthURL == "" {
		errs = append(errs, "halo.auth_url is required")
	}
	if c.Halo.TicketURL == "" {
		errs = append(errs, "halo.ticket_url is required")
	}
	if c.Halo.ClientID == "" {
		errs = append(errs, "halo.client_id is required")
	}
	if c.Halo.ClientSecret == "" {
		errs = append(errs, "halo.client_secret is required")
	}

	if len(c.Providers) == 0 {
		errs = append(errs, "at least one provider is required")
	}
	if _, ok := c.Providers["default"]; len(c.Providers) > 0 && !ok {
		errs = append(errs, "providers.default is required")
	}
	for name, p := range c.Providers {
		if p.APIKey == "" {
			errs = append(errs, fmt.Sprintf("providers.%s.api_key is required", name))
		}
		switch p.Type {
		case "azure":
			if p.BaseURL == "" {
				errs = append(errs, fmt.Sprintf("providers.%s.base_url is required for azure", name))
			}
			if p.Deployment == "" {
				errs = append(errs, fmt.Sprintf("providers.%s.deployment is required for azure", name))
			}
		case "", "openai", "anthropic":
			if p.Model == "" {
				errs = append(errs, fmt.Sprintf("providers.%s.model is required", name))
			}
		default:
			errs = append(errs, fmt.Sprintf("providers.%s.type %q is unknown", name, p.Type))
		}
	}

	if c.Connectors.Telegram != nil && c.Connectors.Telegram.Token == "" {
		errs = append(errs, "connectors.telegram.token is required")
	}
	if c.Connectors.Slack != nil {
		if c.Connectors.Slack.BotToken == "" {
			errs = append(errs, "connectors.slack.bot_token is required")
		}
		if c.Connectors.Slack.AppToken == "" {
			errs = append(errs, "connectors.slack.app_token is required")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// SystemPrompt returns the override prompt text, or "" when none is
// configured.
func (c *Config) SystemPrompt() (string, error) {
	if c.SystemPromptFile == "" {
		return "", nil
	}
	data, err := os.ReadFile(c.SystemPromptFile)
	if err != nil {
		return "", fmt.Errorf("config: read system prompt %s: %w", c.SystemPromptFile, err)
	}
	return string(data), nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func parseInt64List(s string) ([]int64, error) {
	parts := strings.Split(s, ",")
	result := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", p)
		}
		result = append(result, n)
	}
	return result, nil
}

func parseStringList(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
