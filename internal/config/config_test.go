package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validJSON = `{
  "halo": {
    "auth_url": "https://support.example.com/auth/token",
    "ticket_url": "https://support.example.com/api/tickets",
    "web_base_url": "https://support.example.com",
    "client_id": "halo-client",
    "client_secret": "halo-secret"
  },
  "providers": {
    "default": {
      "type": "azure",
      "api_key": "az-test-key",
      "base_url": "https://myresource.openai.azure.com",
      "deployment": "gpt-4o",
      "model": "gpt-4o"
    }
  },
  "connectors": {
    "telegram": {
      "token": "123456:ABC",
      "allow_from": [100, 200]
    },
    "slack": {
      "bot_token": "xoxb-test",
      "app_token": "xapp-test",
      "channels": ["C1"]
    }
  },
  "api": {
    "host": "0.0.0.0",
    "port": 9090,
    "api_key": "admin-key"
  },
  "journal": {
    "path": "/tmp/halobot-test/journal.db"
  },
  "session": {
    "ttl_minutes": 30,
    "sweep_schedule": "@every 5m"
  }
}`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte(content), 0o644)
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, validJSON))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Halo.AuthURL != "https://support.example.com/auth/token" {
		t.Errorf("halo.auth_url = %q", cfg.Halo.AuthURL)
	}
	if cfg.Halo.ClientID != "halo-client" {
		t.Errorf("halo.client_id = %q", cfg.Halo.ClientID)
	}
	if cfg.Providers["default"].Deployment != "gpt-4o" {
		t.Errorf("provider deployment = %q", cfg.Providers["default"].Deployment)
	}
	if cfg.Connectors.Telegram == nil {
		t.Fatal("telegram connector is nil")
	}
	if len(cfg.Connectors.Telegram.AllowFrom) != 2 {
		t.Errorf("allow_from = %v", cfg.Connectors.Telegram.AllowFrom)
	}
	if cfg.Connectors.Slack == nil || cfg.Connectors.Slack.BotToken != "xoxb-test" {
		t.Errorf("slack connector = %+v", cfg.Connectors.Slack)
	}
	if cfg.API.Port != 9090 {
		t.Errorf("api.port = %d", cfg.API.Port)
	}
	if cfg.Journal.Path != "/tmp/halobot-test/journal.db" {
		t.Errorf("journal.path = %q", cfg.Journal.Path)
	}
	if cfg.Session.TTLMinutes != 30 {
		t.Errorf("session.ttl_minutes = %d", cfg.Session.TTLMinutes)
	}
}

func TestLoad_Defaults(t *testing.T) {
	minimal := `{
  "halo": {
    "auth_url": "https://support.example.com/auth/token",
    "ticket_url": "https://support.example.com/api/tickets",
    "client_id": "id",
    "client_secret": "secret"
  },
  "providers": {
    "default": {"api_key": "sk-test", "model": "gpt-4o"}
  }
}`
	cfg, err := Load(writeConfig(t, minimal))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Session.TTLMinutes != 60 {
		t.Errorf("default ttl = %d, want 60", cfg.Session.TTLMinutes)
	}
	if cfg.Session.SweepSchedule != "@every 10m" {
		t.Errorf("default sweep = %q", cfg.Session.SweepSchedule)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("default port = %d", cfg.API.Port)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.json"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_BadJSON(t *testing.T) {
	if _, err := Load(writeConfig(t, "{not json")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate_Errors(t *testing.T) {
	cfg := &Config{
		Providers: map[string]ProviderConfig{
			"backup": {Type: "openai"},
		},
		Connectors: ConnectorConfig{
			Telegram: &TelegramConfig{},
			Slack:    &SlackConfig{BotToken: "xoxb"},
		},
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{
		"halo.auth_url is required",
		"halo.ticket_url is required",
		"halo.client_id is required",
		"halo.client_secret is required",
		"providers.default is required",
		"providers.backup.api_key is required",
		"providers.backup.model is required",
		"connectors.telegram.token is required",
		"connectors.slack.app_token is required",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q:\n%v", want, err)
		}
	}
}

func TestValidate_AzureRequiresDeployment(t *testing.T) {
	cfg := &Config{
		Halo: HaloConfig{
			AuthURL:      "https://a",
			TicketURL:    "https://t",
			ClientID:     "id",
			ClientSecret: "secret",
		},
		Providers: map[string]ProviderConfig{
			"default": {Type: "azure", APIKey: "k"},
		},
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "deployment is required") {
		t.Errorf("error = %v", err)
	}
	if !strings.Contains(err.Error(), "base_url is required") {
		t.Errorf("error = %v", err)
	}
}

func TestValidate_UnknownProviderType(t *testing.T) {
	cfg := &Config{
		Halo: HaloConfig{
			AuthURL:      "https://a",
			TicketURL:    "https://t",
			ClientID:     "id",
			ClientSecret: "secret",
		},
		Providers: map[string]ProviderConfig{
			"default": {Type: "bard", APIKey: "k", Model: "m"},
		},
	}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), `type "bard" is unknown`) {
		t.Errorf("error = %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("HALOBOT_HALO_AUTH_URL", "https://support.example.com/auth/token")
	t.Setenv("HALOBOT_HALO_TICKET_URL", "https://support.example.com/api/tickets")
	t.Setenv("HALOBOT_HALO_CLIENT_ID", "id")
	t.Setenv("HALOBOT_HALO_CLIENT_SECRET", "secret")
	t.Setenv("HALOBOT_OPENAI_API_KEY", "sk-env")
	t.Setenv("HALOBOT_TELEGRAM_TOKEN", "123:ABC")
	t.Setenv("HALOBOT_TELEGRAM_ALLOW_FROM", "100, 200")
	t.Setenv("HALOBOT_SLACK_BOT_TOKEN", "xoxb-env")
	t.Setenv("HALOBOT_SLACK_APP_TOKEN", "xapp-env")
	t.Setenv("HALOBOT_SLACK_CHANNELS", "C1,C2")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}

	p := cfg.Providers["default"]
	if p.Type != "openai" || p.APIKey != "sk-env" {
		t.Errorf("provider = %+v", p)
	}
	if cfg.Connectors.Telegram == nil || len(cfg.Connectors.Telegram.AllowFrom) != 2 {
		t.Errorf("telegram = %+v", cfg.Connectors.Telegram)
	}
	if cfg.Connectors.Slack == nil || len(cfg.Connectors.Slack.Channels) != 2 {
		t.Errorf("slack = %+v", cfg.Connectors.Slack)
	}
	if cfg.Session.TTLMinutes != 60 {
		t.Errorf("ttl = %d", cfg.Session.TTLMinutes)
	}
}

func TestLoadFromEnv_BadAllowList(t *testing.T) {
	t.Setenv("HALOBOT_HALO_AUTH_URL", "https://a")
	t.Setenv("HALOBOT_HALO_TICKET_URL", "https://t")
	t.Setenv("HALOBOT_HALO_CLIENT_ID", "id")
	t.Setenv("HALOBOT_HALO_CLIENT_SECRET", "secret")
	t.Setenv("HALOBOT_OPENAI_API_KEY", "sk-env")
	t.Setenv("HALOBOT_TELEGRAM_TOKEN", "123:ABC")
	t.Setenv("HALOBOT_TELEGRAM_ALLOW_FROM", "100,abc")

	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("expected error for bad allow list")
	}
}

func TestSystemPrompt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompt.txt")
	os.WriteFile(path, []byte("You are the IT desk."), 0o644)

	cfg := &Config{SystemPromptFile: path}
	got, err := cfg.SystemPrompt()
	if err != nil {
		t.Fatalf("SystemPrompt: %v", err)
	}
	if got != "You are the IT desk." {
		t.Errorf("prompt = %q", got)
	}

	empty := &Config{}
	if got, err := empty.SystemPrompt(); err != nil || got != "" {
		t.Errorf("empty prompt = %q, %v", got, err)
	}
}
