package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Settings backends.
const (
	BackendFile = "file"
	BackendDB   = "db"
)

// Settings is the daemon bootstrap configuration: secrets, integrations and
// defaults used to seed the runtime settings on first start.
type Settings struct {
	BotToken        string   `toml:"bot_token" env:"TELEGRAM_BOT_TOKEN"`
	Timezone        string   `toml:"timezone" env:"ORDERBOT_TIMEZONE" env-default:"Asia/Singapore"`
	OnlyLast        bool     `toml:"only_last" env:"ORDERBOT_ONLY_LAST" env-default:"true"`
	Keyword         string   `toml:"keyword" env:"ORDERBOT_KEYWORD" env-default:"order"`
	Admins          []string `toml:"admins" env:"ORDERBOT_ADMINS" env-separator:","`
	SettingsBackend string   `toml:"settings_backend" env:"ORDERBOT_SETTINGS_BACKEND" env-default:"file"`
	LogLevel        string   `toml:"log_level" env:"ORDERBOT_LOG_LEVEL" env-default:"info"`
	MetricsAddr     string   `toml:"metrics_addr" env:"ORDERBOT_METRICS_ADDR"`

	Sheets SheetsSettings `toml:"sheets"`
	Kafka  KafkaSettings  `toml:"kafka"`
}

// SheetsSettings configures the Google spreadsheet mirror.
type SheetsSettings struct {
	SpreadsheetID string `toml:"spreadsheet_id" env:"GSHEET_ID"`
	ClientEmail   string `toml:"client_email" env:"GOOGLE_CLIENT_EMAIL"`
	PrivateKey    string `toml:"private_key" env:"GOOGLE_PRIVATE_KEY"`
}

// KafkaSettings configures the optional order event publisher.
type KafkaSettings struct {
	Brokers []string `toml:"brokers" env:"ORDERBOT_KAFKA_BROKERS" env-separator:","`
	Topic   string   `toml:"topic" env:"ORDERBOT_KAFKA_TOPIC" env-default:"orderbot.orders"`
}

// LoadSettings reads bootstrap settings. Variables from envFile (when it
// exists) are loaded into the environment first; path is an optional TOML
// file whose values are overridden by the environment.
func LoadSettings(path, envFile string) (*Settings, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}

	var s Settings
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cleanenv.ReadConfig(path, &s); err != nil {
				return nil, fmt.Errorf("read settings %s: %w", path, err)
			}
			return &s, s.validate()
		}
	}
	if err := cleanenv.ReadEnv(&s); err != nil {
		return nil, fmt.Errorf("read settings from env: %w", err)
	}
	return &s, s.validate()
}

func (s *Settings) validate() error {
	switch s.SettingsBackend {
	case BackendFile, BackendDB:
	default:
		return fmt.Errorf("unknown settings backend %q", s.SettingsBackend)
	}
	return nil
}
