package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Assistant AssistantConfig `mapstructure:"assistant"`
	Speech    SpeechConfig    `mapstructure:"speech"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Database  DatabaseConfig  `mapstructure:"database"`
}

type TelegramConfig struct {
	Token string `mapstructure:"token"`
}

type AssistantConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

func (c AssistantConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type SpeechConfig struct {
	APIKey          string `mapstructure:"api_key"`
	TranscribeModel string `mapstructure:"transcribe_model"`
	SpeechModel     string `mapstructure:"speech_model"`
	Voice           string `mapstructure:"voice"`
	Enabled         bool   `mapstructure:"enabled"`
}

type GatewayConfig struct {
	WelcomeText   string `mapstructure:"welcome_text"`
	ActionPauseMS int    `mapstructure:"action_pause_ms"`
}

func (c GatewayConfig) ActionPause() time.Duration {
	return time.Duration(c.ActionPauseMS) * time.Millisecond
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	UseInMemory bool   `mapstructure:"use_in_memory"`
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	// Remove leading slash from path to get database name
	dbName := strings.TrimPrefix(u.Path, "/")

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   dbName,
		SSLMode:  "disable",
	}, nil
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("assistant.base_url", "http://localhost:8000")
	v.SetDefault("assistant.timeout_seconds", 60)
	v.SetDefault("speech.transcribe_model", "whisper-1")
	v.SetDefault("speech.speech_model", "tts-1")
	v.SetDefault("speech.voice", "alloy")
	v.SetDefault("speech.enabled", true)
	v.SetDefault("gateway.welcome_text", "Hi! I'm Minus. Open a document and ask me anything about it.")
	v.SetDefault("gateway.action_pause_ms", 600)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.use_in_memory", false)

	// Enable environment variable support
	v.AutomaticEnv()

	// Read the config file
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Check for DATABASE_URL environment variable
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %v", err)
		}
		config.Database = dbConfig
	}

	// Get other environment variables
	if token := v.GetString("TELEGRAM_TOKEN"); token != "" {
		config.Telegram.Token = token
	}

	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.Speech.APIKey = apiKey
	}

	if baseURL := v.GetString("ASSISTANT_BASE_URL"); baseURL != "" {
		config.Assistant.BaseURL = baseURL
	}

	return &config, nil
}
