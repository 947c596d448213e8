package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// OpenAIConfig holds OpenAI API configuration
type OpenAIConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// Config holds all application configuration
type Config struct {
	OpenAI       OpenAIConfig
	StoreBackend string        // "badger" or "sqlite"
	StorePath    string        // badger directory or sqlite file path
	StaticDir    string
	SettingsDir  string
	ChatDuration time.Duration // countdown for the chat phase
}

// DefaultChatDuration is the fixed countdown for the chat phase.
const DefaultChatDuration = 60 * time.Second

// Load loads configuration from environment and files
func Load() (*Config, error) {
	settingsDir := os.Getenv("SETTINGS_DIR")
	if settingsDir == "" {
		settingsDir = "settings"
	}

	cfg := &Config{
		StoreBackend: getEnvOrDefault("STORE_BACKEND", "badger"),
		StorePath:    getEnvOrDefault("STORE_PATH", "data/kudos"),
		StaticDir:    getEnvOrDefault("STATIC_DIR", "static"),
		SettingsDir:  settingsDir,
		ChatDuration: DefaultChatDuration,
	}

	// CHAT_DURATION shortens the countdown for testing (e.g. "3s")
	if durStr := os.Getenv("CHAT_DURATION"); durStr != "" {
		if d, err := time.ParseDuration(durStr); err == nil && d > 0 {
			cfg.ChatDuration = d
		}
	}

	// Load OpenAI config
	openaiCfg, err := loadOpenAIConfig(filepath.Join(settingsDir, "secrets", "openai.yaml"))
	if err != nil {
		return nil, err
	}
	cfg.OpenAI = *openaiCfg

	return cfg, nil
}

// loadOpenAIConfig loads OpenAI configuration from a YAML file
func loadOpenAIConfig(path string) (*OpenAIConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg OpenAIConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
