package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port        int
	NatsURL     string
	NatsToken   string
	NatsName    string
	NatsQueue   string
	DatabaseURL string
	LogLevel    string
	APIToken    string
	LexiconPath string

	TranscribeURL     string
	TranscribeAPIKey  string
	TranscribeModel   string
	TranscribeTimeout time.Duration

	// Defaults for submit requests that leave a credential field empty.
	JiraURL      string
	JiraEmail    string
	JiraAPIToken string
	JiraProject  string

	SlackBotToken string
	SlackChannel  string
}

func Load() Config {
	return Config{
		Port:        envInt("TASKSCRIBE_PORT", 8760),
		NatsURL:     envStr("NATS_URL", ""),
		NatsToken:   envStr("NATS_TOKEN", ""),
		NatsName:    envStr("NATS_NAME", "taskscribe"),
		NatsQueue:   envStr("NATS_QUEUE", "taskscribe"),
		DatabaseURL: envStr("DATABASE_URL", ""),
		LogLevel:    envStr("LOG_LEVEL", "info"),
		APIToken:    envStr("API_TOKEN", ""),
		LexiconPath: envStr("LEXICON_PATH", ""),

		TranscribeURL:     envStr("TRANSCRIBE_URL", ""),
		TranscribeAPIKey:  envStr("TRANSCRIBE_API_KEY", ""),
		TranscribeModel:   envStr("TRANSCRIBE_MODEL", "small"),
		TranscribeTimeout: envDuration("TRANSCRIBE_TIMEOUT", 30*time.Minute),

		JiraURL:      envStr("JIRA_URL", ""),
		JiraEmail:    envStr("JIRA_EMAIL", ""),
		JiraAPIToken: envStr("JIRA_API_TOKEN", ""),
		JiraProject:  envStr("JIRA_PROJECT", ""),

		SlackBotToken: envStr("SLACK_BOT_TOKEN", ""),
		SlackChannel:  envStr("SLACK_CHANNEL", ""),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
