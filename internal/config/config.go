// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const defaultDescription = "Want the same gift? Check out @FameGifterBot\n\nBot created for entertainment purposes."

// Config holds all application configuration.
type Config struct {
	BotToken    string
	HTTPHost    string
	HTTPPort    string // empty disables the HTTP surface
	OpsToken    string // bearer token for /api and /ws; empty locks them
	DBPath      string
	TempDir     string
	LogLevel    slog.Level
	SessionTTL  time.Duration
	JanitorTick time.Duration
	// AllowedOrigins is used by CORS and the events websocket.
	AllowedOrigins []string
	Automation     AutomationConfig
	RateLimit      RateLimitConfig
}

// AutomationConfig describes the user session that talks to BotFather.
type AutomationConfig struct {
	APIID          int
	APIHash        string
	SessionPath    string
	BotFather      string
	Description    string
	UsernamePrefix string
	StepWait       time.Duration
	FinalWait      time.Duration
	PollInterval   time.Duration
}

// RateLimitConfig bounds how many creations a single user may start.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		BotToken:       strings.TrimSpace(getEnv("BOT_TOKEN", "")),
		HTTPHost:       getEnv("HTTP_HOST", "127.0.0.1"),
		HTTPPort:       getEnv("HTTP_PORT", "8080"),
		OpsToken:       strings.TrimSpace(getEnv("OPS_TOKEN", "")),
		DBPath:         getEnv("DB_PATH", "./data/botfactory.db"),
		TempDir:        getEnv("TEMP_DIR", "temp"),
		LogLevel:       getEnvLevel("LOG_LEVEL", slog.LevelInfo),
		SessionTTL:     getEnvDuration("SESSION_TTL", 30*time.Minute),
		JanitorTick:    getEnvDuration("JANITOR_INTERVAL", 5*time.Minute),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", nil),
		Automation:     LoadAutomation(),
		RateLimit: RateLimitConfig{
			Requests: getEnvInt("CREATE_RATE_LIMIT", 5),
			Window:   getEnvDuration("CREATE_RATE_WINDOW", 10*time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadAutomation reads only the BotFather automation settings. The setup
// command uses it without requiring BOT_TOKEN.
func LoadAutomation() AutomationConfig {
	return AutomationConfig{
		APIID:          getEnvInt("TELEGRAM_API_ID", 0),
		APIHash:        strings.TrimSpace(getEnv("TELEGRAM_API_HASH", "")),
		SessionPath:    getEnv("SESSION_PATH", "sessions/bot_creator.json"),
		BotFather:      getEnv("BOTFATHER_USERNAME", "BotFather"),
		Description:    getEnv("BOT_DESCRIPTION", defaultDescription),
		UsernamePrefix: getEnv("USERNAME_PREFIX", "famegifter"),
		StepWait:       getEnvDuration("STEP_WAIT", 3*time.Second),
		FinalWait:      getEnvDuration("FINAL_WAIT", 4*time.Second),
		PollInterval:   getEnvDuration("POLL_INTERVAL", 500*time.Millisecond),
	}
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.BotToken == "" {
		return errors.New("BOT_TOKEN not found in environment variables")
	}
	if c.DBPath == "" {
		return errors.New("DB_PATH cannot be empty")
	}
	if c.TempDir == "" {
		return errors.New("TEMP_DIR cannot be empty")
	}
	if c.Automation.BotFather == "" {
		return errors.New("BOTFATHER_USERNAME cannot be empty")
	}
	if c.Automation.UsernamePrefix == "" {
		return errors.New("USERNAME_PREFIX cannot be empty")
	}
	if c.Automation.StepWait <= 0 || c.Automation.FinalWait <= 0 {
		return errors.New("STEP_WAIT and FINAL_WAIT must be > 0")
	}
	if c.Automation.PollInterval <= 0 {
		return errors.New("POLL_INTERVAL must be > 0")
	}
	if c.SessionTTL <= 0 || c.JanitorTick <= 0 {
		return errors.New("SESSION_TTL and JANITOR_INTERVAL must be > 0")
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		return errors.New("CREATE_RATE_LIMIT and CREATE_RATE_WINDOW must be > 0")
	}
	return nil
}

// Configured reports whether the automation credentials are present.
// A missing session file is checked per request, not here.
func (a AutomationConfig) Configured() bool {
	return a.APIID != 0 && a.APIHash != ""
}

// SessionExists reports whether the authorized session file is on disk.
func (a AutomationConfig) SessionExists() bool {
	if a.SessionPath == "" {
		return false
	}
	_, err := os.Stat(a.SessionPath)
	return err == nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var items []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func getEnvLevel(key string, fallback slog.Level) slog.Level {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return fallback
	}
	return level
}
