package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Valid status visibilities accepted by the Mastodon API
var validVisibilities = map[string]bool{
	"public":   true,
	"unlisted": true,
	"private":  true,
	"direct":   true,
}

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port    string
	Debug   bool
	LogFile string

	// Schedule configuration. Empty means a single run.
	RunSchedule string

	HTTPTimeout time.Duration

	// Mastodon configuration
	MastodonAccessToken string
	MastodonBaseURL     string
	MastodonUsername    string
	MaxMentions         int
	TextCharLimit       int
	Visibility          string

	// MISP configuration
	MISPURL           string
	MISPKey           string
	MISPVerifyCert    bool
	MISPToIDs         *bool
	MISPTags          []string
	MISPPublished     bool
	MISPLimit         int
	MISPWarninglist   bool
	MISPInfoMaxLength int

	// Bot command keywords
	Commands Commands
}

// Commands holds the keywords recognised at the start of a mention
type Commands struct {
	Query    string
	Sighting string
	Help     string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Debug:       getBoolEnv("DEBUG", false),
		LogFile:     getEnv("LOG_FILE", ""),
		RunSchedule: getEnv("RUN_SCHEDULE", ""),
		HTTPTimeout: time.Duration(getIntEnv("HTTP_TIMEOUT", 30)) * time.Second,

		MastodonAccessToken: getEnv("MASTODON_ACCESS_TOKEN", ""),
		MastodonBaseURL:     getEnv("MASTODON_API_BASE_URL", "https://mastodon.social/"),
		MastodonUsername:    getEnv("MASTODON_USERNAME", ""),
		MaxMentions:         getIntEnv("MASTODON_MAX_MENTIONS", 50),
		TextCharLimit:       getIntEnv("MASTODON_TEXT_CHAR_LIMIT", 500),
		Visibility:          getEnv("MASTODON_VISIBILITY", "public"),

		MISPURL:           getEnv("MISP_URL", ""),
		MISPKey:           getEnv("MISP_KEY", ""),
		MISPVerifyCert:    getBoolEnv("MISP_VERIFY_CERT", false),
		MISPToIDs:         getOptionalBoolEnv("MISP_TO_IDS"),
		MISPTags:          getSliceEnv("MISP_TAGS", []string{"tlp:white"}),
		MISPPublished:     getBoolEnv("MISP_PUBLISHED", true),
		MISPLimit:         getIntEnv("MISP_LIMIT", 20),
		MISPWarninglist:   getBoolEnv("MISP_WARNINGLIST", false),
		MISPInfoMaxLength: getIntEnv("MISP_INFO_MAX_LENGTH", 30),

		Commands: Commands{
			Query:    getEnv("BOT_COMMAND_QUERY", "query"),
			Sighting: getEnv("BOT_COMMAND_SIGHTING", "sighting"),
			Help:     getEnv("BOT_COMMAND_HELP", "help"),
		},
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that every option holds a usable value
func (c *Config) Validate() error {
	if c.MastodonAccessToken == "" {
		return fmt.Errorf("MASTODON_ACCESS_TOKEN is required")
	}
	if c.MastodonBaseURL == "" {
		return fmt.Errorf("MASTODON_API_BASE_URL is required")
	}
	if c.MastodonUsername == "" {
		return fmt.Errorf("MASTODON_USERNAME is required")
	}
	if c.MaxMentions < 1 {
		return fmt.Errorf("MASTODON_MAX_MENTIONS must be at least 1")
	}
	if c.TextCharLimit < 1 {
		return fmt.Errorf("MASTODON_TEXT_CHAR_LIMIT must be at least 1")
	}
	if !validVisibilities[c.Visibility] {
		return fmt.Errorf("MASTODON_VISIBILITY must be one of public, unlisted, private, direct")
	}

	if c.MISPURL == "" || c.MISPKey == "" {
		return fmt.Errorf("MISP_URL and MISP_KEY are required")
	}
	if c.MISPLimit < 1 {
		return fmt.Errorf("MISP_LIMIT must be at least 1")
	}
	if c.MISPInfoMaxLength < 1 {
		return fmt.Errorf("MISP_INFO_MAX_LENGTH must be at least 1")
	}

	if c.Commands.Query == "" || c.Commands.Sighting == "" {
		return fmt.Errorf("BOT_COMMAND_QUERY and BOT_COMMAND_SIGHTING must not be empty")
	}
	if c.Commands.Query == c.Commands.Sighting {
		return fmt.Errorf("BOT_COMMAND_QUERY and BOT_COMMAND_SIGHTING must differ")
	}

	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getOptionalBoolEnv returns nil when the variable is unset or unparsable
func getOptionalBoolEnv(key string) *bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return &parsed
		}
	}
	return nil
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		return items
	}
	return defaultValue
}
