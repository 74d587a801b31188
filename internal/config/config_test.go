package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("MASTODON_ACCESS_TOKEN", "token")
	t.Setenv("MASTODON_USERNAME", "mispbot")
	t.Setenv("MISP_URL", "https://misp.example.org")
	t.Setenv("MISP_KEY", "key")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://mastodon.social/", cfg.MastodonBaseURL)
	assert.Equal(t, 50, cfg.MaxMentions)
	assert.Equal(t, 500, cfg.TextCharLimit)
	assert.Equal(t, "public", cfg.Visibility)
	assert.False(t, cfg.MISPVerifyCert)
	assert.Nil(t, cfg.MISPToIDs)
	assert.Equal(t, []string{"tlp:white"}, cfg.MISPTags)
	assert.True(t, cfg.MISPPublished)
	assert.Equal(t, 20, cfg.MISPLimit)
	assert.False(t, cfg.MISPWarninglist)
	assert.Equal(t, 30, cfg.MISPInfoMaxLength)
	assert.Equal(t, Commands{Query: "query", Sighting: "sighting", Help: "help"}, cfg.Commands)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Empty(t, cfg.RunSchedule)
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MISP_TAGS", "tlp:white, tlp:green ,")
	t.Setenv("MISP_TO_IDS", "true")
	t.Setenv("MASTODON_VISIBILITY", "unlisted")
	t.Setenv("MASTODON_TEXT_CHAR_LIMIT", "280")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"tlp:white", "tlp:green"}, cfg.MISPTags)
	require.NotNil(t, cfg.MISPToIDs)
	assert.True(t, *cfg.MISPToIDs)
	assert.Equal(t, "unlisted", cfg.Visibility)
	assert.Equal(t, 280, cfg.TextCharLimit)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			HTTPTimeout:         time.Second,
			MastodonAccessToken: "token",
			MastodonBaseURL:     "https://mastodon.social/",
			MastodonUsername:    "mispbot",
			MaxMentions:         50,
			TextCharLimit:       500,
			Visibility:          "public",
			MISPURL:             "https://misp.example.org",
			MISPKey:             "key",
			MISPLimit:           20,
			MISPInfoMaxLength:   30,
			Commands:            Commands{Query: "query", Sighting: "sighting", Help: "help"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "Valid configuration", mutate: func(c *Config) {}},
		{name: "Missing access token", mutate: func(c *Config) { c.MastodonAccessToken = "" }, wantErr: true},
		{name: "Missing username", mutate: func(c *Config) { c.MastodonUsername = "" }, wantErr: true},
		{name: "Unknown visibility", mutate: func(c *Config) { c.Visibility = "friends" }, wantErr: true},
		{name: "Zero char limit", mutate: func(c *Config) { c.TextCharLimit = 0 }, wantErr: true},
		{name: "Zero max mentions", mutate: func(c *Config) { c.MaxMentions = 0 }, wantErr: true},
		{name: "Missing MISP key", mutate: func(c *Config) { c.MISPKey = "" }, wantErr: true},
		{name: "Zero info length", mutate: func(c *Config) { c.MISPInfoMaxLength = 0 }, wantErr: true},
		{name: "Same keywords", mutate: func(c *Config) { c.Commands.Sighting = "query" }, wantErr: true},
		{name: "Empty query keyword", mutate: func(c *Config) { c.Commands.Query = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
