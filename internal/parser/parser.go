package parser

import (
	"errors"
	"regexp"
	"strings"

	"github.com/mispbot/mastodon-misp-bot/internal/config"
	"github.com/mispbot/mastodon-misp-bot/internal/models"
	"github.com/sirupsen/logrus"
)

// SelfMentionMarker closes the markup Mastodon wraps around an @-mention
const SelfMentionMarker = "</span></a></span>"

var (
	// ErrNoStrippedContent is returned when the content carries no self-mention markup
	ErrNoStrippedContent = errors.New("no stripped content")
	// ErrEmptyContent is returned when nothing is left after stripping
	ErrEmptyContent = errors.New("empty content")
)

var htmlTag = regexp.MustCompile(`<[^>]*>`)

// Parser classifies mention content into commands
type Parser struct {
	commands config.Commands
}

// New creates a parser for the configured command keywords
func New(commands config.Commands) *Parser {
	return &Parser{commands: commands}
}

// Parse turns raw mention HTML into a command. An error means no command
// could be derived at all; callers treat it as unrecognized input.
func (p *Parser) Parse(rawHTML string) (models.Command, error) {
	text, err := Clean(rawHTML)
	if err != nil {
		return models.Command{}, err
	}

	// Prefix match only, so "queryfoo" is a query for "foo".
	for _, candidate := range []struct {
		keyword string
		kind    models.CommandKind
	}{
		{p.commands.Query, models.CommandQuery},
		{p.commands.Sighting, models.CommandSighting},
	} {
		if candidate.keyword == "" || !strings.HasPrefix(text, candidate.keyword) {
			continue
		}

		indicator := strings.TrimSpace(strings.TrimPrefix(text, candidate.keyword))
		if indicator == "" {
			logrus.Debugf("Keyword %q without indicator", candidate.keyword)
			return models.Command{Kind: models.CommandUnrecognized}, nil
		}
		return models.Command{Kind: candidate.kind, Indicator: indicator}, nil
	}

	return models.Command{Kind: models.CommandUnrecognized}, nil
}

// Clean drops the bot's own mention markup and every HTML tag, returning the trimmed text
func Clean(rawHTML string) (string, error) {
	parts := strings.SplitN(strings.TrimSpace(rawHTML), SelfMentionMarker, 2)
	if len(parts) < 2 {
		return "", ErrNoStrippedContent
	}

	text := strings.TrimSpace(StripHTMLTags(parts[1]))
	if text == "" {
		return "", ErrEmptyContent
	}
	return text, nil
}

// StripHTMLTags removes every substring matching <[^>]*> and keeps the text
func StripHTMLTags(s string) string {
	return htmlTag.ReplaceAllString(s, "")
}
