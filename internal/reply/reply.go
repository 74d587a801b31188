package reply

import (
	"fmt"
	"strings"

	"github.com/mispbot/mastodon-misp-bot/internal/models"
)

// NotFound is the reply body for a lookup without results
const NotFound = "Not found"

// Format renders lookup results in discovery order, one entry per event
func Format(results []models.LookupResult) string {
	if len(results) == 0 {
		return NotFound
	}

	entries := make([]string, 0, len(results))
	for _, result := range results {
		entry := fmt.Sprintf("Found in: %s (%s / %s / %s / %s)",
			result.Info, result.Date, result.EventUUID, result.ThreatLevel, result.AnalysisStage)
		if len(result.ContextTags) > 0 {
			entry += "\n  " + strings.Join(result.ContextTags, " ")
		}
		entries = append(entries, entry)
	}

	return strings.Join(entries, "\n\n")
}

// Chunk splits text every limit characters. Concatenating the chunks gives back text.
func Chunk(text string, limit int) []string {
	if text == "" {
		return nil
	}

	runes := []rune(text)
	if limit < 1 || len(runes) <= limit {
		return []string{text}
	}

	chunks := make([]string, 0, (len(runes)+limit-1)/limit)
	for start := 0; start < len(runes); start += limit {
		end := start + limit
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
