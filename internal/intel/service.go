package intel

import (
	"context"
	"fmt"
	"strings"

	"github.com/mispbot/mastodon-misp-bot/internal/config"
	"github.com/mispbot/mastodon-misp-bot/internal/misp"
	"github.com/mispbot/mastodon-misp-bot/internal/models"
	"github.com/sirupsen/logrus"
)

// SightingSourcePrefix starts the source label of every sighting the bot submits
const SightingSourcePrefix = "MISPbot"

// Policy holds the static search defaults applied to every lookup
type Policy struct {
	ToIDs              *bool
	Tags               []string
	Published          bool
	Limit              int
	EnforceWarninglist bool
	InfoMaxLength      int
}

// PolicyFromConfig extracts the lookup policy from the configuration
func PolicyFromConfig(cfg *config.Config) Policy {
	return Policy{
		ToIDs:              cfg.MISPToIDs,
		Tags:               cfg.MISPTags,
		Published:          cfg.MISPPublished,
		Limit:              cfg.MISPLimit,
		EnforceWarninglist: cfg.MISPWarninglist,
		InfoMaxLength:      cfg.MISPInfoMaxLength,
	}
}

// Service looks indicators up in MISP and records sightings
type Service struct {
	api    misp.API
	policy Policy
}

// NewService creates a new intel service
func NewService(api misp.API, policy Policy) *Service {
	return &Service{api: api, policy: policy}
}

// Lookup returns one result per distinct event containing the indicator, in
// the order the events were first seen. Search errors are returned as is.
func (s *Service) Lookup(ctx context.Context, indicator string) ([]models.LookupResult, error) {
	attributes, err := s.api.SearchAttributes(ctx, misp.AttributeFilter{
		Value:              indicator,
		ToIDs:              s.policy.ToIDs,
		Tags:               s.policy.Tags,
		Published:          s.policy.Published,
		Limit:              s.policy.Limit,
		EnforceWarninglist: s.policy.EnforceWarninglist,
	})
	if err != nil {
		return nil, err
	}

	if len(attributes) == 0 {
		logrus.Infof("No results for %s", indicator)
		return nil, nil
	}

	logrus.Infof("Found %d results for %s", len(attributes), indicator)

	seen := make(map[string]bool)
	var results []models.LookupResult

	for _, attribute := range attributes {
		uuid := attribute.Event.UUID
		if seen[uuid] {
			continue
		}
		seen[uuid] = true

		event, err := s.eventDetails(ctx, uuid)
		if err != nil {
			return nil, err
		}

		results = append(results, models.LookupResult{
			EventID:       attribute.Event.ID,
			EventUUID:     uuid,
			Organisation:  event.Orgc.Name,
			Info:          truncateInfo(attribute.Event.Info, s.policy.InfoMaxLength),
			Date:          event.Date,
			ThreatLevel:   misp.ThreatLevelLabel(event.ThreatLevelID),
			AnalysisStage: misp.AnalysisLabel(event.Analysis),
			ContextTags:   mergeTags(event.Tags, attribute.Tags),
		})
	}

	return results, nil
}

func (s *Service) eventDetails(ctx context.Context, uuid string) (*misp.Event, error) {
	events, err := s.api.SearchEvents(ctx, misp.EventFilter{UUID: uuid})
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("%w: %s", misp.ErrEventNotFound, uuid)
	}
	return &events[0], nil
}

// RecordSighting submits a sighting of the indicator on behalf of reporter
func (s *Service) RecordSighting(ctx context.Context, indicator, reporter string) error {
	err := s.api.AddSighting(ctx, misp.Sighting{
		Value:  indicator,
		Source: SightingSource(reporter),
	})
	if err != nil {
		return err
	}

	logrus.Infof("Sighting %s of %s", reporter, indicator)
	return nil
}

// SightingSource builds the source label identifying the bot and the reporter
func SightingSource(reporter string) string {
	return fmt.Sprintf("%s %s", SightingSourcePrefix, reporter)
}

// mergeTags joins event and attribute tags, first-seen order, no duplicates
func mergeTags(tagSets ...[]misp.Tag) []string {
	seen := make(map[string]bool)
	var merged []string

	for _, tags := range tagSets {
		for _, tag := range tags {
			name := strings.TrimSpace(tag.Name)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			merged = append(merged, name)
		}
	}

	return merged
}

func truncateInfo(info string, maxLength int) string {
	runes := []rune(strings.TrimSpace(info))
	if maxLength > 0 && len(runes) > maxLength {
		runes = runes[:maxLength]
	}
	return strings.NewReplacer("\n", "", "\r", "").Replace(string(runes))
}
