package processor

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/mispbot/mastodon-misp-bot/internal/config"
	"github.com/mispbot/mastodon-misp-bot/internal/models"
	"github.com/mispbot/mastodon-misp-bot/internal/reply"
	"github.com/sirupsen/logrus"
)

// MentionClient is the social platform as seen by the processor
type MentionClient interface {
	FetchMentions(ctx context.Context) ([]models.Notification, error)
	PostReply(ctx context.Context, text, inReplyToID, visibility string) error
	DismissNotification(ctx context.Context, id string) error
}

// IntelService performs lookups and sightings against the threat-intel platform
type IntelService interface {
	Lookup(ctx context.Context, indicator string) ([]models.LookupResult, error)
	RecordSighting(ctx context.Context, indicator, reporter string) error
}

// CommandParser classifies raw mention content
type CommandParser interface {
	Parse(rawHTML string) (models.Command, error)
}

// Service processes batches of mentions
type Service struct {
	config  *config.Config
	client  MentionClient
	intel   IntelService
	parser  CommandParser
	metrics *Metrics
	mu      sync.RWMutex
	runMu   sync.Mutex
}

// Metrics holds counters of the last batch run
type Metrics struct {
	TotalRuns       int       `json:"total_runs"`
	LastRun         time.Time `json:"last_run"`
	LastRunDuration string    `json:"last_run_duration"`
	MentionsFetched int       `json:"mentions_fetched"`
	Replied         int       `json:"replied"`
	Sighted         int       `json:"sighted"`
	Unrecognized    int       `json:"unrecognized"`
	Failed          int       `json:"failed"`
	Dismissed       int       `json:"dismissed"`
	ErrorCount      int       `json:"error_count"`
}

// NewService creates a new processor
func NewService(cfg *config.Config, client MentionClient, intel IntelService, parser CommandParser) *Service {
	return &Service{
		config:  cfg,
		client:  client,
		intel:   intel,
		parser:  parser,
		metrics: &Metrics{},
	}
}

// run carries the state of a single batch
type run struct {
	outcomes   []models.Outcome
	jobs       []models.ReplyJob
	fetched    int
	dismissed  int
	errorCount int
}

// Run fetches mentions, answers them and dismisses the handled notifications.
// Failures are logged and confined to the mention they concern. Concurrent
// calls are serialised.
func (s *Service) Run(ctx context.Context) []models.Outcome {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	start := time.Now()
	logrus.Info("Starting mention processing run")

	r := &run{}
	mentions := s.fetch(ctx, r)

	for _, mention := range mentions {
		s.dispatch(ctx, r, mention)
	}

	s.reply(ctx, r)
	s.dismiss(ctx, r)

	s.updateMetrics(r, time.Since(start))
	logrus.Infof("Mention processing run completed in %v", time.Since(start))

	return r.outcomes
}

func (s *Service) fetch(ctx context.Context, r *run) []models.Mention {
	logrus.Infof("Fetch mentions for %s", s.config.MastodonUsername)

	notifications, err := s.client.FetchMentions(ctx)
	if err != nil {
		logrus.Errorf("Error fetching mentions for %s: %v", s.config.MastodonUsername, err)
		r.errorCount++
		return nil
	}

	logrus.Infof("Received %d mentions", len(notifications))
	r.fetched = len(notifications)

	mentions := make([]models.Mention, 0, len(notifications))
	for _, notification := range notifications {
		mentions = append(mentions, toMention(notification))
	}
	return mentions
}

func toMention(n models.Notification) models.Mention {
	mention := models.Mention{
		ID:           n.ID,
		SenderHandle: strings.TrimSpace(n.Account.Username),
		SenderURL:    strings.TrimSpace(n.Account.URL),
	}
	if n.Status != nil {
		mention.ConversationID = n.Status.ID
		mention.SourceURL = n.Status.URL
		mention.RawContent = n.Status.Content
	}
	return mention
}

func (s *Service) dispatch(ctx context.Context, r *run, mention models.Mention) {
	log := logrus.WithFields(logrus.Fields{
		"notification_id": mention.ID,
		"sender":          mention.SenderHandle,
	})
	log.Debugf("Working on %s %s", mention.ID, mention.SourceURL)

	command, err := s.parser.Parse(mention.RawContent)
	if err != nil {
		log.Warnf("Unable to extract content from mention: %v", err)
		command = models.Command{Kind: models.CommandUnrecognized}
	}

	outcome := models.Outcome{NotificationID: mention.ID}

	switch command.Kind {
	case models.CommandQuery:
		log.Infof("%s - %s - indicator %s", mention.SenderHandle, command.Kind, command.Indicator)
		results, err := s.intel.Lookup(ctx, command.Indicator)
		if err != nil {
			log.Errorf("Lookup of %s failed: %v", command.Indicator, err)
			outcome.Kind, outcome.Err = models.OutcomeFailed, err
			r.errorCount++
			break
		}
		r.jobs = append(r.jobs, models.ReplyJob{
			MentionID:      mention.ID,
			ConversationID: mention.ConversationID,
			Body:           reply.Format(results),
		})
		outcome.Kind = models.OutcomeReplied

	case models.CommandSighting:
		log.Infof("%s - %s - indicator %s", mention.SenderHandle, command.Kind, command.Indicator)
		if err := s.intel.RecordSighting(ctx, command.Indicator, mention.SenderHandle); err != nil {
			log.Errorf("Sighting of %s failed: %v", command.Indicator, err)
			outcome.Kind, outcome.Err = models.OutcomeFailed, err
			r.errorCount++
			break
		}
		outcome.Kind = models.OutcomeSighted

	default:
		log.Info("Unrecognized mention")
		outcome.Kind = models.OutcomeUnrecognized
	}

	r.outcomes = append(r.outcomes, outcome)
}

func (s *Service) reply(ctx context.Context, r *run) {
	for _, job := range r.jobs {
		logrus.Infof("Reply mention %s in %s", job.MentionID, job.ConversationID)

		for i, chunk := range reply.Chunk(job.Body, s.config.TextCharLimit) {
			if err := s.client.PostReply(ctx, chunk, job.ConversationID, s.config.Visibility); err != nil {
				logrus.WithField("notification_id", job.MentionID).
					Errorf("Error when replying (chunk %d): %v", i+1, err)
				r.errorCount++
				break
			}
			logrus.Debugf("Replied %s %s chunk %d", job.MentionID, job.ConversationID, i+1)
		}
	}
}

func (s *Service) dismiss(ctx context.Context, r *run) {
	dismissed := make(map[string]bool)

	for _, outcome := range r.outcomes {
		if !outcome.Dismissable() || dismissed[outcome.NotificationID] {
			continue
		}
		dismissed[outcome.NotificationID] = true

		if err := s.client.DismissNotification(ctx, outcome.NotificationID); err != nil {
			logrus.WithField("notification_id", outcome.NotificationID).
				Errorf("Error dismissing notification: %v", err)
			r.errorCount++
			continue
		}
		r.dismissed++
		logrus.Infof("Dismiss %s notification %s", outcome.Kind, outcome.NotificationID)
	}
}

func (s *Service) updateMetrics(r *run, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.TotalRuns++
	s.metrics.LastRun = time.Now()
	s.metrics.LastRunDuration = duration.String()
	s.metrics.MentionsFetched = r.fetched
	s.metrics.Dismissed = r.dismissed
	s.metrics.ErrorCount = r.errorCount

	// Reset counters
	s.metrics.Replied = 0
	s.metrics.Sighted = 0
	s.metrics.Unrecognized = 0
	s.metrics.Failed = 0

	for _, outcome := range r.outcomes {
		switch outcome.Kind {
		case models.OutcomeReplied:
			s.metrics.Replied++
		case models.OutcomeSighted:
			s.metrics.Sighted++
		case models.OutcomeUnrecognized:
			s.metrics.Unrecognized++
		case models.OutcomeFailed:
			s.metrics.Failed++
		}
	}
}

// Snapshot returns a copy of the current metrics
func (s *Service) Snapshot() Metrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.metrics
}

// GetMetrics returns current metrics as JSON
func (s *Service) GetMetrics() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, _ := json.MarshalIndent(s.metrics, "", "  ")
	return string(data)
}
