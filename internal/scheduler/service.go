package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/mispbot/mastodon-misp-bot/internal/config"
	"github.com/mispbot/mastodon-misp-bot/internal/models"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Runner executes one batch of mention processing
type Runner interface {
	Run(ctx context.Context) []models.Outcome
}

// Service repeats batch runs on a cron schedule
type Service struct {
	config  *config.Config
	runner  Runner
	cron    *cron.Cron
	timeout time.Duration
}

// NewService creates a new scheduler service
func NewService(cfg *config.Config, runner Runner) *Service {
	return &Service{
		config:  cfg,
		runner:  runner,
		cron:    cron.New(cron.WithSeconds()),
		timeout: 30 * time.Minute,
	}
}

// Start begins the scheduled runs
func (s *Service) Start() error {
	if s.config.RunSchedule == "" {
		return fmt.Errorf("RUN_SCHEDULE is not set")
	}

	_, err := s.cron.AddFunc(s.config.RunSchedule, s.RunOnce)
	if err != nil {
		return fmt.Errorf("invalid RUN_SCHEDULE %q: %w", s.config.RunSchedule, err)
	}

	s.cron.Start()
	logrus.Infof("Scheduler started with schedule %q", s.config.RunSchedule)
	return nil
}

// RunOnce performs a single batch run bounded by the run timeout
func (s *Service) RunOnce() {
	logrus.Info("Starting scheduled mention run")

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	outcomes := s.runner.Run(ctx)
	logrus.Infof("Scheduled mention run handled %d mentions", len(outcomes))
}

// Stop stops the scheduler
func (s *Service) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
		logrus.Info("Scheduler stopped")
	}
}
