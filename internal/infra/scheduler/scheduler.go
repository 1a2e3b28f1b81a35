package scheduler

import (
	"context"
	"fmt"
	"time"

	"snapletter/internal/app"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const defaultSweepTimeout = 5 * time.Minute

// Renewer re-arms subscribers whose armed delivery has fired.
type Renewer interface {
	RenewDue(ctx context.Context, now time.Time) (*app.RenewalSummary, error)
}

// Alerter notifies operators about sweep trouble.
type Alerter interface {
	Alert(ctx context.Context, text string) error
}

// RenewalScheduler runs the renewal sweep on a cron schedule.
type RenewalScheduler struct {
	cronEngine   *cron.Cron
	renewer      Renewer
	alerter      Alerter // optional
	logger       *logrus.Entry
	cronSpec     string
	sweepTimeout time.Duration
	now          func() time.Time
}

func NewRenewalScheduler(
	renewer Renewer,
	alerter Alerter,
	logger *logrus.Entry,
	cronSpec string, // e.g. "*/15 * * * *"
	loc *time.Location,
) *RenewalScheduler {
	if loc == nil {
		loc = time.Local
	}
	cronLogger := cron.PrintfLogger(logger)
	return &RenewalScheduler{
		cronEngine: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		renewer:      renewer,
		alerter:      alerter,
		logger:       logger,
		cronSpec:     cronSpec,
		sweepTimeout: defaultSweepTimeout,
		now:          time.Now,
	}
}

// Start registers the sweep job and starts the cron engine.
func (s *RenewalScheduler) Start() error {
	s.logger.WithField("cron_spec", s.cronSpec).Info("Starting renewal scheduler")

	_, err := s.cronEngine.AddFunc(s.cronSpec, func() {
		s.logger.Debug("Cron job triggered for renewal sweep")
		ctx, cancel := context.WithTimeout(context.Background(), s.sweepTimeout)
		defer cancel()
		s.RunOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("could not add renewal cron job: %w", err)
	}

	s.cronEngine.Start()
	s.logger.Info("Renewal scheduler started")
	return nil
}

// RunOnce performs one sweep and reports problems to the alerter.
func (s *RenewalScheduler) RunOnce(ctx context.Context) *app.RenewalSummary {
	summary, err := s.renewer.RenewDue(ctx, s.now())
	if err != nil {
		s.logger.WithError(err).Error("Renewal sweep failed")
		s.alert(ctx, fmt.Sprintf("Renewal sweep failed: %v", err))
		return summary
	}
	if summary.Failed > 0 {
		s.logger.WithFields(logrus.Fields{
			"due":    summary.Due,
			"failed": summary.Failed,
		}).Warn("Renewal sweep finished with failures")
		s.alert(ctx, fmt.Sprintf("Renewal sweep: %d of %d due subscribers could not be scheduled.", summary.Failed, summary.Due))
	}
	return summary
}

func (s *RenewalScheduler) alert(ctx context.Context, text string) {
	if s.alerter == nil {
		return
	}
	if err := s.alerter.Alert(ctx, text); err != nil {
		s.logger.WithError(err).Warn("Failed to send renewal alert")
	}
}

// Stop stops the cron engine and waits for a running sweep to finish.
func (s *RenewalScheduler) Stop() {
	s.logger.Info("Stopping renewal scheduler...")
	ctx := s.cronEngine.Stop()
	<-ctx.Done()
	s.logger.Info("Renewal scheduler gracefully stopped")
}
