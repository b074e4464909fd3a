package worker

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog/log"

	"github.com/fidely/fidely-api/internal/domain/visit"
)

// Sweeper reconciles unapplied visit rows
type Sweeper interface {
	Run(ctx context.Context) (visit.SweepResult, error)
}

// Expirer closes memberships past their end date
type Expirer interface {
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
}

// ReviewDispatcher publishes due review requests
type ReviewDispatcher interface {
	Run(ctx context.Context) (int, error)
}

// Intervals configures how often each job runs
type Intervals struct {
	Sweep    time.Duration
	Expiry   time.Duration
	Reviews  time.Duration
	JobLimit time.Duration
}

// Scheduler runs the ledger maintenance jobs
type Scheduler struct {
	scheduler *gocron.Scheduler
	sweeper   Sweeper
	expirer   Expirer
	reviews   ReviewDispatcher
	intervals Intervals
	now       func() time.Time
}

// NewScheduler creates a scheduler. Jobs are registered on Start.
func NewScheduler(sweeper Sweeper, expirer Expirer, reviews ReviewDispatcher, intervals Intervals) *Scheduler {
	if intervals.Sweep <= 0 {
		intervals.Sweep = 5 * time.Minute
	}
	if intervals.Expiry <= 0 {
		intervals.Expiry = time.Hour
	}
	if intervals.Reviews <= 0 {
		intervals.Reviews = time.Minute
	}
	if intervals.JobLimit <= 0 {
		intervals.JobLimit = 2 * time.Minute
	}

	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	return &Scheduler{
		scheduler: s,
		sweeper:   sweeper,
		expirer:   expirer,
		reviews:   reviews,
		intervals: intervals,
		now:       time.Now,
	}
}

// Start registers the jobs and runs them in the background
func (s *Scheduler) Start() error {
	jobs := []struct {
		name     string
		interval time.Duration
		run      func(ctx context.Context)
	}{
		{"visit_sweep", s.intervals.Sweep, s.SweepVisits},
		{"membership_expiry", s.intervals.Expiry, s.ExpireMemberships},
		{"review_dispatch", s.intervals.Reviews, s.DispatchReviews},
	}

	for _, job := range jobs {
		run := job.run
		if _, err := s.scheduler.Every(job.interval).Tag(job.name).Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), s.intervals.JobLimit)
			defer cancel()
			run(ctx)
		}); err != nil {
			return err
		}
		log.Info().Str("job", job.name).Dur("interval", job.interval).Msg("Job scheduled")
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop waits for running jobs and stops the scheduler
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// SweepVisits runs one reconciliation batch
func (s *Scheduler) SweepVisits(ctx context.Context) {
	res, err := s.sweeper.Run(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Visit sweep failed")
		return
	}
	if res.Replayed+res.Orphaned+res.Failed > 0 {
		log.Info().
			Int("replayed", res.Replayed).
			Int("orphaned", res.Orphaned).
			Int("failed", res.Failed).
			Msg("Visit sweep finished")
	}
}

// ExpireMemberships moves overdue active memberships to expired
func (s *Scheduler) ExpireMemberships(ctx context.Context) {
	n, err := s.expirer.ExpireOverdue(ctx, s.now())
	if err != nil {
		log.Error().Err(err).Msg("Membership expiry failed")
		return
	}
	if n > 0 {
		log.Info().Int64("expired", n).Msg("Memberships expired")
	}
}

// DispatchReviews publishes review requests whose send time has passed
func (s *Scheduler) DispatchReviews(ctx context.Context) {
	n, err := s.reviews.Run(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Review dispatch failed")
		return
	}
	if n > 0 {
		log.Info().Int("sent", n).Msg("Review requests dispatched")
	}
}
